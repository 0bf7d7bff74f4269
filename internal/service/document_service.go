package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"ai-writer-go/internal/config"
	"ai-writer-go/internal/model"
	"ai-writer-go/pkg/log"
	"ai-writer-go/pkg/storage"
	"ai-writer-go/pkg/tika"
)

// ErrUnsupportedFormat 表示上传的文件不是 .pdf 或 .docx。
var ErrUnsupportedFormat = errors.New("仅支持 .pdf 与 .docx 格式的文件")

// DocumentService 接口定义了文档提取与归档相关的业务操作。
type DocumentService interface {
	// ExtractText 把上传的文档转换为去除首尾空白的纯文本，
	// 成功后将原件归档到对象存储（归档失败只记录，不影响提取结果）。
	ExtractText(ctx context.Context, user *model.User, fileName string, file io.Reader) (string, error)
	// ListUploads 列出该用户归档过的原始文档。
	ListUploads(ctx context.Context, user *model.User) ([]storage.ObjectInfo, error)
	// DownloadURL 为归档的原始文档生成预签名下载链接。
	DownloadURL(ctx context.Context, user *model.User, fileName string) (string, error)
}

type documentService struct {
	tikaClient *tika.Client
	minioCfg   config.MinIOConfig
}

// NewDocumentService 创建一个新的 DocumentService 实例。
func NewDocumentService(tikaClient *tika.Client, minioCfg config.MinIOConfig) DocumentService {
	return &documentService{
		tikaClient: tikaClient,
		minioCfg:   minioCfg,
	}
}

// ExtractText 校验扩展名、调用 Tika 提取文本并归档原件。
// 不被支持的扩展名会被显式拒绝，而不是静默返回空文本。
func (s *documentService) ExtractText(ctx context.Context, user *model.User, fileName string, file io.Reader) (string, error) {
	contentType, err := tika.MimeTypeFor(fileName)
	if err != nil {
		return "", ErrUnsupportedFormat
	}

	// 文件内容要同时用于提取和归档，先整体读入
	data, err := io.ReadAll(file)
	if err != nil {
		return "", fmt.Errorf("读取上传文件失败: %w", err)
	}

	text, err := s.tikaClient.ExtractText(ctx, bytes.NewReader(data), fileName)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)

	s.archive(ctx, user.Username, fileName, data, contentType)

	log.Infof("用户 '%s' 提取文档 '%s' 成功，文本长度: %d", user.Username, fileName, len(text))
	return text, nil
}

// archive 把原始文档写入 MinIO，对象名为 {username}/{fileName}。
// 归档是尽力而为的：客户端未配置或写入失败都只记录日志。
func (s *documentService) archive(ctx context.Context, username, fileName string, data []byte, contentType string) {
	if storage.MinioClient == nil {
		return
	}
	objectName := username + "/" + fileName
	if err := storage.PutObject(ctx, s.minioCfg.BucketName, objectName, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		log.Warnf("归档原始文档失败: %s, err: %v", objectName, err)
	}
}

// ListUploads 列出对象存储中该用户前缀下的全部归档文档。
func (s *documentService) ListUploads(ctx context.Context, user *model.User) ([]storage.ObjectInfo, error) {
	if storage.MinioClient == nil {
		return []storage.ObjectInfo{}, nil
	}
	return storage.ListObjects(ctx, s.minioCfg.BucketName, user.Username+"/")
}

// DownloadURL 为该用户归档过的文档生成一小时有效的预签名链接。
func (s *documentService) DownloadURL(ctx context.Context, user *model.User, fileName string) (string, error) {
	if storage.MinioClient == nil {
		return "", errors.New("文档归档功能未启用")
	}
	return storage.GetPresignedURL(s.minioCfg.BucketName, user.Username+"/"+fileName, time.Hour)
}
