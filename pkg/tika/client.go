// Package tika 提供了一个与 Apache Tika 服务器交互的客户端。
// 对本项目而言它是不透明的文档解析器：字节流进，纯文本出。
// 单页/单段落提取失败由 Tika 内部吞掉，不会以错误形式出现。
package tika

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"ai-writer-go/internal/config"
)

// 支持的上传格式及对应的 Content-Type。
var supportedMimeTypes = map[string]string{
	".pdf":  "application/pdf",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// Client 是 Tika 服务器的客户端。
type Client struct {
	serverURL string
	client    *http.Client
}

// NewClient 创建一个新的 Tika 客户端实例。
func NewClient(cfg config.TikaConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		serverURL: cfg.ServerURL,
		client:    &http.Client{Timeout: timeout},
	}
}

// ExtractText 根据文件后缀推断 MIME 类型，并调用 Tika 提取纯文本。
func (c *Client) ExtractText(ctx context.Context, fileReader io.Reader, fileName string) (string, error) {
	contentType, err := MimeTypeFor(fileName)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.serverURL+"/tika", fileReader)
	if err != nil {
		return "", fmt.Errorf("创建请求失败: %w", err)
	}

	req.Header.Set("Accept", "text/plain")
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("调用 Tika 失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("Tika 返回错误 [%d]: %s", resp.StatusCode, string(body))
	}

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, resp.Body); err != nil {
		return "", fmt.Errorf("读取 Tika 响应失败: %w", err)
	}

	return buf.String(), nil
}

// MimeTypeFor 根据文件扩展名返回 Content-Type。
// 只接受 .pdf 与 .docx，其余扩展名一律返回错误。
func MimeTypeFor(fileName string) (string, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	mimeType, ok := supportedMimeTypes[ext]
	if !ok {
		return "", fmt.Errorf("不支持的文件格式: %q", ext)
	}
	return mimeType, nil
}
