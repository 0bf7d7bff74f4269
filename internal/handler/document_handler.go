// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"

	"ai-writer-go/internal/model"
	"ai-writer-go/internal/service"
	"ai-writer-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// DocumentHandler 负责处理所有与文档上传提取相关的 API 请求。
type DocumentHandler struct {
	docService service.DocumentService
}

// NewDocumentHandler 创建一个新的 DocumentHandler 实例。
func NewDocumentHandler(docService service.DocumentService) *DocumentHandler {
	return &DocumentHandler{docService: docService}
}

// userFromContext 从上下文中取出由 AuthMiddleware 注入的 User 对象。
func userFromContext(c *gin.Context) (*model.User, error) {
	userValue, exists := c.Get("user")
	if !exists {
		return nil, errors.New("无法获取用户信息")
	}
	user, ok := userValue.(*model.User)
	if !ok || user == nil {
		return nil, errors.New("用户数据类型错误")
	}
	return user, nil
}

// Extract 处理文档上传并返回提取出的纯文本。
// 表单字段名为 file；仅接受 .pdf 与 .docx。
func (h *DocumentHandler) Extract(c *gin.Context) {
	user, err := userFromContext(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少上传文件"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		log.Error("Extract: failed to open uploaded file", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取上传文件失败"})
		return
	}
	defer file.Close()

	text, err := h.docService.ExtractText(c.Request.Context(), user, fileHeader.Filename, file)
	if err != nil {
		if errors.Is(err, service.ErrUnsupportedFormat) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Warnf("Extract: failed for user '%s', file '%s', err: %v", user.Username, fileHeader.Filename, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "文本提取失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "文本提取成功",
		"data": gin.H{
			"fileName": fileHeader.Filename,
			"text":     text,
		},
	})
}

// ListUploads 处理获取用户已归档文档列表的请求。
func (h *DocumentHandler) ListUploads(c *gin.Context) {
	user, err := userFromContext(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	files, err := h.docService.ListUploads(c.Request.Context(), user)
	if err != nil {
		log.Error("ListUploads: failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取文件列表失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "获取归档文件列表成功",
		"data":    files,
	})
}

// DownloadURL 处理生成归档文档下载链接的请求。
func (h *DocumentHandler) DownloadURL(c *gin.Context) {
	fileName := c.Query("fileName")
	if fileName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少文件名"})
		return
	}

	user, err := userFromContext(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	url, err := h.docService.DownloadURL(c.Request.Context(), user, fileName)
	if err != nil {
		log.Warnf("DownloadURL: failed for user '%s', file '%s', err: %v", user.Username, fileName, err)
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "文件下载链接生成成功",
		"data":    gin.H{"url": url},
	})
}
