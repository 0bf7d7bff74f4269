// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"ai-writer-go/internal/model"
	"ai-writer-go/internal/service"
	"ai-writer-go/pkg/docgen"
	"ai-writer-go/pkg/llm"
	"ai-writer-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// 历史列表中内容预览的最大长度。
const historyPreviewLen = 500

// EssayHandler 负责处理文章生成、历史与导出相关的 API 请求。
type EssayHandler struct {
	essayService service.EssayService
}

// NewEssayHandler 创建一个新的 EssayHandler 实例。
func NewEssayHandler(essayService service.EssayService) *EssayHandler {
	return &EssayHandler{essayService: essayService}
}

// Generate 处理同步生成文章的请求。
func (h *EssayHandler) Generate(c *gin.Context) {
	user, err := userFromContext(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var req model.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Generate: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的请求负载",
		})
		return
	}

	record, err := h.essayService.Generate(c.Request.Context(), user, req)
	if err != nil {
		h.respondGenerateError(c, user, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "文章生成成功",
		"data":    record,
	})
}

// respondGenerateError 把生成失败映射到对应的 HTTP 状态。
// 校验失败是 400；超时与其他远程失败透传错误详情，不重试。
func (h *EssayHandler) respondGenerateError(c *gin.Context, user *model.User, err error) {
	switch {
	case errors.Is(err, service.ErrEmptyRequest),
		errors.Is(err, service.ErrInvalidTone),
		errors.Is(err, service.ErrWordCountOutOfRange):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, llm.ErrTimeout):
		log.Warnf("Generate: timed out for user '%s'", user.Username)
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "生成服务响应超时，请稍后重试"})
	default:
		log.Errorf("Generate: failed for user '%s', err: %v", user.Username, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": fmt.Sprintf("生成失败: %v", err)})
	}
}

// HistoryEntryResponse 定义了历史列表 API 中单条记录的结构。
type HistoryEntryResponse struct {
	Title     string          `json:"title"`
	Content   string          `json:"content"`
	Preview   string          `json:"preview"`
	Timestamp model.LocalTime `json:"timestamp"`
}

// History 返回当前用户的全部历史记录，最新的在前。
func (h *EssayHandler) History(c *gin.Context) {
	user, err := userFromContext(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	entries, err := h.essayService.History(user.Username)
	if err != nil {
		log.Error("History: failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取历史记录失败"})
		return
	}

	resp := make([]HistoryEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, HistoryEntryResponse{
			Title:     e.Title,
			Content:   e.Content,
			Preview:   previewOf(e.Content),
			Timestamp: e.Timestamp,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    resp,
	})
}

func previewOf(content string) string {
	runes := []rune(content)
	if len(runes) <= historyPreviewLen {
		return content
	}
	return string(runes[:historyPreviewLen]) + "..."
}

// Export 把一条历史记录渲染为可下载的文件。
// 查询参数 format 为 txt 或 docx；index 为历史列表（最新在前）中的下标，默认 0。
func (h *EssayHandler) Export(c *gin.Context) {
	user, err := userFromContext(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	format := c.DefaultQuery("format", "txt")
	if format != "txt" && format != "docx" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "format 必须是 txt 或 docx"})
		return
	}

	index, err := strconv.Atoi(c.DefaultQuery("index", "0"))
	if err != nil || index < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的 index"})
		return
	}

	entries, err := h.essayService.History(user.Username)
	if err != nil {
		log.Error("Export: failed to load history", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取历史记录失败"})
		return
	}
	if len(entries) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "还没有可导出的文章"})
		return
	}
	if index >= len(entries) {
		c.JSON(http.StatusNotFound, gin.H{"error": "指定的历史记录不存在"})
		return
	}
	entry := entries[index]

	var (
		payload     []byte
		contentType string
		fileName    string
	)
	switch format {
	case "txt":
		payload = docgen.BuildTXT(entry.Content)
		contentType = docgen.MIMETypeTXT
		fileName = docgen.FileName(entry.Title, ".txt")
	case "docx":
		payload, err = docgen.BuildDOCX(entry.Content)
		if err != nil {
			log.Error("Export: failed to build docx", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "构建 DOCX 文档失败"})
			return
		}
		contentType = docgen.MIMETypeDOCX
		fileName = docgen.FileName(entry.Title, ".docx")
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	c.Data(http.StatusOK, contentType, payload)
}
