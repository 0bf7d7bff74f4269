package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ai-writer-go/internal/model"
	"ai-writer-go/internal/repository"
	"ai-writer-go/pkg/llm"
	"ai-writer-go/pkg/log"

	"github.com/gorilla/websocket"
)

const (
	// MaxSourceTextChars 是拼入指令的支撑材料的固定前缀长度。
	MaxSourceTextChars = 4000

	// MinWordCount 与 MaxWordCount 限定目标字数的取值区间。
	MinWordCount = 500
	MaxWordCount = 3000
)

var (
	// ErrEmptyRequest 表示主题与支撑材料同时为空，此时不会发起远程调用。
	ErrEmptyRequest = errors.New("请提供文章主题或上传支撑材料")
	// ErrInvalidTone 表示语气不在固定枚举集合内。
	ErrInvalidTone = errors.New("无效的文章语气")
	// ErrWordCountOutOfRange 表示目标字数超出允许区间。
	ErrWordCountOutOfRange = fmt.Errorf("目标字数必须在 %d 到 %d 之间", MinWordCount, MaxWordCount)
)

// EssayService 接口定义了文章生成与历史相关的业务操作。
type EssayService interface {
	// Generate 同步生成一篇文章并写入该用户的历史记录。
	Generate(ctx context.Context, user *model.User, req model.GenerateRequest) (*model.EssayRecord, error)
	// StreamGenerate 以流式方式生成文章，分块写入 out，完成后写入历史记录。
	// shouldStop 在每个分块下发前被检查，返回 true 后的分块全部被丢弃。
	StreamGenerate(ctx context.Context, user *model.User, req model.GenerateRequest, out llm.MessageWriter, shouldStop func() bool) error
	// History 返回该用户的全部历史记录，最新的在前。
	History(username string) ([]model.EssayRecord, error)
}

type essayService struct {
	llmClient   llm.Client
	historyRepo repository.HistoryRepository
}

// NewEssayService 创建一个新的 EssayService 实例。
func NewEssayService(llmClient llm.Client, historyRepo repository.HistoryRepository) EssayService {
	return &essayService{
		llmClient:   llmClient,
		historyRepo: historyRepo,
	}
}

// validateRequest 在发起远程调用前校验生成请求。
func validateRequest(req model.GenerateRequest) error {
	if !model.IsValidTone(req.Tone) {
		return ErrInvalidTone
	}
	if req.WordCount < MinWordCount || req.WordCount > MaxWordCount {
		return ErrWordCountOutOfRange
	}
	if req.Topic == "" && req.SourceText == "" {
		return ErrEmptyRequest
	}
	return nil
}

// buildPrompt 把语气、目标字数、主题和可选的支撑材料组合成一条自然语言指令。
// 支撑材料只取前 MaxSourceTextChars 个字符。
func buildPrompt(req model.GenerateRequest) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf(
		"Write a %s essay of around %d words on the topic: '%s'. "+
			"Include an introduction, body, and conclusion. Make it coherent, structured, and engaging.",
		strings.ToLower(req.Tone), req.WordCount, req.Topic,
	))
	if req.SourceText != "" {
		source := req.SourceText
		// 按字符而不是字节截断，多字节文本不能被切在字符中间
		if runes := []rune(source); len(runes) > MaxSourceTextChars {
			source = string(runes[:MaxSourceTextChars])
		}
		b.WriteString("\n\nUse the following text as supporting material:\n")
		b.WriteString(source)
	}
	return b.String()
}

// Generate 校验请求、调用远程生成服务并把结果持久化到历史记录。
// 远程失败原样上抛，不重试、不细分；持久化只发生在生成成功之后。
func (s *essayService) Generate(ctx context.Context, user *model.User, req model.GenerateRequest) (*model.EssayRecord, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	essay, err := s.llmClient.Complete(ctx, buildPrompt(req))
	if err != nil {
		return nil, err
	}

	record := model.EssayRecord{
		Title:     req.Topic,
		Content:   essay,
		Timestamp: model.Now(),
	}
	if err := s.historyRepo.Append(user.Username, record); err != nil {
		return nil, fmt.Errorf("保存历史记录失败: %w", err)
	}

	log.Infof("用户 '%s' 生成文章成功，标题: '%s'，长度: %d", user.Username, record.Title, len(essay))
	return &record, nil
}

// StreamGenerate 协调流式生成：校验请求、转发 LLM 分块并在完成后保存历史。
func (s *essayService) StreamGenerate(ctx context.Context, user *model.User, req model.GenerateRequest, out llm.MessageWriter, shouldStop func() bool) error {
	if err := validateRequest(req); err != nil {
		return err
	}

	// 拦截 writer 以捕获完整文章，并包装为 JSON 分块
	answerBuilder := &strings.Builder{}
	interceptor := &wsWriterInterceptor{out: out, writer: answerBuilder, shouldStop: shouldStop}

	if err := s.llmClient.StreamComplete(ctx, buildPrompt(req), interceptor); err != nil {
		return err
	}

	// 发送完成通知，并保存历史记录
	sendCompletion(out)
	fullAnswer := strings.TrimSpace(answerBuilder.String())
	if len(fullAnswer) > 0 {
		record := model.EssayRecord{
			Title:     req.Topic,
			Content:   fullAnswer,
			Timestamp: model.Now(),
		}
		if err := s.historyRepo.Append(user.Username, record); err != nil {
			// 只记录错误，不返回给客户端，因为流式响应已经成功
			log.Errorf("保存流式生成的历史记录失败: %v", err)
		}
	}

	return nil
}

// History 读取全部历史并反转为最新在前的顺序。
func (s *essayService) History(username string) ([]model.EssayRecord, error) {
	entries, err := s.historyRepo.FindAll(username)
	if err != nil {
		return nil, err
	}
	reversed := make([]model.EssayRecord, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		reversed = append(reversed, entries[i])
	}
	return reversed, nil
}

// wsWriterInterceptor 是对下游 writer 的封装，用于捕获写入的消息。
type wsWriterInterceptor struct {
	out        llm.MessageWriter
	writer     *strings.Builder
	shouldStop func() bool
}

// WriteMessage 满足 llm.MessageWriter 接口。
func (w *wsWriterInterceptor) WriteMessage(messageType int, data []byte) error {
	if w.shouldStop != nil && w.shouldStop() {
		// 停止标志生效：跳过下发
		return nil
	}
	w.writer.Write(data)
	// 将原始分块包装成 {"chunk":"..."}
	payload := map[string]string{"chunk": string(data)}
	b, _ := json.Marshal(payload)
	return w.out.WriteMessage(messageType, b)
}

// sendCompletion 发送完成通知 JSON
func sendCompletion(out llm.MessageWriter) {
	notif := map[string]interface{}{
		"type":      "completion",
		"status":    "finished",
		"message":   "生成已完成",
		"timestamp": time.Now().UnixMilli(),
		"date":      time.Now().Format("2006-01-02T15:04:05"),
	}
	b, _ := json.Marshal(notif)
	_ = out.WriteMessage(websocket.TextMessage, b)
}
