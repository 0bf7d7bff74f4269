package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"ai-writer-go/internal/model"
	"ai-writer-go/internal/repository"
	"ai-writer-go/internal/service"
	"ai-writer-go/pkg/llm"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubLLMClient 返回固定文本的 llm.Client 测试替身。
type stubLLMClient struct {
	response string
}

func (s *stubLLMClient) Complete(_ context.Context, _ string) (string, error) {
	return s.response, nil
}

func (s *stubLLMClient) StreamComplete(_ context.Context, _ string, writer llm.MessageWriter) error {
	return writer.WriteMessage(1, []byte(s.response))
}

// newEssayTestRouter 构建一个注入了固定登录用户的测试路由。
func newEssayTestRouter(t *testing.T, response string) *gin.Engine {
	t.Helper()
	historyRepo, err := repository.NewHistoryRepository(t.TempDir())
	require.NoError(t, err)
	essayService := service.NewEssayService(&stubLLMClient{response: response}, historyRepo)
	essayHandler := NewEssayHandler(essayService)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("user", &model.User{Username: "alice"})
	})
	r.POST("/generate", essayHandler.Generate)
	r.GET("/history", essayHandler.History)
	r.GET("/export", essayHandler.Export)
	return r
}

func generateOnce(t *testing.T, r *gin.Engine, topic string) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(model.GenerateRequest{
		Topic:     topic,
		Tone:      "Academic",
		WordCount: 1000,
	})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/generate", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGenerateEndpoint(t *testing.T) {
	r := newEssayTestRouter(t, "the generated essay")

	w := generateOnce(t, r, "Climate Change")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data model.EssayRecord `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Climate Change", resp.Data.Title)
	assert.Equal(t, "the generated essay", resp.Data.Content)
}

func TestGenerateEndpointRejectsEmptyInput(t *testing.T) {
	r := newEssayTestRouter(t, "unused")

	w := generateOnce(t, r, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHistoryEndpointNewestFirst(t *testing.T) {
	r := newEssayTestRouter(t, "essay body")

	require.Equal(t, http.StatusOK, generateOnce(t, r, "First Topic").Code)
	require.Equal(t, http.StatusOK, generateOnce(t, r, "Second Topic").Code)

	req := httptest.NewRequest(http.MethodGet, "/history", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data []HistoryEntryResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "Second Topic", resp.Data[0].Title)
	assert.Equal(t, "First Topic", resp.Data[1].Title)
	assert.Equal(t, "essay body", resp.Data[0].Preview)
}

func TestExportEndpointTXT(t *testing.T) {
	r := newEssayTestRouter(t, "exported essay body")

	require.Equal(t, http.StatusOK, generateOnce(t, r, "My Topic On Climate Change Effects").Code)

	req := httptest.NewRequest(http.MethodGet, "/export?format=txt", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "exported essay body", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "My_Topic_On_Climate_Change_Eff_essay.txt")
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
}

func TestExportEndpointDOCX(t *testing.T) {
	r := newEssayTestRouter(t, "exported essay body")

	require.Equal(t, http.StatusOK, generateOnce(t, r, "My Topic On Climate Change Effects").Code)

	req := httptest.NewRequest(http.MethodGet, "/export?format=docx", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Contains(t, w.Header().Get("Content-Disposition"), "My_Topic_On_Climate_Change_Eff_essay.docx")
	assert.Equal(t,
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")))
}

func TestExportEndpointByIndex(t *testing.T) {
	r := newEssayTestRouter(t, "essay body")

	require.Equal(t, http.StatusOK, generateOnce(t, r, "Older Topic").Code)
	require.Equal(t, http.StatusOK, generateOnce(t, r, "Newer Topic").Code)

	// index 以最新在前排序，1 指向较旧的一篇
	req := httptest.NewRequest(http.MethodGet, "/export?format=txt&index=1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "Older_Topic_essay.txt")
}

func TestExportEndpointEmptyHistory(t *testing.T) {
	r := newEssayTestRouter(t, "unused")

	req := httptest.NewRequest(http.MethodGet, "/export?format=txt", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExportEndpointBadFormat(t *testing.T) {
	r := newEssayTestRouter(t, "unused")

	req := httptest.NewRequest(http.MethodGet, "/export?format=pdf", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
