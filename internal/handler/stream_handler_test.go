package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ai-writer-go/internal/model"
	"ai-writer-go/internal/repository"
	"ai-writer-go/internal/service"
	"ai-writer-go/pkg/llm"
	"ai-writer-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// steppedLLMClient 写出第一个分块后阻塞，等待测试放行再写出后续分块。
type steppedLLMClient struct {
	release chan struct{}
}

func (s *steppedLLMClient) Complete(_ context.Context, _ string) (string, error) {
	return "", errors.New("not used")
}

func (s *steppedLLMClient) StreamComplete(_ context.Context, _ string, w llm.MessageWriter) error {
	if err := w.WriteMessage(websocket.TextMessage, []byte("chunk-1")); err != nil {
		return err
	}
	<-s.release
	_ = w.WriteMessage(websocket.TextMessage, []byte("chunk-2"))
	_ = w.WriteMessage(websocket.TextMessage, []byte("chunk-3"))
	return nil
}

func newStreamTestConn(t *testing.T, llmClient llm.Client) (*StreamHandler, *websocket.Conn) {
	t.Helper()
	userRepo := repository.NewUserRepository(filepath.Join(t.TempDir(), "users.json"))
	require.NoError(t, userRepo.Create(&model.User{Username: "alice", Password: "pw", CreatedAt: model.Now()}))
	jwtManager := token.NewJWTManager("test-secret", 1, 7)
	userService := service.NewUserService(userRepo, nil, jwtManager)

	historyRepo, err := repository.NewHistoryRepository(t.TempDir())
	require.NoError(t, err)
	essayService := service.NewEssayService(llmClient, historyRepo)

	h := NewStreamHandler(essayService, userService, jwtManager)

	r := gin.New()
	r.GET("/essays/stream/:token", h.Handle)
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	accessToken, err := jwtManager.GenerateToken("alice")
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/essays/stream/" + accessToken
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return h, conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	frame := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(data, &frame))
	return frame
}

func sendJSON(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	payload, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, payload))
}

func TestStreamStopSuppressesRemainingChunks(t *testing.T) {
	client := &steppedLLMClient{release: make(chan struct{})}
	h, conn := newStreamTestConn(t, client)
	h.stopToken = "WSS_STOP_CMD_test"

	sendJSON(t, conn, model.GenerateRequest{Topic: "Topic", Tone: "Academic", WordCount: 1000})

	frame := readFrame(t, conn)
	assert.Equal(t, "chunk-1", frame["chunk"])

	// 生成仍在进行时发送停止指令，应答确认后剩余分块不得下发
	sendJSON(t, conn, map[string]string{"type": "stop", "_internal_cmd_token": "WSS_STOP_CMD_test"})
	frame = readFrame(t, conn)
	require.Equal(t, "stop", frame["type"])

	close(client.release)

	frame = readFrame(t, conn)
	assert.Equal(t, "completion", frame["type"])
	assert.NotContains(t, frame, "chunk")
}

func TestStreamValidationErrorKeepsConnection(t *testing.T) {
	_, conn := newStreamTestConn(t, &stubLLMClient{response: "essay text"})

	// 主题与材料同时为空：应收到错误帧，连接保持可用
	sendJSON(t, conn, model.GenerateRequest{Topic: "", Tone: "Academic", WordCount: 1000})
	frame := readFrame(t, conn)
	assert.NotEmpty(t, frame["error"])

	sendJSON(t, conn, model.GenerateRequest{Topic: "Topic", Tone: "Academic", WordCount: 1000})
	frame = readFrame(t, conn)
	assert.Equal(t, "essay text", frame["chunk"])
	frame = readFrame(t, conn)
	assert.Equal(t, "completion", frame["type"])
}

func TestStopCommandRequiresIssuedToken(t *testing.T) {
	h := NewStreamHandler(nil, nil, nil)

	// 轮换令牌尚未签发时，携带空令牌的停止指令不得生效
	msg := []byte(`{"type":"stop","_internal_cmd_token":""}`)
	assert.False(t, h.handleStopCommand(&syncConn{}, msg))

	msg = []byte(`{"type":"stop","_internal_cmd_token":"guess"}`)
	assert.False(t, h.handleStopCommand(&syncConn{}, msg))
}
