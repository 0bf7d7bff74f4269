// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"ai-writer-go/internal/model"
	"ai-writer-go/internal/service"
	"ai-writer-go/pkg/log"
	"ai-writer-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// StreamHandler 负责处理流式生成的 WebSocket 连接。
type StreamHandler struct {
	essayService  service.EssayService
	userService   service.UserService
	jwtManager    *token.JWTManager
	stopToken     string
	stopTokenLock sync.Mutex
	// 每连接停止标志
	stopFlags sync.Map // key: session pointer string, value: bool
}

// syncConn 串行化对同一 websocket 连接的写操作。
// 读协程的停止应答与生成循环的分块会并发写入同一连接。
type syncConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// WriteMessage 满足 llm.MessageWriter 接口。
func (s *syncConn) WriteMessage(messageType int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(messageType, data)
}

// NewStreamHandler 创建一个新的 StreamHandler。
func NewStreamHandler(essayService service.EssayService, userService service.UserService, jwtManager *token.JWTManager) *StreamHandler {
	return &StreamHandler{
		essayService: essayService,
		userService:  userService,
		jwtManager:   jwtManager,
	}
}

// GetWebsocketStopToken 返回一个可用于停止流的令牌。
func (h *StreamHandler) GetWebsocketStopToken(c *gin.Context) {
	h.stopTokenLock.Lock()
	defer h.stopTokenLock.Unlock()
	// 单实例部署下用一个轮换的令牌即可；多实例需要放到 Redis
	h.stopToken = "WSS_STOP_CMD_" + token.GenerateRandomString(16)
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": gin.H{"cmdToken": h.stopToken}})
}

// Handle 处理一个传入的 WebSocket 连接。
// 连接的读取放在独立协程中，停止指令因此能在生成进行中即时生效；
// 其余消息按序进入生成循环，分块结果以 {"chunk":"..."} 帧下发。
func (h *StreamHandler) Handle(c *gin.Context) {
	tokenString := c.Param("token")
	claims, err := h.jwtManager.VerifyToken(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "无效的 token", "data": nil})
		return
	}

	// 获取用户模型
	user, err := h.userService.GetProfile(claims.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "无法获取用户信息", "data": nil})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	sc := &syncConn{conn: conn}
	defer h.stopFlags.Delete(sessionKey(sc))

	log.Infof("WebSocket 连接已建立，用户: %s", claims.Username)

	// 读协程：停止指令即时处理，其余消息交给生成循环
	done := make(chan struct{})
	defer close(done)
	requests := make(chan []byte)
	go func() {
		defer close(requests)
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				log.Warnf("从 WebSocket 读取消息失败: %v", err)
				return
			}
			// 停止指令: {"type":"stop","_internal_cmd_token":"..."}
			if h.handleStopCommand(sc, message) {
				continue
			}
			select {
			case requests <- message:
			case <-done:
				return
			}
		}
	}()

	for message := range requests {
		var req model.GenerateRequest
		if err := json.Unmarshal(message, &req); err != nil {
			h.writeError(sc, "无效的生成请求")
			continue
		}

		// 清除上一次生成遗留的停止标志
		h.stopFlags.Delete(sessionKey(sc))
		shouldStop := func() bool {
			v, ok := h.stopFlags.Load(sessionKey(sc))
			return ok && v.(bool)
		}

		err := h.essayService.StreamGenerate(c.Request.Context(), user, req, sc, shouldStop)
		switch {
		case err == nil:
		case errors.Is(err, service.ErrEmptyRequest),
			errors.Is(err, service.ErrInvalidTone),
			errors.Is(err, service.ErrWordCountOutOfRange):
			// 校验失败不影响连接的可用性，等待下一个请求
			h.writeError(sc, err.Error())
		default:
			log.Errorf("处理流式生成失败: %v", err)
			h.writeError(sc, "生成服务暂时不可用，请稍后重试")
			// 错误时也发送 completion 通知，让前端结束等待
			h.writeCompletion(sc)
			return
		}
	}
}

// handleStopCommand 解析并处理停止指令，返回 true 表示消息已被消费。
// 在令牌尚未签发（为空）时任何停止指令都不生效。
func (h *StreamHandler) handleStopCommand(sc *syncConn, message []byte) bool {
	if len(message) == 0 || message[0] != '{' {
		return false
	}
	var ctrl map[string]interface{}
	if err := json.Unmarshal(message, &ctrl); err != nil {
		return false
	}
	t, ok := ctrl["type"].(string)
	if !ok || t != "stop" {
		return false
	}
	tok, ok := ctrl["_internal_cmd_token"].(string)
	if !ok {
		return false
	}

	h.stopTokenLock.Lock()
	valid := h.stopToken != "" && tok == h.stopToken
	h.stopTokenLock.Unlock()
	if !valid {
		return false
	}

	h.stopFlags.Store(sessionKey(sc), true)
	resp := map[string]interface{}{
		"type":      "stop",
		"message":   "生成已停止",
		"timestamp": time.Now().UnixMilli(),
		"date":      time.Now().Format("2006-01-02T15:04:05"),
	}
	b, _ := json.Marshal(resp)
	_ = sc.WriteMessage(websocket.TextMessage, b)
	return true
}

func (h *StreamHandler) writeError(sc *syncConn, msg string) {
	b, _ := json.Marshal(map[string]string{"error": msg})
	_ = sc.WriteMessage(websocket.TextMessage, b)
}

func (h *StreamHandler) writeCompletion(sc *syncConn) {
	notif := map[string]interface{}{
		"type":      "completion",
		"status":    "finished",
		"message":   "生成已完成",
		"timestamp": time.Now().UnixMilli(),
		"date":      time.Now().Format("2006-01-02T15:04:05"),
	}
	b, _ := json.Marshal(notif)
	_ = sc.WriteMessage(websocket.TextMessage, b)
}

func sessionKey(sc *syncConn) string {
	return fmt.Sprintf("%p", sc)
}
