// Package monitoring 提供诊断事件的实时推送与最近结果缓存
package monitoring

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"noiseshield/engine"
)

// EventType 事件类型
type EventType string

const (
	DiagnosisEvent  EventType = "diagnosis"
	RobustnessEvent EventType = "robustness"
	ReloadEvent     EventType = "models_reloaded"
)

// Event 推送消息结构
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// client 一个WebSocket连接
type client struct {
	conn *websocket.Conn
	send chan []byte
	id   string
}

// Hub WebSocket中心：注册、注销、广播
type Hub struct {
	log        *zap.Logger
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	upgrader   websocket.Upgrader
	done       chan struct{}
	nextID     atomic.Int64

	mu sync.Mutex
}

// NewHub 创建WebSocket中心
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		log:        log,
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		done: make(chan struct{}),
	}
}

// Run 运行事件循环（阻塞，应在goroutine中调用）
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.log.Info("ws client connected", zap.String("client", c.id), zap.Int("total", count))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.log.Info("ws client disconnected", zap.String("client", c.id), zap.Int("total", count))

		case message := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- message:
				default:
					close(c.send)
					delete(h.clients, c)
				}
			}
			h.mu.Unlock()

		case <-h.done:
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop 停止并断开所有连接
func (h *Hub) Stop() {
	close(h.done)
}

// HandleWebSocket 升级HTTP连接
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	c := &client{
		conn: conn,
		send: make(chan []byte, 64),
		id:   fmt.Sprintf("ws-%d", h.nextID.Add(1)),
	}
	h.register <- c
	go c.writePump()
	go c.readPump(h)
}

// PublishDiagnosis 推送一条诊断结果
func (h *Hub) PublishDiagnosis(diagnosis engine.Diagnosis) {
	h.publish(DiagnosisEvent, diagnosis)
}

// PublishReload 推送模型重载事件
func (h *Hub) PublishReload(domains []engine.Domain) {
	h.publish(ReloadEvent, domains)
}

func (h *Hub) publish(eventType EventType, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Warn("ws event marshal failed", zap.Error(err))
		return
	}
	message, err := json.Marshal(Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
	if err != nil {
		return
	}
	select {
	case h.broadcast <- message:
	default:
		h.log.Warn("ws broadcast queue full, dropping event", zap.String("type", string(eventType)))
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(30 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(30 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()
	for {
		// 客户端只订阅，不发送业务消息；读取仅用于感知断开
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}
