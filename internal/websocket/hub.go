package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"school/backend/internal/service"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = 54 * time.Second
	writeWait    = 10 * time.Second
)

// TaskLookup 异步任务查询接口
type TaskLookup interface {
	Get(id string) (*service.AvatarTask, error)
}

// Presenter 将任务快照转换为推送给客户端的数据
type Presenter func(service.TaskSnapshot) interface{}

// upgraderFactory 创建带有 Origin 验证的 WebSocket 升级器
func upgraderFactory(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			requestOrigin := r.Header.Get("Origin")
			if requestOrigin == "" {
				return true
			}
			for _, origin := range allowedOrigins {
				if origin == "*" || origin == requestOrigin {
					return true
				}
			}
			return false
		},
	}
}

// MessageType 定义WebSocket消息类型
type MessageType string

const (
	MessageTypeTaskCompleted MessageType = "task_completed"
	MessageTypePing          MessageType = "ping"
	MessageTypePong          MessageType = "pong"
	MessageTypeSubscribe     MessageType = "subscribe"
	MessageTypeUnsubscribe   MessageType = "unsubscribe"
	MessageTypeSubscribed    MessageType = "subscribed"
	MessageTypeError         MessageType = "error"
)

// Message 定义WebSocket消息结构
type Message struct {
	Type      MessageType     `json:"type"`
	TaskID    string          `json:"taskId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Client 代表一个WebSocket客户端连接
type Client struct {
	ID      string
	conn    *websocket.Conn
	send    chan []byte
	hub     *Hub
	taskIDs map[string]bool // 订阅的任务ID
	mu      sync.Mutex
	log     *zap.Logger
}

// HubConfig Hub 配置
type HubConfig struct {
	AllowedOrigins []string   // 允许的 Origin 列表，留空允许所有
	Tasks          TaskLookup // 任务查询
	Presenter      Presenter  // 任务数据格式，可为 nil
	Logger         *zap.Logger
}

// Hub 管理所有WebSocket连接与任务订阅
//
// 每个任务的完成通知对每个订阅者只发送一次，发送后订阅自动解除。
type Hub struct {
	clients        map[string]*Client            // clientID -> Client
	tasks          map[string]map[string]*Client // taskID -> clientID -> Client
	unregister     chan *Client
	broadcast      chan service.TaskSnapshot
	done           chan struct{}
	mu             sync.RWMutex
	log            *zap.Logger
	allowedOrigins []string
	lookup         TaskLookup
	present        Presenter
}

// NewHub 创建WebSocket Hub
func NewHub(cfg HubConfig) *Hub {
	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	present := cfg.Presenter
	if present == nil {
		present = func(snap service.TaskSnapshot) interface{} { return snap }
	}

	return &Hub{
		clients:        make(map[string]*Client),
		tasks:          make(map[string]map[string]*Client),
		unregister:     make(chan *Client),
		broadcast:      make(chan service.TaskSnapshot, 256),
		done:           make(chan struct{}),
		log:            log,
		allowedOrigins: allowedOrigins,
		lookup:         cfg.Tasks,
		present:        present,
	}
}

// Run 启动Hub，ctx 结束时关闭所有连接
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.log.Info("websocket hub stopped")
			h.closeAllClients()
			return

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				client.mu.Lock()
				for taskID := range client.taskIDs {
					h.removeSubscriberLocked(taskID, client.ID)
				}
				client.mu.Unlock()
				delete(h.clients, client.ID)
				close(client.send)
				h.log.Debug("client unregistered", zap.String("id", client.ID))
			}
			h.mu.Unlock()

		case snap := <-h.broadcast:
			h.deliver(snap)

		case <-ticker.C:
			h.pingAllClients()
		}
	}
}

// NotifyTask 任务完成时调用，不会阻塞调用方
func (h *Hub) NotifyTask(snap service.TaskSnapshot) {
	select {
	case h.broadcast <- snap:
	default:
		h.log.Warn("task notification dropped, hub queue full", zap.String("taskId", snap.ID))
	}
}

// deliver 向任务订阅者推送完成通知并解除订阅
func (h *Hub) deliver(snap service.TaskSnapshot) {
	h.mu.Lock()
	clients := h.tasks[snap.ID]
	delete(h.tasks, snap.ID)
	h.mu.Unlock()

	if len(clients) == 0 {
		return
	}

	data, err := h.completedMessage(snap)
	if err != nil {
		h.log.Error("failed to marshal task notification", zap.Error(err))
		return
	}

	for _, client := range clients {
		client.forget(snap.ID)
		client.enqueue(data)
	}
}

func (h *Hub) completedMessage(snap service.TaskSnapshot) ([]byte, error) {
	payload, err := json.Marshal(h.present(snap))
	if err != nil {
		return nil, err
	}
	return json.Marshal(&Message{
		Type:      MessageTypeTaskCompleted,
		TaskID:    snap.ID,
		Data:      payload,
		Timestamp: time.Now(),
	})
}

// removeSubscriberLocked 调用方需持有 h.mu
func (h *Hub) removeSubscriberLocked(taskID, clientID string) bool {
	clients, ok := h.tasks[taskID]
	if !ok {
		return false
	}
	if _, ok := clients[clientID]; !ok {
		return false
	}
	delete(clients, clientID)
	if len(clients) == 0 {
		delete(h.tasks, taskID)
	}
	return true
}

// pingAllClients 向所有客户端发送ping
func (h *Hub) pingAllClients() {
	data, err := json.Marshal(&Message{Type: MessageTypePing, Timestamp: time.Now()})
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		select {
		case client.send <- data:
		default:
		}
	}
}

// closeAllClients 关闭所有客户端连接
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		close(client.send)
	}
	h.clients = make(map[string]*Client)
	h.tasks = make(map[string]map[string]*Client)
}

// HandleWebSocket 处理WebSocket连接
func HandleWebSocket(hub *Hub) gin.HandlerFunc {
	upgrader := upgraderFactory(hub.allowedOrigins)

	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.log.Warn("failed to upgrade connection",
				zap.Error(err),
				zap.String("origin", c.Request.Header.Get("Origin")),
				zap.String("remote_addr", c.ClientIP()))
			return
		}

		client := &Client{
			ID:      uuid.NewString(),
			conn:    conn,
			hub:     hub,
			send:    make(chan []byte, 64),
			taskIDs: make(map[string]bool),
			log:     hub.log,
		}

		hub.mu.Lock()
		hub.clients[client.ID] = client
		hub.mu.Unlock()
		hub.log.Debug("client registered", zap.String("id", client.ID))

		go client.writePump()
		go client.readPump()
	}
}

// readPump 处理客户端消息
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("websocket read error", zap.Error(err))
			}
			return
		}
		c.handleMessage(&msg)
	}
}

// writePump 发送消息给客户端
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage 处理接收到的消息
func (c *Client) handleMessage(msg *Message) {
	switch msg.Type {
	case MessageTypeSubscribe:
		c.subscribeTask(msg.TaskID)
	case MessageTypeUnsubscribe:
		c.unsubscribeTask(msg.TaskID)
	case MessageTypePong:
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
	default:
		c.sendError("unknown message type: " + string(msg.Type))
	}
}

// subscribeTask 订阅任务完成通知
//
// 任务已完成时立即推送结果。
func (c *Client) subscribeTask(taskID string) {
	if taskID == "" {
		c.sendError("taskId is required")
		return
	}
	if c.hub.lookup == nil {
		c.sendError("task lookup unavailable")
		return
	}

	task, err := c.hub.lookup.Get(taskID)
	if err != nil {
		c.sendError("task not found: " + taskID)
		return
	}

	c.mu.Lock()
	c.taskIDs[taskID] = true
	c.mu.Unlock()

	c.hub.mu.Lock()
	if c.hub.tasks[taskID] == nil {
		c.hub.tasks[taskID] = make(map[string]*Client)
	}
	c.hub.tasks[taskID][c.ID] = c
	c.hub.mu.Unlock()

	c.sendMessage(&Message{
		Type:      MessageTypeSubscribed,
		TaskID:    taskID,
		Timestamp: time.Now(),
	})

	snap := task.Snapshot()
	if snap.Status == service.TaskPending {
		return
	}

	// 订阅前已完成的任务不会再有广播，由这里补发；两条路径只有一条能摘除订阅
	c.hub.mu.Lock()
	removed := c.hub.removeSubscriberLocked(taskID, c.ID)
	c.hub.mu.Unlock()
	if !removed {
		return
	}
	c.forget(taskID)

	data, err := c.hub.completedMessage(snap)
	if err != nil {
		c.log.Error("failed to marshal task notification", zap.Error(err))
		return
	}
	c.enqueue(data)
}

// unsubscribeTask 取消订阅
func (c *Client) unsubscribeTask(taskID string) {
	c.forget(taskID)

	c.hub.mu.Lock()
	c.hub.removeSubscriberLocked(taskID, c.ID)
	c.hub.mu.Unlock()
}

func (c *Client) forget(taskID string) {
	c.mu.Lock()
	delete(c.taskIDs, taskID)
	c.mu.Unlock()
}

// sendError 发送错误消息给客户端
func (c *Client) sendError(errMsg string) {
	c.sendMessage(&Message{
		Type:      MessageTypeError,
		Error:     errMsg,
		Timestamp: time.Now(),
	})
}

// sendMessage 发送消息给客户端
func (c *Client) sendMessage(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Error("failed to marshal message", zap.Error(err))
		return
	}
	c.enqueue(data)
}

// enqueue 非阻塞写入发送队列，客户端已断开时忽略
func (c *Client) enqueue(data []byte) {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()

	if _, ok := c.hub.clients[c.ID]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
		c.log.Warn("client channel blocked", zap.String("clientID", c.ID))
	}
}
