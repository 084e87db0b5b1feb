package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/annel0/horde-waves/internal/enemy"
	"github.com/annel0/horde-waves/internal/eventbus"
	"github.com/annel0/horde-waves/internal/logging"
	"github.com/annel0/horde-waves/internal/wave"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	clientSendSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HubMessage представляет кадр, который получают наблюдатели
type HubMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type hubClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// WaveHub рассылает уведомления режиссёра подключённым WebSocket-клиентам.
// Реализует director.Presenter, ClearPresenter и DefeatPresenter.
// Медленный клиент, переполнивший буфер, отключается.
type WaveHub struct {
	mu      sync.RWMutex
	clients map[string]*hubClient
	closed  bool
	logger  *logging.Logger
}

// NewWaveHub создаёт пустой хаб
func NewWaveHub(logger *logging.Logger) *WaveHub {
	if logger == nil {
		logger = logging.For(logging.API)
	}
	return &WaveHub{
		clients: make(map[string]*hubClient),
		logger:  logger,
	}
}

// ClientCount возвращает число подключённых клиентов
func (h *WaveHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// WaveStarted реализует director.Presenter
func (h *WaveHub) WaveStarted(def wave.Definition, waveNumber int) {
	h.Broadcast(eventbus.EventWaveStarted, eventbus.WaveStartedPayload{
		WaveNumber:    waveNumber,
		Name:          def.Name,
		Type:          def.Type.String(),
		Subtitle:      def.Type.Subtitle(),
		EnemyCount:    def.EnemyCount,
		SpawnInterval: def.SpawnInterval.String(),
	})
}

// WaveCleared реализует director.ClearPresenter
func (h *WaveHub) WaveCleared(def wave.Definition, waveNumber int) {
	h.Broadcast(eventbus.EventWaveCleared, eventbus.WaveClearedPayload{
		WaveNumber: waveNumber,
		Name:       def.Name,
		Type:       def.Type.String(),
	})
}

// EnemyDefeated реализует director.DefeatPresenter
func (h *WaveHub) EnemyDefeated(variant enemy.Variant, waveNumber int) {
	h.Broadcast(eventbus.EventEnemyDefeated, eventbus.EnemyDefeatedPayload{
		WaveNumber: waveNumber,
		Variant:    variant.String(),
	})
}

// Broadcast отправляет сообщение всем клиентам без блокировки
func (h *WaveHub) Broadcast(msgType string, data interface{}) {
	payload, err := json.Marshal(HubMessage{Type: msgType, Data: data})
	if err != nil {
		h.logger.Error("Ошибка сериализации %s: %v", msgType, err)
		return
	}

	var slow []*hubClient
	h.mu.RLock()
	for _, c := range h.clients {
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("Клиент %s не успевает читать, отключаем", c.id)
		h.unregister(c)
	}
}

// ServeWS поднимает WebSocket-соединение наблюдателя
func (h *WaveHub) ServeWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Ошибка апгрейда WebSocket: %v", err)
		return
	}

	client := &hubClient{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, clientSendSize),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		conn.Close()
		return
	}
	h.clients[client.id] = client
	h.mu.Unlock()

	h.logger.Debug("🔌 Подключён наблюдатель %s", client.id)

	go h.writePump(client)
	go h.readPump(client)
}

// unregister удаляет клиента и закрывает его канал отправки
func (h *WaveHub) unregister(c *hubClient) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		close(c.send)
	}
	h.mu.Unlock()
}

// readPump читает входящие кадры только ради pong и обнаружения разрыва
func (h *WaveHub) readPump(c *hubClient) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("Ошибка чтения %s: %v", c.id, err)
			}
			return
		}
	}
}

func (h *WaveHub) writePump(c *hubClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Канал закрыт
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close отключает всех клиентов; новые подключения отклоняются
func (h *WaveHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, c := range h.clients {
		delete(h.clients, id)
		close(c.send)
	}
}
