package websocket

import (
	"bytes"
	"sync"
	"sync/atomic"

	jsoniter "github.com/json-iterator/go"

	"spreadwatch/pkg/utils"
)

// hub.go - broadcast центр live ленты событий
//
// Hub раздает события конвейера (тики цен, сигналы, отслеживания,
// схождения) всем подключенным WebSocket клиентам. Лента строго
// best-effort: медленный клиент отключается, переполненный broadcast
// канал роняет сообщение, конвейер ничего не ждет.

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// jsonBufferPool переиспользует буферы сериализации между Broadcast
var jsonBufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 512))
	},
}

// Hub управляет активными WebSocket соединениями
type Hub struct {
	// Зарегистрированные клиенты
	clients map[*Client]bool

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	stop       chan struct{}

	// Счетчик сообщений, потерянных на переполненном broadcast канале
	dropped atomic.Int64

	log *utils.Logger

	mu sync.RWMutex
}

// NewHub создает hub live ленты
func NewHub(log *utils.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
		log:        log.WithComponent("ws_hub"),
	}
}

// Run крутит главный цикл hub до Stop.
// Запускается в отдельной горутине: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case <-h.stop:
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("client connected", utils.Count(total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("client disconnected", utils.Count(total))

		case message := <-h.broadcast:
			h.fanOut(message)
		}
	}
}

// Stop останавливает цикл Run и закрывает всех клиентов
func (h *Hub) Stop() {
	close(h.stop)
}

// fanOut раздает сообщение всем клиентам.
// Список копируется под коротким RLock, отправка идет без блокировки,
// не успевающие клиенты удаляются под write lock.
func (h *Hub) fanOut(message []byte) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	var toRemove []*Client
	for _, client := range clients {
		select {
		case client.send <- message:
		default:
			toRemove = append(toRemove, client)
		}
	}

	if len(toRemove) > 0 {
		h.mu.Lock()
		for _, client := range toRemove {
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
		}
		total := len(h.clients)
		h.mu.Unlock()
		h.log.Warn("slow clients removed",
			utils.Int("removed", len(toRemove)), utils.Count(total))
	}
}

// closeAll закрывает все соединения при остановке hub
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
	}
}

// Broadcast сериализует сообщение и раздает его клиентам.
// Неблокирующий: при переполненном канале сообщение теряется.
func (h *Hub) Broadcast(message interface{}) {
	buf := jsonBufferPool.Get().(*bytes.Buffer)
	buf.Reset()

	if err := json.NewEncoder(buf).Encode(message); err != nil {
		jsonBufferPool.Put(buf)
		h.log.Error("broadcast message not serialized", utils.Err(err))
		return
	}

	// Encode дописывает завершающий перевод строки
	data := buf.Bytes()
	if n := len(data); n > 0 && data[n-1] == '\n' {
		data = data[:n-1]
	}

	// Буфер уходит обратно в пул, данные копируются
	msg := make([]byte, len(data))
	copy(msg, data)
	jsonBufferPool.Put(buf)

	h.BroadcastRaw(msg)
}

// BroadcastRaw раздает уже сериализованное сообщение
func (h *Hub) BroadcastRaw(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		h.dropped.Add(1)
	}
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// DroppedMessages возвращает количество потерянных сообщений
func (h *Hub) DroppedMessages() int64 {
	return h.dropped.Load()
}
