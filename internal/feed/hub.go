package feed

import (
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"

	"y8u-distributor/internal/domain"
	"y8u-distributor/internal/observability"
)

// HubConfig configures the server side of the feed.
type HubConfig struct {
	// Buffer is the per-subscriber queue length. Events beyond it are dropped.
	Buffer int
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// ReadTimeout bounds the wait for a pong.
	ReadTimeout time.Duration
	// CheckOrigin overrides the upgrader's origin check.
	CheckOrigin func(r *http.Request) bool
}

// DefaultHubConfig returns default hub configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		Buffer:       256,
		PingInterval: 30 * time.Second,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  60 * time.Second,
	}
}

var errInvalidAccount = errors.New("invalid account")

type subscriber struct {
	filter Filter
	send   chan Event
}

// Hub fans claim records out to websocket subscribers. A slow subscriber
// loses events instead of stalling claims.
type Hub struct {
	config   HubConfig
	upgrader websocket.Upgrader
	logger   *log.Logger

	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	closed bool

	done chan struct{}
	wg   sync.WaitGroup
}

// NewHub creates a hub.
func NewHub(config *HubConfig, logger *log.Logger) *Hub {
	cfg := DefaultHubConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = log.Default()
	}

	return &Hub{
		config: cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: cfg.CheckOrigin,
		},
		logger: logger,
		subs:   make(map[*subscriber]struct{}),
		done:   make(chan struct{}),
	}
}

// Publish queues r for every matching subscriber without blocking.
func (h *Hub) Publish(r *domain.ClaimRecord) {
	ev := EventFromRecord(r)

	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs {
		if !sub.filter.Match(r) {
			continue
		}
		select {
		case sub.send <- ev:
		default:
			observability.RecordFeedDrop()
		}
	}
}

// Len returns the number of connected subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// ServeHTTP upgrades the request and streams events until the peer goes
// away. Optional query parameters "pool" and "account" narrow the stream.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied.
		return
	}

	sub := &subscriber{filter: filter, send: make(chan Event, h.config.Buffer)}
	if !h.add(sub) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
		conn.Close()
		return
	}

	gone := make(chan struct{})
	go h.readLoop(conn, gone)
	go h.writeLoop(conn, sub, gone)
}

func parseFilter(r *http.Request) (Filter, error) {
	var f Filter
	if p := r.URL.Query().Get("pool"); p != "" {
		pool, err := domain.ParsePool(p)
		if err != nil {
			return Filter{}, err
		}
		f.Pool = pool
	}
	if a := r.URL.Query().Get("account"); a != "" {
		if !common.IsHexAddress(a) {
			return Filter{}, errInvalidAccount
		}
		addr := common.HexToAddress(a)
		f.Account = &addr
	}
	return f, nil
}

func (h *Hub) add(sub *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.subs[sub] = struct{}{}
	h.wg.Add(2)
	observability.UpdateFeedSubscribers(len(h.subs))
	return true
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, sub)
	observability.UpdateFeedSubscribers(len(h.subs))
}

// readLoop drains control frames so pongs and close frames are processed.
func (h *Hub) readLoop(conn *websocket.Conn, gone chan<- struct{}) {
	defer h.wg.Done()
	defer close(gone)

	conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(conn *websocket.Conn, sub *subscriber, gone <-chan struct{}) {
	defer h.wg.Done()
	defer conn.Close()
	defer h.remove(sub)

	ticker := time.NewTicker(h.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		case <-gone:
			return
		case ev := <-sub.send:
			conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				h.logger.Printf("feed write: %v", err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close disconnects every subscriber and waits for their goroutines.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	close(h.done)
	h.mu.Unlock()

	h.wg.Wait()
}
