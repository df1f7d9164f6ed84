// Package wsbridge is the concrete downstream Bridge (spec §6): it
// broadcasts published time slices to connected WebSocket clients and
// exposes the capacity-aware Wait the frontier loop uses before firing
// universe selection.
package wsbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/marksmiths/datafeed/internal/data"
	"github.com/marksmiths/datafeed/internal/subscription"
	"github.com/marksmiths/datafeed/internal/timeslice"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
	clientSendBuf  = 256
)

// Hub manages WebSocket clients and broadcasts published slices to them. It
// also tracks how many published slices are still in flight, so Wait can
// gate universe-selection firing on downstream capacity.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	mu         sync.RWMutex

	// slices mirrors every broadcast message for a local, non-WebSocket
	// consumer (tests, or an in-process adapter) that wants the published
	// slices without going through a socket. Sends are best-effort: a full
	// buffer drops the slice rather than blocking the hub loop.
	slices chan []byte

	capMu    sync.Mutex
	capCond  *sync.Cond
	capacity int
	inFlight int

	allowedOrigins map[string]bool
}

// NewHub creates a Hub with the given backpressure capacity: the number of
// published slices allowed to be in flight (queued for broadcast) at once.
// allowedOrigins restricts the Origin header ServeWs accepts; a nil or empty
// set allows any origin, matching permissive local development use.
func NewHub(capacity int, allowedOrigins []string) *Hub {
	if capacity <= 0 {
		capacity = 1
	}
	h := &Hub{
		broadcast:      make(chan []byte),
		register:       make(chan *client),
		unregister:     make(chan *client),
		clients:        make(map[*client]bool),
		slices:         make(chan []byte, capacity),
		capacity:       capacity,
		allowedOrigins: make(map[string]bool, len(allowedOrigins)),
	}
	h.capCond = sync.NewCond(&h.capMu)
	for _, o := range allowedOrigins {
		h.allowedOrigins[o] = true
	}
	return h
}

// Run starts the hub's event loop. It blocks until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			log.Println("wsbridge: client registered")

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			log.Println("wsbridge: client unregistered")

		case message := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- message:
				default:
					close(c.send)
					delete(h.clients, c)
				}
			}
			h.mu.RUnlock()
			select {
			case h.slices <- message:
			default:
			}
			h.release(1)
		}
	}
}

// Slices returns a channel carrying published slices' JSON encoding,
// independent of any WebSocket client. Delivery is best-effort: a slice is
// dropped from this channel when its buffer is full.
func (h *Hub) Slices() <-chan []byte { return h.slices }

// Add publishes slice, blocking until there is backpressure room or ctx is
// cancelled.
func (h *Hub) Add(ctx context.Context, slice timeslice.Slice) error {
	body, err := json.Marshal(toWire(slice))
	if err != nil {
		return fmt.Errorf("wsbridge: marshal slice: %w", err)
	}
	if err := h.acquire(ctx, 1); err != nil {
		return err
	}
	select {
	case h.broadcast <- body:
		return nil
	case <-ctx.Done():
		h.release(1)
		return ctx.Err()
	}
}

// Wait blocks until at least capacity in-flight slots are free, or ctx is
// cancelled. It does not itself consume capacity.
func (h *Hub) Wait(ctx context.Context, capacity int) error {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			h.capCond.Broadcast()
		case <-done:
		}
	}()
	defer close(done)

	h.capMu.Lock()
	defer h.capMu.Unlock()
	for h.capacity-h.inFlight < capacity {
		if err := ctx.Err(); err != nil {
			return err
		}
		h.capCond.Wait()
	}
	return nil
}

func (h *Hub) acquire(ctx context.Context, n int) error {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			h.capCond.Broadcast()
		case <-done:
		}
	}()
	defer close(done)

	h.capMu.Lock()
	defer h.capMu.Unlock()
	for h.capacity-h.inFlight < n {
		if err := ctx.Err(); err != nil {
			return err
		}
		h.capCond.Wait()
	}
	h.inFlight += n
	return nil
}

func (h *Hub) release(n int) {
	h.capMu.Lock()
	h.inFlight -= n
	h.capMu.Unlock()
	h.capCond.Broadcast()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// ServeWs upgrades an HTTP request to a WebSocket connection and registers
// the resulting client with the hub.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	if !h.originAllowed(r.Header.Get("Origin")) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("wsbridge:", err)
		return
	}
	c := &client{hub: h, conn: conn, send: make(chan []byte, clientSendBuf)}
	h.register <- c

	go c.writePump()
	go c.readPump()
}

func (h *Hub) originAllowed(origin string) bool {
	if origin == "" || len(h.allowedOrigins) == 0 {
		return true
	}
	return h.allowedOrigins[origin]
}

// wireSlice is the JSON envelope broadcast to clients.
type wireSlice struct {
	Time    time.Time        `json:"time"`
	Data    []wireSymbolData `json:"data"`
	Added   []string         `json:"added,omitempty"`
	Removed []string         `json:"removed,omitempty"`
}

type wireSymbolData struct {
	Symbol string     `json:"symbol"`
	Items  []wireItem `json:"items"`
}

type wireItem struct {
	Kind    string    `json:"kind"`
	Time    time.Time `json:"time"`
	EndTime time.Time `json:"endTime"`
	Bid     float64   `json:"bid,omitempty"`
	Ask     float64   `json:"ask,omitempty"`
	Last    float64   `json:"last,omitempty"`
	Open    float64   `json:"open,omitempty"`
	High    float64   `json:"high,omitempty"`
	Low     float64   `json:"low,omitempty"`
	Close   float64   `json:"close,omitempty"`
	Volume  float64   `json:"volume,omitempty"`
}

func toWire(slice timeslice.Slice) wireSlice {
	out := wireSlice{Time: slice.Time}
	for _, sd := range slice.Data {
		items := make([]wireItem, len(sd.Items))
		for i, it := range sd.Items {
			items[i] = wireItemOf(it)
		}
		out.Data = append(out.Data, wireSymbolData{Symbol: sd.Symbol.String(), Items: items})
	}
	out.Added = securityStrings(slice.Changes.Added)
	out.Removed = securityStrings(slice.Changes.Removed)
	return out
}

func wireItemOf(it data.BaseData) wireItem {
	w := wireItem{Time: it.Time, EndTime: it.EndTime}
	switch it.Kind {
	case data.KindTick:
		w.Kind = "tick"
		w.Bid, w.Ask, w.Last, w.Volume = it.Tick.BidPrice, it.Tick.AskPrice, it.Tick.LastPrice, it.Tick.Quantity
	case data.KindTradeBar:
		w.Kind = "bar"
		w.Open, w.High, w.Low, w.Close, w.Volume = it.Bar.Open, it.Bar.High, it.Bar.Low, it.Bar.Close, it.Bar.Volume
	case data.KindCoarseFundamental:
		w.Kind = "coarse_fundamental"
	}
	return w
}

func securityStrings(secs []subscription.Security) []string {
	if len(secs) == 0 {
		return nil
	}
	out := make([]string, len(secs))
	for i, s := range secs {
		out[i] = s.Symbol.String()
	}
	return out
}
