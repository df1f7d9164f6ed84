// Package amqprouter is the concrete upstream DataQueueHandler (spec §6):
// it turns per-symbol RabbitMQ queues into the poll-based GetNextTicks
// surface the exchange expects, and turns AddSubscription/RemoveSubscription
// calls into queue declarations.
package amqprouter

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/marksmiths/datafeed/internal/data"
)

const (
	dialRetries     = 10
	dialRetryDelay  = 2 * time.Second
	maxPerQueuePoll = 256

	// staleThreshold mirrors the teacher's isStale cutoff: a message older
	// than this is dropped rather than routed, so a restart doesn't replay a
	// backlog as if it were live data.
	staleThreshold = 3 * time.Second
)

// wireMessage is the JSON envelope published to a symbol's queue. Kind
// discriminates which of Tick/Rows is populated.
type wireMessage struct {
	Kind       string          `json:"kind"`
	ProducedAt int64           `json:"produced_at"`
	Tick       *wireTick       `json:"tick,omitempty"`
	Rows       []wireCoarseRow `json:"rows,omitempty"`
}

type wireTick struct {
	Bid float64 `json:"bid"`
	Ask float64 `json:"ask"`
	// Last is the last-trade price; zero means quote-only (spec §3).
	Last   float64 `json:"last"`
	Volume float64 `json:"volume"`
}

type wireCoarseRow struct {
	Instrument string  `json:"instrument"`
	Price      float64 `json:"price"`
	Volume     float64 `json:"volume"`
	MarketCap  float64 `json:"marketCap"`
}

func isStale(producedAtMillis int64) bool {
	return time.Now().UnixMilli()-producedAtMillis > staleThreshold.Milliseconds()
}

func queueName(securityType data.SecurityType, symbol data.Symbol) string {
	return fmt.Sprintf("Market_Data_%s_%s", securityType, symbol.Value)
}

// Router is a concrete feed.DataQueueHandler over RabbitMQ. Subscribe and
// Unsubscribe declare and forget queues; GetNextTicks polls every currently
// subscribed queue with a bounded, non-blocking Get loop, grounded on the
// teacher's DrainQueues.
type Router struct {
	conn *amqp091.Connection
	ch   *amqp091.Channel

	mu     sync.Mutex
	queues map[data.Symbol]string
}

// Dial connects to amqpURI, retrying like the teacher's NewConsumer/
// NewPublisher.
func Dial(amqpURI string) (*Router, error) {
	var conn *amqp091.Connection
	var err error

	for i := 0; i < dialRetries; i++ {
		conn, err = amqp091.Dial(amqpURI)
		if err == nil {
			break
		}
		log.Printf("amqprouter: connection attempt %d failed: %s", i+1, err)
		time.Sleep(dialRetryDelay)
	}
	if err != nil {
		return nil, fmt.Errorf("amqprouter: dial after %d attempts: %w", dialRetries, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqprouter: open channel: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		log.Printf("amqprouter: qos: %s", err)
	}

	return &Router{conn: conn, ch: ch, queues: make(map[data.Symbol]string)}, nil
}

// Subscribe declares a durable queue per symbol and starts tracking it for
// GetNextTicks polling. Idempotent: re-subscribing a tracked symbol is a
// no-op queue-declare.
func (r *Router) Subscribe(securityType data.SecurityType, symbols []data.Symbol) error {
	for _, sym := range symbols {
		name := queueName(securityType, sym)
		_, err := r.ch.QueueDeclare(
			name,
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,   // arguments
		)
		if err != nil {
			return fmt.Errorf("amqprouter: declare queue %q: %w", name, err)
		}

		r.mu.Lock()
		r.queues[sym] = name
		r.mu.Unlock()
	}
	return nil
}

// Unsubscribe stops polling symbols' queues. It does not delete the queue
// itself, so a late-arriving producer never gets a channel error.
func (r *Router) Unsubscribe(_ data.SecurityType, symbols []data.Symbol) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sym := range symbols {
		delete(r.queues, sym)
	}
	return nil
}

// GetNextTicks drains whatever is currently queued, across every subscribed
// symbol, without blocking for new arrivals. It is the exchange's poll
// target (spec §4.6).
func (r *Router) GetNextTicks() ([]data.BaseData, error) {
	r.mu.Lock()
	snapshot := make(map[data.Symbol]string, len(r.queues))
	for sym, name := range r.queues {
		snapshot[sym] = name
	}
	r.mu.Unlock()

	var out []data.BaseData
	for sym, name := range snapshot {
		for i := 0; i < maxPerQueuePoll; i++ {
			msg, ok, err := r.ch.Get(name, true)
			if err != nil {
				return out, fmt.Errorf("amqprouter: get from %q: %w", name, err)
			}
			if !ok {
				break
			}

			item, ok, err := decode(sym, msg.Body)
			if err != nil {
				log.Printf("amqprouter: decode message from %q: %v", name, err)
				continue
			}
			if !ok {
				continue
			}
			out = append(out, item)
		}
	}
	return out, nil
}

func decode(sym data.Symbol, body []byte) (data.BaseData, bool, error) {
	var msg wireMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return data.BaseData{}, false, err
	}
	if isStale(msg.ProducedAt) {
		return data.BaseData{}, false, nil
	}

	now := time.UnixMilli(msg.ProducedAt).UTC()

	switch msg.Kind {
	case "tick":
		if msg.Tick == nil {
			return data.BaseData{}, false, fmt.Errorf("tick message missing tick payload")
		}
		return data.NewTick(sym, now, data.Tick{
			BidPrice:  msg.Tick.Bid,
			AskPrice:  msg.Tick.Ask,
			LastPrice: msg.Tick.Last,
			Quantity:  msg.Tick.Volume,
		}), true, nil

	case "coarse_fundamental":
		rows := make([]data.CoarseFundamentalRow, len(msg.Rows))
		for i, row := range msg.Rows {
			rows[i] = data.CoarseFundamentalRow{
				Symbol:    data.NewSymbol(row.Instrument, sym.Type),
				Price:     row.Price,
				Volume:    row.Volume,
				MarketCap: row.MarketCap,
			}
		}
		return data.NewCoarseFundamental(sym, now, rows), true, nil

	default:
		return data.BaseData{}, false, fmt.Errorf("unknown message kind %q", msg.Kind)
	}
}

// Close releases the channel and connection.
func (r *Router) Close() {
	if r.ch != nil {
		r.ch.Close()
	}
	if r.conn != nil {
		r.conn.Close()
	}
}
