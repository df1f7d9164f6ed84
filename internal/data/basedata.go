package data

import "time"

// Kind discriminates the BaseData variants. Handlers at the exchange
// boundary switch on Kind to stay exhaustive instead of relying on
// interface type assertions everywhere (spec §9 design note).
type Kind int

const (
	KindTick Kind = iota
	KindTradeBar
	KindCoarseFundamental
)

// BaseData is the polymorphic envelope every item flowing through the feed
// satisfies: a symbol, a local time window, and a value. Time is local to
// the subscription's configured time zone; EndTime is always >= Time.
type BaseData struct {
	Kind    Kind
	Symbol  Symbol
	Time    time.Time
	EndTime time.Time

	Tick     Tick
	Bar      TradeBar
	Universe CoarseFundamentalList
}

// Period returns EndTime - Time.
func (b BaseData) Period() time.Duration { return b.EndTime.Sub(b.Time) }

// Tick is a single market event: bid/ask quote plus an optional last trade
// price and quantity. A Tick with LastPrice == 0 is quote-only: it carries
// no trade information and must not move a bar's O/H/L/C.
type Tick struct {
	BidPrice  float64
	AskPrice  float64
	LastPrice float64
	Quantity  float64
}

// IsTrade reports whether this tick carries trade information.
func (t Tick) IsTrade() bool { return t.LastPrice != 0 }

// TradeBar is an OHLCV aggregate over a fixed-duration window for one
// symbol. Period == EndTime - Time by construction.
type TradeBar struct {
	Open, High, Low, Close float64
	Volume                 float64
	Period                 time.Duration
}

// NewTick constructs a BaseData tick item.
func NewTick(sym Symbol, t time.Time, tick Tick) BaseData {
	return BaseData{Kind: KindTick, Symbol: sym, Time: t, EndTime: t, Tick: tick}
}

// NewTradeBar constructs a BaseData bar item; EndTime is derived from Time
// and the bar's own Period field.
func NewTradeBar(sym Symbol, start time.Time, bar TradeBar) BaseData {
	return BaseData{Kind: KindTradeBar, Symbol: sym, Time: start, EndTime: start.Add(bar.Period), Bar: bar}
}

// CoarseFundamentalRow is one row of a bulk universe-selection payload.
type CoarseFundamentalRow struct {
	Symbol    Symbol
	Price     float64
	Volume    float64
	MarketCap float64
}

// CoarseFundamentalList is the bulk universe-selection payload: a snapshot
// of candidate securities delivered at one instant.
type CoarseFundamentalList struct {
	Rows []CoarseFundamentalRow
}

// NewCoarseFundamental constructs a BaseData universe-selection item.
func NewCoarseFundamental(sym Symbol, t time.Time, rows []CoarseFundamentalRow) BaseData {
	return BaseData{Kind: KindCoarseFundamental, Symbol: sym, Time: t, EndTime: t, Universe: CoarseFundamentalList{Rows: rows}}
}
