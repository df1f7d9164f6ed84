package timeslice

import (
	"time"

	"github.com/marksmiths/datafeed/internal/data"
)

// SymbolData pairs a symbol with the data items collected for it this
// window, preserving the producing iteration's insertion order.
type SymbolData struct {
	Symbol data.Symbol
	Items  []data.BaseData
}

// Slice is an immutable snapshot of per-symbol data at one UTC instant,
// frozen once constructed by Build.
type Slice struct {
	Time    time.Time
	Data    []SymbolData
	Changes Changes
}

// Build freezes emitTime, the per-subscription data collected this
// iteration (in the producing iteration's order), and the pending security
// changes into an immutable Slice. The algorithm time zone is accepted as
// context but does not affect the data the slice carries; Build takes no
// cash book — the feed core has no opinion on currency conversion or
// display zones.
func Build(emitTime time.Time, algoTimeZone *time.Location, symbolData []SymbolData, changes Changes) Slice {
	frozen := make([]SymbolData, len(symbolData))
	for i, d := range symbolData {
		cp := d
		cp.Items = append([]data.BaseData(nil), d.Items...)
		frozen[i] = cp
	}
	return Slice{Time: emitTime, Data: frozen, Changes: changes}
}

// Get returns the collected items for symbol, if present in this slice.
func (s Slice) Get(sym data.Symbol) ([]data.BaseData, bool) {
	for _, d := range s.Data {
		if d.Symbol == sym {
			return d.Items, true
		}
	}
	return nil, false
}
