// Package subscription holds the per-symbol subscription container (C7) and
// the end-time filter (C5) that terminates its pipeline.
package subscription

import (
	"time"

	"github.com/marksmiths/datafeed/internal/data"
)

// Config is the immutable description of one subscription: what symbol,
// what resolution, what time zone, and which optional behaviors
// (fill-forward, extended hours) apply.
type Config struct {
	Symbol              data.Symbol
	SecurityType        data.SecurityType
	Resolution          data.Resolution
	Increment           time.Duration
	TimeZone            *time.Location
	IsCustomData        bool
	FillDataForward     bool
	ExtendedMarketHours bool
	DataType            string
}
