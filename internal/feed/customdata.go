package feed

import (
	"time"

	"github.com/marksmiths/datafeed/internal/data"
	"github.com/marksmiths/datafeed/internal/subscription"
)

// CustomDataSourceFactory builds the lazy sequence for a custom-data
// subscription: a historical reader yielding synthetic "now" data (spec
// §4.8). Custom data sources are not wired through the exchange. The
// concrete reader (REST, remote file, file-system) is an external
// collaborator (spec §1); this is the seam the feed calls into.
type CustomDataSourceFactory func(cfg subscription.Config, utcStart, utcEnd time.Time) Source

// Source is the minimal lazy-sequence contract a custom data source must
// satisfy.
type Source interface {
	Advance() bool
	Current() (data.BaseData, bool)
}

// emptySource never produces data. It is the default CustomDataSourceFactory
// result when the caller hasn't injected a real reader, and is a valid
// (if silent) Source: live sequences always return true from Advance.
type emptySource struct{}

func (emptySource) Advance() bool                  { return true }
func (emptySource) Current() (data.BaseData, bool) { return data.BaseData{}, false }

func defaultCustomDataSourceFactory(subscription.Config, time.Time, time.Time) Source {
	return emptySource{}
}
