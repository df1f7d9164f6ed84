package feed

import (
	"github.com/marksmiths/datafeed/internal/data"
	"github.com/marksmiths/datafeed/internal/exchange"
)

// DataQueueHandler is the full upstream collaborator surface (spec §6): the
// exchange only needs GetNextTicks to poll; the feed additionally needs
// Subscribe/Unsubscribe when securities are added or removed.
type DataQueueHandler interface {
	exchange.DataQueueHandler
	// Subscribe requests upstream delivery for the given symbols of the
	// given security type. Idempotent, additive.
	Subscribe(securityType data.SecurityType, symbols []data.Symbol) error
	// Unsubscribe cancels upstream delivery. Idempotent.
	Unsubscribe(securityType data.SecurityType, symbols []data.Symbol) error
}
