// Package data holds the core market-data model: the symbol/security-type
// routing identity and the polymorphic BaseData variants (ticks, bars, and
// universe-selection payloads) that flow through the feed.
package data

import "fmt"

// SecurityType is a closed variant identifying what kind of instrument a
// Symbol refers to. Paired with Symbol it forms a routing identity.
type SecurityType int

const (
	SecurityTypeBase SecurityType = iota
	SecurityTypeEquity
	SecurityTypeForex
	SecurityTypeCrypto
)

func (t SecurityType) String() string {
	switch t {
	case SecurityTypeEquity:
		return "Equity"
	case SecurityTypeForex:
		return "Forex"
	case SecurityTypeCrypto:
		return "Crypto"
	default:
		return "Base"
	}
}

// Symbol is an opaque routing key: a ticker paired with the security type it
// trades as. Two symbols are equal iff both fields match, so Symbol is safe
// to use as a map key.
type Symbol struct {
	Value string
	Type  SecurityType
}

// NewSymbol builds a Symbol for the given ticker and security type.
func NewSymbol(value string, t SecurityType) Symbol {
	return Symbol{Value: value, Type: t}
}

func (s Symbol) String() string {
	return fmt.Sprintf("%s:%s", s.Value, s.Type)
}
