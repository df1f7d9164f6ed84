// Package timeslice implements the time-slice builder (C9): freezing a set
// of per-symbol data at an instant into an immutable snapshot, plus the
// security-changes monoid that tracks universe additions/removals.
package timeslice

import "github.com/marksmiths/datafeed/internal/subscription"

// Changes is {added, removed} under disjoint union. A security added after
// being removed within the same merge window replaces the removal; outside
// that, the two sets stay disjoint.
type Changes struct {
	Added   []subscription.Security
	Removed []subscription.Security
}

// NoChanges is the empty, identity element of the monoid.
var NoChanges = Changes{}

func containsSecurity(list []subscription.Security, sec subscription.Security) int {
	for i, s := range list {
		if s.Symbol == sec.Symbol {
			return i
		}
	}
	return -1
}

func removeAt(list []subscription.Security, i int) []subscription.Security {
	return append(list[:i:i], list[i+1:]...)
}

// AddSecurity records sec as added. If sec was pending removal in this same
// window, the removal is cancelled instead of recording both.
func (c Changes) AddSecurity(sec subscription.Security) Changes {
	if i := containsSecurity(c.Removed, sec); i >= 0 {
		c.Removed = removeAt(c.Removed, i)
		return c
	}
	if containsSecurity(c.Added, sec) >= 0 {
		return c
	}
	c.Added = append(c.Added, sec)
	return c
}

// RemoveSecurity records sec as removed. If sec was pending addition in this
// same window, the addition is cancelled instead of recording both.
func (c Changes) RemoveSecurity(sec subscription.Security) Changes {
	if i := containsSecurity(c.Added, sec); i >= 0 {
		c.Added = removeAt(c.Added, i)
		return c
	}
	if containsSecurity(c.Removed, sec) >= 0 {
		return c
	}
	c.Removed = append(c.Removed, sec)
	return c
}

// IsEmpty reports whether there are no pending additions or removals.
func (c Changes) IsEmpty() bool { return len(c.Added) == 0 && len(c.Removed) == 0 }

// Merge combines c with next under the same cancellation rule: an addition
// in next cancels a matching pending removal in c, and vice versa.
func (c Changes) Merge(next Changes) Changes {
	out := c
	for _, sec := range next.Added {
		out = out.AddSecurity(sec)
	}
	for _, sec := range next.Removed {
		out = out.RemoveSecurity(sec)
	}
	return out
}
