// SPDX-License-Identifier: AGPL-3.0-only
package model

import "time"

// Exchange is the audit record of one resolved query: the user's text, the
// final answer (or the error that ended the query), and how much work the
// resolution took. It never stores the message log itself.
type Exchange struct {
	ID        int64     `json:"id,omitempty"`
	Query     string    `json:"query"`
	Answer    string    `json:"answer,omitempty"`
	Error     string    `json:"error,omitempty"`
	Rounds    int       `json:"rounds"`
	ToolCalls int       `json:"tool_calls"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Duration  string    `json:"duration,omitempty"`
}

// ExchangeStore persists exchange records.
type ExchangeStore interface {
	// SaveExchange persists one exchange record.
	SaveExchange(ex *Exchange) error
	// RecentExchanges returns up to limit exchanges, most recent first.
	RecentExchanges(limit int) ([]*Exchange, error)
	// Close releases the underlying storage.
	Close() error
}
