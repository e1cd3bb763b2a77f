// Package store provides the local audit journal of tool calls and trade writes.
package store

import (
	"context"
	"time"
)

// Journal records what the tool server did to the remote workbook.
type Journal interface {
	// Tool calls
	RecordCall(ctx context.Context, call *ToolCall) error
	RecentCalls(ctx context.Context, filter CallFilter) ([]ToolCall, error)

	// Per-trade outcomes of excel.logTrades
	RecordTradeWrites(ctx context.Context, writes []TradeWrite) error
	TradeWrites(ctx context.Context, batchID string) ([]TradeWrite, error)

	Close() error
}

// ToolCall is one journaled tool invocation.
type ToolCall struct {
	ID        string        `json:"id"`
	Tool      string        `json:"tool"`
	Status    string        `json:"status"`
	ErrorType string        `json:"error_type,omitempty"`
	Message   string        `json:"message,omitempty"`
	Args      string        `json:"args,omitempty"`
	Duration  time.Duration `json:"duration"`
	CreatedAt time.Time     `json:"created_at"`
}

// TradeWrite is the outcome of one trade of a batch. BatchID is the ID of
// the tool call that wrote it.
type TradeWrite struct {
	BatchID    string    `json:"batch_id"`
	Sheet      string    `json:"sheet"`
	TradeIndex int       `json:"trade_index"`
	Row        int       `json:"row"`
	Status     string    `json:"status"`
	ErrorType  string    `json:"error_type,omitempty"`
	Message    string    `json:"message,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// CallFilter narrows RecentCalls.
type CallFilter struct {
	Tool   string
	Status string
	Since  time.Time
	Limit  int
}
