package store

import (
	"time"

	"main/internal/schema"
)

// FillRow is one persisted fill event.
type FillRow struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	RunID     string `gorm:"index;size:64"`
	OrderID   uint64
	Symbol    string `gorm:"size:32"`
	Side      string `gorm:"size:8"`
	Price     int64
	FilledQty int64
	LeavesQty int64
	TsEvent   int64
}

// TableName maps FillRow to the fills table.
func (FillRow) TableName() string { return "fills" }

// BalanceRow is one final asset balance of a run.
type BalanceRow struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement"`
	RunID   string `gorm:"index;size:64"`
	Asset   string `gorm:"size:16"`
	Balance int64
	Locked  int64
	Fee     int64
}

// TableName maps BalanceRow to the balances table.
func (BalanceRow) TableName() string { return "balances" }

// RunRow is the summary record of one completed run.
type RunRow struct {
	RunID      string `gorm:"primaryKey;size:64"`
	StartedAt  time.Time
	FinishedAt time.Time
	Messages   uint64
	Fills      uint64
	Rejects    uint64
}

// TableName maps RunRow to the runs table.
func (RunRow) TableName() string { return "runs" }

func fillRow(runID string, symbol string, r schema.OrderResult, tsEvent int64) FillRow {
	return FillRow{
		RunID:     runID,
		OrderID:   r.OrderID,
		Symbol:    symbol,
		Side:      r.Side.String(),
		Price:     int64(r.Price),
		FilledQty: int64(r.FilledQty),
		LeavesQty: int64(r.LeavesQty),
		TsEvent:   tsEvent,
	}
}
