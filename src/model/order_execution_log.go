package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderExecutionStatusPending  = "pending"
	OrderExecutionStatusFilled   = "filled"
	OrderExecutionStatusRejected = "rejected"
	OrderExecutionStatusError    = "error"
)

// OrderLog stores each order the bot sent and how it concluded.
type OrderLog struct {
	ID uint `gorm:"primaryKey" json:"id"`

	OrderID   string          `gorm:"size:64;index" json:"order_id"`
	TradeID   string          `gorm:"size:36;index" json:"trade_id,omitempty"`
	Asset     string          `gorm:"size:30" json:"asset"`
	Side      string          `gorm:"size:10" json:"side"`
	OrderType string          `gorm:"size:20" json:"order_type"`
	Size      decimal.Decimal `gorm:"type:numeric" json:"size"`
	Price     decimal.Decimal `gorm:"type:numeric" json:"price"`
	Leverage  int             `json:"leverage"`

	ReduceOnly bool   `json:"reduce_only"`
	Mode       string `gorm:"size:20" json:"mode"`             // paper | live
	Status     string `gorm:"size:20;not null" json:"status"`  // see OrderExecutionStatus* constants
	Reason     string `gorm:"size:255" json:"reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func (OrderLog) TableName() string {
	return "order_logs"
}
