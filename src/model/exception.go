package model

import "time"

// Exception is a failure captured by the trading loop and persisted for later review.
type Exception struct {
	ID uint `gorm:"primaryKey" json:"id"`

	Service string `gorm:"size:100;index" json:"service"` // e.g. "perptrader"
	Module  string `gorm:"size:100;index" json:"module"`  // e.g. "trading_loop"
	Method  string `gorm:"size:100" json:"method"`        // e.g. "ExecuteEntry"

	Message string `gorm:"type:text" json:"message"`
	Stack   string `gorm:"type:text" json:"stack"`

	Level string `gorm:"size:20;index" json:"level"` // debug | info | warn | error | fatal

	// Extra context stored as JSON
	Context string `gorm:"type:text" json:"context,omitempty"`

	Asset string `gorm:"size:30;index" json:"asset,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
