package models

import "gorm.io/gorm"

// ExportRecord journals one CSV export of the trade history view.
type ExportRecord struct {
	gorm.Model
	FileName string      `json:"file_name"`
	Mode     TradingMode `json:"mode"`
	Rows     int         `json:"rows"`
	Origin   string      `json:"origin"` // "live" or "fallback"
}
