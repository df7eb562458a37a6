package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Status is the lifecycle state of an order as reported by the backend.
type Status string

const (
	StatusFilled    Status = "filled"
	StatusPending   Status = "pending"
	StatusCancelled Status = "cancelled"
)

// TradingMode scopes which records and which execution context are used.
type TradingMode string

const (
	ModeDemo TradingMode = "demo"
	ModeLive TradingMode = "live"
)

// ParseTradingMode accepts "demo" or "live".
func ParseTradingMode(s string) (TradingMode, error) {
	switch TradingMode(s) {
	case ModeDemo, ModeLive:
		return TradingMode(s), nil
	}
	return "", fmt.Errorf("unknown trading mode %q (want demo or live)", s)
}

// TradeRecord is one exchange order as reported by the backend.
// Records are never mutated after decoding.
type TradeRecord struct {
	ID         string    `json:"id" validate:"required"`
	Symbol     string    `json:"symbol" validate:"required"`
	Side       Side      `json:"side" validate:"oneof=BUY SELL"`
	Amount     float64   `json:"amount" validate:"gte=0"`
	Price      float64   `json:"price" validate:"gte=0"`
	Timestamp  time.Time `json:"timestamp" validate:"required"`
	Strategy   string    `json:"strategy"`
	Profit     float64   `json:"profit"`
	Status     Status    `json:"status" validate:"oneof=filled pending cancelled"`
	Confidence *float64  `json:"confidence,omitempty" validate:"omitempty,gte=0,lte=100"`
	Fees       *float64  `json:"fees,omitempty" validate:"omitempty,gte=0"`
}

var validate = validator.New()

// timestampLayouts are tried in order. Layouts without an offset are read
// as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp parses an ISO-8601 timestamp with or without a UTC offset.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// UnmarshalJSON decodes a backend item. A timestamp that cannot be read is
// left zero so the record fails Validate instead of failing the whole batch.
// Epoch milliseconds are accepted as well as ISO-8601 strings.
func (t *TradeRecord) UnmarshalJSON(data []byte) error {
	type plain TradeRecord
	aux := struct {
		*plain
		Timestamp json.RawMessage `json:"timestamp"`
	}{plain: (*plain)(t)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	t.Timestamp = time.Time{}
	raw := bytes.TrimSpace(aux.Timestamp)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
	case raw[0] == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		if ts, err := ParseTimestamp(s); err == nil {
			t.Timestamp = ts
		}
	default:
		if ms, err := strconv.ParseInt(string(raw), 10, 64); err == nil {
			t.Timestamp = time.UnixMilli(ms).UTC()
		}
	}
	return nil
}

// Validate checks the record against the backend's documented invariants.
func (t TradeRecord) Validate() error {
	return validate.Struct(t)
}

// FeeAmount returns the fee, treating an absent value as zero.
func (t TradeRecord) FeeAmount() float64 {
	if t.Fees == nil {
		return 0
	}
	return *t.Fees
}
