package models

import "time"

// BotStatus is the configured/running state of the remote bot.
type BotStatus struct {
	Configured bool `json:"configured"`
	Running    bool `json:"running"`
}

// Performance holds the backend's risk and P&L counters.
type Performance struct {
	DailyTrades    int     `json:"dailyTrades"`
	MaxDailyTrades int     `json:"maxDailyTrades"`
	DailyRisk      float64 `json:"dailyRisk"`
	MaxDailyRisk   float64 `json:"maxDailyRisk"`
	TotalPnL       float64 `json:"totalPnL"`
	WinRate        float64 `json:"winRate"`
	PortfolioValue float64 `json:"portfolioValue"`
	Error          string  `json:"error,omitempty"`
}

// ApplyDefaults fills the limits the backend leaves unset.
func (p *Performance) ApplyDefaults() {
	if p.MaxDailyTrades == 0 {
		p.MaxDailyTrades = 3
	}
	if p.MaxDailyRisk == 0 {
		p.MaxDailyRisk = 50
	}
}

// SetupRequest configures the remote bot.
type SetupRequest struct {
	APIKey              string  `json:"apiKey" validate:"required"`
	APISecret           string  `json:"apiSecret" validate:"required"`
	Strategy            string  `json:"strategy" validate:"required"`
	MinConfidence       float64 `json:"minConfidence" validate:"gte=0,lte=100"`
	TradeAmount         float64 `json:"tradeAmount" validate:"gt=0"`
	MaxPortfolioPercent float64 `json:"maxPortfolioPercent" validate:"gt=0,lte=100"`
	MaxDailyRisk        float64 `json:"maxDailyRisk" validate:"gt=0"`
	MaxTradesPerDay     int     `json:"maxTradesPerDay" validate:"gte=1"`
	EnableStopLoss      bool    `json:"enableStopLoss"`
	StopLossPercent     float64 `json:"stopLossPercent" validate:"gte=0,lte=100"`
	EnableTakeProfit    bool    `json:"enableTakeProfit"`
	TakeProfitPercent   float64 `json:"takeProfitPercent" validate:"gte=0,lte=1000"`
}

// Validate checks the request before it is sent.
func (r SetupRequest) Validate() error {
	return validate.Struct(r)
}

// Analysis is the backend's AI recommendation.
type Analysis struct {
	Recommendation string  `json:"recommendation"`
	Confidence     float64 `json:"confidence"`
	Reasoning      string  `json:"reasoning"`
	EntryPrice     float64 `json:"entryPrice"`
	StopLoss       float64 `json:"stopLoss"`
	Target         float64 `json:"target"`
}

// RateLimit is the exchange API quota reported by the backend.
type RateLimit struct {
	Remaining int       `json:"remaining"`
	Limit     int       `json:"limit"`
	ResetTime time.Time `json:"resetTime"`
}

// Permissions describes what the configured exchange key may do.
type Permissions struct {
	CanRead     bool       `json:"canRead"`
	CanTrade    bool       `json:"canTrade"`
	IsConnected bool       `json:"isConnected"`
	Exchange    string     `json:"exchange,omitempty"`
	RateLimit   *RateLimit `json:"rateLimit,omitempty"`
	LastChecked time.Time  `json:"lastChecked"`
}

// Health is a traffic-light summary of Permissions.
type Health string

const (
	HealthGreen  Health = "green"
	HealthYellow Health = "yellow"
	HealthRed    Health = "red"
)

// Health reports green for read+trade, yellow for read-only, red otherwise.
func (p Permissions) Health() Health {
	switch {
	case !p.IsConnected:
		return HealthRed
	case p.CanRead && p.CanTrade:
		return HealthGreen
	case p.CanRead:
		return HealthYellow
	default:
		return HealthRed
	}
}

// CanGoLive reports whether live trading may be enabled.
func (p Permissions) CanGoLive() bool {
	return p.CanTrade && p.IsConnected
}
