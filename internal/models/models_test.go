package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func TestTradeRecord_DecodeBackendItem(t *testing.T) {
	raw := `{
		"id": "abc-1",
		"symbol": "BTCUSDT",
		"side": "BUY",
		"amount": 0.005,
		"price": 45123.5,
		"timestamp": "2024-03-01T12:30:00.000Z",
		"strategy": "AI Analysis",
		"profit": -3.2,
		"status": "filled",
		"confidence": 82.5
	}`

	var rec TradeRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &rec))

	assert.Equal(t, SideBuy, rec.Side)
	assert.Equal(t, StatusFilled, rec.Status)
	assert.True(t, rec.Timestamp.Equal(time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)))
	require.NotNil(t, rec.Confidence)
	assert.Equal(t, 82.5, *rec.Confidence)
	assert.Nil(t, rec.Fees)
	assert.Equal(t, 0.0, rec.FeeAmount())
	assert.NoError(t, rec.Validate())
}

func TestTradeRecord_Validate(t *testing.T) {
	valid := TradeRecord{
		ID: "1", Symbol: "ETHUSDT", Side: SideSell, Amount: 1, Price: 3000,
		Timestamp: time.Now(), Status: StatusPending, Fees: ptr(0.3),
	}

	testCases := []struct {
		name        string
		mutate      func(r *TradeRecord)
		expectError bool
	}{
		{name: "Valid", mutate: func(r *TradeRecord) {}},
		{name: "Unknown side", mutate: func(r *TradeRecord) { r.Side = "HOLD" }, expectError: true},
		{name: "Unknown status", mutate: func(r *TradeRecord) { r.Status = "open" }, expectError: true},
		{name: "Negative amount", mutate: func(r *TradeRecord) { r.Amount = -1 }, expectError: true},
		{name: "Confidence above 100", mutate: func(r *TradeRecord) { r.Confidence = ptr(101) }, expectError: true},
		{name: "Negative fee", mutate: func(r *TradeRecord) { r.Fees = ptr(-0.1) }, expectError: true},
		{name: "Missing timestamp", mutate: func(r *TradeRecord) { r.Timestamp = time.Time{} }, expectError: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := valid
			tc.mutate(&rec)
			if tc.expectError {
				assert.Error(t, rec.Validate())
			} else {
				assert.NoError(t, rec.Validate())
			}
		})
	}
}

func TestTradeRecord_DecodeTimestampFormats(t *testing.T) {
	want := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	testCases := []struct {
		name string
		raw  string
		want time.Time
	}{
		{name: "RFC 3339", raw: `"2024-03-01T10:00:00Z"`, want: want},
		{name: "Offset", raw: `"2024-03-01T11:00:00+01:00"`, want: want},
		{name: "No offset", raw: `"2024-03-01T10:00:00"`, want: want},
		{name: "No offset with fraction", raw: `"2024-03-01T10:00:00.250"`, want: want.Add(250 * time.Millisecond)},
		{name: "Space separator", raw: `"2024-03-01 10:00:00"`, want: want},
		{name: "Epoch milliseconds", raw: `1709287200000`, want: want},
		{name: "Unreadable", raw: `"last tuesday"`},
		{name: "Null", raw: `null`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			raw := `{"id":"a","symbol":"BTCUSDT","side":"BUY","status":"filled","timestamp":` + tc.raw + `}`
			var rec TradeRecord
			require.NoError(t, json.Unmarshal([]byte(raw), &rec))
			assert.Equal(t, "BTCUSDT", rec.Symbol)
			if tc.want.IsZero() {
				assert.True(t, rec.Timestamp.IsZero())
				assert.Error(t, rec.Validate())
				return
			}
			assert.True(t, rec.Timestamp.Equal(tc.want), "got %s", rec.Timestamp)
			assert.NoError(t, rec.Validate())
		})
	}
}

func TestParseTradingMode(t *testing.T) {
	mode, err := ParseTradingMode("live")
	assert.NoError(t, err)
	assert.Equal(t, ModeLive, mode)

	_, err = ParseTradingMode("paper")
	assert.Error(t, err)
}

func TestSetupRequest_Validate(t *testing.T) {
	req := SetupRequest{
		APIKey: "k", APISecret: "s", Strategy: "Conservative",
		MinConfidence: 70, TradeAmount: 10, MaxPortfolioPercent: 5,
		MaxDailyRisk: 50, MaxTradesPerDay: 3, StopLossPercent: 5, TakeProfitPercent: 10,
	}
	assert.NoError(t, req.Validate())

	bad := req
	bad.MinConfidence = 120
	assert.Error(t, bad.Validate())

	bad = req
	bad.APISecret = ""
	assert.Error(t, bad.Validate())

	bad = req
	bad.MaxTradesPerDay = 0
	assert.Error(t, bad.Validate())
}

func TestPermissions_Health(t *testing.T) {
	assert.Equal(t, HealthRed, Permissions{CanRead: true, CanTrade: true}.Health())
	assert.Equal(t, HealthGreen, Permissions{IsConnected: true, CanRead: true, CanTrade: true}.Health())
	assert.Equal(t, HealthYellow, Permissions{IsConnected: true, CanRead: true}.Health())
	assert.Equal(t, HealthRed, Permissions{IsConnected: true}.Health())

	assert.True(t, Permissions{IsConnected: true, CanTrade: true}.CanGoLive())
	assert.False(t, Permissions{IsConnected: false, CanTrade: true}.CanGoLive())
}

func TestPerformance_ApplyDefaults(t *testing.T) {
	p := Performance{TotalPnL: 12}
	p.ApplyDefaults()
	assert.Equal(t, 3, p.MaxDailyTrades)
	assert.Equal(t, 50.0, p.MaxDailyRisk)

	p = Performance{MaxDailyTrades: 7, MaxDailyRisk: 100}
	p.ApplyDefaults()
	assert.Equal(t, 7, p.MaxDailyTrades)
	assert.Equal(t, 100.0, p.MaxDailyRisk)
}
