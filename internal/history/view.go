package history

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"cryptobotx-go/internal/models"

	"github.com/shopspring/decimal"
)

// SideFilter restricts records to one side.
type SideFilter string

const (
	SideAll  SideFilter = "all"
	SideBuy  SideFilter = SideFilter(models.SideBuy)
	SideSell SideFilter = SideFilter(models.SideSell)
)

// StatusFilter restricts records to one status.
type StatusFilter string

const (
	StatusAll       StatusFilter = "all"
	StatusFilled    StatusFilter = StatusFilter(models.StatusFilled)
	StatusPending   StatusFilter = StatusFilter(models.StatusPending)
	StatusCancelled StatusFilter = StatusFilter(models.StatusCancelled)
)

// DateRange is a relative lower bound on the trade timestamp.
type DateRange string

const (
	RangeDay   DateRange = "1d"
	RangeWeek  DateRange = "7d"
	RangeMonth DateRange = "30d"
	RangeAll   DateRange = "all"
)

// Since returns the earliest accepted instant, or false for no bound.
func (r DateRange) Since(now time.Time) (time.Time, bool) {
	var days int
	switch r {
	case RangeDay:
		days = 1
	case RangeWeek:
		days = 7
	case RangeMonth:
		days = 30
	default:
		return time.Time{}, false
	}
	return now.Add(-time.Duration(days) * 24 * time.Hour), true
}

// SortKey selects the field records are ordered by.
type SortKey string

const (
	SortTimestamp SortKey = "timestamp"
	SortProfit    SortKey = "profit"
	SortAmount    SortKey = "amount"
)

// SortOrder is ascending or descending.
type SortOrder string

const (
	Ascending  SortOrder = "asc"
	Descending SortOrder = "desc"
)

// FilterState is the user's current search, filters and sort selection.
type FilterState struct {
	Search string       `json:"search"`
	Side   SideFilter   `json:"side"`
	Status StatusFilter `json:"status"`
	Range  DateRange    `json:"range"`
	SortBy SortKey      `json:"sortBy"`
	Order  SortOrder    `json:"order"`
}

// DefaultFilterState is what the view opens with: everything from the last
// seven days, newest first.
func DefaultFilterState() FilterState {
	return FilterState{
		Side:   SideAll,
		Status: StatusAll,
		Range:  RangeWeek,
		SortBy: SortTimestamp,
		Order:  Descending,
	}
}

// ParseFilterState builds a FilterState from user input. Empty values take
// the defaults; unknown values are rejected.
func ParseFilterState(search, side, status, dateRange, sortBy, order string) (FilterState, error) {
	f := DefaultFilterState()
	f.Search = search

	if side != "" {
		f.Side = SideFilter(strings.ToUpper(side))
		if strings.EqualFold(side, string(SideAll)) {
			f.Side = SideAll
		}
	}
	if status != "" {
		f.Status = StatusFilter(strings.ToLower(status))
	}
	if dateRange != "" {
		f.Range = DateRange(strings.ToLower(dateRange))
	}
	if sortBy != "" {
		f.SortBy = SortKey(strings.ToLower(sortBy))
	}
	if order != "" {
		f.Order = SortOrder(strings.ToLower(order))
	}

	if err := f.Validate(); err != nil {
		return FilterState{}, err
	}
	return f, nil
}

// Validate rejects values outside the closed enumerations.
func (f FilterState) Validate() error {
	switch f.Side {
	case SideAll, SideBuy, SideSell:
	default:
		return fmt.Errorf("invalid side filter %q", f.Side)
	}
	switch f.Status {
	case StatusAll, StatusFilled, StatusPending, StatusCancelled:
	default:
		return fmt.Errorf("invalid status filter %q", f.Status)
	}
	switch f.Range {
	case RangeDay, RangeWeek, RangeMonth, RangeAll:
	default:
		return fmt.Errorf("invalid date range %q", f.Range)
	}
	switch f.SortBy {
	case SortTimestamp, SortProfit, SortAmount:
	default:
		return fmt.Errorf("invalid sort key %q", f.SortBy)
	}
	switch f.Order {
	case Ascending, Descending:
	default:
		return fmt.Errorf("invalid sort order %q", f.Order)
	}
	return nil
}

// Matches reports whether a record passes every filter.
func (f FilterState) Matches(rec models.TradeRecord, now time.Time) bool {
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(rec.Symbol), needle) &&
			!strings.Contains(strings.ToLower(rec.Strategy), needle) {
			return false
		}
	}
	if f.Side != SideAll && string(f.Side) != string(rec.Side) {
		return false
	}
	if f.Status != StatusAll && string(f.Status) != string(rec.Status) {
		return false
	}
	if since, bounded := f.Range.Since(now); bounded && rec.Timestamp.Before(since) {
		return false
	}
	return true
}

// Summary aggregates a filtered record set.
type Summary struct {
	Count     int     `json:"count"`
	NetPnL    float64 `json:"netPnL"`
	WinRate   float64 `json:"winRate"`
	TotalFees float64 `json:"totalFees"`
}

// View is the filtered, sorted records and their summary.
type View struct {
	Trades  []models.TradeRecord `json:"trades"`
	Summary Summary              `json:"summary"`
}

// Apply filters, sorts and aggregates records. The input slice is not
// modified; records with equal sort keys keep their fetch order.
func Apply(records []models.TradeRecord, f FilterState, now time.Time) View {
	filtered := make([]models.TradeRecord, 0, len(records))
	for _, rec := range records {
		if f.Matches(rec, now) {
			filtered = append(filtered, rec)
		}
	}

	sortRecords(filtered, f.SortBy, f.Order)

	return View{Trades: filtered, Summary: Summarize(filtered)}
}

func sortRecords(records []models.TradeRecord, key SortKey, order SortOrder) {
	less := func(a, b models.TradeRecord) bool {
		switch key {
		case SortProfit:
			return a.Profit < b.Profit
		case SortAmount:
			return a.Amount < b.Amount
		default:
			return a.Timestamp.Before(b.Timestamp)
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		if order == Ascending {
			return less(records[i], records[j])
		}
		return less(records[j], records[i])
	})
}

// Summarize computes count, net P&L, win rate (percent of strictly
// profitable records, 0 when empty) and total fees.
func Summarize(records []models.TradeRecord) Summary {
	net := decimal.Zero
	fees := decimal.Zero
	wins := 0
	for _, rec := range records {
		net = net.Add(decimal.NewFromFloat(rec.Profit))
		fees = fees.Add(decimal.NewFromFloat(rec.FeeAmount()))
		if rec.Profit > 0 {
			wins++
		}
	}

	s := Summary{
		Count:     len(records),
		NetPnL:    net.InexactFloat64(),
		TotalFees: fees.InexactFloat64(),
	}
	if s.Count > 0 {
		s.WinRate = float64(wins) / float64(s.Count) * 100
	}
	return s
}

// EmptyMessage explains an empty view, or returns "" when there is
// something to show.
func EmptyMessage(loaded, shown int) string {
	switch {
	case shown > 0:
		return ""
	case loaded == 0:
		return "No trades found. Your trading history will appear here once you start trading."
	default:
		return "No trades found. Try adjusting your filters to see more trades."
	}
}
