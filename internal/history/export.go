package history

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"cryptobotx-go/internal/models"
)

var exportHeader = []string{
	"Date", "Time", "Symbol", "Side", "Amount", "Price",
	"Profit/Loss", "Strategy", "Confidence", "Fees", "Status",
}

const (
	exportDateLayout = "1/2/2006"
	exportTimeLayout = "3:04:05 PM"
)

// Exporter renders a view as a CSV document with every field quoted.
type Exporter struct {
	Product  string
	Location *time.Location
}

// NewExporter creates an Exporter. A nil location means time.Local.
func NewExporter(product string, loc *time.Location) Exporter {
	if product == "" {
		product = "cryptobotx"
	}
	if loc == nil {
		loc = time.Local
	}
	return Exporter{Product: product, Location: loc}
}

// CSV returns the document. Rows are separated by "\n" with no trailing
// newline, so an empty record set yields just the header line.
func (e Exporter) CSV(records []models.TradeRecord) string {
	var b strings.Builder
	writeRow(&b, exportHeader)
	for _, rec := range records {
		b.WriteByte('\n')
		writeRow(&b, e.row(rec))
	}
	return b.String()
}

// WriteCSV writes the document to w.
func (e Exporter) WriteCSV(w io.Writer, records []models.TradeRecord) error {
	if _, err := io.WriteString(w, e.CSV(records)); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

// FileName is <product>_trades_<mode>_<YYYY-MM-DD>.csv for the given day.
func (e Exporter) FileName(mode models.TradingMode, now time.Time) string {
	return fmt.Sprintf("%s_trades_%s_%s.csv", e.Product, mode, now.UTC().Format("2006-01-02"))
}

func (e Exporter) row(rec models.TradeRecord) []string {
	ts := rec.Timestamp.In(e.location())
	return []string{
		ts.Format(exportDateLayout),
		ts.Format(exportTimeLayout),
		rec.Symbol,
		string(rec.Side),
		formatNumber(rec.Amount),
		formatNumber(rec.Price),
		formatNumber(rec.Profit),
		rec.Strategy,
		formatOptional(rec.Confidence),
		formatOptional(rec.Fees),
		string(rec.Status),
	}
}

func (e Exporter) location() *time.Location {
	if e.Location == nil {
		return time.Local
	}
	return e.Location
}

func writeRow(b *strings.Builder, fields []string) {
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(f, `"`, `""`))
		b.WriteByte('"')
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatOptional leaves the cell empty for an absent or zero value.
func formatOptional(v *float64) string {
	if v == nil || *v == 0 {
		return ""
	}
	return formatNumber(*v)
}
