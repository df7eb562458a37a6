package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"cryptobotx-go/internal/history"
	"cryptobotx-go/internal/models"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	gainStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	lossStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	headerStyle  = cellStyle.Bold(true)
	healthStyles = map[models.Health]lipgloss.Style{
		models.HealthGreen:  gainStyle,
		models.HealthYellow: warnStyle,
		models.HealthRed:    lossStyle,
	}
)

func money(v float64) string {
	s := fmt.Sprintf("$%.2f", v)
	if v > 0 {
		return gainStyle.Render("+" + s)
	}
	if v < 0 {
		return lossStyle.Render(fmt.Sprintf("-$%.2f", -v))
	}
	return s
}

func field(w io.Writer, label string, value any) {
	fmt.Fprintf(w, "%s %v\n", mutedStyle.Render(label+":"), value)
}

func printTrades(w io.Writer, trades []models.TradeRecord, loc *time.Location) {
	rows := make([][]string, 0, len(trades))
	for _, t := range trades {
		ts := t.Timestamp.In(loc)
		confidence := ""
		if t.Confidence != nil {
			confidence = strconv.FormatFloat(*t.Confidence, 'f', 0, 64) + "%"
		}
		rows = append(rows, []string{
			ts.Format("2006-01-02 15:04"),
			t.Symbol,
			string(t.Side),
			strconv.FormatFloat(t.Amount, 'f', -1, 64),
			fmt.Sprintf("$%.2f", t.Price),
			fmt.Sprintf("%+.2f", t.Profit),
			t.Strategy,
			confidence,
			string(t.Status),
		})
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Time ("+loc.String()+")", "Symbol", "Side", "Amount", "Price", "P/L", "Strategy", "Confidence", "Status").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 5 && row >= 0 && row < len(trades) {
				switch {
				case trades[row].Profit > 0:
					return cellStyle.Inherit(gainStyle)
				case trades[row].Profit < 0:
					return cellStyle.Inherit(lossStyle)
				}
			}
			return cellStyle
		})
	fmt.Fprintln(w, tbl.Render())
}

func printExports(w io.Writer, recs []models.ExportRecord, loc *time.Location) {
	rows := make([][]string, 0, len(recs))
	for _, r := range recs {
		origin := r.Origin
		if r.Origin == string(history.OriginFallback) {
			origin = warnStyle.Render(origin)
		}
		rows = append(rows, []string{
			r.CreatedAt.In(loc).Format("2006-01-02 15:04"),
			r.FileName,
			string(r.Mode),
			strconv.Itoa(r.Rows),
			origin,
		})
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Exported ("+loc.String()+")", "File", "Mode", "Rows", "Origin").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	fmt.Fprintln(w, tbl.Render())
}

func printSummary(w io.Writer, s history.Summary) {
	fmt.Fprintln(w, titleStyle.Render("Summary"))
	field(w, "Trades", s.Count)
	field(w, "Net P&L", money(s.NetPnL))
	field(w, "Win rate", fmt.Sprintf("%.1f%%", s.WinRate))
	field(w, "Fees", fmt.Sprintf("$%.4f", s.TotalFees))
}
