// Package render prints report rows as colored per-day lines. It owns
// all display formatting; the engine only defines the row shape.
package render

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/goodtune/timebuddy/internal/report"
)

const hourBlock = "█"

// gradient runs cold-to-warm with minutes of activity in the hour.
var gradient = []*color.Color{
	color.New(color.FgRed),
	color.New(color.FgHiRed),
	color.New(color.FgYellow),
	color.New(color.FgHiYellow),
	color.New(color.FgGreen),
	color.New(color.FgHiGreen),
}

var idle = color.New(color.Faint)

var statusColors = map[report.Status]*color.Color{
	report.StatusUnder: color.New(color.FgRed),
	report.StatusMet:   color.New(color.FgGreen),
	report.StatusOver:  color.New(color.FgHiGreen),
}

// Report writes the daily table and window summary.
func Report(w io.Writer, rows []report.Row, sum report.Summary) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No screen time data found for the selected period.")
		return
	}

	fmt.Fprintln(w, "--- Daily Screen Time Summary ---")
	for _, row := range rows {
		writeRow(w, row)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "--- Window Summary ---")
	fmt.Fprintf(w, "Total for %d active day(s): %-22s%s\n",
		sum.ActiveDays,
		fmt.Sprintf("Raw: %.1f h (%s)", hours(sum.Raw), percent(sum.Raw, sum.Expected)),
		fmt.Sprintf("Block: %.1f h (%s)", hours(sum.Block), percent(sum.Block, sum.Expected)),
	)
}

func writeRow(w io.Writer, row report.Row) {
	fmt.Fprintf(w, "%s: ", row.Date.Format("2006-01-02"))

	for hour := 0; hour < 24; hour++ {
		minutes := row.Hourly[hour].Minutes()
		if minutes <= 0 {
			idle.Fprint(w, hourBlock)
			continue
		}
		// Map minutes in the hour onto the gradient.
		idx := int(minutes) * len(gradient) / 61
		if idx >= len(gradient) {
			idx = len(gradient) - 1
		}
		gradient[idx].Fprint(w, hourBlock)
	}

	rawStr := fmt.Sprintf("Raw: %.1f h (%s)", hours(row.Raw), percent(row.Raw, row.Expected))
	blockStr := fmt.Sprintf("Block: %.1f h (%s)", hours(row.Block), percent(row.Block, row.Expected))
	fmt.Fprintf(w, "  %-22s%-24s", rawStr, blockStr)
	statusColors[row.Status].Fprintln(w, string(row.Status))
}

func hours(d time.Duration) float64 {
	return d.Hours()
}

func percent(d, expected time.Duration) string {
	if expected <= 0 {
		return "n/a"
	}
	return fmt.Sprintf("%.0f%%", d.Hours()/expected.Hours()*100)
}
