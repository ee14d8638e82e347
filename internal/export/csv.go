// Package export renders normalized price history for download.
package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"ai-market-dashboard/internal/types"
)

// Write emits the series as CSV: a Date/Time,Price header, then one quoted
// time and raw price per row.
func Write(w io.Writer, series []types.ChartPoint) error {
	var b strings.Builder
	b.WriteString("Date/Time,Price\n")
	for _, p := range series {
		b.WriteString(fmt.Sprintf("%q,%s\n", p.Time, strconv.FormatFloat(p.Price, 'f', -1, 64)))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Filename names the download after the symbol and range.
func Filename(symbol string, r types.ChartRange) string {
	return fmt.Sprintf("%s_price_history_%s.csv", symbol, r)
}
