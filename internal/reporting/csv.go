package reporting

import (
	"fmt"
	"strings"
)

// RenderCSV renders strategy rows as CSV string.
func RenderCSV(rows []StrategyRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("strategy,signals,passed,pass_rate,mean_heat,median_market_cap\n")

	// Rows
	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("%s,%d,%d,%.6f,%.6f,%.6f\n",
			r.Strategy,
			r.Signals,
			r.Passed,
			r.PassRate,
			r.MeanHeat,
			r.MedianMarketCap,
		))
	}

	return sb.String()
}
