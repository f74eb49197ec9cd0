package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Signal Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Range: %s .. %s\n\n",
		time.Unix(r.RangeStart, 0).UTC().Format(time.RFC3339),
		time.Unix(r.RangeEnd, 0).UTC().Format(time.RFC3339)))

	// Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Signals | %d |\n", r.Summary.Signals))
	sb.WriteString(fmt.Sprintf("| Passed | %d |\n", r.Summary.Passed))
	sb.WriteString(fmt.Sprintf("| Pass Rate | %.4f |\n", r.Summary.PassRate))
	sb.WriteString(fmt.Sprintf("| Tokens | %d |\n", r.Summary.Tokens))
	sb.WriteString(fmt.Sprintf("| Wallets | %d |\n", r.Summary.Wallets))
	sb.WriteString(fmt.Sprintf("| Accounts | %d |\n", r.Summary.Accounts))
	sb.WriteString("\n")

	// Strategies
	sb.WriteString("## Strategies\n\n")
	if len(r.Strategies) > 0 {
		sb.WriteString("| Strategy | Signals | Passed | PassRate | MeanHeat | MedianMarketCap |\n")
		sb.WriteString("|----------|---------|--------|----------|----------|-----------------|\n")
		for _, s := range r.Strategies {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %.4f | %.2f | %.2f |\n",
				s.Strategy, s.Signals, s.Passed, s.PassRate, s.MeanHeat, s.MedianMarketCap))
		}
	} else {
		sb.WriteString("No signals recorded.\n")
	}
	sb.WriteString("\n")

	// Heat
	sb.WriteString("## Heat Distribution\n\n")
	sb.WriteString("| Heat | Signals | Passed |\n")
	sb.WriteString("|------|---------|--------|\n")
	for _, b := range r.Heat {
		sb.WriteString(fmt.Sprintf("| %d | %d | %d |\n", b.Heat, b.Signals, b.Passed))
	}
	sb.WriteString("\n")

	// Tokens
	sb.WriteString("## Top Tokens\n\n")
	if len(r.Tokens) > 0 {
		sb.WriteString("| Token | Symbol | Signals | Passed | Wallets | MaxHeat | FirstSeen | LastSeen |\n")
		sb.WriteString("|-------|--------|---------|--------|---------|---------|-----------|----------|\n")
		for _, t := range r.Tokens {
			sb.WriteString(fmt.Sprintf("| %s | %s | %d | %d | %d | %d | %d | %d |\n",
				t.Token, t.Symbol, t.Signals, t.Passed, t.Wallets, t.MaxHeat, t.FirstSeen, t.LastSeen))
		}
	} else {
		sb.WriteString("No tokens.\n")
	}

	return sb.String()
}
