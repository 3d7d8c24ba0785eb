package main

import (
	"fmt"
	"slices"
	"strings"

	"tart/internal/game"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"
)

var (
	accent  = color.New(color.FgCyan, color.Bold)
	success = color.New(color.FgGreen, color.Bold)
	warn    = color.New(color.FgYellow, color.Bold)
	danger  = color.New(color.FgRed, color.Bold)
	neutral = color.New(color.FgHiWhite)
)

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func renderModels(models []string) {
	accent.Println("\n== MODELS ==")
	if len(models) == 0 {
		printInfo("No models registered.")
		return
	}
	fmt.Printf("%-6s %-16s\n", "INDEX", "NAME")
	for i, m := range models {
		fmt.Printf("%-6d %-16s\n", i, m)
	}
	fmt.Println()
}

func renderSimulations(sims []game.SimulationInfo, current int) {
	accent.Println("\n== SIMULATIONS ==")
	if len(sims) == 0 {
		printInfo("No simulations yet. Run `tart create <model>`.")
		return
	}
	fmt.Printf("%-2s %-6s %-16s\n", "", "ID", "MODEL")
	for _, s := range sims {
		marker := ""
		if s.ID == current {
			marker = success.Sprint("*")
		}
		fmt.Printf("%-2s %-6d %-16s\n", marker, s.ID, s.Model)
	}
	fmt.Println()
}

func renderState(st game.State) {
	accent.Printf("\n== SIMULATION #%d (%s) ==\n", st.ID, st.Model)
	fmt.Printf("Money:        %s\n", formatMoney(st.Money))
	fmt.Printf("Earned:       %s\n", colorizeMoney(st.MoneyInc))
	fmt.Printf("Spent:        %s\n", colorizeMoney(st.MoneyDec))
	fmt.Printf("Time:         %ss\n", formatSeconds(st.Time))
	if st.Stats != nil {
		fmt.Printf("Income/s:     %s\n", formatMoney(st.Stats.MoneyPerSecond))
		if len(st.Stats.Levels) > 0 {
			parts := make([]string, 0, len(st.Stats.Levels))
			for name, level := range st.Stats.Levels {
				parts = append(parts, fmt.Sprintf("%s=%d", name, level))
			}
			slices.Sort(parts)
			fmt.Printf("Levels:       %s\n", strings.Join(parts, " "))
		}
	} else {
		fmt.Printf("Levels:       %s\n", truncate(fmt.Sprint(st.Levels), 60))
		printWarn("Stats are not available for this model.")
	}
	fmt.Println()
}

// renderStateLine is the compact form used by `watch`.
func renderStateLine(st game.State) {
	income := "-"
	if st.Stats != nil {
		income = formatMoney(st.Stats.MoneyPerSecond) + "/s"
	}
	fmt.Printf("t=%-10s money=%-14s income=%-12s spent=%s\n",
		formatSeconds(st.Time), formatMoney(st.Money), income, colorizeMoney(st.MoneyDec))
}

func renderKinds(kinds []string) {
	accent.Println("\n== UPGRADE KINDS ==")
	fmt.Printf("%-6s %-24s\n", "INDEX", "NAME")
	for i, k := range kinds {
		fmt.Printf("%-6d %-24s\n", i, k)
	}
	fmt.Println()
}

func renderChoices(choices []game.Choice, money float64) {
	accent.Println("\n== CHOICES ==")
	if len(choices) == 0 {
		printInfo("Every upgrade is maxed out.")
		return
	}
	fmt.Printf("%-4s %-16s %6s %14s %14s %14s\n", "#", "KIND", "LEVEL", "PRICE", "INCOME/S", "AFTER")
	for i, c := range choices {
		price := formatMoney(c.Price)
		if c.Price > money {
			price = danger.Sprint(price)
		} else {
			price = success.Sprint(price)
		}
		delta := c.NextStats.MoneyPerSecond - c.CurrentStats.MoneyPerSecond
		fmt.Printf("%-4d %-16s %6s %14s %14s %14s\n",
			i,
			truncate(c.KindName, 16),
			fmt.Sprintf("%d>%d", c.Level, c.Level+1),
			price,
			colorizeMoney(delta),
			formatMoney(c.NextStats.Money),
		)
	}
	fmt.Println()
}

func renderHistory(history []game.Choice) {
	accent.Println("\n== PURCHASE HISTORY ==")
	if len(history) == 0 {
		printInfo("Nothing bought yet.")
		return
	}
	fmt.Printf("%-4s %-10s %-16s %6s %14s\n", "#", "TIME", "KIND", "LEVEL", "PRICE")
	for i, c := range history {
		fmt.Printf("%-4d %-10s %-16s %6d %14s\n",
			i,
			formatSeconds(c.Time),
			truncate(c.KindName, 16),
			c.Level+1,
			formatMoney(c.Price),
		)
	}
	fmt.Println()
}

func renderCurves(curves []game.CurveView) {
	accent.Println("\n== CURVES ==")
	fmt.Printf("%-6s %-20s %6s %-40s\n", "INDEX", "NAME", "MAX", "PRICES")
	for _, c := range curves {
		fmt.Printf("%-6d %-20s %6d %-40s\n",
			c.Index,
			truncate(c.Name, 20),
			c.MaxLevel,
			truncate(joinMoney(c.Prices), 40),
		)
	}
	fmt.Println()
}

func renderCurve(c game.CurveView) {
	accent.Printf("\n== CURVE %d (%s) ==\n", c.Index, c.Name)
	fmt.Printf("%-6s %14s %14s\n", "LEVEL", "PRICE", "VALUE")
	for level := 0; level <= c.MaxLevel; level++ {
		price := "-"
		if level < len(c.Prices) {
			price = formatMoney(c.Prices[level])
		}
		value := "-"
		if level < len(c.Values) {
			value = formatMoney(c.Values[level])
		}
		fmt.Printf("%-6d %14s %14s\n", level, price, value)
	}
	fmt.Println()
}

func joinMoney(vs []float64) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = formatMoney(v)
	}
	return strings.Join(parts, " ")
}

func colorizeMoney(v float64) string {
	text := signedMoney(v)
	switch {
	case v > 0:
		return success.Sprint(text)
	case v < 0:
		return danger.Sprint(text)
	default:
		return neutral.Sprint(text)
	}
}

// formatMoney renders v with two fixed decimals and thousands separators.
func formatMoney(v float64) string {
	d := decimal.NewFromFloat(v).Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	whole, frac, _ := strings.Cut(d.StringFixed(2), ".")
	return sign + comma(whole) + "." + frac
}

func formatSeconds(v float64) string {
	return decimal.NewFromFloat(v).Round(2).String()
}

func signedMoney(v float64) string {
	if v > 0 {
		return "+" + formatMoney(v)
	}
	return formatMoney(v)
}

func comma(s string) string {
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
		if len(s) > pre {
			b.WriteByte(',')
		}
	}
	for i := pre; i < len(s); i += 3 {
		b.WriteString(s[i : i+3])
		if i+3 < len(s) {
			b.WriteByte(',')
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
