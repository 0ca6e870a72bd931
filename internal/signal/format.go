package signal

import (
	"fmt"
	"strings"

	"spreadwatch/internal/models"
)

// format.go - текст алерта для мессенджера (HTML разметка)

// typeBadge - короткая пометка типа сигнала в заголовке
func typeBadge(t models.SignalType) string {
	switch t {
	case models.SignalTypeManual:
		return " [перевод токена]"
	case models.SignalTypeLagging:
		return " [отстающая площадка]"
	case models.SignalTypeFallback:
		return " [без стакана]"
	default:
		return ""
	}
}

// FormatAlert собирает текст алерта: лучшая пара в заголовке,
// альтернативы одной строкой каждая
func FormatAlert(best *models.Signal, alternates []*models.Signal) string {
	var b strings.Builder
	s := best.Spread
	a := best.Analysis

	fmt.Fprintf(&b, "🔔 <b>%s</b> %s%s\n", s.Symbol, s.Category, typeBadge(best.Type))
	fmt.Fprintf(&b, "Спред: <b>%.2f%%</b>", a.RealPct)
	if a.LossPct > 0.01 {
		fmt.Fprintf(&b, " (номинал %.2f%%, проскальзывание −%.2f%%)", a.NominalPct, a.LossPct)
	}
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Купить:  <code>%s</code> @ %s\n", s.LowVenueID, formatPrice(a.BuyPrice))
	fmt.Fprintf(&b, "Продать: <code>%s</code> @ %s\n", s.HighVenueID, formatPrice(a.SellPrice))

	if a.SuggestedPositionUSD > 0 {
		fmt.Fprintf(&b, "Позиция: <b>$%s</b>", formatUSD(a.SuggestedPositionUSD))
		if !a.Fallback {
			fmt.Fprintf(&b, " (вход до $%s, выход $%s)", formatUSD(a.MaxEntryUSD), formatUSD(a.ExitUSD()))
		}
		b.WriteString("\n")
	}
	if !a.FullyFillable {
		b.WriteString("⚠️ Объем не гарантирован\n")
	}

	if bl := best.Baseline; bl != nil {
		fmt.Fprintf(&b, "\nНорма за %dч: медиана %.2f%%, P95 %.2f%%", bl.SampleHours, bl.MedianPct, bl.P95Pct)
		if bl.Classification == "anomaly" {
			b.WriteString(" — <b>аномалия</b>")
		}
		b.WriteString("\n")
	}
	if z := best.ZScore; z != nil {
		fmt.Fprintf(&b, "Z-score: %.1f\n", z.ZScore)
	}

	if len(alternates) > 0 {
		b.WriteString("\nАльтернативы:\n")
		for _, alt := range alternates {
			fmt.Fprintf(&b, "• %s → %s: %.2f%%\n",
				alt.Spread.LowVenueID, alt.Spread.HighVenueID, alt.Analysis.RealPct)
		}
	}

	fmt.Fprintf(&b, "\nID: <code>%s</code>", best.ID)
	return b.String()
}

// FormatDivergenceAlert - алерт расхождения отслеживаемого спреда
func FormatDivergenceAlert(t *models.Tracking) string {
	return fmt.Sprintf(
		"📈 <b>%s</b> спред расходится\nБыло %.2f%%, стало %.2f%%\nОтслеживание закрыто.\nID: <code>%s</code>",
		t.Symbol, t.InitialSpreadPct, t.CurrentSpreadPct, t.SignalID)
}

// formatPrice печатает цену со значимой точностью: у мемкоинов
// значащие цифры начинаются далеко после запятой
func formatPrice(p float64) string {
	switch {
	case p >= 1000:
		return fmt.Sprintf("%.2f", p)
	case p >= 1:
		return fmt.Sprintf("%.4f", p)
	case p >= 0.001:
		return fmt.Sprintf("%.6f", p)
	default:
		return fmt.Sprintf("%.10f", p)
	}
}

// formatUSD печатает сумму без дробной части
func formatUSD(v float64) string {
	return fmt.Sprintf("%.0f", v)
}
