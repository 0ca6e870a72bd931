package tracker

import (
	"strings"
	"time"
)

// scheduler.go - адаптивное расписание проверок отслеживаний
//
// Свежий спред проверяется часто, недельный - раз в 15 минут.
// Координатор просыпается каждые 5 секунд и отбирает отслеживания,
// у которых подошел индивидуальный интервал.

// CheckInterval возвращает интервал проверки для возраста отслеживания
func CheckInterval(age time.Duration) time.Duration {
	switch {
	case age < 5*time.Minute:
		return 5 * time.Second
	case age < 30*time.Minute:
		return 30 * time.Second
	case age < 2*time.Hour:
		return time.Minute
	case age < 24*time.Hour:
		return 5 * time.Minute
	default:
		return 15 * time.Minute
	}
}

// Пороги классификации спреда
const (
	// Схождение: current <= initial * convergenceRatio
	convergenceRatio = 0.5
	// Абсолютное схождение независимо от начального спреда
	absoluteConvergencePct = 3.0
	// Расхождение: current >= initial * divergenceRatio
	divergenceRatio = 1.5
)

// converged проверяет условие схождения
func converged(currentPct, initialPct float64) bool {
	return currentPct <= initialPct*convergenceRatio || currentPct <= absoluteConvergencePct
}

// diverged проверяет условие расхождения
func diverged(currentPct, initialPct float64) bool {
	return currentPct >= initialPct*divergenceRatio
}

// splitPairID возвращает обе площадки пары из канонического pair_id
func splitPairID(pairID string) (venueA, venueB string, ok bool) {
	parts := strings.SplitN(pairID, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
