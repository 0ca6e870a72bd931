package utils

import (
	"time"
)

// time.go - утилиты для работы со временем
//
// Назначение:
// Вспомогательные функции для временных операций: часовые бакеты
// базовых распределений, миллисекундные метки свежести котировок,
// границы окон ретенции.
//
// Использование:
// - Агрегация базовых распределений по часам (hour_bucket)
// - Проверка свежести котировок (received_at_ms)
// - Очистка старых записей из БД и KV

// NowMs возвращает текущее время в миллисекундах Unix-эпохи.
//
// Все метки received_at в котировках хранятся в миллисекундах -
// так их отдают биржевые API и так же их сравнивает фильтр свежести.
func NowMs() int64 {
	return time.Now().UnixMilli()
}

// TimeToMs конвертирует time.Time в миллисекунды Unix-эпохи
func TimeToMs(t time.Time) int64 {
	return t.UnixMilli()
}

// MsToTime конвертирует миллисекунды Unix-эпохи в time.Time (UTC)
func MsToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// ============================================================
// Часовые бакеты базовых распределений
// ============================================================

// StartOfHour возвращает начало часа для указанного времени в UTC.
//
// Пример:
//
//	// t: 2024-01-15 14:30:45 UTC
//	StartOfHour(t) // 2024-01-15 14:00:00 UTC
func StartOfHour(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC)
}

// CurrentHourBucket возвращает начало текущего часа в UTC
func CurrentHourBucket() time.Time {
	return StartOfHour(time.Now())
}

// PreviousHourBucket возвращает начало предыдущего часа в UTC
func PreviousHourBucket() time.Time {
	return CurrentHourBucket().Add(-time.Hour)
}

// HourKey форматирует час для использования в KV ключах.
//
// Формат: 2006010215 (год-месяц-день-час без разделителей).
//
// Пример:
//
//	// bucket: 2024-01-15 14:00:00 UTC
//	HourKey(bucket) // "2024011514"
func HourKey(t time.Time) string {
	return StartOfHour(t).Format("2006010215")
}

// ============================================================
// Окна ретенции
// ============================================================

// RetentionCutoff возвращает границу окна ретенции: всё что старше
// отбрасывается при очистке.
func RetentionCutoff(retentionHours int) time.Time {
	return time.Now().UTC().Add(-time.Duration(retentionHours) * time.Hour)
}

// AgeOf возвращает возраст метки времени относительно текущего момента
func AgeOf(t time.Time) time.Duration {
	return time.Since(t)
}

// AgeOfMs возвращает возраст миллисекундной метки в миллисекундах.
// Метки из будущего дают 0.
func AgeOfMs(ms int64) int64 {
	age := NowMs() - ms
	if age < 0 {
		return 0
	}
	return age
}
