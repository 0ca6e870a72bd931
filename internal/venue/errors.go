package venue

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// errors.go - типизированные ошибки адаптеров площадок
//
// Таксономия:
//   - KindTransient: сетевой сбой, 5xx, rate limit - повторяем с backoff
//   - KindUnavailable: площадка выведена из тика (после исчерпания
//     повторов либо открытым circuit breaker'ом)
//   - KindBadResponse: площадка ответила, но ответ не разбирается -
//     повторять бессмысленно
//   - KindNotSupported: операция не поддерживается видом площадки

// Kind - вид ошибки адаптера
type Kind string

const (
	KindTransient    Kind = "transient"
	KindUnavailable  Kind = "unavailable"
	KindBadResponse  Kind = "bad_response"
	KindNotSupported Kind = "not_supported"
)

// Error - ошибка вызова адаптера площадки
type Error struct {
	VenueID string
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.VenueID, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.VenueID, e.Message)
}

// Unwrap возвращает обернутую ошибку для errors.Is/As
func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable реализует retry.RetryableError: повторяем только transient
func (e *Error) Retryable() bool {
	return e.Kind == KindTransient
}

// NewError создает ошибку адаптера
func NewError(venueID string, kind Kind, message string, err error) *Error {
	return &Error{VenueID: venueID, Kind: kind, Message: message, Err: err}
}

// Transient - временный сбой, имеет смысл повторить
func Transient(venueID, message string, err error) *Error {
	return NewError(venueID, KindTransient, message, err)
}

// Unavailable - площадка недоступна до конца тика
func Unavailable(venueID, message string, err error) *Error {
	return NewError(venueID, KindUnavailable, message, err)
}

// BadResponse - неразбираемый ответ площадки
func BadResponse(venueID, message string, err error) *Error {
	return NewError(venueID, KindBadResponse, message, err)
}

// NotSupported - операция не поддерживается площадкой
func NotSupported(venueID, operation string) *Error {
	return NewError(venueID, KindNotSupported, operation+" is not supported", nil)
}

// KindOf возвращает вид ошибки адаптера в цепочке (или пустую строку)
func KindOf(err error) Kind {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Kind
	}
	return ""
}

// IsTransient проверяет, является ли ошибка временной
func IsTransient(err error) bool {
	return KindOf(err) == KindTransient
}

// IsUnavailable проверяет, выведена ли площадка из тика
func IsUnavailable(err error) bool {
	return KindOf(err) == KindUnavailable
}

// ClassifyHTTPStatus сводит HTTP статус к виду ошибки.
//
// 429 и 5xx - временные; прочие ошибки клиента - постоянные
// (неверный запрос не починится повтором).
func ClassifyHTTPStatus(venueID string, status int) *Error {
	switch {
	case status == http.StatusTooManyRequests:
		return Transient(venueID, "rate limited", nil)
	case status >= 500:
		return Transient(venueID, fmt.Sprintf("server error %d", status), nil)
	default:
		return BadResponse(venueID, fmt.Sprintf("unexpected status %d", status), nil)
	}
}

// ClassifyNetError сводит сетевую ошибку к виду ошибки адаптера.
// Отмена контекста остается отменой - ее не маскируем.
func ClassifyNetError(venueID string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Transient(venueID, "request timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return Transient(venueID, "network error", err)
	}
	return Transient(venueID, "request failed", err)
}
