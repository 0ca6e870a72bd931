package notify

import (
	"context"
	"sync"
)

// notifier.go - контракт доставки алертов
//
// Контракт мягкий: отказ доставки возвращает нулевой message_id без
// ошибки наружу - конвейер не должен падать из-за недоступного
// мессенджера. Вызывающий различает успех по message_id != 0.

// Markup - инлайн-разметка кнопок алерта.
// Ключи и подписи передаются как есть конкретному отправителю.
type Markup struct {
	Buttons [][]Button `json:"inline_keyboard"`
}

// Button - одна кнопка разметки
type Button struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
	URL          string `json:"url,omitempty"`
}

// Notifier доставляет алерты операторам.
//
// Гарантия порядка: отправки в один чат сериализуются. Отказы
// логируются и проглатываются: SendAlert возвращает 0, Edit и
// RemoveMarkup - nil.
type Notifier interface {
	// SendAlert отправляет алерт; возвращает message_id или 0 при отказе
	SendAlert(ctx context.Context, text string, markup *Markup) int64
	// Edit заменяет текст ранее отправленного сообщения
	Edit(ctx context.Context, messageID int64, text string, markup *Markup) error
	// RemoveMarkup убирает кнопки у ранее отправленного сообщения
	RemoveMarkup(ctx context.Context, messageID int64) error
}

// Noop - отправитель для развертываний без алертов и для тестов.
//
// Возвращает синтетические message_id: для конвейера отключенный
// мессенджер - успешная доставка, иначе cooldown никогда не встанет.
type Noop struct {
	seq int64
	mu  sync.Mutex
}

// NewNoop создает no-op отправитель
func NewNoop() *Noop {
	return &Noop{}
}

// SendAlert ничего не отправляет, но отвечает валидным message_id
func (n *Noop) SendAlert(ctx context.Context, text string, markup *Markup) int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.seq++
	return n.seq
}

// Edit ничего не делает
func (n *Noop) Edit(ctx context.Context, messageID int64, text string, markup *Markup) error {
	return nil
}

// RemoveMarkup ничего не делает
func (n *Noop) RemoveMarkup(ctx context.Context, messageID int64) error {
	return nil
}
