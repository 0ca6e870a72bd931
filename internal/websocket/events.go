package websocket

import (
	"time"

	"spreadwatch/internal/models"
)

// events.go - публикация событий конвейера в ленту
//
// Методы закрывают интерфейсы EventPublisher коллектора,
// квалификатора и трекера: стадии конвейера не знают о WebSocket,
// hub подключается в main через Set*Publisher.

// PublishPriceTick публикует итог тика коллектора
func (h *Hub) PublishPriceTick(quotes int, spreads int, at time.Time) {
	h.Broadcast(NewPriceTickMessage(quotes, spreads, at))
}

// PublishSpreads публикует кандидатов тика
func (h *Hub) PublishSpreads(spreads []models.Spread) {
	if len(spreads) == 0 {
		return
	}
	h.Broadcast(NewSpreadsMessage(spreads))
}

// PublishSignal публикует эмитированный сигнал
func (h *Hub) PublishSignal(sig *models.Signal) {
	h.Broadcast(NewSignalMessage(sig))
}

// PublishTracking публикует прогресс отслеживания
func (h *Hub) PublishTracking(t *models.Tracking) {
	h.Broadcast(NewTrackingMessage(t))
}

// PublishConvergence публикует итог пост-анализа
func (h *Hub) PublishConvergence(a *models.ConvergenceAnalysis) {
	h.Broadcast(NewConvergenceMessage(a))
}
