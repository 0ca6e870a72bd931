package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"spreadwatch/internal/metrics"
	"spreadwatch/internal/venue"
	"spreadwatch/pkg/ratelimit"
	"spreadwatch/pkg/retry"
	"spreadwatch/pkg/utils"
)

// telegram.go - отправитель алертов через Telegram Bot API
//
// Один исходящий воркер на чат: отправки в чат сериализуются и
// приходят в порядке постановки. Отказ доставки не поднимается
// наружу - SendAlert возвращает 0, конвейер живет дальше.

const telegramDefaultBaseURL = "https://api.telegram.org"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Telegram - отправитель через Bot API
type Telegram struct {
	baseURL    string
	token      string
	chatID     string
	httpClient *http.Client
	limiter    *ratelimit.RateLimiter
	retryer    *retry.Retryer
	log        *utils.Logger

	// Сериализация исходящих в чат
	outbox chan func()
	done   chan struct{}
}

// NewTelegram создает отправитель и запускает воркер чата
func NewTelegram(token, chatID string, log *utils.Logger) *Telegram {
	return NewTelegramWithBaseURL(telegramDefaultBaseURL, token, chatID, log)
}

// NewTelegramWithBaseURL создает отправитель с нестандартным base URL (для тестов)
func NewTelegramWithBaseURL(baseURL, token, chatID string, log *utils.Logger) *Telegram {
	t := &Telegram{
		baseURL:    baseURL,
		token:      token,
		chatID:     chatID,
		httpClient: venue.GetGlobalHTTPClient().GetClient(),
		limiter:    ratelimit.NewRateLimiter(1, 3), // лимит Bot API на чат
		retryer:    retry.NewRetryer(retry.NotifyConfig()),
		log:        log.WithComponent("telegram"),
		outbox:     make(chan func(), 64),
		done:       make(chan struct{}),
	}
	go t.worker()
	return t
}

// worker выполняет исходящие вызовы чата строго по одному
func (t *Telegram) worker() {
	defer close(t.done)
	for call := range t.outbox {
		call()
	}
}

// Close останавливает воркер, дождавшись хвоста очереди
func (t *Telegram) Close() {
	close(t.outbox)
	<-t.done
}

// enqueue ставит вызов в очередь чата и ждет его завершения
func (t *Telegram) enqueue(ctx context.Context, call func()) bool {
	wrapped := make(chan struct{})
	select {
	case t.outbox <- func() { call(); close(wrapped) }:
	case <-ctx.Done():
		return false
	}
	select {
	case <-wrapped:
		return true
	case <-ctx.Done():
		return false
	}
}

// apiCall выполняет метод Bot API с JSON телом
func (t *Telegram) apiCall(ctx context.Context, method string, payload map[string]interface{}) ([]byte, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/bot%s/%s", t.baseURL, t.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		OK          bool                `json:"ok"`
		Description string              `json:"description"`
		Result      jsoniter.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, fmt.Errorf("telegram: decode response: %w", err)
	}
	if !envelope.OK {
		return nil, fmt.Errorf("telegram: %s", envelope.Description)
	}
	return envelope.Result, nil
}

// SendAlert отправляет алерт в чат; при отказе возвращает 0
func (t *Telegram) SendAlert(ctx context.Context, text string, markup *Markup) int64 {
	var messageID int64

	ok := t.enqueue(ctx, func() {
		payload := map[string]interface{}{
			"chat_id":    t.chatID,
			"text":       text,
			"parse_mode": "HTML",
		}
		if markup != nil {
			payload["reply_markup"] = markup
		}

		err := t.retryer.Do(ctx, func() error {
			result, err := t.apiCall(ctx, "sendMessage", payload)
			if err != nil {
				return err
			}
			var msg struct {
				MessageID int64 `json:"message_id"`
			}
			if err := json.Unmarshal(result, &msg); err != nil {
				return err
			}
			messageID = msg.MessageID
			return nil
		})
		if err != nil {
			metrics.NotifierSends.WithLabelValues("failed").Inc()
			t.log.Error("alert send failed", utils.Err(err))
			messageID = 0
			return
		}
		metrics.NotifierSends.WithLabelValues("ok").Inc()
	})
	if !ok {
		return 0
	}
	return messageID
}

// Edit заменяет текст отправленного сообщения
func (t *Telegram) Edit(ctx context.Context, messageID int64, text string, markup *Markup) error {
	t.enqueue(ctx, func() {
		payload := map[string]interface{}{
			"chat_id":    t.chatID,
			"message_id": messageID,
			"text":       text,
			"parse_mode": "HTML",
		}
		if markup != nil {
			payload["reply_markup"] = markup
		}
		if _, err := t.apiCall(ctx, "editMessageText", payload); err != nil {
			t.log.Warn("message edit failed", utils.Int64("message_id", messageID), utils.Err(err))
		}
	})
	return nil
}

// RemoveMarkup убирает кнопки у отправленного сообщения
func (t *Telegram) RemoveMarkup(ctx context.Context, messageID int64) error {
	t.enqueue(ctx, func() {
		payload := map[string]interface{}{
			"chat_id":      t.chatID,
			"message_id":   messageID,
			"reply_markup": Markup{},
		}
		if _, err := t.apiCall(ctx, "editMessageReplyMarkup", payload); err != nil {
			t.log.Warn("markup removal failed", utils.Int64("message_id", messageID), utils.Err(err))
		}
	})
	return nil
}
