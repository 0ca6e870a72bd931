package repository

import (
	"database/sql"
	"errors"
	"time"

	jsoniter "github.com/json-iterator/go"

	"spreadwatch/internal/models"
)

// signal_repository.go - работа с таблицей signals
//
// Строка таблицы несет плоские колонки для выборок и JSON снимок
// полного сигнала в details - его хватает для повторной отрисовки
// алерта и пост-анализа.

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// SignalRepository - работа с таблицей signals
type SignalRepository struct {
	db *sql.DB
}

// NewSignalRepository создает новый экземпляр репозитория
func NewSignalRepository(db *sql.DB) *SignalRepository {
	return &SignalRepository{db: db}
}

// Create сохраняет эмитированный сигнал
func (r *SignalRepository) Create(signal *models.Signal) error {
	query := `
		INSERT INTO signals (id, strategy, class, symbol, details, telegram_msg_id, status, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	details, err := json.Marshal(signal)
	if err != nil {
		return err
	}

	if signal.Status == "" {
		signal.Status = models.SignalStatusSent
	}
	if signal.CreatedAt.IsZero() {
		signal.CreatedAt = time.Now().UTC()
	}

	_, err = r.db.Exec(
		query,
		signal.ID,
		signal.StrategyType,
		string(signal.Type),
		signal.Spread.Symbol,
		details,
		signal.TelegramMsgID,
		string(signal.Status),
		signal.CreatedAt,
	)
	return err
}

// GetByID возвращает сигнал по идентификатору
func (r *SignalRepository) GetByID(id string) (*models.Signal, error) {
	query := `SELECT details, telegram_msg_id, status FROM signals WHERE id = $1`

	var details []byte
	var telegramMsgID sql.NullInt64
	var status string
	err := r.db.QueryRow(query, id).Scan(&details, &telegramMsgID, &status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	signal := &models.Signal{}
	if err := json.Unmarshal(details, signal); err != nil {
		return nil, err
	}
	signal.ID = id
	signal.Status = models.SignalStatus(status)
	if telegramMsgID.Valid {
		signal.TelegramMsgID = telegramMsgID.Int64
	}
	return signal, nil
}

// List возвращает сигналы в обратном хронологическом порядке.
// Пустой status означает без фильтра.
func (r *SignalRepository) List(limit, offset int, status string) ([]*models.Signal, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	query := `
		SELECT id, details, telegram_msg_id, status
		FROM signals
		WHERE ($3 = '' OR status = $3)
		ORDER BY sent_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(query, limit, offset, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var signals []*models.Signal
	for rows.Next() {
		var id string
		var details []byte
		var telegramMsgID sql.NullInt64
		var st string
		if err := rows.Scan(&id, &details, &telegramMsgID, &st); err != nil {
			return nil, err
		}

		signal := &models.Signal{}
		if err := json.Unmarshal(details, signal); err != nil {
			return nil, err
		}
		signal.ID = id
		signal.Status = models.SignalStatus(st)
		if telegramMsgID.Valid {
			signal.TelegramMsgID = telegramMsgID.Int64
		}
		signals = append(signals, signal)
	}
	return signals, rows.Err()
}

// UpdateStatus переводит сигнал в новый статус, проставляя метку времени
func (r *SignalRepository) UpdateStatus(id string, status models.SignalStatus) error {
	var column string
	switch status {
	case models.SignalStatusTaken:
		column = "taken_at"
	case models.SignalStatusClosed, models.SignalStatusExpired:
		column = "closed_at"
	default:
		column = ""
	}

	query := `UPDATE signals SET status = $2 WHERE id = $1`
	if column != "" {
		query = `UPDATE signals SET status = $2, ` + column + ` = NOW() WHERE id = $1`
	}

	res, err := r.db.Exec(query, id, string(status))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetTelegramMsgID привязывает к сигналу идентификатор доставленного сообщения
func (r *SignalRepository) SetTelegramMsgID(id string, msgID int64) error {
	_, err := r.db.Exec(`UPDATE signals SET telegram_msg_id = $2 WHERE id = $1`, id, msgID)
	return err
}
