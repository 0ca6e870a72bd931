package repository

import (
	"database/sql"

	"spreadwatch/internal/models"
)

// snapshot_repository.go - долговременный слой снимков отслеживаний
//
// Снимки сначала пишутся в KV; сюда они стекают асинхронно, поэтому
// вставка идемпотентна по (signal_id, snapshot_seq) - повтор при
// ретрае просто не делает ничего.

// SnapshotRepository - работа с таблицей convergence_snapshots
type SnapshotRepository struct {
	db *sql.DB
}

// NewSnapshotRepository создает новый экземпляр репозитория
func NewSnapshotRepository(db *sql.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Insert сохраняет снимок; повтор по (signal_id, seq) игнорируется
func (r *SnapshotRepository) Insert(s *models.Snapshot) error {
	query := `
		INSERT INTO convergence_snapshots (signal_id, snapshot_seq, snapshot_at, buy_bid, buy_ask, sell_bid, sell_ask, spread_pct, buy_depth_usd, sell_depth_usd)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (signal_id, snapshot_seq) DO NOTHING`

	_, err := r.db.Exec(
		query,
		s.SignalID,
		s.Seq,
		s.SnapshotAt,
		s.BuyBid,
		s.BuyAsk,
		s.SellBid,
		s.SellAsk,
		s.SpreadPct,
		s.BuyDepthUSD,
		s.SellDepthUSD,
	)
	return err
}

// ListBySignal возвращает снимки сигнала в порядке возрастания seq
func (r *SnapshotRepository) ListBySignal(signalID string) ([]models.Snapshot, error) {
	query := `
		SELECT signal_id, snapshot_seq, snapshot_at, buy_bid, buy_ask, sell_bid, sell_ask, spread_pct, buy_depth_usd, sell_depth_usd
		FROM convergence_snapshots
		WHERE signal_id = $1
		ORDER BY snapshot_seq`

	rows, err := r.db.Query(query, signalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []models.Snapshot
	for rows.Next() {
		var s models.Snapshot
		if err := rows.Scan(
			&s.SignalID,
			&s.Seq,
			&s.SnapshotAt,
			&s.BuyBid,
			&s.BuyAsk,
			&s.SellBid,
			&s.SellAsk,
			&s.SpreadPct,
			&s.BuyDepthUSD,
			&s.SellDepthUSD,
		); err != nil {
			return nil, err
		}
		snaps = append(snaps, s)
	}
	return snaps, rows.Err()
}
