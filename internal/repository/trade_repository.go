package repository

import (
	"database/sql"
	"errors"
	"time"

	"sentinel/internal/models"
)

// Ошибки репозитория сделок
var (
	ErrTradeNotFound = errors.New("trade not found")
)

// TradeRepository - работа с таблицей trades
//
// Журнал append-only: строки создаются при открытии и закрытии позиций.
// Единственная мутация - исправление закрывающей записи сверкой
// (UpdateCorrection), удаление не поддерживается.
type TradeRepository struct {
	db *sql.DB
}

// NewTradeRepository создает новый экземпляр репозитория
func NewTradeRepository(db *sql.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// Create создает запись о сделке
func (r *TradeRepository) Create(trade *models.TradeRecord) error {
	query := `
		INSERT INTO trades (order_id, symbol, side, type, price, quantity, leverage, pnl, fee, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`

	trade.CreatedAt = time.Now()

	err := r.db.QueryRow(
		query,
		trade.OrderID,
		trade.Symbol,
		trade.Side,
		trade.Type,
		trade.Price,
		trade.Quantity,
		trade.Leverage,
		trade.Pnl,
		trade.Fee,
		trade.Status,
		trade.CreatedAt,
	).Scan(&trade.ID)

	if err != nil {
		return err
	}

	return nil
}

// GetRecent возвращает последние N сделок
func (r *TradeRepository) GetRecent(limit int) ([]*models.TradeRecord, error) {
	query := `
		SELECT id, order_id, symbol, side, type, price, quantity, leverage, pnl, fee, status, created_at
		FROM trades
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTrades(rows)
}

// GetBySymbol возвращает последние сделки по символу
func (r *TradeRepository) GetBySymbol(symbol string, limit int) ([]*models.TradeRecord, error) {
	query := `
		SELECT id, order_id, symbol, side, type, price, quantity, leverage, pnl, fee, status, created_at
		FROM trades
		WHERE symbol = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.Query(query, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTrades(rows)
}

// GetLatestClose возвращает последнюю закрывающую запись по символу
func (r *TradeRepository) GetLatestClose(symbol string) (*models.TradeRecord, error) {
	query := `
		SELECT id, order_id, symbol, side, type, price, quantity, leverage, pnl, fee, status, created_at
		FROM trades
		WHERE symbol = $1 AND type = $2
		ORDER BY created_at DESC
		LIMIT 1`

	return r.getOne(query, symbol, models.TradeTypeClose)
}

// GetLastOpenBefore возвращает последнюю открывающую запись по символу
// не позже указанного времени (парная запись для закрытия)
func (r *TradeRepository) GetLastOpenBefore(symbol string, before time.Time) (*models.TradeRecord, error) {
	query := `
		SELECT id, order_id, symbol, side, type, price, quantity, leverage, pnl, fee, status, created_at
		FROM trades
		WHERE symbol = $1 AND type = $2 AND created_at <= $3
		ORDER BY created_at DESC
		LIMIT 1`

	return r.getOne(query, symbol, models.TradeTypeOpen, before)
}

// GetClosesSince возвращает закрывающие записи начиная с указанного времени
// Используется периодической сверкой
func (r *TradeRepository) GetClosesSince(since time.Time, limit int) ([]*models.TradeRecord, error) {
	query := `
		SELECT id, order_id, symbol, side, type, price, quantity, leverage, pnl, fee, status, created_at
		FROM trades
		WHERE type = $1 AND created_at >= $2
		ORDER BY created_at DESC
		LIMIT $3`

	rows, err := r.db.Query(query, models.TradeTypeClose, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTrades(rows)
}

// AggregateCloses возвращает количество, суммарный PnL и суммарные
// комиссии закрывающих записей начиная с указанного времени
// Нулевое время = за всю историю
func (r *TradeRepository) AggregateCloses(since time.Time) (int, float64, float64, error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(pnl), 0), COALESCE(SUM(fee), 0)
		FROM trades
		WHERE type = $1 AND created_at >= $2`

	var count int
	var pnl, fees float64
	err := r.db.QueryRow(query, models.TradeTypeClose, since).Scan(&count, &pnl, &fees)
	if err != nil {
		return 0, 0, 0, err
	}

	return count, pnl, fees, nil
}

// CountPendingCloses возвращает число закрытий с неподтверждённой ценой
// Ненулевое значение - очередь для сверки
func (r *TradeRepository) CountPendingCloses() (int, error) {
	query := `SELECT COUNT(*) FROM trades WHERE type = $1 AND status = $2`

	var count int
	err := r.db.QueryRow(query, models.TradeTypeClose, models.TradeStatusPending).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}

// UpdateCorrection перезаписывает цену, PnL и комиссию записи
// Вызывается сверкой при расхождении с пересчётом
func (r *TradeRepository) UpdateCorrection(id int, price, pnl, fee float64, status string) error {
	query := `
		UPDATE trades
		SET price = $1, pnl = $2, fee = $3, status = $4
		WHERE id = $5`

	result, err := r.db.Exec(query, price, pnl, fee, status, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrTradeNotFound
	}

	return nil
}

// getOne выполняет запрос одной записи
func (r *TradeRepository) getOne(query string, args ...interface{}) (*models.TradeRecord, error) {
	trade := &models.TradeRecord{}
	err := r.db.QueryRow(query, args...).Scan(
		&trade.ID,
		&trade.OrderID,
		&trade.Symbol,
		&trade.Side,
		&trade.Type,
		&trade.Price,
		&trade.Quantity,
		&trade.Leverage,
		&trade.Pnl,
		&trade.Fee,
		&trade.Status,
		&trade.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTradeNotFound
		}
		return nil, err
	}

	return trade, nil
}

// scanTrades читает все строки результата
func scanTrades(rows *sql.Rows) ([]*models.TradeRecord, error) {
	var trades []*models.TradeRecord
	for rows.Next() {
		trade := &models.TradeRecord{}
		err := rows.Scan(
			&trade.ID,
			&trade.OrderID,
			&trade.Symbol,
			&trade.Side,
			&trade.Type,
			&trade.Price,
			&trade.Quantity,
			&trade.Leverage,
			&trade.Pnl,
			&trade.Fee,
			&trade.Status,
			&trade.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return trades, nil
}
