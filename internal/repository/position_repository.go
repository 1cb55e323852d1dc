package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"sentinel/internal/models"
)

// Ошибки репозитория позиций
var (
	ErrPositionNotFound = errors.New("position not found")
)

// PositionRepository - работа с таблицей positions
//
// Таблица хранит локальное зеркало открытых позиций биржи.
// Источник истины - биржа; зеркало обновляется каждый тик монитора
// и используется API и аудитом.
type PositionRepository struct {
	db *sql.DB
}

// NewPositionRepository создает новый экземпляр репозитория
func NewPositionRepository(db *sql.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

// Upsert создает или обновляет зеркало позиции по символу
func (r *PositionRepository) Upsert(position *models.Position) error {
	query := `
		INSERT INTO positions (symbol, side, quantity, entry_price, mark_price, leverage, updated_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (symbol) DO UPDATE SET
			side = EXCLUDED.side,
			quantity = EXCLUDED.quantity,
			entry_price = EXCLUDED.entry_price,
			mark_price = EXCLUDED.mark_price,
			leverage = EXCLUDED.leverage,
			updated_at = EXCLUDED.updated_at
		RETURNING id`

	position.UpdatedAt = time.Now()

	err := r.db.QueryRow(
		query,
		position.Symbol,
		position.Side,
		position.Quantity,
		position.EntryPrice,
		position.MarkPrice,
		position.Leverage,
		position.UpdatedAt,
	).Scan(&position.ID)

	if err != nil {
		return err
	}

	return nil
}

// GetBySymbol возвращает позицию по символу
func (r *PositionRepository) GetBySymbol(symbol string) (*models.Position, error) {
	query := `
		SELECT id, symbol, side, quantity, entry_price, mark_price, leverage, updated_at, created_at
		FROM positions
		WHERE symbol = $1`

	position := &models.Position{}
	err := r.db.QueryRow(query, symbol).Scan(
		&position.ID,
		&position.Symbol,
		&position.Side,
		&position.Quantity,
		&position.EntryPrice,
		&position.MarkPrice,
		&position.Leverage,
		&position.UpdatedAt,
		&position.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPositionNotFound
		}
		return nil, err
	}

	return position, nil
}

// GetAll возвращает все позиции
func (r *PositionRepository) GetAll() ([]*models.Position, error) {
	query := `
		SELECT id, symbol, side, quantity, entry_price, mark_price, leverage, updated_at, created_at
		FROM positions
		ORDER BY symbol`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []*models.Position
	for rows.Next() {
		position := &models.Position{}
		err := rows.Scan(
			&position.ID,
			&position.Symbol,
			&position.Side,
			&position.Quantity,
			&position.EntryPrice,
			&position.MarkPrice,
			&position.Leverage,
			&position.UpdatedAt,
			&position.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		positions = append(positions, position)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return positions, nil
}

// DeleteBySymbol удаляет зеркало позиции
func (r *PositionRepository) DeleteBySymbol(symbol string) error {
	query := `DELETE FROM positions WHERE symbol = $1`

	result, err := r.db.Exec(query, symbol)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrPositionNotFound
	}

	return nil
}

// DeleteMissing удаляет зеркала позиций, которых нет в снимке биржи
// Пустой снимок очищает таблицу целиком
func (r *PositionRepository) DeleteMissing(symbols []string) (int64, error) {
	if len(symbols) == 0 {
		result, err := r.db.Exec(`DELETE FROM positions`)
		if err != nil {
			return 0, err
		}
		return result.RowsAffected()
	}

	query := `DELETE FROM positions WHERE NOT (symbol = ANY($1))`

	result, err := r.db.Exec(query, pq.Array(symbols))
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// Count возвращает количество зеркал позиций
func (r *PositionRepository) Count() (int, error) {
	query := `SELECT COUNT(*) FROM positions`

	var count int
	err := r.db.QueryRow(query).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}
