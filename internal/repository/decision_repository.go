package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"sentinel/internal/models"
)

// Ошибки репозитория решений
var (
	ErrDecisionNotFound = errors.New("decision not found")
)

// DecisionRepository - работа с таблицей decisions
//
// Хранит журнал решений: для событий защитного закрытия записывается
// снимок рынка на момент срабатывания и список выполненных действий.
type DecisionRepository struct {
	db *sql.DB
}

// NewDecisionRepository создает новый экземпляр репозитория
func NewDecisionRepository(db *sql.DB) *DecisionRepository {
	return &DecisionRepository{db: db}
}

// Create создает запись решения
func (r *DecisionRepository) Create(decision *models.DecisionRecord) error {
	query := `
		INSERT INTO decisions (iteration, market_analysis, decision, actions_taken, account_value, positions_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	analysisJSON, err := json.Marshal(decision.MarketAnalysis)
	if err != nil {
		return err
	}

	actionsJSON, err := json.Marshal(decision.ActionsTaken)
	if err != nil {
		return err
	}

	decision.CreatedAt = time.Now()

	err = r.db.QueryRow(
		query,
		decision.Iteration,
		analysisJSON,
		decision.DecisionText,
		actionsJSON,
		decision.AccountValue,
		decision.PositionsCount,
		decision.CreatedAt,
	).Scan(&decision.ID)

	if err != nil {
		return err
	}

	return nil
}

// GetRecent возвращает последние N решений
func (r *DecisionRepository) GetRecent(limit int) ([]*models.DecisionRecord, error) {
	query := `
		SELECT id, iteration, market_analysis, decision, actions_taken, account_value, positions_count, created_at
		FROM decisions
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []*models.DecisionRecord
	for rows.Next() {
		decision, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, decision)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return decisions, nil
}

// GetByID возвращает решение по ID
func (r *DecisionRepository) GetByID(id int) (*models.DecisionRecord, error) {
	query := `
		SELECT id, iteration, market_analysis, decision, actions_taken, account_value, positions_count, created_at
		FROM decisions
		WHERE id = $1`

	decision := &models.DecisionRecord{}
	var analysisJSON, actionsJSON []byte

	err := r.db.QueryRow(query, id).Scan(
		&decision.ID,
		&decision.Iteration,
		&analysisJSON,
		&decision.DecisionText,
		&actionsJSON,
		&decision.AccountValue,
		&decision.PositionsCount,
		&decision.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDecisionNotFound
		}
		return nil, err
	}

	if err := unmarshalDecisionFields(decision, analysisJSON, actionsJSON); err != nil {
		return nil, err
	}

	return decision, nil
}

// scanDecision читает одну строку результата
func scanDecision(rows *sql.Rows) (*models.DecisionRecord, error) {
	decision := &models.DecisionRecord{}
	var analysisJSON, actionsJSON []byte

	err := rows.Scan(
		&decision.ID,
		&decision.Iteration,
		&analysisJSON,
		&decision.DecisionText,
		&actionsJSON,
		&decision.AccountValue,
		&decision.PositionsCount,
		&decision.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := unmarshalDecisionFields(decision, analysisJSON, actionsJSON); err != nil {
		return nil, err
	}

	return decision, nil
}

// unmarshalDecisionFields десериализует JSON-поля записи
func unmarshalDecisionFields(decision *models.DecisionRecord, analysisJSON, actionsJSON []byte) error {
	if len(analysisJSON) > 0 {
		if err := json.Unmarshal(analysisJSON, &decision.MarketAnalysis); err != nil {
			return err
		}
	}
	if len(actionsJSON) > 0 {
		if err := json.Unmarshal(actionsJSON, &decision.ActionsTaken); err != nil {
			return err
		}
	}
	return nil
}
