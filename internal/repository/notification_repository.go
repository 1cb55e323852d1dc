package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"sentinel/internal/models"
)

// Ошибки репозитория уведомлений
var (
	ErrNotificationNotFound = errors.New("notification not found")
)

// NotificationRepository - работа с таблицей notifications
type NotificationRepository struct {
	db *sql.DB
}

// NewNotificationRepository создает новый экземпляр репозитория
func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create создает уведомление
func (r *NotificationRepository) Create(notification *models.Notification) error {
	query := `
		INSERT INTO notifications (type, severity, symbol, message, meta, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	metaJSON, err := json.Marshal(notification.Meta)
	if err != nil {
		return err
	}

	var symbol sql.NullString
	if notification.Symbol != "" {
		symbol = sql.NullString{String: notification.Symbol, Valid: true}
	}

	notification.CreatedAt = time.Now()

	err = r.db.QueryRow(
		query,
		notification.Type,
		notification.Severity,
		symbol,
		notification.Message,
		metaJSON,
		notification.CreatedAt,
	).Scan(&notification.ID)

	if err != nil {
		return err
	}

	return nil
}

// GetRecent возвращает последние N уведомлений
func (r *NotificationRepository) GetRecent(limit int) ([]*models.Notification, error) {
	query := `
		SELECT id, type, severity, symbol, message, meta, created_at
		FROM notifications
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanNotifications(rows)
}

// GetByType возвращает последние уведомления указанного типа
func (r *NotificationRepository) GetByType(notificationType string, limit int) ([]*models.Notification, error) {
	query := `
		SELECT id, type, severity, symbol, message, meta, created_at
		FROM notifications
		WHERE type = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.Query(query, notificationType, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanNotifications(rows)
}

// DeleteOlderThan удаляет уведомления старше указанного времени
// Возвращает количество удаленных записей
func (r *NotificationRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	query := `DELETE FROM notifications WHERE created_at < $1`

	result, err := r.db.Exec(query, cutoff)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// DeleteAll очищает журнал уведомлений
func (r *NotificationRepository) DeleteAll() (int64, error) {
	result, err := r.db.Exec(`DELETE FROM notifications`)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// KeepRecent удаляет все уведомления кроме последних keepCount
// Возвращает количество удаленных записей
func (r *NotificationRepository) KeepRecent(keepCount int) (int64, error) {
	query := `
		DELETE FROM notifications
		WHERE id NOT IN (
			SELECT id FROM notifications
			ORDER BY created_at DESC
			LIMIT $1
		)`

	result, err := r.db.Exec(query, keepCount)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// Count возвращает общее количество уведомлений
func (r *NotificationRepository) Count() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM notifications`).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}

// scanNotifications читает все строки результата
func scanNotifications(rows *sql.Rows) ([]*models.Notification, error) {
	var notifications []*models.Notification
	for rows.Next() {
		notification := &models.Notification{}
		var symbol sql.NullString
		var metaJSON []byte

		err := rows.Scan(
			&notification.ID,
			&notification.Type,
			&notification.Severity,
			&symbol,
			&notification.Message,
			&metaJSON,
			&notification.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		if symbol.Valid {
			notification.Symbol = symbol.String
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &notification.Meta); err != nil {
				return nil, err
			}
		}

		notifications = append(notifications, notification)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return notifications, nil
}
