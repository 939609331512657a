package repository

import (
	"database/sql"
	"fmt"

	"github.com/cristiansanta/Backend-Encuestas-sub000/internal/domain"
)

type surveyNotificationRepository struct {
	db *sql.DB
}

// NewSurveyNotificationRepository crea una nueva instancia del repositorio
func NewSurveyNotificationRepository(db *sql.DB) domain.SurveyNotificationRepository {
	return &surveyNotificationRepository{db: db}
}

// Create registra un envío de enlace
func (r *surveyNotificationRepository) Create(notification *domain.SurveyNotification) error {
	query := `
		INSERT INTO survey_notification (
			survey_id,
			email,
			code,
			link_type,
			sent_at
		) VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := r.db.QueryRow(
		query,
		notification.SurveyID,
		notification.Email,
		notification.Code,
		notification.LinkType,
		notification.SentAt,
	).Scan(&notification.ID)

	if err != nil {
		return fmt.Errorf("error al crear notificación: %w", err)
	}

	return nil
}

// GetBySurveyAndEmail obtiene el último envío para una pareja encuesta+email
func (r *surveyNotificationRepository) GetBySurveyAndEmail(surveyID int, email string) (*domain.SurveyNotification, error) {
	query := `
		SELECT
			id,
			survey_id,
			email,
			code,
			link_type,
			sent_at
		FROM survey_notification
		WHERE survey_id = $1 AND email = $2
		ORDER BY sent_at DESC
		LIMIT 1
	`

	notification := &domain.SurveyNotification{}
	err := r.db.QueryRow(query, surveyID, email).Scan(
		&notification.ID,
		&notification.SurveyID,
		&notification.Email,
		&notification.Code,
		&notification.LinkType,
		&notification.SentAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error al obtener notificación: %w", err)
	}

	return notification, nil
}

// DeleteWithTokenCleanup elimina la notificación y purga en la misma
// transacción los registros de acceso no bloqueados asociados. El efecto
// colateral es visible en el punto de llamada en lugar de dispararse desde
// un hook de borrado del modelo.
func (r *surveyNotificationRepository) DeleteWithTokenCleanup(notificationID int) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("error al iniciar transacción: %w", err)
	}
	defer tx.Rollback()

	var surveyID int
	var email string
	err = tx.QueryRow(`
		SELECT survey_id, email
		FROM survey_notification
		WHERE id = $1
	`, notificationID).Scan(&surveyID, &email)

	if err == sql.ErrNoRows {
		return fmt.Errorf("notificación %d no encontrada", notificationID)
	}
	if err != nil {
		return fmt.Errorf("error al obtener notificación: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM survey_notification WHERE id = $1`, notificationID); err != nil {
		return fmt.Errorf("error al eliminar notificación: %w", err)
	}

	// Las filas bloqueadas se conservan como historial de comparticiones
	if _, err := tx.Exec(`
		DELETE FROM survey_access_token
		WHERE survey_id = $1 AND email = $2 AND status != $3
	`, surveyID, email, domain.AccessStatusBlocked); err != nil {
		return fmt.Errorf("error al purgar registros de acceso: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error al confirmar transacción: %w", err)
	}

	return nil
}
