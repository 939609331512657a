package domain

import "time"

// SurveyNotification representa un envío de enlace de encuesta por correo.
// Se guarda una fila por cada correo emitido; el código uuid identifica el
// envío en los registros de auditoría.
type SurveyNotification struct {
	ID       int       `json:"id"`
	SurveyID int       `json:"surveyId"`
	Email    string    `json:"email"`
	Code     string    `json:"code"`
	LinkType string    `json:"linkType"`
	SentAt   time.Time `json:"sentAt"`
}

// SurveyNotificationRepository define las operaciones con notificaciones
type SurveyNotificationRepository interface {
	// Create registra un envío
	Create(notification *SurveyNotification) error
	// GetBySurveyAndEmail obtiene el último envío para una pareja encuesta+email
	GetBySurveyAndEmail(surveyID int, email string) (*SurveyNotification, error)
	// DeleteWithTokenCleanup elimina la notificación y purga los registros de
	// acceso activos asociados, en un único paso explícito. La limpieza ocurre
	// en el punto de llamada, no en un hook implícito del framework.
	DeleteWithTokenCleanup(notificationID int) error
}
