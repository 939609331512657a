package domain

import "time"

// Estados de publicación de una encuesta
const (
	SurveyStatusDraft     = "draft"
	SurveyStatusPublished = "published"
	SurveyStatusClosed    = "closed"
)

// Survey representa lo mínimo que el subsistema de enlaces necesita conocer
// de una encuesta: su existencia, título y si está publicada. El modelo de
// autoría completo vive fuera de este servicio.
type Survey struct {
	ID        int       `json:"id"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// SurveyRepository define las operaciones de lectura sobre encuestas
type SurveyRepository interface {
	// GetByID obtiene una encuesta por su identificador
	GetByID(surveyID int) (*Survey, error)
}
