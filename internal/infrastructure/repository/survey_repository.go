package repository

import (
	"database/sql"
	"fmt"

	"github.com/cristiansanta/Backend-Encuestas-sub000/internal/domain"
)

type surveyRepository struct {
	db *sql.DB
}

// NewSurveyRepository crea una nueva instancia del repositorio
func NewSurveyRepository(db *sql.DB) domain.SurveyRepository {
	return &surveyRepository{db: db}
}

// GetByID obtiene una encuesta por su identificador
func (r *surveyRepository) GetByID(surveyID int) (*domain.Survey, error) {
	query := `
		SELECT
			id,
			title,
			status,
			created_at
		FROM survey
		WHERE id = $1
	`

	survey := &domain.Survey{}
	err := r.db.QueryRow(query, surveyID).Scan(
		&survey.ID,
		&survey.Title,
		&survey.Status,
		&survey.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("encuesta %d no encontrada", surveyID)
	}
	if err != nil {
		return nil, fmt.Errorf("error al obtener encuesta: %w", err)
	}

	return survey, nil
}
