package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/cristiansanta/Backend-Encuestas-sub000/internal/domain"
	"github.com/lib/pq"
)

// Código de error de Postgres para violación de restricción de unicidad
const pqUniqueViolation = "23505"

type accessTokenRepository struct {
	db *sql.DB
}

// NewAccessTokenRepository crea una nueva instancia del repositorio
func NewAccessTokenRepository(db *sql.DB) domain.AccessTokenRepository {
	return &accessTokenRepository{db: db}
}

const accessTokenColumns = `
	id,
	survey_id,
	email,
	hash,
	device_fingerprint,
	previous_device_fingerprint,
	ip_address,
	user_agent,
	first_access_at,
	last_access_at,
	access_count,
	device_changes_count,
	last_device_change_at,
	status
`

// scanAccessToken lee una fila en la entidad de dominio
func scanAccessToken(row interface{ Scan(...interface{}) error }) (*domain.AccessToken, error) {
	token := &domain.AccessToken{}
	err := row.Scan(
		&token.ID,
		&token.SurveyID,
		&token.Email,
		&token.Hash,
		&token.DeviceFingerprint,
		&token.PreviousDeviceFingerprint,
		&token.IPAddress,
		&token.UserAgent,
		&token.FirstAccessAt,
		&token.LastAccessAt,
		&token.AccessCount,
		&token.DeviceChangesCount,
		&token.LastDeviceChangeAt,
		&token.Status,
	)
	if err != nil {
		return nil, err
	}
	return token, nil
}

// Find busca el registro exacto de la tripleta (encuesta, email, hash)
func (r *accessTokenRepository) Find(surveyID int, email, hash string) (*domain.AccessToken, error) {
	query := `
		SELECT ` + accessTokenColumns + `
		FROM survey_access_token
		WHERE survey_id = $1 AND email = $2 AND hash = $3
	`

	token, err := scanAccessToken(r.db.QueryRow(query, surveyID, email, hash))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error al buscar registro de acceso: %w", err)
	}
	return token, nil
}

// FindByHashAcrossEmails busca el mismo hash registrado bajo otro email
func (r *accessTokenRepository) FindByHashAcrossEmails(surveyID int, hash, excludingEmail string) (*domain.AccessToken, error) {
	query := `
		SELECT ` + accessTokenColumns + `
		FROM survey_access_token
		WHERE survey_id = $1 AND hash = $2 AND email != $3
		LIMIT 1
	`

	token, err := scanAccessToken(r.db.QueryRow(query, surveyID, hash, excludingEmail))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error al buscar hash bajo otros emails: %w", err)
	}
	return token, nil
}

// Create registra el primer acceso de una tripleta. La tabla tiene una
// restricción UNIQUE(survey_id, email, hash); si otra petición concurrente
// insertó la fila entre la búsqueda del llamador y este insert, la violación
// de unicidad se trata como "ya existe": se recupera la fila y se devuelve
// con created=false.
func (r *accessTokenRepository) Create(token *domain.AccessToken) (*domain.AccessToken, bool, error) {
	query := `
		INSERT INTO survey_access_token (
			survey_id,
			email,
			hash,
			device_fingerprint,
			ip_address,
			user_agent,
			first_access_at,
			last_access_at,
			access_count,
			device_changes_count,
			status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`

	err := r.db.QueryRow(
		query,
		token.SurveyID,
		token.Email,
		token.Hash,
		token.DeviceFingerprint,
		token.IPAddress,
		token.UserAgent,
		token.FirstAccessAt,
		token.LastAccessAt,
		token.AccessCount,
		token.DeviceChangesCount,
		token.Status,
	).Scan(&token.ID)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == pqUniqueViolation {
			existing, findErr := r.Find(token.SurveyID, token.Email, token.Hash)
			if findErr != nil {
				return nil, false, findErr
			}
			if existing == nil {
				return nil, false, fmt.Errorf("conflicto de unicidad sin fila recuperable para encuesta %d", token.SurveyID)
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("error al crear registro de acceso: %w", err)
	}

	return token, true, nil
}

// RecordAccess actualiza lastAccessAt e incrementa el contador de accesos
func (r *accessTokenRepository) RecordAccess(token *domain.AccessToken, now time.Time) error {
	query := `
		UPDATE survey_access_token
		SET last_access_at = $1,
		    access_count = access_count + 1
		WHERE id = $2
	`

	if _, err := r.db.Exec(query, now, token.ID); err != nil {
		return fmt.Errorf("error al registrar acceso: %w", err)
	}

	token.LastAccessAt = now
	token.AccessCount++
	return nil
}

// RecordDeviceChange registra un cambio de dispositivo
func (r *accessTokenRepository) RecordDeviceChange(token *domain.AccessToken, newFingerprint, newIP, newUserAgent string, now time.Time) error {
	query := `
		UPDATE survey_access_token
		SET previous_device_fingerprint = device_fingerprint,
		    device_fingerprint = $1,
		    ip_address = $2,
		    user_agent = $3,
		    device_changes_count = device_changes_count + 1,
		    last_device_change_at = $4
		WHERE id = $5
	`

	if _, err := r.db.Exec(query, newFingerprint, newIP, newUserAgent, now, token.ID); err != nil {
		return fmt.Errorf("error al registrar cambio de dispositivo: %w", err)
	}

	previous := token.DeviceFingerprint
	token.PreviousDeviceFingerprint = &previous
	token.DeviceFingerprint = newFingerprint
	token.IPAddress = newIP
	token.UserAgent = newUserAgent
	token.DeviceChangesCount++
	changeAt := now
	token.LastDeviceChangeAt = &changeAt
	return nil
}

// Block marca el registro como bloqueado
func (r *accessTokenRepository) Block(token *domain.AccessToken) error {
	query := `
		UPDATE survey_access_token
		SET status = $1
		WHERE id = $2
	`

	if _, err := r.db.Exec(query, domain.AccessStatusBlocked, token.ID); err != nil {
		return fmt.Errorf("error al bloquear registro: %w", err)
	}

	token.Status = domain.AccessStatusBlocked
	return nil
}

// PurgeActiveForResend elimina las filas no bloqueadas de una pareja
// encuesta+email; las bloqueadas se conservan como historial
func (r *accessTokenRepository) PurgeActiveForResend(surveyID int, email string) (int64, error) {
	query := `
		DELETE FROM survey_access_token
		WHERE survey_id = $1 AND email = $2 AND status != $3
	`

	result, err := r.db.Exec(query, surveyID, email, domain.AccessStatusBlocked)
	if err != nil {
		return 0, fmt.Errorf("error al purgar registros de acceso: %w", err)
	}

	purged, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error al verificar purga: %w", err)
	}
	return purged, nil
}

// ExpireStale marca como expiradas las filas activas cuyo primer acceso es
// más antiguo que la ventana dada
func (r *accessTokenRepository) ExpireStale(maxAge time.Duration) (int64, error) {
	query := `
		UPDATE survey_access_token
		SET status = $1
		WHERE status = $2 AND first_access_at < NOW() - $3::interval
	`

	interval := fmt.Sprintf("%d seconds", int64(maxAge.Seconds()))
	result, err := r.db.Exec(query, domain.AccessStatusExpired, domain.AccessStatusActive, interval)
	if err != nil {
		return 0, fmt.Errorf("error al expirar registros: %w", err)
	}

	expired, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error al verificar expiración: %w", err)
	}
	return expired, nil
}

// GetBySurvey obtiene todos los registros de acceso de una encuesta
func (r *accessTokenRepository) GetBySurvey(surveyID int) ([]domain.AccessToken, error) {
	query := `
		SELECT ` + accessTokenColumns + `
		FROM survey_access_token
		WHERE survey_id = $1
		ORDER BY first_access_at DESC
	`

	rows, err := r.db.Query(query, surveyID)
	if err != nil {
		return nil, fmt.Errorf("error al obtener registros de acceso: %w", err)
	}
	defer rows.Close()

	var tokens []domain.AccessToken
	for rows.Next() {
		token, err := scanAccessToken(rows)
		if err != nil {
			return nil, fmt.Errorf("error al leer registro de acceso: %w", err)
		}
		tokens = append(tokens, *token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error al recorrer registros de acceso: %w", err)
	}

	return tokens, nil
}
