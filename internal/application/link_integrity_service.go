package application

import (
	"log"
	"time"

	"github.com/cristiansanta/Backend-Encuestas-sub000/internal/domain"
)

// Umbrales de la heurística de patrones sospechosos de compartición
const (
	// Número de cambios de dispositivo a partir del cual se bloquea
	maxDeviceChanges = 2
	// Intervalo mínimo entre dos cambios de dispositivo consecutivos
	minChangeInterval = 10 * time.Minute
	// Margen tras el primer acceso durante el cual un cambio es sospechoso
	firstChangeGracePeriod = 5 * time.Minute
)

// RequestMetadata son los metadatos de la petición entrante. La IP se guarda
// solo con fines de diagnóstico; la huella de dispositivo se deriva
// exclusivamente del User-Agent.
type RequestMetadata struct {
	IP        string
	UserAgent string
}

// ValidationResult es el resultado discriminado de validar un acceso
type ValidationResult struct {
	Valid         bool      `json:"valid"`
	IsFirstAccess bool      `json:"isFirstAccess,omitempty"`
	ErrorKind     ErrorKind `json:"errorKind,omitempty"`
}

// LinkIntegrityService valida los enlaces de acceso a encuestas: verifica el
// hash contra manipulación y caducidad, registra el primer acceso de cada
// destinatario y aplica las heurísticas de detección de enlaces compartidos.
type LinkIntegrityService struct {
	codec     *HashCodec
	tokenRepo domain.AccessTokenRepository
}

// NewLinkIntegrityService crea una nueva instancia del servicio
func NewLinkIntegrityService(codec *HashCodec, tokenRepo domain.AccessTokenRepository) *LinkIntegrityService {
	return &LinkIntegrityService{
		codec:     codec,
		tokenRepo: tokenRepo,
	}
}

// ValidateAccess ejecuta la validación completa de un intento de acceso.
// El reloj se recibe como parámetro explícito para que el resultado sea
// determinista en pruebas; no se consulta ningún estado ambiental.
//
// Los fallos de formato y de firma son terminales y no tocan el almacén.
// Las anomalías de identidad o de dispositivo sí mutan estado: marcan la fila
// como bloqueada para que el rechazo persista más allá de esta petición.
func (s *LinkIntegrityService) ValidateAccess(surveyID int, email, hash string, meta RequestMetadata, now time.Time) ValidationResult {
	decoded := s.codec.Verify(surveyID, email, hash, now)
	if !decoded.OK {
		return ValidationResult{Valid: false, ErrorKind: decoded.ErrorKind}
	}
	if decoded.LegacyFormat != "" {
		// Compatibilidad acotada en el tiempo: los formatos legacy siguen
		// aceptándose pero cada uso queda auditado
		log.Printf("acceso con hash legacy (%s): encuesta=%d email=%s ip=%s",
			decoded.LegacyFormat, surveyID, email, meta.IP)
	}

	token, err := s.tokenRepo.Find(surveyID, email, hash)
	if err != nil {
		log.Printf("error al buscar registro de acceso: encuesta=%d email=%s: %v", surveyID, email, err)
		return ValidationResult{Valid: false, ErrorKind: ErrValidation}
	}

	if token == nil {
		return s.registerFirstAccess(surveyID, email, hash, meta, now)
	}
	return s.validateKnownAccess(token, meta, now)
}

// registerFirstAccess gestiona la primera vez que se observa la tripleta
// (encuesta, email, hash). Antes de crear la fila comprueba si el mismo hash
// ya fue registrado bajo otro email: un hash firmado pertenece exactamente a
// un destinatario, por lo que presentarlo con otra identidad evidencia que el
// enlace fue reenviado y ambas partes pierden el acceso.
func (s *LinkIntegrityService) registerFirstAccess(surveyID int, email, hash string, meta RequestMetadata, now time.Time) ValidationResult {
	other, err := s.tokenRepo.FindByHashAcrossEmails(surveyID, hash, email)
	if err != nil {
		log.Printf("error al buscar hash bajo otros emails: encuesta=%d: %v", surveyID, err)
		return ValidationResult{Valid: false, ErrorKind: ErrValidation}
	}
	if other != nil {
		if err := s.tokenRepo.Block(other); err != nil {
			log.Printf("error al bloquear registro por compartición: id=%d: %v", other.ID, err)
		}
		log.Printf("enlace compartido detectado: encuesta=%d hash presentado por %s pertenece a %s; registro %d bloqueado",
			surveyID, email, other.Email, other.ID)
		return ValidationResult{Valid: false, ErrorKind: ErrLinkSharing}
	}

	token := &domain.AccessToken{
		SurveyID:          surveyID,
		Email:             email,
		Hash:              hash,
		DeviceFingerprint: DeviceFingerprint(meta.UserAgent),
		IPAddress:         meta.IP,
		UserAgent:         meta.UserAgent,
		FirstAccessAt:     now,
		LastAccessAt:      now,
		AccessCount:       1,
		Status:            domain.AccessStatusActive,
	}
	persisted, created, err := s.tokenRepo.Create(token)
	if err != nil {
		log.Printf("error al crear registro de acceso: encuesta=%d email=%s: %v", surveyID, email, err)
		return ValidationResult{Valid: false, ErrorKind: ErrValidation}
	}
	if !created {
		// Otra petición concurrente insertó la fila entre la búsqueda y el
		// insert: continuar por la rama de registro existente
		return s.validateKnownAccess(persisted, meta, now)
	}
	return ValidationResult{Valid: true, IsFirstAccess: true}
}

// validateKnownAccess gestiona los accesos posteriores de una tripleta ya
// registrada: bloqueo administrativo, cambios de dispositivo y contadores.
func (s *LinkIntegrityService) validateKnownAccess(token *domain.AccessToken, meta RequestMetadata, now time.Time) ValidationResult {
	if token.IsBlocked() {
		return ValidationResult{Valid: false, ErrorKind: ErrLinkBlocked}
	}

	fingerprint := DeviceFingerprint(meta.UserAgent)
	if fingerprint != token.DeviceFingerprint {
		// Un cambio de dispositivo no es fatal por sí mismo: el mismo
		// destinatario puede cambiar de navegador o de teléfono. Solo se
		// bloquea cuando el patrón de cambios delata un enlace reenviado.
		if s.isSuspiciousDeviceChange(token, now) {
			if err := s.tokenRepo.Block(token); err != nil {
				log.Printf("error al bloquear registro por patrón sospechoso: id=%d: %v", token.ID, err)
			}
			log.Printf("patrón de dispositivos sospechoso: encuesta=%d email=%s cambios=%d; registro %d bloqueado",
				token.SurveyID, token.Email, token.DeviceChangesCount+1, token.ID)
			return ValidationResult{Valid: false, ErrorKind: ErrLinkSharing}
		}
		if err := s.tokenRepo.RecordDeviceChange(token, fingerprint, meta.IP, meta.UserAgent, now); err != nil {
			log.Printf("error al registrar cambio de dispositivo: id=%d: %v", token.ID, err)
			return ValidationResult{Valid: false, ErrorKind: ErrValidation}
		}
	}

	if err := s.tokenRepo.RecordAccess(token, now); err != nil {
		log.Printf("error al registrar acceso: id=%d: %v", token.ID, err)
		return ValidationResult{Valid: false, ErrorKind: ErrValidation}
	}
	return ValidationResult{Valid: true, IsFirstAccess: false}
}

// isSuspiciousDeviceChange evalúa la heurística de compartición sobre el
// cambio de dispositivo que está a punto de registrarse:
//   - ya se acumularon demasiados cambios,
//   - el cambio anterior fue hace menos de 10 minutos,
//   - o el primer cambio llega a menos de 5 minutos del primer acceso.
//
// La heurística no puede distinguir con certeza el uso multi-dispositivo
// legítimo de un enlace reenviado; se asume algún falso positivo (quien es
// bloqueado pide un enlace nuevo) antes que dejar pasar comparticiones.
func (s *LinkIntegrityService) isSuspiciousDeviceChange(token *domain.AccessToken, now time.Time) bool {
	if token.DeviceChangesCount+1 >= maxDeviceChanges {
		return true
	}
	if token.LastDeviceChangeAt != nil && now.Sub(*token.LastDeviceChangeAt) < minChangeInterval {
		return true
	}
	if token.DeviceChangesCount == 0 && now.Sub(token.FirstAccessAt) < firstChangeGracePeriod {
		return true
	}
	return false
}

// ListAccesses devuelve los registros de acceso de una encuesta para la
// vista administrativa
func (s *LinkIntegrityService) ListAccesses(surveyID int) ([]domain.AccessToken, error) {
	return s.tokenRepo.GetBySurvey(surveyID)
}
