package domain

import "time"

// Estados posibles de un registro de acceso
const (
	AccessStatusActive  = "active"
	AccessStatusBlocked = "blocked"
	AccessStatusExpired = "expired"
)

// AccessToken representa el registro de acceso de un destinatario a una encuesta.
// Existe una fila por cada tripleta (encuesta, email, hash) observada; el hash
// es parte de la clave porque un reenvío emite un hash nuevo que comienza
// su historial desde cero.
type AccessToken struct {
	ID                        int        `json:"id"`
	SurveyID                  int        `json:"surveyId"`
	Email                     string     `json:"email"`
	Hash                      string     `json:"hash"`
	DeviceFingerprint         string     `json:"deviceFingerprint"`
	PreviousDeviceFingerprint *string    `json:"previousDeviceFingerprint,omitempty"`
	IPAddress                 string     `json:"ipAddress"`
	UserAgent                 string     `json:"userAgent"`
	FirstAccessAt             time.Time  `json:"firstAccessAt"`
	LastAccessAt              time.Time  `json:"lastAccessAt"`
	AccessCount               int        `json:"accessCount"`
	DeviceChangesCount        int        `json:"deviceChangesCount"`
	LastDeviceChangeAt        *time.Time `json:"lastDeviceChangeAt,omitempty"`
	Status                    string     `json:"status"`
}

// IsBlocked indica si el registro fue bloqueado de forma permanente
func (t *AccessToken) IsBlocked() bool {
	return t.Status == AccessStatusBlocked
}

// AccessTokenRepository define las operaciones de persistencia sobre los
// registros de acceso
type AccessTokenRepository interface {
	// Find busca el registro exacto de la tripleta (encuesta, email, hash)
	Find(surveyID int, email, hash string) (*AccessToken, error)
	// FindByHashAcrossEmails busca el mismo hash registrado bajo otro email
	// (detección de enlaces compartidos)
	FindByHashAcrossEmails(surveyID int, hash, excludingEmail string) (*AccessToken, error)
	// Create registra el primer acceso de una tripleta nunca vista y devuelve
	// la fila persistida. Si otra petición concurrente insertó la fila primero,
	// devuelve la fila existente con created=false en lugar de fallar.
	Create(token *AccessToken) (persisted *AccessToken, created bool, err error)
	// RecordAccess actualiza lastAccessAt e incrementa el contador de accesos
	RecordAccess(token *AccessToken, now time.Time) error
	// RecordDeviceChange registra un cambio de dispositivo: mueve la huella
	// actual a previousDeviceFingerprint y actualiza los metadatos
	RecordDeviceChange(token *AccessToken, newFingerprint, newIP, newUserAgent string, now time.Time) error
	// Block marca el registro como bloqueado. Irreversible desde esta interfaz.
	Block(token *AccessToken) error
	// PurgeActiveForResend elimina las filas no bloqueadas de una pareja
	// encuesta+email para que un hash reenviado empiece limpio. Las filas
	// bloqueadas se conservan como historial.
	PurgeActiveForResend(surveyID int, email string) (int64, error)
	// ExpireStale marca como expiradas las filas activas cuyo primer acceso
	// es más antiguo que la ventana de validez del hash
	ExpireStale(maxAge time.Duration) (int64, error)
	// GetBySurvey obtiene todos los registros de acceso de una encuesta
	GetBySurvey(surveyID int) ([]AccessToken, error)
}
