package application

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Tipos de enlace soportados
const (
	LinkTypeStandard = "standard"
	LinkTypeFallback = "fallback"
	LinkTypeReminder = "reminder"
)

var linkTypes = []string{LinkTypeStandard, LinkTypeFallback, LinkTypeReminder}

const (
	// HashValidityWindow es la antigüedad máxima de un hash firmado
	HashValidityWindow = 7 * 24 * time.Hour
	// Ventana y resolución del escaneo de hashes legacy con timestamp
	legacyScanWindow = 2 * time.Hour
	legacyScanStep   = 60 * time.Second
	// Longitud del MAC truncado en caracteres hexadecimales
	macHexLength = 32
)

// ErrorKind identifica el motivo tipado de un rechazo de validación
type ErrorKind string

const (
	ErrInvalidFormat   ErrorKind = "invalid_format"
	ErrHashExpired     ErrorKind = "hash_expired"
	ErrHashTampering   ErrorKind = "hash_tampering"
	ErrPatternMismatch ErrorKind = "pattern_mismatch"
	ErrLinkSharing     ErrorKind = "link_sharing"
	ErrLinkBlocked     ErrorKind = "link_blocked"
	ErrValidation      ErrorKind = "validation_error"
)

// HashDecodeResult es el resultado tipado de verificar un hash
type HashDecodeResult struct {
	OK        bool
	ErrorKind ErrorKind
	LinkType  string
	IssuedAt  time.Time
	// LegacyFormat identifica el decodificador legacy que aceptó el hash
	// ("exact" o "time-window"); vacío para el formato firmado vigente
	LegacyFormat string
}

// HashCodec produce y verifica los hashes de acceso a encuestas.
// El formato vigente (A) es un token firmado con HMAC-SHA256; los formatos
// legacy en base64 se aceptan únicamente por compatibilidad con enlaces
// antiguos y nunca se emiten.
type HashCodec struct {
	secret []byte
}

// NewHashCodec crea un codec con la clave secreta del servidor
func NewHashCodec(secret string) *HashCodec {
	return &HashCodec{secret: []byte(secret)}
}

// Encode genera un hash firmado (formato A) para la tripleta dada.
// Entrada de firma: "{surveyId}|{email}|{type}|{timestamp}"; el payload
// "{timestamp}.{mac}" se codifica en base64 URL-safe sin relleno.
func (c *HashCodec) Encode(surveyID int, email, linkType string, now time.Time) string {
	ts := now.Unix()
	mac := c.sign(fmt.Sprintf("%d|%s|%s|%d", surveyID, email, linkType, ts))
	payload := fmt.Sprintf("%d.%s", ts, mac)
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

// sign calcula HMAC-SHA256 y devuelve los primeros 32 caracteres hex
func (c *HashCodec) sign(input string) string {
	h := hmac.New(sha256.New, c.secret)
	h.Write([]byte(input))
	return hex.EncodeToString(h.Sum(nil))[:macHexLength]
}

// hashDecoder intenta interpretar el hash en un formato concreto.
// handled=false significa "este no es mi formato, probar el siguiente";
// handled=true hace el resultado definitivo, sea aceptación o rechazo.
type hashDecoder func(surveyID int, email, hash string, now time.Time) (result HashDecodeResult, handled bool)

// Verify valida un hash contra la tripleta esperada probando los
// decodificadores en orden de prioridad fijo: token firmado primero, después
// los dos formatos legacy. Los formatos nuevos se agregan añadiendo una
// estrategia a la lista, nunca mutando las existentes.
func (c *HashCodec) Verify(surveyID int, email, hash string, now time.Time) HashDecodeResult {
	if hash == "" || !isBase64ish(hash) {
		return HashDecodeResult{ErrorKind: ErrInvalidFormat}
	}

	decoders := []hashDecoder{
		c.decodeSigned,
		c.decodeLegacyExact,
		c.decodeLegacyTimeWindow,
	}
	for _, decode := range decoders {
		if result, handled := decode(surveyID, email, hash, now); handled {
			return result
		}
	}

	// Nada coincidió. Si el hash se decodifica como base64 URL-safe se
	// presenta como un token firmado que no verifica: cualquier alteración
	// de un carácter cae aquí o en el rechazo de MAC y se reporta como
	// manipulación. Lo demás son cadenas legacy que no reconstruyen.
	if _, err := base64.RawURLEncoding.DecodeString(hash); err == nil {
		return HashDecodeResult{ErrorKind: ErrHashTampering}
	}
	return HashDecodeResult{ErrorKind: ErrPatternMismatch}
}

// decodeSigned verifica el formato A. Acepta payloads de dos partes
// ("timestamp.mac", vigente) y de tres partes ("timestamp.huella.mac",
// legacy): la huella forma parte de la entrada firmada pero no se exige que
// coincida con el dispositivo actual.
func (c *HashCodec) decodeSigned(surveyID int, email, hash string, now time.Time) (HashDecodeResult, bool) {
	raw, err := base64.RawURLEncoding.DecodeString(hash)
	if err != nil {
		return HashDecodeResult{}, false
	}

	parts := strings.Split(string(raw), ".")
	if len(parts) != 2 && len(parts) != 3 {
		return HashDecodeResult{}, false
	}

	ts, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return HashDecodeResult{}, false
	}
	providedMAC := parts[len(parts)-1]
	if len(providedMAC) != macHexLength || !isHex(providedMAC) {
		return HashDecodeResult{}, false
	}

	for _, linkType := range linkTypes {
		input := fmt.Sprintf("%d|%s|%s|%d", surveyID, email, linkType, ts)
		if len(parts) == 3 {
			// Forma legacy de tres partes: la huella decodificada se
			// incorpora a la entrada de firma
			input = fmt.Sprintf("%s|%s", input, parts[1])
		}
		if hmac.Equal([]byte(providedMAC), []byte(c.sign(input))) {
			issuedAt := time.Unix(ts, 0)
			if now.Sub(issuedAt) > HashValidityWindow {
				return HashDecodeResult{ErrorKind: ErrHashExpired, LinkType: linkType, IssuedAt: issuedAt}, true
			}
			return HashDecodeResult{OK: true, LinkType: linkType, IssuedAt: issuedAt}, true
		}
	}

	// Tiene la forma de un token firmado pero ningún MAC coincide
	return HashDecodeResult{ErrorKind: ErrHashTampering}, true
}

// decodeLegacyExact acepta el formato histórico base64("{surveyId}-{email}")
// solo ante una coincidencia exacta de longitud completa. La comparación por
// prefijo que existió en su día queda cerrada por la vulnerabilidad de
// truncado documentada.
func (c *HashCodec) decodeLegacyExact(surveyID int, email, hash string, _ time.Time) (HashDecodeResult, bool) {
	candidate := legacyBase64(fmt.Sprintf("%d-%s", surveyID, email))
	if hash == candidate {
		return HashDecodeResult{OK: true, LinkType: LinkTypeStandard, LegacyFormat: "exact"}, true
	}
	return HashDecodeResult{}, false
}

// decodeLegacyTimeWindow reconstruye candidatos del formato histórico
// base64("{surveyId}-{email}-{type}-{timestamp}") recorriendo una ventana
// deslizante de 2 horas con resolución de 60 segundos.
func (c *HashCodec) decodeLegacyTimeWindow(surveyID int, email, hash string, now time.Time) (HashDecodeResult, bool) {
	for _, linkType := range linkTypes {
		for offset := time.Duration(0); offset <= legacyScanWindow; offset += legacyScanStep {
			ts := now.Add(-offset).Truncate(time.Minute).Unix()
			candidate := legacyBase64(fmt.Sprintf("%d-%s-%s-%d", surveyID, email, linkType, ts))
			if hash == candidate {
				return HashDecodeResult{
					OK:           true,
					LinkType:     linkType,
					IssuedAt:     time.Unix(ts, 0),
					LegacyFormat: "time-window",
				}, true
			}
		}
	}
	return HashDecodeResult{}, false
}

// legacyBase64 reproduce la codificación histórica: base64 estándar con los
// caracteres de relleno eliminados
func legacyBase64(input string) string {
	return strings.TrimRight(base64.StdEncoding.EncodeToString([]byte(input)), "=")
}

// isBase64ish verifica que el hash solo contenga caracteres de los alfabetos
// base64 estándar o URL-safe
func isBase64ish(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		case r == '+' || r == '/' || r == '-' || r == '_' || r == '=':
		default:
			return false
		}
	}
	return true
}

func isHex(s string) bool {
	for _, r := range s {
		if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f')) {
			return false
		}
	}
	return true
}

// IsValidLinkType indica si el tipo de enlace es uno de los soportados
func IsValidLinkType(linkType string) bool {
	for _, t := range linkTypes {
		if t == linkType {
			return true
		}
	}
	return false
}
