package application

import (
	"crypto/sha256"
	"encoding/hex"
)

// DeviceFingerprint deriva una huella corta y opaca del User-Agent del
// cliente: los primeros 8 caracteres hex de SHA-256. La IP se excluye
// deliberadamente de la entrada para no colapsar en "el mismo dispositivo" a
// usuarios legítimos distintos detrás de una NAT o un proxy compartido.
// Un User-Agent vacío produce una huella determinista igualmente.
func DeviceFingerprint(userAgent string) string {
	sum := sha256.Sum256([]byte(userAgent))
	return hex.EncodeToString(sum[:])[:8]
}
