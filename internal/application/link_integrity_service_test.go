package application

import (
	"testing"
	"time"

	"github.com/cristiansanta/Backend-Encuestas-sub000/internal/domain"
)

const (
	uaChrome  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/120.0"
	uaFirefox = "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Firefox/121.0"
	uaMobile  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Safari/604.1"
)

func newTestService() (*LinkIntegrityService, *HashCodec, *fakeAccessTokenRepo) {
	codec := NewHashCodec(testSecret)
	repo := newFakeAccessTokenRepo()
	return NewLinkIntegrityService(codec, repo), codec, repo
}

func metaWith(ua string) RequestMetadata {
	return RequestMetadata{IP: "203.0.113.10", UserAgent: ua}
}

func TestFirstAccessIdempotence(t *testing.T) {
	service, codec, repo := newTestService()
	now := time.Now()
	hash := codec.Encode(1, "a@x.com", LinkTypeStandard, now)

	first := service.ValidateAccess(1, "a@x.com", hash, metaWith(uaChrome), now)
	if !first.Valid || !first.IsFirstAccess {
		t.Fatalf("primer acceso: Valid=%v IsFirstAccess=%v, se esperaba true/true (kind=%s)",
			first.Valid, first.IsFirstAccess, first.ErrorKind)
	}

	second := service.ValidateAccess(1, "a@x.com", hash, metaWith(uaChrome), now.Add(time.Second))
	if !second.Valid || second.IsFirstAccess {
		t.Fatalf("segundo acceso: Valid=%v IsFirstAccess=%v, se esperaba true/false",
			second.Valid, second.IsFirstAccess)
	}

	if len(repo.tokens) != 1 {
		t.Fatalf("filas creadas = %d, se esperaba exactamente 1", len(repo.tokens))
	}
	token := repo.tokens[0]
	if token.AccessCount != 2 {
		t.Errorf("AccessCount = %d, se esperaba 2", token.AccessCount)
	}
	if token.LastAccessAt.Before(token.FirstAccessAt) {
		t.Error("LastAccessAt es anterior a FirstAccessAt")
	}
}

func TestLinkSharingDetection(t *testing.T) {
	service, _, repo := newTestService()
	now := time.Now()

	// Hash legacy emitido para a@x.com. En el almacén ya existe el mismo
	// hash registrado bajo otra identidad: filas así quedaron de la época en
	// que la comparación por prefijo permitía validar un hash truncado bajo
	// más de un email.
	hash := legacyBase64("1-a@x.com")
	repo.tokens = append(repo.tokens, &domain.AccessToken{
		ID:                99,
		SurveyID:          1,
		Email:             "b@y.com",
		Hash:              hash,
		DeviceFingerprint: DeviceFingerprint(uaChrome),
		FirstAccessAt:     now.Add(-time.Hour),
		LastAccessAt:      now.Add(-time.Hour),
		AccessCount:       1,
		Status:            domain.AccessStatusActive,
	})

	// Un hash dado pertenece a exactamente un destinatario: presentarlo bajo
	// otra identidad es evidencia de reenvío y ambas partes pierden acceso
	result := service.ValidateAccess(1, "a@x.com", hash, metaWith(uaFirefox), now)
	if result.Valid {
		t.Fatal("se aceptó un hash ya registrado bajo otra identidad")
	}
	if result.ErrorKind != ErrLinkSharing {
		t.Fatalf("ErrorKind = %s, se esperaba %s", result.ErrorKind, ErrLinkSharing)
	}

	// La fila del otro destinatario quedó bloqueada permanentemente
	blocked, _ := repo.Find(1, "b@y.com", hash)
	if blocked == nil || !blocked.IsBlocked() {
		t.Fatal("la fila del otro destinatario no quedó bloqueada")
	}

	// Y no se creó ninguna fila para quien presentó el hash compartido
	if row, _ := repo.Find(1, "a@x.com", hash); row != nil {
		t.Error("se creó una fila para la identidad que presentó el hash compartido")
	}
}

func TestBlockedRowRejectsReplay(t *testing.T) {
	service, codec, repo := newTestService()
	now := time.Now()
	hash := codec.Encode(1, "a@x.com", LinkTypeStandard, now)

	if result := service.ValidateAccess(1, "a@x.com", hash, metaWith(uaChrome), now); !result.Valid {
		t.Fatalf("primer acceso rechazado: %s", result.ErrorKind)
	}

	// Bloqueo administrativo: terminal e incondicional
	token, _ := repo.Find(1, "a@x.com", hash)
	if err := repo.Block(token); err != nil {
		t.Fatalf("Block() error = %v", err)
	}

	replay := service.ValidateAccess(1, "a@x.com", hash, metaWith(uaChrome), now.Add(time.Minute))
	if replay.Valid || replay.ErrorKind != ErrLinkBlocked {
		t.Fatalf("reintento sobre fila bloqueada: Valid=%v kind=%s, se esperaba %s",
			replay.Valid, replay.ErrorKind, ErrLinkBlocked)
	}
}

func TestToleratedSingleDeviceChange(t *testing.T) {
	service, codec, repo := newTestService()
	now := time.Now()
	hash := codec.Encode(1, "a@x.com", LinkTypeStandard, now)

	if result := service.ValidateAccess(1, "a@x.com", hash, metaWith(uaChrome), now); !result.Valid {
		t.Fatalf("primer acceso rechazado: %s", result.ErrorKind)
	}

	// Cambio de dispositivo 15 minutos después: permitido
	later := now.Add(15 * time.Minute)
	result := service.ValidateAccess(1, "a@x.com", hash, metaWith(uaFirefox), later)
	if !result.Valid {
		t.Fatalf("cambio de dispositivo tolerado fue rechazado: %s", result.ErrorKind)
	}

	token, _ := repo.Find(1, "a@x.com", hash)
	if token.DeviceFingerprint != DeviceFingerprint(uaFirefox) {
		t.Error("la huella almacenada no se actualizó al dispositivo nuevo")
	}
	if token.PreviousDeviceFingerprint == nil || *token.PreviousDeviceFingerprint != DeviceFingerprint(uaChrome) {
		t.Error("la huella anterior no se conservó en previousDeviceFingerprint")
	}
	if token.DeviceChangesCount != 1 {
		t.Errorf("DeviceChangesCount = %d, se esperaba 1", token.DeviceChangesCount)
	}
}

func TestRapidDeviceChurnBlocked(t *testing.T) {
	service, codec, repo := newTestService()
	now := time.Now()
	hash := codec.Encode(1, "a@x.com", LinkTypeStandard, now)

	if result := service.ValidateAccess(1, "a@x.com", hash, metaWith(uaChrome), now); !result.Valid {
		t.Fatalf("primer acceso rechazado: %s", result.ErrorKind)
	}

	// Tres dispositivos distintos en pocos minutos: el primer cambio llega a
	// los 2 minutos del primer acceso y ya dispara la heurística
	second := service.ValidateAccess(1, "a@x.com", hash, metaWith(uaFirefox), now.Add(2*time.Minute))
	third := service.ValidateAccess(1, "a@x.com", hash, metaWith(uaMobile), now.Add(4*time.Minute))
	if second.Valid && third.Valid {
		t.Fatal("tres dispositivos en pocos minutos no provocaron bloqueo")
	}

	token, _ := repo.Find(1, "a@x.com", hash)
	if token == nil || !token.IsBlocked() {
		t.Fatal("la fila no quedó bloqueada tras el patrón de cambios rápidos")
	}

	// Cualquier intento posterior, desde cualquier dispositivo, es rechazado
	replay := service.ValidateAccess(1, "a@x.com", hash, metaWith(uaChrome), now.Add(10*time.Minute))
	if replay.Valid || replay.ErrorKind != ErrLinkBlocked {
		t.Fatalf("intento posterior: Valid=%v kind=%s, se esperaba %s",
			replay.Valid, replay.ErrorKind, ErrLinkBlocked)
	}
}

func TestSecondDeviceChangeBlocksEvenWhenSlow(t *testing.T) {
	service, codec, repo := newTestService()
	now := time.Now()
	hash := codec.Encode(1, "a@x.com", LinkTypeStandard, now)

	service.ValidateAccess(1, "a@x.com", hash, metaWith(uaChrome), now)

	// Primer cambio: lento, permitido
	first := service.ValidateAccess(1, "a@x.com", hash, metaWith(uaFirefox), now.Add(20*time.Minute))
	if !first.Valid {
		t.Fatalf("primer cambio lento rechazado: %s", first.ErrorKind)
	}

	// Segundo cambio: aunque también sea lento, acumula dos cambios y bloquea
	second := service.ValidateAccess(1, "a@x.com", hash, metaWith(uaMobile), now.Add(40*time.Minute))
	if second.Valid {
		t.Fatal("el segundo cambio de dispositivo no bloqueó el registro")
	}
	if second.ErrorKind != ErrLinkSharing {
		t.Errorf("ErrorKind = %s, se esperaba %s", second.ErrorKind, ErrLinkSharing)
	}

	token, _ := repo.Find(1, "a@x.com", hash)
	if !token.IsBlocked() {
		t.Error("la fila no quedó bloqueada")
	}
}

func TestHashFailureDoesNotTouchStore(t *testing.T) {
	service, _, repo := newTestService()
	now := time.Now()

	result := service.ValidateAccess(1, "a@x.com", "aW52YWxpZG8", metaWith(uaChrome), now)
	if result.Valid {
		t.Fatal("se aceptó un hash inválido")
	}
	if len(repo.tokens) != 0 {
		t.Errorf("un fallo de verificación creó %d filas; no debe tocar el almacén", len(repo.tokens))
	}
}

func TestStoreFailureReportsValidationError(t *testing.T) {
	service, codec, repo := newTestService()
	now := time.Now()
	hash := codec.Encode(1, "a@x.com", LinkTypeStandard, now)

	repo.failAll = true
	result := service.ValidateAccess(1, "a@x.com", hash, metaWith(uaChrome), now)
	if result.Valid {
		t.Fatal("se aceptó un acceso con el almacén caído")
	}
	if result.ErrorKind != ErrValidation {
		t.Errorf("ErrorKind = %s, se esperaba %s", result.ErrorKind, ErrValidation)
	}
}

func TestConcurrentCreateFallsBackToExistingRow(t *testing.T) {
	service, codec, repo := newTestService()
	now := time.Now()
	hash := codec.Encode(1, "a@x.com", LinkTypeStandard, now)

	// Simular que otra petición insertó la fila entre el Find del validador
	// y su Create: la fila existe, pero el primer Find no la ve y el insert
	// choca con la restricción de unicidad
	repo.findMisses = 1
	repo.tokens = append(repo.tokens, &domain.AccessToken{
		ID:                1,
		SurveyID:          1,
		Email:             "a@x.com",
		Hash:              hash,
		DeviceFingerprint: DeviceFingerprint(uaChrome),
		FirstAccessAt:     now,
		LastAccessAt:      now,
		AccessCount:       1,
		Status:            domain.AccessStatusActive,
	})

	result := service.ValidateAccess(1, "a@x.com", hash, metaWith(uaChrome), now.Add(time.Second))
	if !result.Valid {
		t.Fatalf("acceso rechazado: %s", result.ErrorKind)
	}
	if result.IsFirstAccess {
		t.Error("IsFirstAccess = true para una fila que ya existía")
	}
	if len(repo.tokens) != 1 {
		t.Errorf("filas = %d, se esperaba 1", len(repo.tokens))
	}
}

func TestResendPurgeStartsFreshHistory(t *testing.T) {
	service, codec, repo := newTestService()
	now := time.Now()

	oldHash := codec.Encode(42, "respondent@example.com", LinkTypeStandard, now)
	first := service.ValidateAccess(42, "respondent@example.com", oldHash, metaWith(uaChrome), now)
	if !first.Valid || !first.IsFirstAccess {
		t.Fatalf("primer acceso con el hash original falló: %s", first.ErrorKind)
	}

	// El reenvío purga las filas activas de la pareja encuesta+email
	purged, err := repo.PurgeActiveForResend(42, "respondent@example.com")
	if err != nil || purged != 1 {
		t.Fatalf("PurgeActiveForResend purgó %d filas (err=%v), se esperaba 1", purged, err)
	}

	newHash := codec.Encode(42, "respondent@example.com", LinkTypeStandard, now.Add(time.Minute))

	// El hash viejo purgado vuelve a ser primer acceso: no hereda historial
	retried := service.ValidateAccess(42, "respondent@example.com", oldHash, metaWith(uaChrome), now.Add(2*time.Minute))
	if !retried.Valid || !retried.IsFirstAccess {
		t.Fatalf("reintento del hash purgado: Valid=%v IsFirstAccess=%v", retried.Valid, retried.IsFirstAccess)
	}

	fresh := service.ValidateAccess(42, "respondent@example.com", newHash, metaWith(uaChrome), now.Add(3*time.Minute))
	if !fresh.Valid || !fresh.IsFirstAccess {
		t.Fatalf("primer acceso con el hash nuevo: Valid=%v IsFirstAccess=%v", fresh.Valid, fresh.IsFirstAccess)
	}

	// Las filas del hash viejo y el nuevo no se confunden entre sí
	oldRow, _ := repo.Find(42, "respondent@example.com", oldHash)
	newRow, _ := repo.Find(42, "respondent@example.com", newHash)
	if oldRow == nil || newRow == nil {
		t.Fatal("faltan filas tras el reenvío")
	}
	if oldRow.ID == newRow.ID {
		t.Error("el hash nuevo se registró sobre la fila del hash viejo")
	}
	if oldRow.AccessCount != 1 || newRow.AccessCount != 1 {
		t.Errorf("AccessCount viejo=%d nuevo=%d, se esperaba 1 y 1", oldRow.AccessCount, newRow.AccessCount)
	}
}
