package application

import "testing"

func TestDeviceFingerprint(t *testing.T) {
	tests := []struct {
		name      string
		userAgent string
	}{
		{"navegador de escritorio", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/120.0"},
		{"navegador móvil", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Safari/604.1"},
		{"user-agent vacío", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fp := DeviceFingerprint(tt.userAgent)
			if len(fp) != 8 {
				t.Errorf("longitud = %d, se esperaba 8", len(fp))
			}
			for _, c := range fp {
				if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
					t.Errorf("carácter no hexadecimal en la huella: %c", c)
				}
			}
			// Determinista: la misma entrada produce la misma huella
			if again := DeviceFingerprint(tt.userAgent); again != fp {
				t.Errorf("la huella no es determinista: %s != %s", fp, again)
			}
		})
	}
}

func TestDeviceFingerprintDistinguishesAgents(t *testing.T) {
	a := DeviceFingerprint("Mozilla/5.0 Chrome/120.0")
	b := DeviceFingerprint("Mozilla/5.0 Firefox/121.0")
	if a == b {
		t.Error("dos user-agents distintos produjeron la misma huella")
	}
}
