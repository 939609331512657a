package application

import (
	"fmt"
	"regexp"
)

// Validator contiene funciones de validación de datos
type Validator struct{}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidateEmail valida el formato de un email. El endpoint de acceso lo
// aplica antes de invocar al validador de enlaces: un email malformado nunca
// llega a la verificación del hash.
func (v *Validator) ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("el email es requerido")
	}

	if !emailRegex.MatchString(email) {
		return fmt.Errorf("el formato del email '%s' no es válido", email)
	}

	return nil
}
