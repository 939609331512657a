package application

import (
	"sync"
	"time"
)

// rateLimitEntry representa una ventana de conteo para un identificador
type rateLimitEntry struct {
	count     int
	resetTime time.Time
}

// RateLimiter limita peticiones por identificador en ventanas de tiempo
// fijas. Protege el endpoint público de validación de accesos, que no exige
// autenticación y cuyo decodificador legacy recorre una ventana de
// timestamps en cada intento fallido.
type RateLimiter struct {
	limits map[string]*rateLimitEntry
	mu     sync.Mutex
	window time.Duration
	limit  int
}

// NewRateLimiter crea un nuevo rate limiter
// window: duración de la ventana (ej: 1 minuto)
// limit: número máximo de peticiones permitidas en la ventana
func NewRateLimiter(window time.Duration, limit int) *RateLimiter {
	rl := &RateLimiter{
		limits: make(map[string]*rateLimitEntry),
		window: window,
		limit:  limit,
	}

	go rl.cleanupLoop()

	return rl
}

// Allow verifica si se permite una petición para el identificador dado
// (normalmente la IP del cliente)
func (rl *RateLimiter) Allow(identifier string) bool {
	if identifier == "" {
		identifier = "anonymous"
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	entry, exists := rl.limits[identifier]

	if !exists || now.After(entry.resetTime) {
		rl.limits[identifier] = &rateLimitEntry{
			count:     1,
			resetTime: now.Add(rl.window),
		}
		return true
	}

	if entry.count >= rl.limit {
		return false
	}

	entry.count++
	return true
}

// cleanupLoop elimina periódicamente las entradas expiradas
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		now := time.Now()
		for identifier, entry := range rl.limits {
			if now.After(entry.resetTime) {
				delete(rl.limits, identifier)
			}
		}
		rl.mu.Unlock()
	}
}
