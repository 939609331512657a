package scheduler

import (
	"log"
	"time"

	"github.com/cristiansanta/Backend-Encuestas-sub000/internal/application"
	"github.com/cristiansanta/Backend-Encuestas-sub000/internal/domain"
)

type TokenScheduler struct {
	tokenRepo domain.AccessTokenRepository
	ticker    *time.Ticker
}

// NewTokenScheduler crea una nueva instancia del scheduler de tokens
func NewTokenScheduler(tokenRepo domain.AccessTokenRepository) *TokenScheduler {
	return &TokenScheduler{
		tokenRepo: tokenRepo,
	}
}

// Start inicia el scheduler que expira registros de acceso antiguos cada 24 horas
func (s *TokenScheduler) Start() {
	log.Println("🕐 Scheduler de tokens iniciado - Se ejecutará cada 24 horas")

	// Ejecutar inmediatamente al iniciar
	s.ExpireStaleTokens()

	// Programar ejecución cada 24 horas a las 00:01 AM
	now := time.Now()
	nextRun := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 1, 0, 0, now.Location())
	durationUntilNextRun := time.Until(nextRun)

	log.Printf("⏰ Próxima ejecución programada: %s", nextRun.Format("2006-01-02 15:04:05"))

	time.AfterFunc(durationUntilNextRun, func() {
		s.ExpireStaleTokens()

		s.ticker = time.NewTicker(24 * time.Hour)
		go func() {
			for range s.ticker.C {
				s.ExpireStaleTokens()
			}
		}()
	})
}

// Stop detiene el scheduler
func (s *TokenScheduler) Stop() {
	if s.ticker != nil {
		s.ticker.Stop()
		log.Println("🛑 Scheduler de tokens detenido")
	}
}

// ExpireStaleTokens marca como expirados los registros activos cuyo primer
// acceso es más antiguo que la ventana de validez del hash
func (s *TokenScheduler) ExpireStaleTokens() {
	log.Println("🔄 Ejecutando expiración de registros de acceso antiguos...")

	expired, err := s.tokenRepo.ExpireStale(application.HashValidityWindow)
	if err != nil {
		log.Printf("❌ Error al expirar registros de acceso: %v", err)
		return
	}

	if expired > 0 {
		log.Printf("✅ %d registros de acceso marcados como expirados", expired)
	} else {
		log.Println("✅ No hay registros de acceso por expirar")
	}
}
