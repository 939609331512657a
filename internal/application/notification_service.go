package application

import (
	"fmt"
	"log"
	"time"

	"github.com/cristiansanta/Backend-Encuestas-sub000/internal/domain"
	"github.com/google/uuid"
)

// SurveyMailer es el cliente de correo que envía las invitaciones.
// Lo implementa email.Client; puede ser nil si el servidor arranca sin SMTP.
type SurveyMailer interface {
	SendSurveyInvitation(to, surveyTitle, accessURL string, expiresAt time.Time) error
}

// NotificationService orquesta el envío y reenvío de enlaces de encuesta:
// emite la URL firmada, registra la notificación y despacha el correo.
type NotificationService struct {
	issuer           *LinkIssuer
	surveyRepo       domain.SurveyRepository
	notificationRepo domain.SurveyNotificationRepository
	tokenRepo        domain.AccessTokenRepository
	mailer           SurveyMailer
}

// NewNotificationService crea una nueva instancia del servicio
func NewNotificationService(
	issuer *LinkIssuer,
	surveyRepo domain.SurveyRepository,
	notificationRepo domain.SurveyNotificationRepository,
	tokenRepo domain.AccessTokenRepository,
	mailer SurveyMailer,
) *NotificationService {
	return &NotificationService{
		issuer:           issuer,
		surveyRepo:       surveyRepo,
		notificationRepo: notificationRepo,
		tokenRepo:        tokenRepo,
		mailer:           mailer,
	}
}

// SendSurveyLink emite un enlace firmado para el destinatario, registra la
// notificación y envía el correo de invitación. La encuesta debe estar
// publicada.
func (s *NotificationService) SendSurveyLink(surveyID int, email, linkType string, now time.Time) (*domain.SurveyNotification, error) {
	survey, err := s.surveyRepo.GetByID(surveyID)
	if err != nil {
		return nil, fmt.Errorf("encuesta no encontrada: %w", err)
	}
	if survey.Status != domain.SurveyStatusPublished {
		return nil, fmt.Errorf("la encuesta %d no está publicada", surveyID)
	}

	accessURL, _, err := s.issuer.IssueURL(surveyID, email, linkType, now)
	if err != nil {
		return nil, err
	}
	if linkType == "" {
		linkType = LinkTypeStandard
	}

	notification := &domain.SurveyNotification{
		SurveyID: surveyID,
		Email:    email,
		Code:     uuid.NewString(),
		LinkType: linkType,
		SentAt:   now,
	}
	if err := s.notificationRepo.Create(notification); err != nil {
		return nil, fmt.Errorf("error al registrar notificación: %w", err)
	}

	if s.mailer != nil {
		expiresAt := now.Add(HashValidityWindow)
		if err := s.mailer.SendSurveyInvitation(email, survey.Title, accessURL, expiresAt); err != nil {
			return notification, fmt.Errorf("notificación registrada pero error al enviar correo: %w", err)
		}
	}

	return notification, nil
}

// ResendSurveyLink reenvía el enlace de una encuesta a un destinatario.
// Antes de emitir el hash nuevo purga los registros de acceso activos de la
// pareja encuesta+email para que el enlace nuevo se evalúe desde cero; las
// filas bloqueadas se conservan como historial. La limpieza de la
// notificación anterior y de sus registros de acceso ocurre aquí, en un paso
// explícito y visible, no en un hook del framework.
func (s *NotificationService) ResendSurveyLink(surveyID int, email, linkType string, now time.Time) (*domain.SurveyNotification, error) {
	previous, err := s.notificationRepo.GetBySurveyAndEmail(surveyID, email)
	if err != nil {
		return nil, fmt.Errorf("error al buscar notificación anterior: %w", err)
	}

	if previous != nil {
		if err := s.notificationRepo.DeleteWithTokenCleanup(previous.ID); err != nil {
			return nil, fmt.Errorf("error al limpiar notificación anterior: %w", err)
		}
	} else {
		// Sin notificación previa registrada: purgar directamente los
		// registros de acceso no bloqueados
		purged, err := s.tokenRepo.PurgeActiveForResend(surveyID, email)
		if err != nil {
			return nil, fmt.Errorf("error al purgar registros de acceso: %w", err)
		}
		if purged > 0 {
			log.Printf("reenvío: %d registros de acceso purgados para encuesta=%d email=%s", purged, surveyID, email)
		}
	}

	return s.SendSurveyLink(surveyID, email, linkType, now)
}
