package application

import (
	"fmt"
	"time"

	"github.com/cristiansanta/Backend-Encuestas-sub000/internal/domain"
)

// fakeAccessTokenRepo implementa domain.AccessTokenRepository en memoria
// para las pruebas del servicio de integridad
type fakeAccessTokenRepo struct {
	tokens []*domain.AccessToken
	nextID int
	// failAll simula un almacén caído
	failAll bool
	// findMisses hace que las próximas N llamadas a Find devuelvan nil
	// aunque la fila exista, para simular la carrera entre el Find del
	// validador y un insert concurrente
	findMisses int
}

func newFakeAccessTokenRepo() *fakeAccessTokenRepo {
	return &fakeAccessTokenRepo{nextID: 1}
}

func (r *fakeAccessTokenRepo) Find(surveyID int, email, hash string) (*domain.AccessToken, error) {
	if r.failAll {
		return nil, fmt.Errorf("almacén no disponible")
	}
	if r.findMisses > 0 {
		r.findMisses--
		return nil, nil
	}
	for _, t := range r.tokens {
		if t.SurveyID == surveyID && t.Email == email && t.Hash == hash {
			return t, nil
		}
	}
	return nil, nil
}

func (r *fakeAccessTokenRepo) FindByHashAcrossEmails(surveyID int, hash, excludingEmail string) (*domain.AccessToken, error) {
	if r.failAll {
		return nil, fmt.Errorf("almacén no disponible")
	}
	for _, t := range r.tokens {
		if t.SurveyID == surveyID && t.Hash == hash && t.Email != excludingEmail {
			return t, nil
		}
	}
	return nil, nil
}

func (r *fakeAccessTokenRepo) Create(token *domain.AccessToken) (*domain.AccessToken, bool, error) {
	if r.failAll {
		return nil, false, fmt.Errorf("almacén no disponible")
	}
	if existing, _ := r.Find(token.SurveyID, token.Email, token.Hash); existing != nil {
		return existing, false, nil
	}
	token.ID = r.nextID
	r.nextID++
	r.tokens = append(r.tokens, token)
	return token, true, nil
}

func (r *fakeAccessTokenRepo) RecordAccess(token *domain.AccessToken, now time.Time) error {
	token.LastAccessAt = now
	token.AccessCount++
	return nil
}

func (r *fakeAccessTokenRepo) RecordDeviceChange(token *domain.AccessToken, newFingerprint, newIP, newUserAgent string, now time.Time) error {
	previous := token.DeviceFingerprint
	token.PreviousDeviceFingerprint = &previous
	token.DeviceFingerprint = newFingerprint
	token.IPAddress = newIP
	token.UserAgent = newUserAgent
	token.DeviceChangesCount++
	changeAt := now
	token.LastDeviceChangeAt = &changeAt
	return nil
}

func (r *fakeAccessTokenRepo) Block(token *domain.AccessToken) error {
	token.Status = domain.AccessStatusBlocked
	return nil
}

func (r *fakeAccessTokenRepo) PurgeActiveForResend(surveyID int, email string) (int64, error) {
	var kept []*domain.AccessToken
	var purged int64
	for _, t := range r.tokens {
		if t.SurveyID == surveyID && t.Email == email && t.Status != domain.AccessStatusBlocked {
			purged++
			continue
		}
		kept = append(kept, t)
	}
	r.tokens = kept
	return purged, nil
}

func (r *fakeAccessTokenRepo) ExpireStale(maxAge time.Duration) (int64, error) {
	var expired int64
	cutoff := time.Now().Add(-maxAge)
	for _, t := range r.tokens {
		if t.Status == domain.AccessStatusActive && t.FirstAccessAt.Before(cutoff) {
			t.Status = domain.AccessStatusExpired
			expired++
		}
	}
	return expired, nil
}

func (r *fakeAccessTokenRepo) GetBySurvey(surveyID int) ([]domain.AccessToken, error) {
	var tokens []domain.AccessToken
	for _, t := range r.tokens {
		if t.SurveyID == surveyID {
			tokens = append(tokens, *t)
		}
	}
	return tokens, nil
}

// fakeSurveyRepo devuelve encuestas fijas por ID
type fakeSurveyRepo struct {
	surveys map[int]*domain.Survey
}

func (r *fakeSurveyRepo) GetByID(surveyID int) (*domain.Survey, error) {
	survey, ok := r.surveys[surveyID]
	if !ok {
		return nil, fmt.Errorf("encuesta %d no encontrada", surveyID)
	}
	return survey, nil
}

// fakeNotificationRepo implementa el repositorio de notificaciones en memoria
type fakeNotificationRepo struct {
	notifications []*domain.SurveyNotification
	tokenRepo     *fakeAccessTokenRepo
	nextID        int
}

func newFakeNotificationRepo(tokenRepo *fakeAccessTokenRepo) *fakeNotificationRepo {
	return &fakeNotificationRepo{tokenRepo: tokenRepo, nextID: 1}
}

func (r *fakeNotificationRepo) Create(notification *domain.SurveyNotification) error {
	notification.ID = r.nextID
	r.nextID++
	r.notifications = append(r.notifications, notification)
	return nil
}

func (r *fakeNotificationRepo) GetBySurveyAndEmail(surveyID int, email string) (*domain.SurveyNotification, error) {
	var latest *domain.SurveyNotification
	for _, n := range r.notifications {
		if n.SurveyID == surveyID && n.Email == email {
			if latest == nil || n.SentAt.After(latest.SentAt) {
				latest = n
			}
		}
	}
	return latest, nil
}

func (r *fakeNotificationRepo) DeleteWithTokenCleanup(notificationID int) error {
	for i, n := range r.notifications {
		if n.ID == notificationID {
			r.notifications = append(r.notifications[:i], r.notifications[i+1:]...)
			_, err := r.tokenRepo.PurgeActiveForResend(n.SurveyID, n.Email)
			return err
		}
	}
	return fmt.Errorf("notificación %d no encontrada", notificationID)
}

// fakeMailer registra los correos enviados
type fakeMailer struct {
	sent []sentMail
	fail bool
}

type sentMail struct {
	to        string
	title     string
	accessURL string
}

func (m *fakeMailer) SendSurveyInvitation(to, surveyTitle, accessURL string, _ time.Time) error {
	if m.fail {
		return fmt.Errorf("SMTP no disponible")
	}
	m.sent = append(m.sent, sentMail{to: to, title: surveyTitle, accessURL: accessURL})
	return nil
}
