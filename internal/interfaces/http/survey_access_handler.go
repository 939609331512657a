package http

import (
	"strconv"
	"time"

	"github.com/cristiansanta/Backend-Encuestas-sub000/internal/application"
	"github.com/gofiber/fiber/v2"
)

type SurveyAccessHandler struct {
	integrityService    *application.LinkIntegrityService
	notificationService *application.NotificationService
	rateLimiter         *application.RateLimiter
	validator           application.Validator
}

// NewSurveyAccessHandler crea una nueva instancia del handler
func NewSurveyAccessHandler(
	integrityService *application.LinkIntegrityService,
	notificationService *application.NotificationService,
	rateLimiter *application.RateLimiter,
) *SurveyAccessHandler {
	return &SurveyAccessHandler{
		integrityService:    integrityService,
		notificationService: notificationService,
		rateLimiter:         rateLimiter,
	}
}

// SendLinkRequest representa la petición para enviar un enlace de encuesta
type SendLinkRequest struct {
	Email    string `json:"email"`
	LinkType string `json:"linkType,omitempty"` // standard, fallback o reminder
}

// ValidateAccess valida el enlace de acceso presentado por un destinatario.
// GET /api/encuestas/:surveyId/acceso?email=...&hash=...
func (h *SurveyAccessHandler) ValidateAccess(c *fiber.Ctx) error {
	surveyID, err := strconv.Atoi(c.Params("surveyId"))
	if err != nil || surveyID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "ID de encuesta inválido",
		})
	}

	email := c.Query("email")
	hash := c.Query("hash")
	if hash == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "El parámetro hash es requerido",
		})
	}
	if err := h.validator.ValidateEmail(email); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if !h.rateLimiter.Allow(c.IP()) {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error": "Demasiados intentos. Intenta de nuevo en unos minutos",
		})
	}

	meta := application.RequestMetadata{
		IP:        c.IP(),
		UserAgent: c.Get("User-Agent"),
	}

	result := h.integrityService.ValidateAccess(surveyID, email, hash, meta, time.Now())
	if !result.Valid {
		return c.Status(statusForErrorKind(result.ErrorKind)).JSON(fiber.Map{
			"valid":     false,
			"errorKind": result.ErrorKind,
			"error":     messageForErrorKind(result.ErrorKind),
		})
	}

	return c.JSON(fiber.Map{
		"valid":         true,
		"isFirstAccess": result.IsFirstAccess,
	})
}

// SendLink envía el enlace de acceso de una encuesta a un destinatario.
// POST /api/encuestas/:surveyId/enviar
func (h *SurveyAccessHandler) SendLink(c *fiber.Ctx) error {
	return h.dispatchLink(c, false)
}

// ResendLink reenvía el enlace purgando antes los registros de acceso
// activos del destinatario.
// POST /api/encuestas/:surveyId/reenviar
func (h *SurveyAccessHandler) ResendLink(c *fiber.Ctx) error {
	return h.dispatchLink(c, true)
}

func (h *SurveyAccessHandler) dispatchLink(c *fiber.Ctx, resend bool) error {
	surveyID, err := strconv.Atoi(c.Params("surveyId"))
	if err != nil || surveyID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "ID de encuesta inválido",
		})
	}

	var req SendLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Formato de solicitud inválido",
		})
	}
	if err := h.validator.ValidateEmail(req.Email); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if req.LinkType != "" && !application.IsValidLinkType(req.LinkType) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Tipo de enlace inválido",
		})
	}

	now := time.Now()
	var notification interface{}
	if resend {
		notification, err = h.notificationService.ResendSurveyLink(surveyID, req.Email, req.LinkType, now)
	} else {
		notification, err = h.notificationService.SendSurveyLink(surveyID, req.Email, req.LinkType, now)
	}
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Enlace enviado exitosamente",
		"data":    notification,
	})
}

// ListAccesses obtiene los registros de acceso de una encuesta.
// GET /api/encuestas/:surveyId/accesos
func (h *SurveyAccessHandler) ListAccesses(c *fiber.Ctx) error {
	surveyID, err := strconv.Atoi(c.Params("surveyId"))
	if err != nil || surveyID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "ID de encuesta inválido",
		})
	}

	accesses, err := h.integrityService.ListAccesses(surveyID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"data": accesses,
	})
}

// statusForErrorKind traduce cada motivo de rechazo a un código HTTP
func statusForErrorKind(kind application.ErrorKind) int {
	switch kind {
	case application.ErrHashExpired:
		return fiber.StatusGone
	case application.ErrHashTampering, application.ErrLinkSharing, application.ErrLinkBlocked:
		return fiber.StatusForbidden
	case application.ErrInvalidFormat, application.ErrPatternMismatch:
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

// messageForErrorKind traduce cada motivo de rechazo a un mensaje distinto
// para el usuario final
func messageForErrorKind(kind application.ErrorKind) string {
	switch kind {
	case application.ErrHashExpired:
		return "Este enlace ha vencido. Solicita un enlace nuevo"
	case application.ErrHashTampering:
		return "El enlace no es válido"
	case application.ErrLinkSharing:
		return "Este enlace ya fue utilizado desde otra identidad o dispositivo"
	case application.ErrLinkBlocked:
		return "Este enlace fue bloqueado. Solicita un enlace nuevo"
	case application.ErrInvalidFormat, application.ErrPatternMismatch:
		return "El formato del enlace no es válido"
	default:
		return "No fue posible validar el enlace. Intenta de nuevo más tarde"
	}
}
