package application

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// LinkIssuer construye las URLs firmadas de acceso a encuestas que se envían
// por correo a los destinatarios. Solo emite el formato firmado vigente;
// los formatos legacy nunca se generan.
type LinkIssuer struct {
	codec   *HashCodec
	baseURL string
}

// NewLinkIssuer crea una nueva instancia del emisor de enlaces
func NewLinkIssuer(codec *HashCodec, baseURL string) *LinkIssuer {
	return &LinkIssuer{
		codec:   codec,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// IssueURL genera la URL de acceso para un destinatario. Si el tipo de enlace
// está vacío se emite uno estándar. Devuelve la URL completa y el hash
// embebido en ella.
func (i *LinkIssuer) IssueURL(surveyID int, email, linkType string, now time.Time) (string, string, error) {
	if linkType == "" {
		linkType = LinkTypeStandard
	}
	if !IsValidLinkType(linkType) {
		return "", "", fmt.Errorf("tipo de enlace inválido: %s", linkType)
	}

	hash := i.codec.Encode(surveyID, email, linkType, now)
	accessURL := fmt.Sprintf("%s/survey-view-manual/%d?email=%s&hash=%s",
		i.baseURL, surveyID, url.QueryEscape(email), hash)
	return accessURL, hash, nil
}
