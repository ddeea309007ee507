package services

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"

	"github.com/rs/zerolog"

	"storefront/internal/models"
)

var ErrMailDisabled = errors.New("email delivery is not configured")

type MailConfig struct {
	Address  string
	Host     string
	From     string
	Password string
	To       string
}

type MailService struct {
	cfg      MailConfig
	logger   zerolog.Logger
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

var contactTemplate = template.Must(template.New("contact").Parse(`<p><strong>{{.Name}}</strong> &lt;{{.Email}}&gt; wrote:</p>
<p>{{.Message}}</p>`))

var headerSafe = strings.NewReplacer("\r", " ", "\n", " ")

func NewMailService(cfg MailConfig, logger zerolog.Logger) *MailService {
	return &MailService{cfg: cfg, logger: logger, sendMail: smtp.SendMail}
}

func (s *MailService) Enabled() bool {
	return s.cfg.Address != "" && s.cfg.From != "" && s.cfg.To != ""
}

// Contact forwards a visitor's contact form to the shop inbox.
func (s *MailService) Contact(msg models.ContactMessage) error {
	if err := models.Validate(msg); err != nil {
		return err
	}
	if !s.Enabled() {
		return ErrMailDisabled
	}

	var body bytes.Buffer
	if err := contactTemplate.Execute(&body, msg); err != nil {
		return fmt.Errorf("template execution error: %w", err)
	}

	message := fmt.Sprintf(
		"From: %s\r\nReply-To: %s\r\nSubject: %s\r\nMIME-version: 1.0;\r\nContent-Type: text/html; charset=\"UTF-8\";\r\n\r\n%s",
		s.cfg.From,
		msg.Email,
		"[Contact] "+headerSafe.Replace(msg.Subject),
		body.String(),
	)

	auth := smtp.PlainAuth("", s.cfg.From, s.cfg.Password, s.cfg.Host)
	if err := s.sendMail(s.cfg.Address, auth, s.cfg.From, []string{s.cfg.To}, []byte(message)); err != nil {
		s.logger.Error().Err(err).Msg("Error sending contact email")
		return fmt.Errorf("failed to send email: %w", err)
	}
	s.logger.Info().Str("from", msg.Email).Msg("Contact message delivered")
	return nil
}
