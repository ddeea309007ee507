package services

import (
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"storefront/internal/models"
)

func TestContactSendsToShopInbox(t *testing.T) {
	s := NewMailService(MailConfig{Address: "smtp.test:587", Host: "smtp.test", From: "shop@x.io", To: "inbox@x.io"}, zerolog.Nop())
	var gotTo []string
	var gotMsg string
	s.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotTo = to
		gotMsg = string(msg)
		return nil
	}
	err := s.Contact(models.ContactMessage{Name: "Ada", Email: "ada@x.io", Subject: "Hi", Message: "<b>hello</b>"})
	if err != nil {
		t.Fatal(err)
	}
	if len(gotTo) != 1 || gotTo[0] != "inbox@x.io" {
		t.Errorf("to = %v", gotTo)
	}
	if !strings.Contains(gotMsg, "Reply-To: ada@x.io") || !strings.Contains(gotMsg, "&lt;b&gt;hello&lt;/b&gt;") {
		t.Errorf("unexpected message %q", gotMsg)
	}
}

func TestContactRequiresConfigAndValidInput(t *testing.T) {
	s := NewMailService(MailConfig{}, zerolog.Nop())
	if err := s.Contact(models.ContactMessage{Name: "Ada", Email: "ada@x.io", Subject: "Hi", Message: "x"}); !errors.Is(err, ErrMailDisabled) {
		t.Errorf("want ErrMailDisabled, got %v", err)
	}
	var fe models.FieldErrors
	if err := s.Contact(models.ContactMessage{Email: "nope"}); !errors.As(err, &fe) {
		t.Errorf("want field errors, got %v", err)
	}
}
