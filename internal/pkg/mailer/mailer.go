package mailer

import (
	"fmt"
	"io"

	"github.com/aurak-emp/attendance/config"
	"gopkg.in/gomail.v2"
)

// Mailer delivers registration e-mails with the rendered barcode attached.
type Mailer interface {
	SendBarcode(to, attendeeName, eventName string, png []byte) error
}

type smtpMailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewMailer(cfg *config.EmailConfig) Mailer {
	return &smtpMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (m *smtpMailer) SendBarcode(to, attendeeName, eventName string, png []byte) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", fmt.Sprintf("Your registration for %s", eventName))
	msg.SetBody("text/plain", fmt.Sprintf(
		"Dear %s,\n\nThank you for registering for %s.\n"+
			"Please present the attached barcode at the entrance for check-in.\n\n"+
			"Office of Student Engagement",
		attendeeName, eventName,
	))

	msg.Attach("barcode.png", gomail.SetCopyFunc(func(w io.Writer) error {
		_, err := w.Write(png)
		return err
	}))

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send barcode email: %v", err)
	}

	return nil
}

// NopMailer используется, когда email.enabled=false: письма не отправляются,
// регистрация при этом остается успешной
type NopMailer struct{}

func (NopMailer) SendBarcode(to, attendeeName, eventName string, png []byte) error {
	return nil
}
