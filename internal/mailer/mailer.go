// Package mailer sends credential emails over plain SMTP.
package mailer

import (
	"bytes"
	"fmt"
	"net/smtp"
	"text/template"

	"github.com/psw-tryout/tryout-backend/internal/config"
	"github.com/psw-tryout/tryout-backend/internal/model"
)

var credentialTemplate = template.Must(template.New("credential").Parse(
	`Halo {{.FullName}},

Akun try out kamu sudah siap. Simpan kartu ini baik-baik.

  Sekolah  : {{.School}}
  Hari     : Hari {{.Day}}
  Username : {{.Username}}
  Password : {{.Password}}

Login di {{.LoginURL}} saat try out dimulai.

Salam,
Panitia Try Out
`))

// Mailer sends mail through a single SMTP account.
type Mailer struct {
	host     string
	port     int
	username string
	password string
	from     string
}

// New creates a Mailer from config.
func New(cfg *config.Config) *Mailer {
	return &Mailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		from:     cfg.MailFrom,
	}
}

// SendCredential renders and sends one credential email.
func (m *Mailer) SendCredential(job *model.CredentialMailJob) error {
	var body bytes.Buffer
	if err := credentialTemplate.Execute(&body, job); err != nil {
		return fmt.Errorf("render mail body: %w", err)
	}

	msg := bytes.Buffer{}
	fmt.Fprintf(&msg, "From: %s\r\n", m.from)
	fmt.Fprintf(&msg, "To: %s\r\n", job.To)
	fmt.Fprintf(&msg, "Subject: Kartu Peserta Try Out\r\n")
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	msg.Write(body.Bytes())

	addr := fmt.Sprintf("%s:%d", m.host, m.port)
	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}
	return smtp.SendMail(addr, auth, m.from, []string{job.To}, msg.Bytes())
}
