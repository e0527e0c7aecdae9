package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	mail "github.com/go-mail/mail"
	"go.uber.org/zap"

	"github.com/forense-lab/peritia-trust/internal/observability/logger"
)

// SMTPConfig configura el dispatcher SMTP.
type SMTPConfig struct {
	Host               string
	Port               int
	From               string
	User               string
	Pass               string
	StartTLS           bool
	InsecureSkipVerify bool // solo dev
	BaseURL            string
}

// SMTPDispatcher envía por SMTP en una goroutine por mensaje. El cuerpo
// es texto plano mínimo: el producto renderiza sus propios templates
// cuando reemplaza este driver.
type SMTPDispatcher struct {
	cfg SMTPConfig
	log *zap.Logger
}

func NewSMTP(cfg SMTPConfig) *SMTPDispatcher {
	return &SMTPDispatcher{cfg: cfg, log: logger.Named("email.smtp")}
}

var subjects = map[Kind]string{
	KindVerification:    "Verificá tu dirección de email",
	KindEmailChange:     "Confirmá tu nuevo email",
	KindPasswordReset:   "Restablecé tu contraseña",
	KindAccountDeletion: "Confirmá la baja de tu cuenta",
}

func (d *SMTPDispatcher) Dispatch(ctx context.Context, msg Message) {
	// Fire-and-forget: el request no espera al SMTP
	go func() {
		if err := d.send(msg); err != nil {
			d.log.Error("email send failed",
				logger.Kind(string(msg.Kind)), logger.Err(err))
			return
		}
		d.log.Debug("email sent", logger.Kind(string(msg.Kind)))
	}()
}

func (d *SMTPDispatcher) send(msg Message) error {
	m := mail.NewMessage()
	m.SetHeader("From", d.cfg.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", subjects[msg.Kind])

	link := fmt.Sprintf("%s/confirm/%s?token=%s", d.cfg.BaseURL, msg.Kind, msg.Token)
	body := fmt.Sprintf("Usá este enlace dentro de los próximos %s:\n\n%s\n\nSi no pediste esto, ignorá este mail.",
		msg.TTL.Round(time.Second), link)
	m.SetBody("text/plain", body)

	dialer := mail.NewDialer(d.cfg.Host, d.cfg.Port, d.cfg.User, d.cfg.Pass)
	if d.cfg.StartTLS {
		dialer.StartTLSPolicy = mail.MandatoryStartTLS
	}
	if d.cfg.InsecureSkipVerify {
		dialer.TLSConfig = &tls.Config{InsecureSkipVerify: true, ServerName: d.cfg.Host}
	}
	return dialer.DialAndSend(m)
}
