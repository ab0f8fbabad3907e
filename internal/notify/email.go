package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	mail "gopkg.in/mail.v2"

	"github.com/lsy88/uptime-sentry/internal/model"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	SSL      bool
}

// EmailChannel renders a down/recovered template and delivers it over
// SMTP to the configured address.
type EmailChannel struct {
	cfg SMTPConfig
}

func NewEmailChannel(cfg SMTPConfig) *EmailChannel {
	return &EmailChannel{cfg: cfg}
}

func (c *EmailChannel) Send(ctx context.Context, cfg model.AlertConfig, ev Event) error {
	if c.cfg.Host == "" {
		return fmt.Errorf("smtp not configured")
	}

	subject, plain, html := renderEmail(ev)

	m := mail.NewMessage()
	m.SetHeader("From", c.cfg.From)
	m.SetHeader("To", cfg.Target)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", plain)
	m.AddAlternative("text/html", html)

	d := mail.NewDialer(c.cfg.Host, c.cfg.Port, c.cfg.Username, c.cfg.Password)
	d.TLSConfig = &tls.Config{ServerName: c.cfg.Host}
	d.Timeout = 15 * time.Second
	if c.cfg.SSL {
		d.SSL = true
	} else {
		d.StartTLSPolicy = mail.OpportunisticStartTLS
	}

	done := make(chan error, 1)
	go func() {
		done <- d.DialAndSend(m)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send email: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(15 * time.Second):
		return fmt.Errorf("timeout sending email after 15s")
	}
}

func renderEmail(ev Event) (subject, plain, html string) {
	if ev.Type == EventRecovered {
		subject = fmt.Sprintf("Monitor Recovered: %s", ev.MonitorName)
		plain = fmt.Sprintf(`Monitor Recovered

%s is back online.

URL: %s
Recovered at: %s
`, ev.MonitorName, ev.MonitorURL, ev.Timestamp.Format(time.RFC3339))
		html = fmt.Sprintf(`
	<html>
		<body>
			<h2 style="color: #28a745;">✅ Monitor Recovered</h2>
			<p><strong>%s</strong> is back online.</p>
			<ul>
				<li><strong>URL:</strong> %s</li>
				<li><strong>Recovered at:</strong> %s</li>
			</ul>
			<hr>
			<small>Sent from Uptime Sentry</small>
		</body>
	</html>`, ev.MonitorName, ev.MonitorURL, ev.Timestamp.Format(time.RFC3339))
		return subject, plain, html
	}

	subject = fmt.Sprintf("Monitor Down: %s", ev.MonitorName)
	plain = fmt.Sprintf(`Monitor Down

%s is not responding.

URL: %s
Error: %s
Detected at: %s

Please check the endpoint.
`, ev.MonitorName, ev.MonitorURL, ev.Error, ev.Timestamp.Format(time.RFC3339))
	html = fmt.Sprintf(`
	<html>
		<body>
			<h2 style="color: #dc3545;">🔴 Monitor Down</h2>
			<p><strong>%s</strong> is not responding.</p>
			<ul>
				<li><strong>URL:</strong> %s</li>
				<li><strong>Error:</strong> %s</li>
				<li><strong>Detected at:</strong> %s</li>
			</ul>
			<p>Please check the endpoint.</p>
			<hr>
			<small>Sent from Uptime Sentry</small>
		</body>
	</html>`, ev.MonitorName, ev.MonitorURL, ev.Error, ev.Timestamp.Format(time.RFC3339))
	return subject, plain, html
}
