package services

import (
	"fmt"
	"log/slog"
	"strconv"

	"gopkg.in/gomail.v2"

	"github.com/binsarkiel/chatto/app/config"
)

type EmailService struct {
	from    string
	dialer  *gomail.Dialer
	enabled bool
	logger  *slog.Logger
}

func NewEmailService(config config.EmailConfig, logger *slog.Logger) *EmailService {
	port, _ := strconv.Atoi(config.SMTPPort)
	dialer := gomail.NewDialer(config.SMTPHost, port, config.Username, config.Password)

	return &EmailService{
		logger:  logger,
		dialer:  dialer,
		from:    config.From,
		enabled: config.SMTPHost != "",
	}
}

// SendWelcomeEmail greets a freshly registered user. Best effort: a no-op
// when no SMTP host is configured.
func (e *EmailService) SendWelcomeEmail(email, username string) error {
	if !e.enabled {
		e.logger.Debug("email disabled, skipping welcome mail", "email", email)
		return nil
	}

	message := gomail.NewMessage()
	message.SetHeader("From", e.from)
	message.SetHeader("To", email)
	message.SetHeader("Subject", "Welcome to Chatto")

	htmlBody := fmt.Sprintf(`
		<!DOCTYPE html>
		<html>
		<body>
			<h2>Welcome, %s!</h2>
			<p>Your account is ready. Sign in and start a conversation.</p>
			<br>
			<p>The Chatto Team</p>
		</body>
		</html>
	`, username)

	message.SetBody("text/html", htmlBody)
	message.AddAlternative("text/plain", fmt.Sprintf("Welcome, %s! Your account is ready.", username))

	if err := e.dialer.DialAndSend(message); err != nil {
		e.logger.Error("failed to send welcome email", "error", err, "email", email)
		return fmt.Errorf("failed to send welcome email: %w", err)
	}

	e.logger.Info("welcome email sent", "email", email)
	return nil
}
