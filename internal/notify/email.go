// Package notify sends email notifications about generated transactions.
package notify

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/Dan9191/fintrack/internal/config"
	"github.com/Dan9191/fintrack/internal/models"
	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"
)

// Sender handles sending emails via SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
	send   func(e *email.Email) error
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	s := &Sender{cfg: cfg, logger: logger}
	s.send = s.sendSMTP
	return s
}

func (s *Sender) sendSMTP(e *email.Email) error {
	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	var auth smtp.Auth
	if s.cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	}
	return e.Send(addr, auth)
}

// SendRecurringDigest emails the user the transactions their recurring rules generated
func (s *Sender) SendRecurringDigest(user *models.User, txns []models.Transaction) error {
	if len(txns) == 0 {
		return nil
	}

	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{user.Email}
	e.Subject = DigestSubject(len(txns))
	e.Text = []byte(DigestBody(user.Username, txns, s.cfg.CurrencySymbol))

	if err := s.send(e); err != nil {
		s.logger.Errorf("Failed to send digest to %s: %v", user.Email, err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Infof("Email sent to %s: %s", user.Email, e.Subject)
	return nil
}

// DigestSubject returns the subject line of a digest with n transactions
func DigestSubject(n int) string {
	if n == 1 {
		return "1 recurring transaction recorded"
	}
	return fmt.Sprintf("%d recurring transactions recorded", n)
}

// DigestBody formats the plain text body of a digest
func DigestBody(username string, txns []models.Transaction, currency string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", username)
	b.WriteString("The following transactions were recorded from your recurring rules:\n\n")
	for _, t := range txns {
		sign := "+"
		if t.IsExpense() {
			sign = "-"
		}
		fmt.Fprintf(&b, "  %s  %-24s %-14s %s%s%s\n",
			t.Date.Format("2006-01-02"), t.Name, t.Category, sign, currency, t.Magnitude().StringFixed(2))
	}
	b.WriteString("\nBest regards,\nFintrack")
	return b.String()
}
