package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"go.uber.org/zap"
	gomail "gopkg.in/gomail.v2"

	"github.com/noah-isme/vms-api/internal/models"
	"github.com/noah-isme/vms-api/pkg/config"
)

// Mailer sends visit lifecycle notifications over SMTP. When SMTP is
// disabled the mailer logs the would-be message and reports success, which
// keeps development environments mail-free.
type Mailer struct {
	dialer  *gomail.Dialer
	from    string
	enabled bool
	logger  *zap.Logger
}

// New builds a Mailer from SMTP configuration.
func New(cfg config.SMTPConfig, logger *zap.Logger) *Mailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Mailer{
		from:    cfg.From,
		enabled: cfg.Enabled,
		logger:  logger,
	}
	if cfg.Enabled {
		m.dialer = gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	}
	return m
}

// SendApprovalRequest alerts the host employee that a visitor is waiting for
// a decision, with direct approve/reject links.
func (m *Mailer) SendApprovalRequest(hostEmail string, v *models.Visitor, approveURL, rejectURL string) error {
	body, err := render(approvalRequestTmpl, map[string]interface{}{
		"Visitor":    v,
		"ApproveURL": approveURL,
		"RejectURL":  rejectURL,
	})
	if err != nil {
		return err
	}
	return m.send(hostEmail, "New Visitor Approval Request", body)
}

// SendApproval notifies the visitor that the visit was approved, embedding
// the QR admission pass.
func (m *Mailer) SendApproval(v *models.Visitor, qrDataURL string) error {
	body, err := render(approvedTmpl, map[string]interface{}{
		"Visitor": v,
		"QRCode":  template.URL(qrDataURL),
	})
	if err != nil {
		return err
	}
	return m.send(v.Email, "Visitor Request Approved - Access Granted", body)
}

// SendRejection notifies the visitor that the visit was declined or
// cancelled, including the reason.
func (m *Mailer) SendRejection(v *models.Visitor, reason string) error {
	body, err := render(rejectedTmpl, map[string]interface{}{
		"Visitor": v,
		"Reason":  reason,
	})
	if err != nil {
		return err
	}
	return m.send(v.Email, "Visitor Request Declined", body)
}

// SendPreApproval sends the visitor a quick-access pass for a scheduled
// visit window.
func (m *Mailer) SendPreApproval(v *models.Visitor, qrDataURL string) error {
	data := map[string]interface{}{
		"Visitor": v,
		"QRCode":  template.URL(qrDataURL),
	}
	if v.ScheduledArrivalStart != nil {
		data["WindowStart"] = v.ScheduledArrivalStart.Format(time.RFC1123)
	}
	if v.ScheduledArrivalEnd != nil {
		data["WindowEnd"] = v.ScheduledArrivalEnd.Format(time.RFC1123)
	}
	body, err := render(preApprovedTmpl, data)
	if err != nil {
		return err
	}
	return m.send(v.Email, "Pre-Approved Visit - Quick Access Pass", body)
}

func (m *Mailer) send(to, subject, body string) error {
	if to == "" {
		return fmt.Errorf("recipient address missing")
	}
	if !m.enabled {
		m.logger.Sugar().Infow("smtp disabled, skipping mail", "to", to, "subject", subject)
		return nil
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)
	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

func render(tmpl *template.Template, data interface{}) (string, error) {
	buf := &bytes.Buffer{}
	if err := tmpl.Execute(buf, data); err != nil {
		return "", fmt.Errorf("render mail template: %w", err)
	}
	return buf.String(), nil
}
