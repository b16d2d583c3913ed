package service

import "github.com/noah-isme/vms-api/internal/models"

// instrumentedNotifier decorates a Notifier with mail outcome counters.
type instrumentedNotifier struct {
	next    Notifier
	metrics *MetricsService
}

// InstrumentNotifier wraps the notifier so every send is counted by kind
// and outcome. Returns next unchanged when metrics is nil.
func InstrumentNotifier(next Notifier, metrics *MetricsService) Notifier {
	if metrics == nil {
		return next
	}
	return &instrumentedNotifier{next: next, metrics: metrics}
}

func (n *instrumentedNotifier) SendApprovalRequest(hostEmail string, v *models.Visitor, approveURL, rejectURL string) error {
	err := n.next.SendApprovalRequest(hostEmail, v, approveURL, rejectURL)
	n.metrics.RecordMail("approval_request", err == nil)
	return err
}

func (n *instrumentedNotifier) SendApproval(v *models.Visitor, qrDataURL string) error {
	err := n.next.SendApproval(v, qrDataURL)
	n.metrics.RecordMail("approval", err == nil)
	return err
}

func (n *instrumentedNotifier) SendRejection(v *models.Visitor, reason string) error {
	err := n.next.SendRejection(v, reason)
	n.metrics.RecordMail("rejection", err == nil)
	return err
}

func (n *instrumentedNotifier) SendPreApproval(v *models.Visitor, qrDataURL string) error {
	err := n.next.SendPreApproval(v, qrDataURL)
	n.metrics.RecordMail("pre_approval", err == nil)
	return err
}
