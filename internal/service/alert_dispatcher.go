package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/vms-api/internal/models"
	"github.com/noah-isme/vms-api/pkg/jobs"
)

const jobTypeHostAlert = "host_approval_request"

type hostAlertPayload struct {
	Visitor   *models.Visitor
	HostEmail string
}

// AlertDispatcher pushes host approval-request mails through the background
// queue so registration never blocks on SMTP.
type AlertDispatcher struct {
	queue    *jobs.Queue
	notifier Notifier
	baseURL  string
	logger   *zap.Logger
}

// NewAlertDispatcher builds the dispatcher and its queue. Call Start before
// dispatching and Stop on shutdown.
func NewAlertDispatcher(notifier Notifier, baseURL string, cfg jobs.QueueConfig) *AlertDispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &AlertDispatcher{
		notifier: notifier,
		baseURL:  baseURL,
		logger:   logger,
	}
	d.queue = jobs.NewQueue("host-alerts", d.handle, cfg)
	return d
}

// Start launches the queue workers.
func (d *AlertDispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Stop drains the workers.
func (d *AlertDispatcher) Stop() {
	d.queue.Stop()
}

// DispatchApprovalRequest enqueues the approval-request mail for the host.
func (d *AlertDispatcher) DispatchApprovalRequest(visitor *models.Visitor, hostEmail string) error {
	return d.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    jobTypeHostAlert,
		Payload: hostAlertPayload{Visitor: visitor, HostEmail: hostEmail},
	})
}

func (d *AlertDispatcher) handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(hostAlertPayload)
	if !ok {
		d.logger.Sugar().Errorw("unexpected job payload", "job_id", job.ID, "type", job.Type)
		return nil
	}
	if payload.Visitor == nil || payload.Visitor.ApprovalToken == nil {
		return nil
	}
	token := *payload.Visitor.ApprovalToken
	approveURL := fmt.Sprintf("%s/api/approvals/approve/%s", d.baseURL, token)
	rejectURL := fmt.Sprintf("%s/api/approvals/reject/%s", d.baseURL, token)
	return d.notifier.SendApprovalRequest(payload.HostEmail, payload.Visitor, approveURL, rejectURL)
}
