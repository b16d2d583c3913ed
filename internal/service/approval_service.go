package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/vms-api/internal/models"
	appErrors "github.com/noah-isme/vms-api/pkg/errors"
)

type approvalVisitorRepository interface {
	FindByID(ctx context.Context, id int64) (*models.Visitor, error)
	FindByToken(ctx context.Context, token string) (*models.Visitor, error)
	ListPending(ctx context.Context, hostEmployeeID int64, now time.Time) ([]models.Visitor, error)
	MarkApproved(ctx context.Context, id int64, remarks *string, now time.Time) (bool, error)
	MarkRejected(ctx context.Context, id int64, reason string, now time.Time) (bool, error)
	ExpirePending(ctx context.Context, now time.Time) ([]models.Visitor, error)
}

// ApprovalResult reports the outcome of a token decision, including whether
// the best-effort notification went out.
type ApprovalResult struct {
	Visitor    *models.Visitor `json:"visitor"`
	QRCode     string          `json:"qr_code,omitempty"`
	CheckInURL string          `json:"check_in_url,omitempty"`
	EmailSent  bool            `json:"email_sent"`
	EmailError string          `json:"email_error,omitempty"`
}

// SweepResult reports what an expiry sweep affected.
type SweepResult struct {
	Count    int              `json:"count"`
	Visitors []models.Visitor `json:"visitors"`
}

// PendingApproval is a pending request enriched with decision links.
type PendingApproval struct {
	models.Visitor
	ApproveURL string `json:"approve_url"`
	RejectURL  string `json:"reject_url"`
}

// ApprovalService owns token-based approval decisions and the expiry sweep.
type ApprovalService struct {
	repo     approvalVisitorRepository
	notifier Notifier
	encoder  CodeEncoder
	baseURL  string
	logger   *zap.Logger
	now      func() time.Time
}

// NewApprovalService constructs an ApprovalService.
func NewApprovalService(repo approvalVisitorRepository, notifier Notifier, encoder CodeEncoder, baseURL string, logger *zap.Logger) *ApprovalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApprovalService{
		repo:     repo,
		notifier: notifier,
		encoder:  encoder,
		baseURL:  baseURL,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Approve consumes a pending approval token. The decision is authoritative
// once persisted; a failed notification never rolls it back.
func (s *ApprovalService) Approve(ctx context.Context, token string, remarks string) (*ApprovalResult, error) {
	visitor, err := s.findByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if visitor.ApprovalExpiry != nil && visitor.ApprovalExpiry.Before(now) {
		return nil, appErrors.WithDetails(appErrors.ErrExpired, map[string]interface{}{
			"expired_at": visitor.ApprovalExpiry,
		})
	}
	if visitor.Status != models.StatusPending {
		return nil, s.statusConflict(visitor, "approve")
	}

	var remarksPtr *string
	if remarks != "" {
		remarksPtr = &remarks
	}
	ok, err := s.repo.MarkApproved(ctx, visitor.ID, remarksPtr, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve visitor")
	}
	if !ok {
		return nil, s.refreshConflict(ctx, visitor.ID, "approve")
	}

	visitor.Status = models.StatusApproved
	visitor.ApprovedAt = &now
	visitor.ApprovalRemarks = remarksPtr
	visitor.ApprovalToken = nil
	visitor.UpdatedAt = now

	qrCode, err := s.encoder.Encode(models.AdmissionPayload{
		VisitorID: visitor.ID,
		BadgeID:   visitor.BadgeID,
		Name:      visitor.FullName,
		Approved:  true,
		Timestamp: now.Format(time.RFC3339),
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate admission pass")
	}

	result := &ApprovalResult{
		Visitor:    visitor,
		QRCode:     qrCode,
		CheckInURL: fmt.Sprintf("%s/api/visitors/%d/checkin", s.baseURL, visitor.ID),
	}
	if visitor.Email != "" {
		if err := s.notifier.SendApproval(visitor, qrCode); err != nil {
			s.logger.Sugar().Warnw("approval mail failed", "visitor_id", visitor.ID, "error", err)
			result.EmailError = "failed to send email notification"
		} else {
			result.EmailSent = true
		}
	}
	return result, nil
}

// Reject consumes a pending token with a reason. A pending request can always
// be rejected, even past its approval expiry.
func (s *ApprovalService) Reject(ctx context.Context, token string, reason string) (*ApprovalResult, error) {
	visitor, err := s.findByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if visitor.Status != models.StatusPending {
		return nil, s.statusConflict(visitor, "reject")
	}

	if reason == "" {
		reason = "No reason provided"
	}
	now := s.now()
	ok, err := s.repo.MarkRejected(ctx, visitor.ID, reason, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject visitor")
	}
	if !ok {
		return nil, s.refreshConflict(ctx, visitor.ID, "reject")
	}

	visitor.Status = models.StatusRejected
	visitor.RejectedAt = &now
	visitor.RejectionReason = &reason
	visitor.ApprovalToken = nil
	visitor.UpdatedAt = now

	result := &ApprovalResult{Visitor: visitor}
	if visitor.Email != "" {
		if err := s.notifier.SendRejection(visitor, reason); err != nil {
			s.logger.Sugar().Warnw("rejection mail failed", "visitor_id", visitor.ID, "error", err)
			result.EmailError = "failed to send email notification"
		} else {
			result.EmailSent = true
		}
	}
	return result, nil
}

// PendingApprovals returns unexpired pending requests, optionally narrowed to
// one host employee, with their decision links.
func (s *ApprovalService) PendingApprovals(ctx context.Context, hostEmployeeID int64) ([]PendingApproval, error) {
	visitors, err := s.repo.ListPending(ctx, hostEmployeeID, s.now())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending approvals")
	}
	pending := make([]PendingApproval, 0, len(visitors))
	for _, v := range visitors {
		item := PendingApproval{Visitor: v}
		if v.ApprovalToken != nil {
			item.ApproveURL = fmt.Sprintf("%s/api/approvals/approve/%s", s.baseURL, *v.ApprovalToken)
			item.RejectURL = fmt.Sprintf("%s/api/approvals/reject/%s", s.baseURL, *v.ApprovalToken)
		}
		pending = append(pending, item)
	}
	return pending, nil
}

// SweepExpired moves lapsed pending requests to expired and clears their
// tokens. Idempotent: a second consecutive run affects zero rows.
func (s *ApprovalService) SweepExpired(ctx context.Context) (*SweepResult, error) {
	expired, err := s.repo.ExpirePending(ctx, s.now())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sweep expired approvals")
	}
	if len(expired) > 0 {
		s.logger.Sugar().Infow("expired pending approvals swept", "count", len(expired))
	}
	return &SweepResult{Count: len(expired), Visitors: expired}, nil
}

func (s *ApprovalService) findByToken(ctx context.Context, token string) (*models.Visitor, error) {
	visitor, err := s.repo.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "invalid approval token")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load visitor")
	}
	return visitor, nil
}

func (s *ApprovalService) statusConflict(visitor *models.Visitor, action string) error {
	return appErrors.WithDetails(
		appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("visitor is already %s, cannot %s", visitor.Status, action)),
		map[string]interface{}{"current_status": visitor.Status},
	)
}

// refreshConflict re-reads the row after a guarded update matched nothing so
// the conflict message names the winning status.
func (s *ApprovalService) refreshConflict(ctx context.Context, id int64, action string) error {
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("visitor request already processed, cannot %s", action))
	}
	return s.statusConflict(current, action)
}
