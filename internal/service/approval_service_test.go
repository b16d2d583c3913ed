package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/vms-api/internal/models"
	appErrors "github.com/noah-isme/vms-api/pkg/errors"
)

type approvalRepoStub struct {
	byToken     map[string]*models.Visitor
	byID        map[int64]*models.Visitor
	pending     []models.Visitor
	expired     []models.Visitor
	approveOK   bool
	rejectOK    bool
	approveErr  error
	markedID    int64
	markRemarks *string
}

func (s *approvalRepoStub) FindByID(ctx context.Context, id int64) (*models.Visitor, error) {
	if v, ok := s.byID[id]; ok {
		return v, nil
	}
	return nil, sql.ErrNoRows
}

func (s *approvalRepoStub) FindByToken(ctx context.Context, token string) (*models.Visitor, error) {
	if v, ok := s.byToken[token]; ok {
		return v, nil
	}
	return nil, sql.ErrNoRows
}

func (s *approvalRepoStub) ListPending(ctx context.Context, hostEmployeeID int64, now time.Time) ([]models.Visitor, error) {
	return s.pending, nil
}

func (s *approvalRepoStub) MarkApproved(ctx context.Context, id int64, remarks *string, now time.Time) (bool, error) {
	s.markedID = id
	s.markRemarks = remarks
	return s.approveOK, s.approveErr
}

func (s *approvalRepoStub) MarkRejected(ctx context.Context, id int64, reason string, now time.Time) (bool, error) {
	s.markedID = id
	return s.rejectOK, nil
}

func (s *approvalRepoStub) ExpirePending(ctx context.Context, now time.Time) ([]models.Visitor, error) {
	return s.expired, nil
}

func pendingVisitor(token string, expiry time.Time) *models.Visitor {
	return &models.Visitor{
		ID:             7,
		BadgeID:        "VIS-1700000000000",
		FullName:       "Ravi Kumar",
		Email:          "ravi@example.com",
		Status:         models.StatusPending,
		ApprovalToken:  strPtr(token),
		ApprovalExpiry: timePtr(expiry),
	}
}

func TestApprovalServiceApprove(t *testing.T) {
	repo := &approvalRepoStub{
		byToken:   map[string]*models.Visitor{"tok-1": pendingVisitor("tok-1", time.Now().Add(time.Hour))},
		approveOK: true,
	}
	notifier := &notifierStub{}
	encoder := &encoderStub{}

	svc := NewApprovalService(repo, notifier, encoder, "http://localhost:8080", zap.NewNop())
	result, err := svc.Approve(context.Background(), "tok-1", "front gate")
	require.NoError(t, err)

	assert.Equal(t, models.StatusApproved, result.Visitor.Status)
	assert.Nil(t, result.Visitor.ApprovalToken)
	assert.NotNil(t, result.Visitor.ApprovedAt)
	assert.True(t, strings.HasPrefix(result.QRCode, "data:image/png;base64,"))
	assert.True(t, result.EmailSent)
	require.NotNil(t, repo.markRemarks)
	assert.Equal(t, "front gate", *repo.markRemarks)
}

func TestApprovalServiceApproveEmailFailureKeepsDecision(t *testing.T) {
	repo := &approvalRepoStub{
		byToken:   map[string]*models.Visitor{"tok-1": pendingVisitor("tok-1", time.Now().Add(time.Hour))},
		approveOK: true,
	}
	notifier := &notifierStub{err: assert.AnError}

	svc := NewApprovalService(repo, notifier, &encoderStub{}, "http://localhost:8080", zap.NewNop())
	result, err := svc.Approve(context.Background(), "tok-1", "")
	require.NoError(t, err)

	assert.Equal(t, models.StatusApproved, result.Visitor.Status)
	assert.False(t, result.EmailSent)
	assert.NotEmpty(t, result.EmailError)
}

func TestApprovalServiceApproveExpiredToken(t *testing.T) {
	repo := &approvalRepoStub{
		byToken: map[string]*models.Visitor{"tok-1": pendingVisitor("tok-1", time.Now().Add(-time.Minute))},
	}

	svc := NewApprovalService(repo, &notifierStub{}, &encoderStub{}, "http://localhost:8080", zap.NewNop())
	_, err := svc.Approve(context.Background(), "tok-1", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrExpired.Code, appErrors.FromError(err).Code)
}

func TestApprovalServiceApproveAlreadyDecided(t *testing.T) {
	decided := pendingVisitor("tok-1", time.Now().Add(time.Hour))
	decided.Status = models.StatusRejected
	repo := &approvalRepoStub{byToken: map[string]*models.Visitor{"tok-1": decided}}

	svc := NewApprovalService(repo, &notifierStub{}, &encoderStub{}, "http://localhost:8080", zap.NewNop())
	_, err := svc.Approve(context.Background(), "tok-1", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestApprovalServiceApproveLostRace(t *testing.T) {
	visitor := pendingVisitor("tok-1", time.Now().Add(time.Hour))
	repo := &approvalRepoStub{
		byToken:   map[string]*models.Visitor{"tok-1": visitor},
		byID:      map[int64]*models.Visitor{7: {ID: 7, Status: models.StatusRejected}},
		approveOK: false,
	}

	svc := NewApprovalService(repo, &notifierStub{}, &encoderStub{}, "http://localhost:8080", zap.NewNop())
	_, err := svc.Approve(context.Background(), "tok-1", "")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Equal(t, models.StatusRejected, appErr.Details["current_status"])
}

func TestApprovalServiceApproveUnknownToken(t *testing.T) {
	svc := NewApprovalService(&approvalRepoStub{}, &notifierStub{}, &encoderStub{}, "http://localhost:8080", zap.NewNop())
	_, err := svc.Approve(context.Background(), "missing", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestApprovalServiceRejectDefaultReason(t *testing.T) {
	repo := &approvalRepoStub{
		byToken:  map[string]*models.Visitor{"tok-1": pendingVisitor("tok-1", time.Now().Add(time.Hour))},
		rejectOK: true,
	}
	notifier := &notifierStub{}

	svc := NewApprovalService(repo, notifier, &encoderStub{}, "http://localhost:8080", zap.NewNop())
	result, err := svc.Reject(context.Background(), "tok-1", "")
	require.NoError(t, err)

	assert.Equal(t, models.StatusRejected, result.Visitor.Status)
	require.NotNil(t, result.Visitor.RejectionReason)
	assert.Equal(t, "No reason provided", *result.Visitor.RejectionReason)
	require.Len(t, notifier.rejections, 1)
	assert.Equal(t, "No reason provided", notifier.rejections[0])
}

func TestApprovalServiceRejectPastExpiryAllowed(t *testing.T) {
	repo := &approvalRepoStub{
		byToken:  map[string]*models.Visitor{"tok-1": pendingVisitor("tok-1", time.Now().Add(-time.Hour))},
		rejectOK: true,
	}

	svc := NewApprovalService(repo, &notifierStub{}, &encoderStub{}, "http://localhost:8080", zap.NewNop())
	result, err := svc.Reject(context.Background(), "tok-1", "host unavailable")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, result.Visitor.Status)
}

func TestApprovalServicePendingApprovalsLinks(t *testing.T) {
	repo := &approvalRepoStub{
		pending: []models.Visitor{*pendingVisitor("tok-9", time.Now().Add(time.Hour))},
	}

	svc := NewApprovalService(repo, &notifierStub{}, &encoderStub{}, "http://localhost:8080", zap.NewNop())
	pending, err := svc.PendingApprovals(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "http://localhost:8080/api/approvals/approve/tok-9", pending[0].ApproveURL)
	assert.Equal(t, "http://localhost:8080/api/approvals/reject/tok-9", pending[0].RejectURL)
}

func TestApprovalServiceSweepExpired(t *testing.T) {
	repo := &approvalRepoStub{
		expired: []models.Visitor{{ID: 1, Status: models.StatusExpired}, {ID: 2, Status: models.StatusExpired}},
	}

	svc := NewApprovalService(repo, &notifierStub{}, &encoderStub{}, "http://localhost:8080", zap.NewNop())
	result, err := svc.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Count)
}
