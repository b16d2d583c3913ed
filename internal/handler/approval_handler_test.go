package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/vms-api/internal/models"
	"github.com/noah-isme/vms-api/internal/service"
)

type approvalRepoMock struct {
	byToken map[string]*models.Visitor
}

func (m *approvalRepoMock) FindByID(ctx context.Context, id int64) (*models.Visitor, error) {
	for _, v := range m.byToken {
		if v.ID == id {
			return v, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *approvalRepoMock) FindByToken(ctx context.Context, token string) (*models.Visitor, error) {
	if v, ok := m.byToken[token]; ok {
		return v, nil
	}
	return nil, sql.ErrNoRows
}

func (m *approvalRepoMock) ListPending(ctx context.Context, hostEmployeeID int64, now time.Time) ([]models.Visitor, error) {
	return nil, nil
}

func (m *approvalRepoMock) MarkApproved(ctx context.Context, id int64, remarks *string, now time.Time) (bool, error) {
	return true, nil
}

func (m *approvalRepoMock) MarkRejected(ctx context.Context, id int64, reason string, now time.Time) (bool, error) {
	return true, nil
}

func (m *approvalRepoMock) ExpirePending(ctx context.Context, now time.Time) ([]models.Visitor, error) {
	return nil, nil
}

type notifierMock struct{}

func (notifierMock) SendApprovalRequest(hostEmail string, v *models.Visitor, approveURL, rejectURL string) error {
	return nil
}
func (notifierMock) SendApproval(v *models.Visitor, qrDataURL string) error { return nil }
func (notifierMock) SendRejection(v *models.Visitor, reason string) error { return nil }
func (notifierMock) SendPreApproval(v *models.Visitor, qrDataURL string) error { return nil }

type encoderMock struct{}

func (encoderMock) Encode(payload interface{}) (string, error) {
	return "data:image/png;base64,AAAA", nil
}

func pendingVisitorFixture(token string) *models.Visitor {
	expiry := time.Now().UTC().Add(time.Hour)
	return &models.Visitor{
		ID:             7,
		BadgeID:        "VIS-1756700000000",
		FullName:       "Ravi Kumar",
		Email:          "ravi@example.com",
		Status:         models.StatusPending,
		ApprovalToken:  &token,
		ApprovalExpiry: &expiry,
	}
}

func newApprovalTestHandler(repo *approvalRepoMock) *ApprovalHandler {
	svc := service.NewApprovalService(repo, notifierMock{}, encoderMock{}, "http://localhost:8080", nil)
	return NewApprovalHandler(svc)
}

func TestApprovalHandlerApprove(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &approvalRepoMock{byToken: map[string]*models.Visitor{"tok123": pendingVisitorFixture("tok123")}}
	handler := newApprovalTestHandler(repo)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/approvals/approve/tok123", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "token", Value: "tok123"}}

	handler.Approve(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data service.ApprovalResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, models.StatusApproved, envelope.Data.Visitor.Status)
	assert.True(t, envelope.Data.EmailSent)
	assert.NotEmpty(t, envelope.Data.QRCode)
}

func TestApprovalHandlerApproveUnknownToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newApprovalTestHandler(&approvalRepoMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/approvals/approve/nope", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "token", Value: "nope"}}

	handler.Approve(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestApprovalHandlerApproveExpiredToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	visitor := pendingVisitorFixture("tok123")
	past := time.Now().UTC().Add(-time.Hour)
	visitor.ApprovalExpiry = &past
	handler := newApprovalTestHandler(&approvalRepoMock{byToken: map[string]*models.Visitor{"tok123": visitor}})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/approvals/approve/tok123", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "token", Value: "tok123"}}

	handler.Approve(c)
	require.Equal(t, http.StatusGone, w.Code)
}

func TestApprovalHandlerRejectMalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newApprovalTestHandler(&approvalRepoMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/approvals/reject/tok123", bytes.NewReader([]byte(`invalid`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "token", Value: "tok123"}}

	handler.Reject(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
