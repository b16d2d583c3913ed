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

type visitorRepoStub struct {
	byID       map[int64]*models.Visitor
	created    *models.Visitor
	checkinOK  bool
	checkoutOK bool
	updated    map[string]interface{}
	deleted    []int64
}

func (s *visitorRepoStub) Create(ctx context.Context, visitor *models.Visitor) error {
	visitor.ID = 11
	s.created = visitor
	return nil
}

func (s *visitorRepoStub) FindByID(ctx context.Context, id int64) (*models.Visitor, error) {
	if v, ok := s.byID[id]; ok {
		return v, nil
	}
	return nil, sql.ErrNoRows
}

func (s *visitorRepoStub) List(ctx context.Context, filter models.VisitorFilter) ([]models.Visitor, int, error) {
	return nil, 0, nil
}

func (s *visitorRepoStub) MarkCheckedIn(ctx context.Context, id int64, from models.VisitorStatus, now time.Time) (bool, error) {
	return s.checkinOK, nil
}

func (s *visitorRepoStub) MarkCheckedOut(ctx context.Context, id int64, now time.Time) (bool, error) {
	return s.checkoutOK, nil
}

func (s *visitorRepoStub) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	s.updated = fields
	return nil
}

func (s *visitorRepoStub) SetPhotoPath(ctx context.Context, id int64, path string) error {
	return nil
}

func (s *visitorRepoStub) Delete(ctx context.Context, id int64) error {
	s.deleted = append(s.deleted, id)
	return nil
}

type alerterStub struct {
	dispatched []string
	err        error
}

func (s *alerterStub) DispatchApprovalRequest(visitor *models.Visitor, hostEmail string) error {
	if s.err != nil {
		return s.err
	}
	s.dispatched = append(s.dispatched, hostEmail)
	return nil
}

func registerInput() RegisterInput {
	return RegisterInput{
		FullName:       "Ravi Kumar",
		Phone:          "9876500000",
		Email:          "ravi@example.com",
		PurposeOfVisit: "Vendor meeting",
		CompanyName:    "Acme Ltd",
		HostEmployeeID: 3,
	}
}

func TestVisitorServiceRegister(t *testing.T) {
	repo := &visitorRepoStub{}
	employees := employeeReaderStub{employees: map[int64]*models.Employee{3: hostEmployee()}}
	alerts := &alerterStub{}

	svc := NewVisitorService(repo, employees, alerts, nil, 24*time.Hour, zap.NewNop())
	result, err := svc.Register(context.Background(), registerInput())
	require.NoError(t, err)

	visitor := result.Visitor
	assert.True(t, strings.HasPrefix(visitor.BadgeID, "VIS-"))
	assert.Equal(t, models.StatusPending, visitor.Status)
	require.NotNil(t, visitor.ApprovalToken)
	assert.False(t, strings.HasPrefix(*visitor.ApprovalToken, "PRE-"))
	require.NotNil(t, visitor.ApprovalExpiry)
	assert.WithinDuration(t, time.Now().UTC().Add(24*time.Hour), *visitor.ApprovalExpiry, time.Minute)
	assert.Equal(t, "Anita Desai", visitor.HostEmployeeName)
	assert.Equal(t, "Engineering", visitor.HostDepartment)
	assert.True(t, result.AlertQueued)
	require.Len(t, alerts.dispatched, 1)
	assert.Equal(t, "anita@corp.example", alerts.dispatched[0])
}

func TestVisitorServiceRegisterUnknownHost(t *testing.T) {
	svc := NewVisitorService(&visitorRepoStub{}, employeeReaderStub{}, &alerterStub{}, nil, 24*time.Hour, zap.NewNop())
	_, err := svc.Register(context.Background(), registerInput())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestVisitorServiceRegisterAlertFailureDoesNotFail(t *testing.T) {
	repo := &visitorRepoStub{}
	employees := employeeReaderStub{employees: map[int64]*models.Employee{3: hostEmployee()}}
	alerts := &alerterStub{err: assert.AnError}

	svc := NewVisitorService(repo, employees, alerts, nil, 24*time.Hour, zap.NewNop())
	result, err := svc.Register(context.Background(), registerInput())
	require.NoError(t, err)
	assert.False(t, result.AlertQueued)
	require.NotNil(t, repo.created)
}

func TestVisitorServiceCheckIn(t *testing.T) {
	repo := &visitorRepoStub{
		byID:      map[int64]*models.Visitor{11: {ID: 11, Status: models.StatusApproved}},
		checkinOK: true,
	}

	svc := NewVisitorService(repo, employeeReaderStub{}, &alerterStub{}, nil, 24*time.Hour, zap.NewNop())
	visitor, err := svc.CheckIn(context.Background(), 11)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCheckedIn, visitor.Status)
	assert.NotNil(t, visitor.CheckInTime)
}

func TestVisitorServiceCheckInPendingConflicts(t *testing.T) {
	repo := &visitorRepoStub{
		byID: map[int64]*models.Visitor{11: {ID: 11, Status: models.StatusPending}},
	}

	svc := NewVisitorService(repo, employeeReaderStub{}, &alerterStub{}, nil, 24*time.Hour, zap.NewNop())
	_, err := svc.CheckIn(context.Background(), 11)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Equal(t, models.StatusPending, appErr.Details["current_status"])
}

func TestVisitorServiceCheckOut(t *testing.T) {
	repo := &visitorRepoStub{
		byID:       map[int64]*models.Visitor{11: {ID: 11, Status: models.StatusCheckedIn}},
		checkoutOK: true,
	}

	svc := NewVisitorService(repo, employeeReaderStub{}, &alerterStub{}, nil, 24*time.Hour, zap.NewNop())
	visitor, err := svc.CheckOut(context.Background(), 11)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCheckedOut, visitor.Status)
	assert.True(t, visitor.IsCheckedOut)
	assert.NotNil(t, visitor.CheckOutTime)
}

func TestVisitorServiceCheckOutNotCheckedIn(t *testing.T) {
	repo := &visitorRepoStub{
		byID: map[int64]*models.Visitor{11: {ID: 11, Status: models.StatusApproved}},
	}

	svc := NewVisitorService(repo, employeeReaderStub{}, &alerterStub{}, nil, 24*time.Hour, zap.NewNop())
	_, err := svc.CheckOut(context.Background(), 11)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestVisitorServiceUpdateContactFields(t *testing.T) {
	repo := &visitorRepoStub{
		byID: map[int64]*models.Visitor{11: {ID: 11, Status: models.StatusPending}},
	}

	svc := NewVisitorService(repo, employeeReaderStub{}, &alerterStub{}, nil, 24*time.Hour, zap.NewNop())
	_, err := svc.Update(context.Background(), 11, UpdateVisitorInput{Email: strPtr("new@example.com")})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"email": "new@example.com"}, repo.updated)
}

func TestVisitorServiceUpdateNoFields(t *testing.T) {
	repo := &visitorRepoStub{
		byID: map[int64]*models.Visitor{11: {ID: 11, Status: models.StatusPending}},
	}

	svc := NewVisitorService(repo, employeeReaderStub{}, &alerterStub{}, nil, 24*time.Hour, zap.NewNop())
	_, err := svc.Update(context.Background(), 11, UpdateVisitorInput{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
