package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/vms-api/internal/models"
	appErrors "github.com/noah-isme/vms-api/pkg/errors"
)

type employeeRepoStub struct {
	byID    map[int64]*models.Employee
	exists  bool
	created *models.Employee
	updated *models.Employee
	deleted []int64
}

func (s *employeeRepoStub) Create(ctx context.Context, employee *models.Employee) error {
	employee.ID = 3
	s.created = employee
	return nil
}

func (s *employeeRepoStub) FindByID(ctx context.Context, id int64) (*models.Employee, error) {
	if e, ok := s.byID[id]; ok {
		return e, nil
	}
	return nil, sql.ErrNoRows
}

func (s *employeeRepoStub) FindByEmail(ctx context.Context, email string) (*models.Employee, error) {
	for _, e := range s.byID {
		if e.Email == email {
			return e, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *employeeRepoStub) ExistsByEmail(ctx context.Context, email string, excludeID int64) (bool, error) {
	return s.exists, nil
}

func (s *employeeRepoStub) List(ctx context.Context) ([]models.Employee, error) {
	return nil, nil
}

func (s *employeeRepoStub) Update(ctx context.Context, employee *models.Employee) error {
	s.updated = employee
	return nil
}

func (s *employeeRepoStub) Delete(ctx context.Context, id int64) error {
	s.deleted = append(s.deleted, id)
	return nil
}

type visitCounterStub struct {
	count int
}

func (s visitCounterStub) CountByHostEmployee(ctx context.Context, employeeID int64) (int, error) {
	return s.count, nil
}

func TestEmployeeServiceCreateHashesPassword(t *testing.T) {
	repo := &employeeRepoStub{}
	svc := NewEmployeeService(repo, visitCounterStub{}, zap.NewNop())

	employee, err := svc.Create(context.Background(), CreateEmployeeInput{
		Name:       "Anita Desai",
		Email:      "anita@corp.example",
		Department: "Engineering",
		Password:   "s3cret-pass",
	})
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pass", employee.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(employee.PasswordHash), []byte("s3cret-pass")))
}

func TestEmployeeServiceCreateDuplicateEmail(t *testing.T) {
	repo := &employeeRepoStub{exists: true}
	svc := NewEmployeeService(repo, visitCounterStub{}, zap.NewNop())

	_, err := svc.Create(context.Background(), CreateEmployeeInput{
		Name:       "Anita Desai",
		Email:      "anita@corp.example",
		Department: "Engineering",
		Password:   "s3cret-pass",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Nil(t, repo.created)
}

func TestEmployeeServiceDeleteBlockedWhileReferenced(t *testing.T) {
	repo := &employeeRepoStub{byID: map[int64]*models.Employee{3: hostEmployee()}}
	svc := NewEmployeeService(repo, visitCounterStub{count: 4}, zap.NewNop())

	err := svc.Delete(context.Background(), 3)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Equal(t, 4, appErr.Details["visitor_count"])
	assert.Empty(t, repo.deleted)
}

func TestEmployeeServiceDeleteUnreferenced(t *testing.T) {
	repo := &employeeRepoStub{byID: map[int64]*models.Employee{3: hostEmployee()}}
	svc := NewEmployeeService(repo, visitCounterStub{count: 0}, zap.NewNop())

	err := svc.Delete(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, repo.deleted)
}

func TestEmployeeServiceUpdateEmailUniqueness(t *testing.T) {
	repo := &employeeRepoStub{
		byID:   map[int64]*models.Employee{3: hostEmployee()},
		exists: true,
	}
	svc := NewEmployeeService(repo, visitCounterStub{}, zap.NewNop())

	_, err := svc.Update(context.Background(), 3, UpdateEmployeeInput{Email: strPtr("taken@corp.example")})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}
