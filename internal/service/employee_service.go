package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/vms-api/internal/models"
	appErrors "github.com/noah-isme/vms-api/pkg/errors"
)

type employeeRepository interface {
	Create(ctx context.Context, employee *models.Employee) error
	FindByID(ctx context.Context, id int64) (*models.Employee, error)
	FindByEmail(ctx context.Context, email string) (*models.Employee, error)
	ExistsByEmail(ctx context.Context, email string, excludeID int64) (bool, error)
	List(ctx context.Context) ([]models.Employee, error)
	Update(ctx context.Context, employee *models.Employee) error
	Delete(ctx context.Context, id int64) error
}

type employeeVisitCounter interface {
	CountByHostEmployee(ctx context.Context, employeeID int64) (int, error)
}

// CreateEmployeeInput carries a new host employee record.
type CreateEmployeeInput struct {
	Name       string `json:"name" binding:"required"`
	Email      string `json:"email" binding:"required,email"`
	Department string `json:"department" binding:"required"`
	Phone      string `json:"phone"`
	Password   string `json:"password" binding:"required,min=8"`
}

// UpdateEmployeeInput carries a partial employee update.
type UpdateEmployeeInput struct {
	Name       *string `json:"name"`
	Email      *string `json:"email" binding:"omitempty,email"`
	Department *string `json:"department"`
	Phone      *string `json:"phone"`
}

// EmployeeService manages host employee records.
type EmployeeService struct {
	repo   employeeRepository
	visits employeeVisitCounter
	logger *zap.Logger
}

// NewEmployeeService constructs an EmployeeService.
func NewEmployeeService(repo employeeRepository, visits employeeVisitCounter, logger *zap.Logger) *EmployeeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmployeeService{repo: repo, visits: visits, logger: logger}
}

// Create registers a host employee with a hashed password.
func (s *EmployeeService) Create(ctx context.Context, input CreateEmployeeInput) (*models.Employee, error) {
	exists, err := s.repo.ExistsByEmail(ctx, input.Email, 0)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check employee email")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "an employee with this email already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	employee := &models.Employee{
		Name:         input.Name,
		Email:        input.Email,
		Department:   input.Department,
		Phone:        input.Phone,
		PasswordHash: string(hash),
	}
	if err := s.repo.Create(ctx, employee); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create employee")
	}
	return employee, nil
}

// Get fetches one employee.
func (s *EmployeeService) Get(ctx context.Context, id int64) (*models.Employee, error) {
	return s.findEmployee(ctx, id)
}

// GetByEmail fetches one employee by their unique email.
func (s *EmployeeService) GetByEmail(ctx context.Context, email string) (*models.Employee, error) {
	employee, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
	}
	return employee, nil
}

// List returns all employees ordered by name.
func (s *EmployeeService) List(ctx context.Context) ([]models.Employee, error) {
	employees, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list employees")
	}
	return employees, nil
}

// Update applies a partial update. Changing the email re-checks uniqueness.
func (s *EmployeeService) Update(ctx context.Context, id int64, input UpdateEmployeeInput) (*models.Employee, error) {
	employee, err := s.findEmployee(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Email != nil && *input.Email != employee.Email {
		exists, err := s.repo.ExistsByEmail(ctx, *input.Email, id)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check employee email")
		}
		if exists {
			return nil, appErrors.Clone(appErrors.ErrConflict, "an employee with this email already exists")
		}
		employee.Email = *input.Email
	}
	if input.Name != nil {
		employee.Name = *input.Name
	}
	if input.Department != nil {
		employee.Department = *input.Department
	}
	if input.Phone != nil {
		employee.Phone = *input.Phone
	}

	if err := s.repo.Update(ctx, employee); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update employee")
	}
	return employee, nil
}

// Delete removes an employee unless visit records still reference them, either
// as host or as pre-approver.
func (s *EmployeeService) Delete(ctx context.Context, id int64) error {
	if _, err := s.findEmployee(ctx, id); err != nil {
		return err
	}
	count, err := s.visits.CountByHostEmployee(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check employee references")
	}
	if count > 0 {
		return appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrConflict, "employee still has visitor records and cannot be deleted"),
			map[string]interface{}{"visitor_count": count},
		)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete employee")
	}
	return nil
}

func (s *EmployeeService) findEmployee(ctx context.Context, id int64) (*models.Employee, error) {
	employee, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
	}
	return employee, nil
}
