package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/vms-api/internal/models"
	"github.com/noah-isme/vms-api/pkg/config"
	appErrors "github.com/noah-isme/vms-api/pkg/errors"
)

type authReaderStub struct {
	byEmail map[string]*models.Employee
}

func (s authReaderStub) FindByEmail(ctx context.Context, email string) (*models.Employee, error) {
	if e, ok := s.byEmail[email]; ok {
		return e, nil
	}
	return nil, sql.ErrNoRows
}

func (s authReaderStub) FindByID(ctx context.Context, id int64) (*models.Employee, error) {
	for _, e := range s.byEmail {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, sql.ErrNoRows
}

func authConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "test-secret", Expiration: time.Hour, Issuer: "vms-api"}
}

func authEmployee(t *testing.T, password string) *models.Employee {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.Employee{
		ID:           3,
		Name:         "Anita Desai",
		Email:        "anita@corp.example",
		Department:   "Engineering",
		PasswordHash: string(hash),
	}
}

func TestAuthServiceLoginAndValidate(t *testing.T) {
	reader := authReaderStub{byEmail: map[string]*models.Employee{
		"anita@corp.example": authEmployee(t, "s3cret-pass"),
	}}
	svc := NewAuthService(reader, authConfig(), zap.NewNop())

	result, err := svc.Login(context.Background(), models.LoginRequest{Email: "anita@corp.example", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.AccessToken)
	assert.Equal(t, int64(3600), result.ExpiresIn)
	assert.Equal(t, int64(3), result.Employee.ID)

	claims, err := svc.ValidateToken(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, int64(3), claims.EmployeeID)
	assert.Equal(t, "anita@corp.example", claims.Email)
	assert.Equal(t, "Engineering", claims.Department)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	reader := authReaderStub{byEmail: map[string]*models.Employee{
		"anita@corp.example": authEmployee(t, "s3cret-pass"),
	}}
	svc := NewAuthService(reader, authConfig(), zap.NewNop())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "anita@corp.example", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginUnknownEmail(t *testing.T) {
	svc := NewAuthService(authReaderStub{}, authConfig(), zap.NewNop())
	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "nobody@corp.example", Password: "whatever"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceValidateTamperedToken(t *testing.T) {
	svc := NewAuthService(authReaderStub{}, authConfig(), zap.NewNop())
	_, err := svc.ValidateToken("not-a-token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceValidateWrongSecret(t *testing.T) {
	reader := authReaderStub{byEmail: map[string]*models.Employee{
		"anita@corp.example": authEmployee(t, "s3cret-pass"),
	}}
	issuer := NewAuthService(reader, authConfig(), zap.NewNop())
	result, err := issuer.Login(context.Background(), models.LoginRequest{Email: "anita@corp.example", Password: "s3cret-pass"})
	require.NoError(t, err)

	other := NewAuthService(reader, config.JWTConfig{Secret: "different", Expiration: time.Hour}, zap.NewNop())
	_, err = other.ValidateToken(result.AccessToken)
	require.Error(t, err)
}
