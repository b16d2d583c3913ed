package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/vms-api/internal/models"
)

func newEmployeeRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func employeeRow(id int64) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{"id", "name", "email", "department", "phone", "password_hash", "created_at", "updated_at"}).
		AddRow(id, "Anita Desai", "anita@corp.example", "Engineering", "9812345678", "$2a$10$hash", now, now)
}

func TestEmployeeRepositoryCreateBackfillsID(t *testing.T) {
	db, mock, cleanup := newEmployeeRepoMock(t)
	defer cleanup()

	repo := NewEmployeeRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO employees")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))

	employee := &models.Employee{
		Name:         "Anita Desai",
		Email:        "anita@corp.example",
		Department:   "Engineering",
		PasswordHash: "$2a$10$hash",
	}
	require.NoError(t, repo.Create(context.Background(), employee))
	require.Equal(t, int64(3), employee.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEmployeeRepositoryFindByEmail(t *testing.T) {
	db, mock, cleanup := newEmployeeRepoMock(t)
	defer cleanup()

	repo := NewEmployeeRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM employees WHERE email = $1")).
		WithArgs("anita@corp.example").
		WillReturnRows(employeeRow(3))

	employee, err := repo.FindByEmail(context.Background(), "anita@corp.example")
	require.NoError(t, err)
	require.Equal(t, int64(3), employee.ID)
	require.Equal(t, "Engineering", employee.Department)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEmployeeRepositoryFindByEmailMissing(t *testing.T) {
	db, mock, cleanup := newEmployeeRepoMock(t)
	defer cleanup()

	repo := NewEmployeeRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM employees WHERE email = $1")).
		WithArgs("nobody@corp.example").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByEmail(context.Background(), "nobody@corp.example")
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestEmployeeRepositoryExistsByEmail(t *testing.T) {
	db, mock, cleanup := newEmployeeRepoMock(t)
	defer cleanup()

	repo := NewEmployeeRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM employees WHERE email = $1 LIMIT 1")).
		WithArgs("anita@corp.example").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	exists, err := repo.ExistsByEmail(context.Background(), "anita@corp.example", 0)
	require.NoError(t, err)
	require.True(t, exists)

	// Excluding the owner's own id should not count itself.
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM employees WHERE email = $1 AND id <> $2 LIMIT 1")).
		WithArgs("anita@corp.example", int64(3)).
		WillReturnError(sql.ErrNoRows)
	exists, err = repo.ExistsByEmail(context.Background(), "anita@corp.example", 3)
	require.NoError(t, err)
	require.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEmployeeRepositoryDeleteMissingRow(t *testing.T) {
	db, mock, cleanup := newEmployeeRepoMock(t)
	defer cleanup()

	repo := NewEmployeeRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM employees WHERE id = $1")).
		WithArgs(int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), 99)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
