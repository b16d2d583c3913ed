package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/vms-api/internal/models"
)

func newVisitorRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func visitorRowColumns() []string {
	return []string{
		"id", "visitor_badge_id", "full_name", "mobile_number", "email", "purpose_of_visit", "company_name",
		"host_employee_id", "host_employee_name", "host_department", "photo_path", "status", "approval_token",
		"approval_expiry", "is_pre_approved", "visit_date", "scheduled_arrival_start", "scheduled_arrival_end",
		"pre_approved_by_employee_id", "pre_approved_at", "approved_at", "approval_remarks", "rejected_at",
		"rejection_reason", "check_in_time", "check_out_time", "is_checked_out", "created_at", "updated_at",
	}
}

func visitorRow(id int64, status models.VisitorStatus) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(visitorRowColumns()).AddRow(
		id, "VIS-1756700000000", "Ravi Kumar", "9876500000", "ravi@example.com", "Vendor meeting", "Acme Ltd",
		int64(3), "Anita Desai", "Engineering", nil, string(status), "tok123",
		now.Add(24*time.Hour), false, nil, nil, nil,
		nil, nil, nil, nil, nil,
		nil, nil, nil, false, now, now,
	)
}

func TestVisitorRepositoryCreateBackfillsID(t *testing.T) {
	db, mock, cleanup := newVisitorRepoMock(t)
	defer cleanup()

	repo := NewVisitorRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO visitors")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))

	visitor := &models.Visitor{
		BadgeID:        "VIS-1756700000000",
		FullName:       "Ravi Kumar",
		Phone:          "9876500000",
		PurposeOfVisit: "Vendor meeting",
		Status:         models.StatusPending,
	}
	require.NoError(t, repo.Create(context.Background(), visitor))
	require.Equal(t, int64(11), visitor.ID)
	require.False(t, visitor.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVisitorRepositoryFindByToken(t *testing.T) {
	db, mock, cleanup := newVisitorRepoMock(t)
	defer cleanup()

	repo := NewVisitorRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM visitors WHERE approval_token")).
		WithArgs("tok123").
		WillReturnRows(visitorRow(7, models.StatusPending))

	visitor, err := repo.FindByToken(context.Background(), "tok123")
	require.NoError(t, err)
	require.Equal(t, int64(7), visitor.ID)
	require.Equal(t, models.StatusPending, visitor.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVisitorRepositoryMarkApprovedConsumesToken(t *testing.T) {
	db, mock, cleanup := newVisitorRepoMock(t)
	defer cleanup()

	repo := NewVisitorRepository(db)
	now := time.Now().UTC()
	remarks := "cleared at gate"

	mock.ExpectExec(regexp.QuoteMeta("UPDATE visitors SET status = 'approved'")).
		WithArgs(int64(7), now, &remarks).
		WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err := repo.MarkApproved(context.Background(), 7, &remarks, now)
	require.NoError(t, err)
	require.True(t, ok)

	// Second decision on the same token loses the status guard.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE visitors SET status = 'approved'")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err = repo.MarkApproved(context.Background(), 7, &remarks, now)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVisitorRepositoryMarkCheckedInGuardsStatus(t *testing.T) {
	db, mock, cleanup := newVisitorRepoMock(t)
	defer cleanup()

	repo := NewVisitorRepository(db)
	now := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE visitors SET status = 'checked_in'")).
		WithArgs(int64(11), now, models.StatusApproved).
		WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err := repo.MarkCheckedIn(context.Background(), 11, models.StatusApproved, now)
	require.NoError(t, err)
	require.True(t, ok)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE visitors SET status = 'checked_in'")).
		WithArgs(int64(11), now, models.StatusPreApproved).
		WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err = repo.MarkCheckedIn(context.Background(), 11, models.StatusPreApproved, now)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVisitorRepositoryCountPreApprovedForDay(t *testing.T) {
	db, mock, cleanup := newVisitorRepoMock(t)
	defer cleanup()

	repo := NewVisitorRepository(db)
	dayStart, dayEnd := models.DaySpan(time.Date(2026, time.September, 1, 10, 0, 0, 0, time.UTC))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM visitors")).
		WithArgs(int64(3), dayStart, dayEnd).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	count, err := repo.CountPreApprovedForDay(context.Background(), 3, dayStart, dayEnd)
	require.NoError(t, err)
	require.Equal(t, 4, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVisitorRepositoryExpirePendingReturnsSwept(t *testing.T) {
	db, mock, cleanup := newVisitorRepoMock(t)
	defer cleanup()

	repo := NewVisitorRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE visitors SET status = 'expired'")).
		WithArgs(now).
		WillReturnRows(visitorRow(7, models.StatusExpired))

	expired, err := repo.ExpirePending(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	require.Equal(t, int64(7), expired[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())

	// A second sweep right after finds nothing left to expire.
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE visitors SET status = 'expired'")).
		WithArgs(now).
		WillReturnRows(sqlmock.NewRows(visitorRowColumns()))
	expired, err = repo.ExpirePending(context.Background(), now)
	require.NoError(t, err)
	require.Empty(t, expired)
}

func TestVisitorRepositoryListAppliesFilters(t *testing.T) {
	db, mock, cleanup := newVisitorRepoMock(t)
	defer cleanup()

	repo := NewVisitorRepository(db)

	mock.ExpectQuery("FROM visitors WHERE .+ ORDER BY created_at DESC").
		WithArgs(models.StatusPending, "%ravi%").
		WillReturnRows(visitorRow(7, models.StatusPending))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM visitors")).
		WithArgs(models.StatusPending, "%ravi%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	visitors, total, err := repo.List(context.Background(), models.VisitorFilter{
		Status: models.StatusPending,
		Search: "ravi",
		Page:   1,
	})
	require.NoError(t, err)
	require.Len(t, visitors, 1)
	require.Equal(t, 1, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVisitorRepositoryUpdateFieldsDeterministicOrder(t *testing.T) {
	db, mock, cleanup := newVisitorRepoMock(t)
	defer cleanup()

	repo := NewVisitorRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE visitors SET email = $2, full_name = $3, updated_at = $4 WHERE id = $1")).
		WithArgs(int64(11), "new@example.com", "Ravi K", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateFields(context.Background(), 11, map[string]interface{}{
		"full_name": "Ravi K",
		"email":     "new@example.com",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVisitorRepositoryCountByStatus(t *testing.T) {
	db, mock, cleanup := newVisitorRepoMock(t)
	defer cleanup()

	repo := NewVisitorRepository(db)
	rows := sqlmock.NewRows([]string{"status", "total"}).
		AddRow("pending", 2).
		AddRow("checked_in", 5)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status, COUNT(*) AS total FROM visitors GROUP BY status")).
		WillReturnRows(rows)

	counts, err := repo.CountByStatus(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, counts[models.StatusPending])
	require.Equal(t, 5, counts[models.StatusCheckedIn])
	require.NoError(t, mock.ExpectationsWereMet())
}
