package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/vms-api/internal/models"
)

const visitorColumns = `id, visitor_badge_id, full_name, mobile_number, email, purpose_of_visit, company_name,
        host_employee_id, host_employee_name, host_department, photo_path, status, approval_token, approval_expiry,
        is_pre_approved, visit_date, scheduled_arrival_start, scheduled_arrival_end, pre_approved_by_employee_id,
        pre_approved_at, approved_at, approval_remarks, rejected_at, rejection_reason, check_in_time, check_out_time,
        is_checked_out, created_at, updated_at`

// VisitorRepository manages persistence for visitor records. Every status
// transition is a conditional update guarded on the expected current status;
// zero rows affected means the guard lost a race and the caller reports a
// conflict.
type VisitorRepository struct {
	db *sqlx.DB
}

// NewVisitorRepository constructs a VisitorRepository.
func NewVisitorRepository(db *sqlx.DB) *VisitorRepository {
	return &VisitorRepository{db: db}
}

// Create inserts a new visitor record and backfills the generated id.
func (r *VisitorRepository) Create(ctx context.Context, visitor *models.Visitor) error {
	now := time.Now().UTC()
	if visitor.CreatedAt.IsZero() {
		visitor.CreatedAt = now
	}
	visitor.UpdatedAt = now
	const query = `INSERT INTO visitors (visitor_badge_id, full_name, mobile_number, email, purpose_of_visit, company_name,
        host_employee_id, host_employee_name, host_department, photo_path, status, approval_token, approval_expiry,
        is_pre_approved, visit_date, scheduled_arrival_start, scheduled_arrival_end, pre_approved_by_employee_id,
        pre_approved_at, approval_remarks, created_at, updated_at)
        VALUES (:visitor_badge_id, :full_name, :mobile_number, :email, :purpose_of_visit, :company_name,
        :host_employee_id, :host_employee_name, :host_department, :photo_path, :status, :approval_token, :approval_expiry,
        :is_pre_approved, :visit_date, :scheduled_arrival_start, :scheduled_arrival_end, :pre_approved_by_employee_id,
        :pre_approved_at, :approval_remarks, :created_at, :updated_at)
        RETURNING id`
	rows, err := r.db.NamedQueryContext(ctx, query, visitor)
	if err != nil {
		return fmt.Errorf("create visitor: %w", err)
	}
	defer rows.Close() //nolint:errcheck
	if rows.Next() {
		if err := rows.Scan(&visitor.ID); err != nil {
			return fmt.Errorf("scan visitor id: %w", err)
		}
	}
	return rows.Err()
}

// FindByID fetches a visitor by its numeric id.
func (r *VisitorRepository) FindByID(ctx context.Context, id int64) (*models.Visitor, error) {
	query := fmt.Sprintf("SELECT %s FROM visitors WHERE id = $1", visitorColumns)
	var visitor models.Visitor
	if err := r.db.GetContext(ctx, &visitor, query, id); err != nil {
		return nil, err
	}
	return &visitor, nil
}

// FindByToken fetches a visitor by its approval token.
func (r *VisitorRepository) FindByToken(ctx context.Context, token string) (*models.Visitor, error) {
	query := fmt.Sprintf("SELECT %s FROM visitors WHERE approval_token = $1", visitorColumns)
	var visitor models.Visitor
	if err := r.db.GetContext(ctx, &visitor, query, token); err != nil {
		return nil, err
	}
	return &visitor, nil
}

// List returns visitors matching the provided filters, newest first.
func (r *VisitorRepository) List(ctx context.Context, filter models.VisitorFilter) ([]models.Visitor, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.HostEmployeeID != 0 {
		conditions = append(conditions, fmt.Sprintf("host_employee_id = $%d", len(args)+1))
		args = append(args, filter.HostEmployeeID)
	}
	if filter.Search != "" {
		idx := len(args) + 1
		conditions = append(conditions, fmt.Sprintf(
			"(full_name ILIKE $%d OR mobile_number ILIKE $%d OR email ILIKE $%d OR company_name ILIKE $%d OR host_employee_name ILIKE $%d)",
			idx, idx, idx, idx, idx))
		args = append(args, "%"+filter.Search+"%")
	}

	where := strings.Join(conditions, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s FROM visitors WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d",
		visitorColumns, where, size, offset)

	var visitors []models.Visitor
	if err := r.db.SelectContext(ctx, &visitors, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list visitors: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM visitors WHERE %s", where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count visitors: %w", err)
	}
	return visitors, total, nil
}

// ListPending returns unexpired pending requests, optionally narrowed to one
// host employee.
func (r *VisitorRepository) ListPending(ctx context.Context, hostEmployeeID int64, now time.Time) ([]models.Visitor, error) {
	query := fmt.Sprintf(`SELECT %s FROM visitors
        WHERE status = $1 AND (approval_expiry IS NULL OR approval_expiry > $2)`, visitorColumns)
	args := []interface{}{models.StatusPending, now}
	if hostEmployeeID != 0 {
		query += " AND host_employee_id = $3"
		args = append(args, hostEmployeeID)
	}
	query += " ORDER BY created_at DESC"

	var visitors []models.Visitor
	if err := r.db.SelectContext(ctx, &visitors, query, args...); err != nil {
		return nil, fmt.Errorf("list pending visitors: %w", err)
	}
	return visitors, nil
}

// ListPreApproved returns an employee's pre-approved visitors, optionally
// narrowed to a visit day and status.
func (r *VisitorRepository) ListPreApproved(ctx context.Context, filter models.PreApprovalFilter) ([]models.Visitor, error) {
	conditions := []string{"pre_approved_by_employee_id = $1", "is_pre_approved = true"}
	args := []interface{}{filter.EmployeeID}

	if filter.Date != nil {
		dayStart, dayEnd := models.DaySpan(*filter.Date)
		conditions = append(conditions, fmt.Sprintf("visit_date >= $%d", len(args)+1))
		args = append(args, dayStart)
		conditions = append(conditions, fmt.Sprintf("visit_date <= $%d", len(args)+1))
		args = append(args, dayEnd)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	query := fmt.Sprintf("SELECT %s FROM visitors WHERE %s ORDER BY visit_date DESC, scheduled_arrival_start ASC",
		visitorColumns, strings.Join(conditions, " AND "))

	var visitors []models.Visitor
	if err := r.db.SelectContext(ctx, &visitors, query, args...); err != nil {
		return nil, fmt.Errorf("list pre-approved visitors: %w", err)
	}
	return visitors, nil
}

// ListCreatedBetween returns visitors registered inside [from, to], oldest
// first, for log exports.
func (r *VisitorRepository) ListCreatedBetween(ctx context.Context, from, to time.Time) ([]models.Visitor, error) {
	query := fmt.Sprintf(`SELECT %s FROM visitors WHERE created_at >= $1 AND created_at <= $2
        ORDER BY created_at ASC`, visitorColumns)
	var visitors []models.Visitor
	if err := r.db.SelectContext(ctx, &visitors, query, from, to); err != nil {
		return nil, fmt.Errorf("list visitors by range: %w", err)
	}
	return visitors, nil
}

// CountPreApprovedForDay counts an employee's quota-relevant visitors whose
// visit date falls inside the given day span. Cancelled and expired visits do
// not consume quota.
func (r *VisitorRepository) CountPreApprovedForDay(ctx context.Context, employeeID int64, dayStart, dayEnd time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM visitors
        WHERE pre_approved_by_employee_id = $1 AND visit_date >= $2 AND visit_date <= $3
        AND status IN ('pre_approved', 'checked_in', 'checked_out')`
	var count int
	if err := r.db.GetContext(ctx, &count, query, employeeID, dayStart, dayEnd); err != nil {
		return 0, fmt.Errorf("count pre-approved visitors: %w", err)
	}
	return count, nil
}

// MarkApproved consumes a pending token. Returns false when the visitor was
// no longer pending.
func (r *VisitorRepository) MarkApproved(ctx context.Context, id int64, remarks *string, now time.Time) (bool, error) {
	const query = `UPDATE visitors SET status = 'approved', approved_at = $2, approval_remarks = $3,
        approval_token = NULL, updated_at = $2 WHERE id = $1 AND status = 'pending'`
	res, err := r.db.ExecContext(ctx, query, id, now, remarks)
	if err != nil {
		return false, fmt.Errorf("approve visitor: %w", err)
	}
	return oneRowAffected(res)
}

// MarkRejected consumes a pending token with a rejection reason.
func (r *VisitorRepository) MarkRejected(ctx context.Context, id int64, reason string, now time.Time) (bool, error) {
	const query = `UPDATE visitors SET status = 'rejected', rejected_at = $2, rejection_reason = $3,
        approval_token = NULL, updated_at = $2 WHERE id = $1 AND status = 'pending'`
	res, err := r.db.ExecContext(ctx, query, id, now, reason)
	if err != nil {
		return false, fmt.Errorf("reject visitor: %w", err)
	}
	return oneRowAffected(res)
}

// MarkCancelled cancels a pre-approved visit.
func (r *VisitorRepository) MarkCancelled(ctx context.Context, id int64, reason string, now time.Time) (bool, error) {
	const query = `UPDATE visitors SET status = 'cancelled', rejection_reason = $3, approval_token = NULL,
        updated_at = $2 WHERE id = $1 AND status = 'pre_approved'`
	res, err := r.db.ExecContext(ctx, query, id, now, reason)
	if err != nil {
		return false, fmt.Errorf("cancel visitor: %w", err)
	}
	return oneRowAffected(res)
}

// MarkCheckedIn flips the visitor into checked_in when it currently holds the
// expected status (approved for walk-ins, pre_approved for quick check-in).
func (r *VisitorRepository) MarkCheckedIn(ctx context.Context, id int64, from models.VisitorStatus, now time.Time) (bool, error) {
	const query = `UPDATE visitors SET status = 'checked_in', check_in_time = $2, approval_token = NULL,
        updated_at = $2 WHERE id = $1 AND status = $3`
	res, err := r.db.ExecContext(ctx, query, id, now, from)
	if err != nil {
		return false, fmt.Errorf("check in visitor: %w", err)
	}
	return oneRowAffected(res)
}

// MarkCheckedOut completes a visit.
func (r *VisitorRepository) MarkCheckedOut(ctx context.Context, id int64, now time.Time) (bool, error) {
	const query = `UPDATE visitors SET status = 'checked_out', check_out_time = $2, is_checked_out = true,
        updated_at = $2 WHERE id = $1 AND status = 'checked_in'`
	res, err := r.db.ExecContext(ctx, query, id, now)
	if err != nil {
		return false, fmt.Errorf("check out visitor: %w", err)
	}
	return oneRowAffected(res)
}

// ExpirePending sweeps pending requests whose approval window lapsed and
// returns the affected visitors. Running it twice in a row yields zero rows
// on the second pass.
func (r *VisitorRepository) ExpirePending(ctx context.Context, now time.Time) ([]models.Visitor, error) {
	query := fmt.Sprintf(`UPDATE visitors SET status = 'expired', approval_token = NULL, updated_at = $1
        WHERE status = 'pending' AND approval_expiry IS NOT NULL AND approval_expiry < $1
        RETURNING %s`, visitorColumns)
	var expired []models.Visitor
	if err := r.db.SelectContext(ctx, &expired, query, now); err != nil {
		return nil, fmt.Errorf("expire pending visitors: %w", err)
	}
	return expired, nil
}

// UpdateFields applies a partial update to the allowed columns. Keys are
// sorted so the generated SQL is deterministic.
func (r *VisitorRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sets := make([]string, 0, len(keys)+1)
	args := []interface{}{id}
	for _, k := range keys {
		sets = append(sets, fmt.Sprintf("%s = $%d", k, len(args)+1))
		args = append(args, fields[k])
	}
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)+1))
	args = append(args, time.Now().UTC())

	query := fmt.Sprintf("UPDATE visitors SET %s WHERE id = $1", strings.Join(sets, ", "))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update visitor fields: %w", err)
	}
	return nil
}

// SetPhotoPath attaches an uploaded photo to the visitor.
func (r *VisitorRepository) SetPhotoPath(ctx context.Context, id int64, path string) error {
	const query = `UPDATE visitors SET photo_path = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, path, time.Now().UTC()); err != nil {
		return fmt.Errorf("set visitor photo: %w", err)
	}
	return nil
}

// Delete removes a visitor record. Administrative operation, not part of the
// lifecycle.
func (r *VisitorRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM visitors WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete visitor: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete visitor: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountByHostEmployee counts visitors referencing the employee either as host
// or as pre-approver. Used to block employee deletion.
func (r *VisitorRepository) CountByHostEmployee(ctx context.Context, employeeID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM visitors WHERE host_employee_id = $1 OR pre_approved_by_employee_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, employeeID); err != nil {
		return 0, fmt.Errorf("count visitors by employee: %w", err)
	}
	return count, nil
}

// CountByStatus returns a status histogram for the dashboard.
func (r *VisitorRepository) CountByStatus(ctx context.Context) (map[models.VisitorStatus]int, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT status, COUNT(*) AS total FROM visitors GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count visitors by status: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	counts := make(map[models.VisitorStatus]int)
	for rows.Next() {
		var status models.VisitorStatus
		var total int
		if err := rows.Scan(&status, &total); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[status] = total
	}
	return counts, rows.Err()
}

func oneRowAffected(res sql.Result) (bool, error) {
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}
