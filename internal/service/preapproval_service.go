package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/vms-api/internal/models"
	appErrors "github.com/noah-isme/vms-api/pkg/errors"
)

// MaxVisitorsPerDay caps how many quota-consuming pre-approved visits one
// employee may hold per calendar day.
const MaxVisitorsPerDay = 5

type preApprovalRepository interface {
	Create(ctx context.Context, visitor *models.Visitor) error
	FindByID(ctx context.Context, id int64) (*models.Visitor, error)
	FindByToken(ctx context.Context, token string) (*models.Visitor, error)
	ListPreApproved(ctx context.Context, filter models.PreApprovalFilter) ([]models.Visitor, error)
	CountPreApprovedForDay(ctx context.Context, employeeID int64, dayStart, dayEnd time.Time) (int, error)
	MarkCancelled(ctx context.Context, id int64, reason string, now time.Time) (bool, error)
	MarkCheckedIn(ctx context.Context, id int64, from models.VisitorStatus, now time.Time) (bool, error)
	UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error
}

// PreApprovalInput carries a new scheduled visit.
type PreApprovalInput struct {
	FullName              string    `json:"full_name" binding:"required"`
	Phone                 string    `json:"phone"`
	Email                 string    `json:"email" binding:"omitempty,email"`
	PurposeOfVisit        string    `json:"purpose_of_visit" binding:"required"`
	CompanyName           string    `json:"company_name"`
	VisitDate             time.Time `json:"visit_date" binding:"required"`
	ScheduledArrivalStart time.Time `json:"scheduled_arrival_start" binding:"required"`
	ScheduledArrivalEnd   time.Time `json:"scheduled_arrival_end" binding:"required"`
}

// PreApprovalUpdateInput carries a partial update to a scheduled visit. Nil
// fields keep their current value.
type PreApprovalUpdateInput struct {
	FullName              *string    `json:"full_name"`
	Phone                 *string    `json:"phone"`
	Email                 *string    `json:"email" binding:"omitempty,email"`
	PurposeOfVisit        *string    `json:"purpose_of_visit"`
	CompanyName           *string    `json:"company_name"`
	VisitDate             *time.Time `json:"visit_date"`
	ScheduledArrivalStart *time.Time `json:"scheduled_arrival_start"`
	ScheduledArrivalEnd   *time.Time `json:"scheduled_arrival_end"`
}

// PreApprovalResult is the outcome of creating or rescheduling a visit.
type PreApprovalResult struct {
	Visitor    *models.Visitor `json:"visitor"`
	QRCode     string          `json:"qr_code"`
	EmailSent  bool            `json:"email_sent"`
	EmailError string          `json:"email_error,omitempty"`
}

// CancellationResult is the outcome of withdrawing a scheduled visit.
type CancellationResult struct {
	Visitor    *models.Visitor `json:"visitor"`
	EmailSent  bool            `json:"email_sent"`
	EmailError string          `json:"email_error,omitempty"`
}

// DailyLimits reports an employee's quota position for one day.
type DailyLimits struct {
	Date         string `json:"date"`
	CurrentCount int    `json:"current_count"`
	Limit        int    `json:"limit"`
	Remaining    int    `json:"remaining"`
	CanCreate    bool   `json:"can_create"`
}

// PreApprovalService owns employee-scheduled visits: creation under the daily
// quota, rescheduling, cancellation and window-gated quick check-in.
type PreApprovalService struct {
	repo      preApprovalRepository
	employees visitorEmployeeReader
	notifier  Notifier
	encoder   CodeEncoder
	cache     Cache
	validator *validator.Validate
	limitsTTL time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewPreApprovalService constructs a PreApprovalService. A nil cache disables
// limits caching; a nil validate falls back to a fresh validator.
func NewPreApprovalService(repo preApprovalRepository, employees visitorEmployeeReader, notifier Notifier, encoder CodeEncoder, cache Cache, validate *validator.Validate, limitsTTL time.Duration, logger *zap.Logger) *PreApprovalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
		// Input structs carry gin binding tags; reuse them here.
		validate.SetTagName("binding")
	}
	if limitsTTL <= 0 {
		limitsTTL = time.Minute
	}
	return &PreApprovalService{
		repo:      repo,
		employees: employees,
		notifier:  notifier,
		encoder:   encoder,
		cache:     cache,
		validator: validate,
		limitsTTL: limitsTTL,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create schedules a pre-approved visit for the authenticated employee. The
// quota check and insert are not atomic; the per-day count query keeps the
// window small and the quota is advisory rather than a hard safety invariant.
func (s *PreApprovalService) Create(ctx context.Context, employeeID int64, input PreApprovalInput) (*PreApprovalResult, error) {
	employee, err := s.employees.FindByID(ctx, employeeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
	}

	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid pre-approval payload")
	}

	now := s.now()
	if err := validateVisitWindow(input.VisitDate, input.ScheduledArrivalStart, input.ScheduledArrivalEnd, now); err != nil {
		return nil, err
	}
	if err := s.enforceQuota(ctx, employeeID, input.VisitDate); err != nil {
		return nil, err
	}

	token, err := newPreApprovalToken()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate pre-approval token")
	}

	visitDate := input.VisitDate
	start := input.ScheduledArrivalStart
	end := input.ScheduledArrivalEnd
	visitor := &models.Visitor{
		BadgeID:                 newPreApprovedBadgeID(now),
		FullName:                input.FullName,
		Phone:                   input.Phone,
		Email:                   input.Email,
		PurposeOfVisit:          input.PurposeOfVisit,
		CompanyName:             input.CompanyName,
		HostEmployeeID:          &employee.ID,
		HostEmployeeName:        employee.Name,
		HostDepartment:          employee.Department,
		Status:                  models.StatusPreApproved,
		ApprovalToken:           &token,
		IsPreApproved:           true,
		VisitDate:               &visitDate,
		ScheduledArrivalStart:   &start,
		ScheduledArrivalEnd:     &end,
		PreApprovedByEmployeeID: &employee.ID,
		PreApprovedAt:           &now,
	}
	if err := s.repo.Create(ctx, visitor); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create pre-approval")
	}
	s.invalidateLimits(ctx, employeeID, visitDate)

	return s.issuePass(visitor, token)
}

// Get returns one of the employee's scheduled visits.
func (s *PreApprovalService) Get(ctx context.Context, employeeID, id int64) (*models.Visitor, error) {
	return s.findOwned(ctx, employeeID, id)
}

// ListForEmployee returns the employee's scheduled visits partitioned into
// display buckets. The expired bucket is a view label only; the stored status
// stays pre_approved.
func (s *PreApprovalService) ListForEmployee(ctx context.Context, filter models.PreApprovalFilter) (*models.CategorizedVisitors, error) {
	visitors, err := s.repo.ListPreApproved(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pre-approvals")
	}
	categorized := models.Categorize(visitors, s.now())
	return &categorized, nil
}

// CheckLimits reports the employee's quota position for a day. Results are
// cached briefly; writes invalidate the cache.
func (s *PreApprovalService) CheckLimits(ctx context.Context, employeeID int64, date time.Time) (*DailyLimits, error) {
	key := limitsCacheKey(employeeID, date)
	if s.cache != nil {
		if raw, ok := s.cache.Get(ctx, key); ok {
			var limits DailyLimits
			if err := json.Unmarshal([]byte(raw), &limits); err == nil {
				return &limits, nil
			}
		}
	}

	dayStart, dayEnd := models.DaySpan(date)
	count, err := s.repo.CountPreApprovedForDay(ctx, employeeID, dayStart, dayEnd)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check daily limits")
	}
	remaining := MaxVisitorsPerDay - count
	if remaining < 0 {
		remaining = 0
	}
	limits := &DailyLimits{
		Date:         date.Format("2006-01-02"),
		CurrentCount: count,
		Limit:        MaxVisitorsPerDay,
		Remaining:    remaining,
		CanCreate:    count < MaxVisitorsPerDay,
	}
	if s.cache != nil {
		if raw, err := json.Marshal(limits); err == nil {
			s.cache.Set(ctx, key, string(raw), s.limitsTTL)
		}
	}
	return limits, nil
}

// Update reschedules or edits a visit the employee owns. Moving the visit to
// another day re-checks that day's quota; a changed date or window reissues
// the pass and re-notifies the visitor.
func (s *PreApprovalService) Update(ctx context.Context, employeeID, id int64, input PreApprovalUpdateInput) (*PreApprovalResult, error) {
	visitor, err := s.findOwned(ctx, employeeID, id)
	if err != nil {
		return nil, err
	}
	if visitor.Status != models.StatusPreApproved {
		return nil, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("visit is %s and can no longer be edited", visitor.Status)),
			map[string]interface{}{"current_status": visitor.Status},
		)
	}

	now := s.now()
	previousDate := visitor.VisitDate
	visitDate := derefTime(input.VisitDate, visitor.VisitDate)
	start := derefTime(input.ScheduledArrivalStart, visitor.ScheduledArrivalStart)
	end := derefTime(input.ScheduledArrivalEnd, visitor.ScheduledArrivalEnd)
	scheduleChanged := input.VisitDate != nil || input.ScheduledArrivalStart != nil || input.ScheduledArrivalEnd != nil

	if scheduleChanged {
		if err := validateVisitWindow(visitDate, start, end, now); err != nil {
			return nil, err
		}
		if input.VisitDate != nil && visitor.VisitDate != nil && !sameDay(*input.VisitDate, *visitor.VisitDate) {
			if err := s.enforceQuota(ctx, employeeID, *input.VisitDate); err != nil {
				return nil, err
			}
		}
	}

	fields := map[string]interface{}{}
	if input.FullName != nil {
		fields["full_name"] = *input.FullName
		visitor.FullName = *input.FullName
	}
	if input.Phone != nil {
		fields["mobile_number"] = *input.Phone
		visitor.Phone = *input.Phone
	}
	if input.Email != nil {
		fields["email"] = *input.Email
		visitor.Email = *input.Email
	}
	if input.PurposeOfVisit != nil {
		fields["purpose_of_visit"] = *input.PurposeOfVisit
		visitor.PurposeOfVisit = *input.PurposeOfVisit
	}
	if input.CompanyName != nil {
		fields["company_name"] = *input.CompanyName
		visitor.CompanyName = *input.CompanyName
	}
	if scheduleChanged {
		fields["visit_date"] = visitDate
		fields["scheduled_arrival_start"] = start
		fields["scheduled_arrival_end"] = end
		visitor.VisitDate = &visitDate
		visitor.ScheduledArrivalStart = &start
		visitor.ScheduledArrivalEnd = &end
	}
	if len(fields) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no updatable fields provided")
	}
	if err := s.repo.UpdateFields(ctx, id, fields); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update pre-approval")
	}
	visitor.UpdatedAt = now

	if scheduleChanged {
		if previousDate != nil {
			s.invalidateLimits(ctx, employeeID, *previousDate)
		}
		if input.VisitDate != nil {
			s.invalidateLimits(ctx, employeeID, *input.VisitDate)
		}
		token := ""
		if visitor.ApprovalToken != nil {
			token = *visitor.ApprovalToken
		}
		return s.issuePass(visitor, token)
	}
	return &PreApprovalResult{Visitor: visitor}, nil
}

// Cancel withdraws a scheduled visit, releasing its quota slot. The visitor is
// notified with the rejection-style mail; a send failure never undoes the
// cancellation.
func (s *PreApprovalService) Cancel(ctx context.Context, employeeID, id int64, reason string) (*CancellationResult, error) {
	visitor, err := s.findOwned(ctx, employeeID, id)
	if err != nil {
		return nil, err
	}
	if visitor.Status != models.StatusPreApproved {
		return nil, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("visit is %s and can no longer be cancelled", visitor.Status)),
			map[string]interface{}{"current_status": visitor.Status},
		)
	}

	if reason == "" {
		reason = "Cancelled by host employee"
	}
	now := s.now()
	ok, err := s.repo.MarkCancelled(ctx, id, reason, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel pre-approval")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrConflict, "visit was already processed")
	}
	if visitor.VisitDate != nil {
		s.invalidateLimits(ctx, employeeID, *visitor.VisitDate)
	}

	visitor.Status = models.StatusCancelled
	visitor.RejectionReason = &reason
	visitor.ApprovalToken = nil
	visitor.UpdatedAt = now

	result := &CancellationResult{Visitor: visitor}
	if visitor.Email != "" {
		if err := s.notifier.SendRejection(visitor, reason); err != nil {
			s.logger.Sugar().Warnw("cancellation mail failed", "visitor_id", visitor.ID, "error", err)
			result.EmailError = "failed to send email notification"
		} else {
			result.EmailSent = true
		}
	}
	return result, nil
}

// QuickCheckIn admits a pre-approved visitor by scanning their pass token.
// Admission is gated to the scheduled arrival window.
func (s *PreApprovalService) QuickCheckIn(ctx context.Context, token string) (*models.Visitor, error) {
	visitor, err := s.repo.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "invalid pre-approval token")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load visitor")
	}
	if visitor.Status != models.StatusPreApproved {
		return nil, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("visit is %s and cannot check in", visitor.Status)),
			map[string]interface{}{"current_status": visitor.Status},
		)
	}

	now := s.now()
	if visitor.ScheduledArrivalStart != nil && now.Before(*visitor.ScheduledArrivalStart) {
		return nil, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrConflict, "arrival window has not opened yet"),
			map[string]interface{}{"valid_from": visitor.ScheduledArrivalStart},
		)
	}
	if visitor.ScheduledArrivalEnd != nil && now.After(*visitor.ScheduledArrivalEnd) {
		return nil, appErrors.WithDetails(appErrors.ErrExpired, map[string]interface{}{
			"valid_until": visitor.ScheduledArrivalEnd,
		})
	}

	ok, err := s.repo.MarkCheckedIn(ctx, visitor.ID, models.StatusPreApproved, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check in visitor")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrConflict, "visit was already processed")
	}
	visitor.Status = models.StatusCheckedIn
	visitor.CheckInTime = &now
	visitor.ApprovalToken = nil
	visitor.UpdatedAt = now
	return visitor, nil
}

func (s *PreApprovalService) issuePass(visitor *models.Visitor, token string) (*PreApprovalResult, error) {
	payload := models.AdmissionPayload{
		VisitorID:    visitor.ID,
		BadgeID:      visitor.BadgeID,
		Name:         visitor.FullName,
		PreApproved:  true,
		Token:        token,
		HostEmployee: visitor.HostEmployeeName,
		Timestamp:    s.now().Format(time.RFC3339),
	}
	if visitor.ScheduledArrivalStart != nil {
		payload.ValidFrom = visitor.ScheduledArrivalStart.Format(time.RFC3339)
	}
	if visitor.ScheduledArrivalEnd != nil {
		payload.ValidUntil = visitor.ScheduledArrivalEnd.Format(time.RFC3339)
	}
	qrCode, err := s.encoder.Encode(payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate admission pass")
	}

	result := &PreApprovalResult{Visitor: visitor, QRCode: qrCode}
	if visitor.Email != "" {
		if err := s.notifier.SendPreApproval(visitor, qrCode); err != nil {
			s.logger.Sugar().Warnw("pre-approval mail failed", "visitor_id", visitor.ID, "error", err)
			result.EmailError = "failed to send email notification"
		} else {
			result.EmailSent = true
		}
	}
	return result, nil
}

func (s *PreApprovalService) enforceQuota(ctx context.Context, employeeID int64, date time.Time) error {
	dayStart, dayEnd := models.DaySpan(date)
	count, err := s.repo.CountPreApprovedForDay(ctx, employeeID, dayStart, dayEnd)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check daily limits")
	}
	if count >= MaxVisitorsPerDay {
		return appErrors.WithDetails(appErrors.ErrQuotaExceeded, map[string]interface{}{
			"date":          date.Format("2006-01-02"),
			"current_count": count,
			"limit":         MaxVisitorsPerDay,
		})
	}
	return nil
}

func (s *PreApprovalService) findOwned(ctx context.Context, employeeID, id int64) (*models.Visitor, error) {
	visitor, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "pre-approval not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pre-approval")
	}
	if !visitor.IsPreApproved {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "pre-approval not found")
	}
	if visitor.PreApprovedByEmployeeID == nil || *visitor.PreApprovedByEmployeeID != employeeID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "visit belongs to another employee")
	}
	return visitor, nil
}

func (s *PreApprovalService) invalidateLimits(ctx context.Context, employeeID int64, date time.Time) {
	if s.cache != nil {
		s.cache.Delete(ctx, limitsCacheKey(employeeID, date))
	}
}

func limitsCacheKey(employeeID int64, date time.Time) string {
	return fmt.Sprintf("vms:limits:%d:%s", employeeID, date.Format("2006-01-02"))
}

func validateVisitWindow(visitDate, start, end, now time.Time) error {
	todayStart, _ := models.DaySpan(now)
	if visitDate.Before(todayStart) {
		return appErrors.Clone(appErrors.ErrValidation, "visit date cannot be in the past")
	}
	if !start.After(now) {
		return appErrors.Clone(appErrors.ErrValidation, "scheduled arrival start must be in the future")
	}
	if !start.Before(end) {
		return appErrors.Clone(appErrors.ErrValidation, "scheduled arrival start must be before its end")
	}
	return nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func derefTime(override *time.Time, current *time.Time) time.Time {
	if override != nil {
		return *override
	}
	if current != nil {
		return *current
	}
	return time.Time{}
}
