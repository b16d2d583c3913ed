package models

import "time"

// VisitorStatus is the closed set of visit lifecycle states.
type VisitorStatus string

const (
	StatusPending     VisitorStatus = "pending"
	StatusPreApproved VisitorStatus = "pre_approved"
	StatusApproved    VisitorStatus = "approved"
	StatusRejected    VisitorStatus = "rejected"
	StatusCheckedIn   VisitorStatus = "checked_in"
	StatusCheckedOut  VisitorStatus = "checked_out"
	StatusExpired     VisitorStatus = "expired"
	StatusCancelled   VisitorStatus = "cancelled"
)

// statusTransitions is the authoritative transition table. A status may only
// move forward; anything not listed here is rejected.
var statusTransitions = map[VisitorStatus][]VisitorStatus{
	StatusPending:     {StatusApproved, StatusRejected, StatusExpired},
	StatusPreApproved: {StatusCheckedIn, StatusCancelled},
	StatusApproved:    {StatusCheckedIn},
	StatusCheckedIn:   {StatusCheckedOut},
}

// ValidStatus reports whether the value is a known lifecycle state.
func ValidStatus(s VisitorStatus) bool {
	switch s {
	case StatusPending, StatusPreApproved, StatusApproved, StatusRejected,
		StatusCheckedIn, StatusCheckedOut, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether the lifecycle permits moving from one status
// to another.
func CanTransition(from, to VisitorStatus) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible from the status.
func Terminal(s VisitorStatus) bool {
	return len(statusTransitions[s]) == 0
}

// Visitor represents one visit request, from registration through check-out.
// Host name and department are snapshots captured at creation time so past
// visits keep the host's identity even if the employee record changes later.
type Visitor struct {
	ID             int64  `db:"id" json:"id"`
	BadgeID        string `db:"visitor_badge_id" json:"badge_id"`
	FullName       string `db:"full_name" json:"full_name"`
	Phone          string `db:"mobile_number" json:"phone,omitempty"`
	Email          string `db:"email" json:"email,omitempty"`
	PurposeOfVisit string `db:"purpose_of_visit" json:"purpose_of_visit"`
	CompanyName    string `db:"company_name" json:"company_name,omitempty"`

	HostEmployeeID   *int64 `db:"host_employee_id" json:"host_employee_id,omitempty"`
	HostEmployeeName string `db:"host_employee_name" json:"host_employee_name"`
	HostDepartment   string `db:"host_department" json:"host_department,omitempty"`

	PhotoPath *string `db:"photo_path" json:"photo_path,omitempty"`

	Status         VisitorStatus `db:"status" json:"status"`
	ApprovalToken  *string       `db:"approval_token" json:"-"`
	ApprovalExpiry *time.Time    `db:"approval_expiry" json:"approval_expiry,omitempty"`

	IsPreApproved           bool       `db:"is_pre_approved" json:"is_pre_approved"`
	VisitDate               *time.Time `db:"visit_date" json:"visit_date,omitempty"`
	ScheduledArrivalStart   *time.Time `db:"scheduled_arrival_start" json:"scheduled_arrival_start,omitempty"`
	ScheduledArrivalEnd     *time.Time `db:"scheduled_arrival_end" json:"scheduled_arrival_end,omitempty"`
	PreApprovedByEmployeeID *int64     `db:"pre_approved_by_employee_id" json:"pre_approved_by_employee_id,omitempty"`
	PreApprovedAt           *time.Time `db:"pre_approved_at" json:"pre_approved_at,omitempty"`

	ApprovedAt      *time.Time `db:"approved_at" json:"approved_at,omitempty"`
	ApprovalRemarks *string    `db:"approval_remarks" json:"approval_remarks,omitempty"`
	RejectedAt      *time.Time `db:"rejected_at" json:"rejected_at,omitempty"`
	RejectionReason *string    `db:"rejection_reason" json:"rejection_reason,omitempty"`
	CheckInTime     *time.Time `db:"check_in_time" json:"check_in_time,omitempty"`
	CheckOutTime    *time.Time `db:"check_out_time" json:"check_out_time,omitempty"`
	IsCheckedOut    bool       `db:"is_checked_out" json:"is_checked_out"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// AwaitingDecision reports whether the visitor still holds an unconsumed
// approval token.
func (v *Visitor) AwaitingDecision() bool {
	return v.ApprovalToken != nil && (v.Status == StatusPending || v.Status == StatusPreApproved)
}

// VisitorFilter encapsulates allowed search parameters for listing visitors.
type VisitorFilter struct {
	Search         string
	Status         VisitorStatus
	HostEmployeeID int64
	Page           int
	PageSize       int
}

// PreApprovalFilter narrows an employee's pre-approved visitor listing.
type PreApprovalFilter struct {
	EmployeeID int64
	Date       *time.Time
	Status     VisitorStatus
}

// VisitCategory is a display-only bucket for pre-approved visits. The
// "expired" bucket here is a view label and never written back to status.
type VisitCategory string

const (
	CategoryUpcoming  VisitCategory = "upcoming"
	CategoryActive    VisitCategory = "active"
	CategoryExpired   VisitCategory = "expired"
	CategoryCompleted VisitCategory = "completed"
)

// CategorizedVisitors partitions pre-approved visits for display.
type CategorizedVisitors struct {
	Upcoming  []Visitor `json:"upcoming"`
	Active    []Visitor `json:"active"`
	Expired   []Visitor `json:"expired"`
	Completed []Visitor `json:"completed"`
}

// Categorize partitions visitors relative to now. checked_out visits are
// completed, checked_in are active, a lapsed window on a still pre_approved
// visit shows as expired, an in-window visit is active, everything else is
// upcoming.
func Categorize(visitors []Visitor, now time.Time) CategorizedVisitors {
	out := CategorizedVisitors{
		Upcoming:  []Visitor{},
		Active:    []Visitor{},
		Expired:   []Visitor{},
		Completed: []Visitor{},
	}
	for _, v := range visitors {
		switch {
		case v.Status == StatusCheckedOut:
			out.Completed = append(out.Completed, v)
		case v.Status == StatusCheckedIn:
			out.Active = append(out.Active, v)
		case v.Status == StatusPreApproved && v.ScheduledArrivalEnd != nil && now.After(*v.ScheduledArrivalEnd):
			out.Expired = append(out.Expired, v)
		case v.ScheduledArrivalStart != nil && v.ScheduledArrivalEnd != nil &&
			!now.Before(*v.ScheduledArrivalStart) && !now.After(*v.ScheduledArrivalEnd):
			out.Active = append(out.Active, v)
		default:
			out.Upcoming = append(out.Upcoming, v)
		}
	}
	return out
}

// DaySpan returns the inclusive [00:00:00.000, 23:59:59.999] bounds of the
// calendar day containing t, in t's location.
func DaySpan(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	end := time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(999*time.Millisecond), t.Location())
	return start, end
}

// AdmissionPayload is the structured data encoded into a visitor's QR pass.
type AdmissionPayload struct {
	VisitorID    int64  `json:"visitorId"`
	BadgeID      string `json:"badgeId"`
	Name         string `json:"name"`
	Approved     bool   `json:"approved,omitempty"`
	PreApproved  bool   `json:"preApproved,omitempty"`
	Token        string `json:"token,omitempty"`
	ValidFrom    string `json:"validFrom,omitempty"`
	ValidUntil   string `json:"validUntil,omitempty"`
	HostEmployee string `json:"hostEmployee,omitempty"`
	Timestamp    string `json:"timestamp,omitempty"`
}
