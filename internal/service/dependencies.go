package service

import (
	"context"
	"time"

	"github.com/noah-isme/vms-api/internal/models"
)

// Notifier delivers visit lifecycle mails. Sends are best-effort: callers
// never fail an operation on a notifier error, they report it on the result.
type Notifier interface {
	SendApprovalRequest(hostEmail string, v *models.Visitor, approveURL, rejectURL string) error
	SendApproval(v *models.Visitor, qrDataURL string) error
	SendRejection(v *models.Visitor, reason string) error
	SendPreApproval(v *models.Visitor, qrDataURL string) error
}

// CodeEncoder produces a scannable admission pass from a payload. Unlike the
// notifier, encoder failure is fatal to the enclosing operation.
type CodeEncoder interface {
	Encode(payload interface{}) (string, error)
}

// Cache is a minimal get/set façade over Redis used by read endpoints.
// A nil Cache disables caching.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration)
	Delete(ctx context.Context, key string)
}
