package service

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"strings"
	"time"
)

const preApprovalTokenPrefix = "PRE-"

var tokenEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// newApprovalToken returns an opaque single-use credential for approval and
// rejection links.
func newApprovalToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate approval token: %w", err)
	}
	return strings.ToLower(tokenEncoding.EncodeToString(buf)), nil
}

// newPreApprovalToken returns a token carrying the pre-approval prefix so the
// two link families stay visually distinct.
func newPreApprovalToken() (string, error) {
	token, err := newApprovalToken()
	if err != nil {
		return "", err
	}
	return preApprovalTokenPrefix + token, nil
}

// newBadgeID builds the human-facing badge id for walk-in registrations.
func newBadgeID(now time.Time) string {
	return fmt.Sprintf("VIS-%d", now.UnixMilli())
}

// newPreApprovedBadgeID builds the badge id for pre-approved visits.
func newPreApprovedBadgeID(now time.Time) string {
	return fmt.Sprintf("PRE-VIS-%d", now.UnixMilli())
}
