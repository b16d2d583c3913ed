package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/noah-isme/vms-api/internal/models"
)

type notifierStub struct {
	approvalRequests []string
	approvals        []string
	rejections       []string
	preApprovals     []string
	err              error
}

func (s *notifierStub) SendApprovalRequest(hostEmail string, v *models.Visitor, approveURL, rejectURL string) error {
	s.approvalRequests = append(s.approvalRequests, hostEmail)
	return s.err
}

func (s *notifierStub) SendApproval(v *models.Visitor, qrDataURL string) error {
	s.approvals = append(s.approvals, v.Email)
	return s.err
}

func (s *notifierStub) SendRejection(v *models.Visitor, reason string) error {
	s.rejections = append(s.rejections, reason)
	return s.err
}

func (s *notifierStub) SendPreApproval(v *models.Visitor, qrDataURL string) error {
	s.preApprovals = append(s.preApprovals, v.Email)
	return s.err
}

type encoderStub struct {
	payloads []interface{}
	err      error
}

func (s *encoderStub) Encode(payload interface{}) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.payloads = append(s.payloads, payload)
	raw, _ := json.Marshal(payload)
	return "data:image/png;base64," + string(raw), nil
}

type cacheStub struct {
	values  map[string]string
	sets    int
	deletes []string
}

func newCacheStub() *cacheStub {
	return &cacheStub{values: map[string]string{}}
}

func (s *cacheStub) Get(ctx context.Context, key string) (string, bool) {
	val, ok := s.values[key]
	return val, ok
}

func (s *cacheStub) Set(ctx context.Context, key, value string, ttl time.Duration) {
	s.values[key] = value
	s.sets++
}

func (s *cacheStub) Delete(ctx context.Context, key string) {
	delete(s.values, key)
	s.deletes = append(s.deletes, key)
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func int64Ptr(i int64) *int64 { return &i }
