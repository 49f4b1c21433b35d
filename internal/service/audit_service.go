package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go-iot-backend/internal/model"
)

const (
	auditWriteTimeout = 5 * time.Second
	auditRetryDelay   = 100 * time.Millisecond
	unknownIP         = "unknown"
)

type LoginAuditStore interface {
	RecordLogin(ctx context.Context, userID string, ip string, at time.Time) error
	ListAuditLog(ctx context.Context) ([]model.AuditLogEntry, error)
}

type AuditService struct {
	store      LoginAuditStore
	now        func() time.Time
	retryDelay time.Duration
}

func NewAuditService(store LoginAuditStore) *AuditService {
	return &AuditService{store: store, now: time.Now, retryDelay: auditRetryDelay}
}

// RecordLogin stores the last-login time and address. It is best effort: a
// failed write is retried once and then only logged, the login still
// succeeds. The write outlives a cancelled request.
func (s *AuditService) RecordLogin(ctx context.Context, userID string, ip string) {
	if s == nil {
		return
	}
	if ip == "" {
		ip = unknownIP
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()

	at := s.now().UTC()
	err := s.store.RecordLogin(ctx, userID, ip, at)
	if err == nil {
		return
	}

	slog.Warn("login audit write failed, retrying", "user_id", userID, "error", err)

	select {
	case <-time.After(s.retryDelay):
	case <-ctx.Done():
		slog.Error("login audit write abandoned", "user_id", userID, "error", ctx.Err())
		return
	}

	if err := s.store.RecordLogin(ctx, userID, ip, at); err != nil {
		slog.Error("login audit write failed", "user_id", userID, "ip", ip, "error", err)
	}
}

func (s *AuditService) List(ctx context.Context) ([]model.AuditLogEntry, error) {
	entries, err := s.store.ListAuditLog(ctx)
	if err != nil {
		return nil, fmt.Errorf("list audit log: %w", err)
	}
	if entries == nil {
		entries = []model.AuditLogEntry{}
	}
	return entries, nil
}
