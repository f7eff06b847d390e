package settings

import (
	"context"
	"testing"

	"callbilling-platform/internal/audit"

	"github.com/shopspring/decimal"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestUpdate_AppliesOnlyProvidedFields(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo, nil)

	_, err := svc.Update(context.Background(), "admin-1", "admin", "", UpdateRequest{
		MarginAgencyPerMinute: dec("300"),
		MinCallCoins:          dec("60"),
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	cfg, err := svc.Get(context.Background())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if cfg.MarginAgencyPerMinute == nil || !cfg.MarginAgencyPerMinute.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("expected agency margin 300, got %v", cfg.MarginAgencyPerMinute)
	}
	if cfg.MarginNonAgencyPerMinute != nil {
		t.Fatalf("expected non-agency margin to stay unset")
	}
	if cfg.AdminSharePercentage != nil {
		t.Fatalf("expected admin share to stay unset")
	}
}

func TestUpdate_RejectsOutOfRangeValues(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo, nil)

	if _, err := svc.Update(context.Background(), "admin-1", "admin", "", UpdateRequest{
		AdminSharePercentage: dec("140"),
	}); err == nil {
		t.Fatalf("expected error for percentage > 100")
	}
	if _, err := svc.Update(context.Background(), "admin-1", "admin", "", UpdateRequest{
		MarginAgencyPerMinute: dec("-1"),
	}); err == nil {
		t.Fatalf("expected error for negative margin")
	}
}

func TestUpdate_RecordsAuditEvent(t *testing.T) {
	repo := NewMemoryRepo()
	auditRepo := audit.NewMemoryRepo()
	svc := NewService(repo, audit.NewService(auditRepo))

	if _, err := svc.Update(context.Background(), "admin-1", "admin", "10.0.0.1", UpdateRequest{
		AdminSharePercentage: dec("40"),
	}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := auditRepo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 audit event, got %d", len(evs))
	}
	if evs[0].Type != audit.EventTypeConfigChange {
		t.Fatalf("expected config_change event")
	}
}
