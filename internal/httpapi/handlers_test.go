package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"callbilling-platform/internal/accounts"
	"callbilling-platform/internal/auth"
	"callbilling-platform/internal/billing"
	"callbilling-platform/internal/reporting"
	"callbilling-platform/internal/settings"
	"callbilling-platform/internal/social"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func decp(t *testing.T, s string) *decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return &d
}

// identityMW injects a fixed identity, standing in for auth.RequireAccessToken.
func identityMW(userID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), userID, role))
		c.Next()
	}
}

type world struct {
	accounts *accounts.MemoryRepo
	settings *settings.MemoryRepo
	handlers Handlers
}

func newWorld(t *testing.T, configured bool) *world {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := accounts.NewMemoryRepo()
	soc := social.NewMemoryRepo()
	cfgRepo := settings.NewMemoryRepo()
	store := billing.NewMemoryStore(repo)

	ctx := context.Background()
	rate := decp(t, "600")
	_ = repo.Put(ctx, accounts.Account{ID: "p1", Role: accounts.RolePayer, DisplayName: "Pat", SpendableBalance: *decp(t, "200")})
	_ = repo.Put(ctx, accounts.Account{ID: "e1", Role: accounts.RoleEarner, DisplayName: "Ana", RatePerMinute: rate})
	soc.Follow("p1", "e1")
	soc.Follow("e1", "p1")

	if configured {
		if err := cfgRepo.Put(ctx, settings.RateConfig{
			MinCallCoins:             decp(t, "10"),
			MarginAgencyPerMinute:    decp(t, "300"),
			MarginNonAgencyPerMinute: decp(t, "300"),
			AdminSharePercentage:     decp(t, "40"),
		}); err != nil {
			t.Fatalf("seed config: %v", err)
		}
	}

	return &world{
		accounts: repo,
		settings: cfgRepo,
		handlers: Handlers{
			Billing:   billing.NewService(repo, soc, cfgRepo, store),
			Settings:  settings.NewService(cfgRepo, nil),
			Reporting: reporting.NewService(reporting.NewMemoryRepo()),
		},
	}
}

func doJSON(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestStartCall_OK(t *testing.T) {
	wld := newWorld(t, true)
	r := gin.New()
	r.POST("/v1/calls/start", identityMW("p1", "payer"), wld.handlers.StartCall)

	w := doJSON(r, http.MethodPost, "/v1/calls/start", `{"earner_id":"e1","medium":"video"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var adm billing.Admission
	if err := json.Unmarshal(w.Body.Bytes(), &adm); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !adm.Allowed || adm.MaxSeconds != 13 {
		t.Fatalf("unexpected admission: %+v", adm)
	}
}

func TestStartCall_MissingConfigIs503(t *testing.T) {
	wld := newWorld(t, false)
	r := gin.New()
	r.POST("/v1/calls/start", identityMW("p1", "payer"), wld.handlers.StartCall)

	w := doJSON(r, http.MethodPost, "/v1/calls/start", `{"earner_id":"e1"}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "configuration_error") {
		t.Fatalf("expected configuration_error code, got %s", w.Body.String())
	}
}

func TestEndCall_SettlesAndReports(t *testing.T) {
	wld := newWorld(t, true)
	r := gin.New()
	r.POST("/v1/calls/end", identityMW("p1", "payer"), wld.handlers.EndCall)

	w := doJSON(r, http.MethodPost, "/v1/calls/end",
		`{"earner_id":"e1","elapsed_seconds":10,"medium":"video","idempotency_key":"k1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var res billing.SettlementResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res.Record.TotalCoins.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("expected 150 coins billed, got %s", res.Record.TotalCoins)
	}
}

func TestEndCall_InsufficientIs400WithCallID(t *testing.T) {
	wld := newWorld(t, true)
	if err := wld.accounts.SetBalances("p1", decimal.NewFromInt(5), decimal.Zero); err != nil {
		t.Fatalf("set balance: %v", err)
	}
	r := gin.New()
	r.POST("/v1/calls/end", identityMW("p1", "payer"), wld.handlers.EndCall)

	w := doJSON(r, http.MethodPost, "/v1/calls/end",
		`{"earner_id":"e1","elapsed_seconds":10,"idempotency_key":"k2"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	callID, ok := body["call_id"].(string)
	if !ok || callID == "" || body["status"] != "insufficient_coins" {
		t.Fatalf("expected failed call reference, got %v", body)
	}
}

func TestEndCall_UnknownEarnerIs404(t *testing.T) {
	wld := newWorld(t, true)
	r := gin.New()
	r.POST("/v1/calls/end", identityMW("p1", "payer"), wld.handlers.EndCall)

	w := doJSON(r, http.MethodPost, "/v1/calls/end",
		`{"earner_id":"ghost","elapsed_seconds":10,"idempotency_key":"k3"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestUpdateConfig_PatchAndRead(t *testing.T) {
	wld := newWorld(t, false)
	r := gin.New()
	r.PUT("/v1/admin/config", identityMW("admin-1", "admin"), wld.handlers.UpdateConfig)
	r.GET("/v1/admin/config", identityMW("admin-1", "admin"), wld.handlers.GetConfig)

	w := doJSON(r, http.MethodPut, "/v1/admin/config", `{"min_call_coins":"10","admin_share_percentage":"40"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(r, http.MethodGet, "/v1/admin/config", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var cfg settings.RateConfig
	if err := json.Unmarshal(w.Body.Bytes(), &cfg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.MinCallCoins == nil || !cfg.MinCallCoins.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("patch not applied: %+v", cfg)
	}
	if cfg.MarginAgencyPerMinute != nil {
		t.Fatalf("untouched fields must stay unset")
	}

	w = doJSON(r, http.MethodPut, "/v1/admin/config", `{"admin_share_percentage":"140"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("out-of-range share must be 400, got %d", w.Code)
	}
}
