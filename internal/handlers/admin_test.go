package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"automatch/internal/auth"
	"automatch/internal/models"
	"automatch/internal/services"
)

var testAdmins = stubAdminStore{
	"super-1":   models.RoleSuperAdmin,
	"mod-1":     models.RoleModerator,
	"support-1": models.RoleSupport,
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	h := newTestHandler(testDeps{admins: testAdmins})
	if rr := serve(t, h, http.MethodGet, "/admin/dealers", "", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if rr := serve(t, h, http.MethodGet, "/admin/dealers", "", tokenFor(t, "dealer-1", auth.RoleDealer)); rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for dealer, got %d", rr.Code)
	}
	if rr := serve(t, h, http.MethodGet, "/admin/dealers", "", tokenFor(t, "ghost", auth.RoleAdmin)); rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for unknown admin, got %d", rr.Code)
	}
	if rr := serve(t, h, http.MethodGet, "/admin/dealers", "", tokenFor(t, "support-1", auth.RoleAdmin)); rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for support, got %d", rr.Code)
	}
}

func TestAdminRolePermissions(t *testing.T) {
	h := newTestHandler(testDeps{admins: testAdmins})
	cases := []struct {
		admin  string
		method string
		path   string
		body   string
		want   int
	}{
		{"support-1", http.MethodPost, "/admin/dealers/d-1/credits", `{"delta":5}`, http.StatusForbidden},
		{"mod-1", http.MethodPost, "/admin/dealers/d-1/credits", `{"delta":5}`, http.StatusOK},
		{"support-1", http.MethodPost, "/admin/dealers/d-1/toggle-status", "", http.StatusForbidden},
		{"mod-1", http.MethodPost, "/admin/dealers/d-1/toggle-status", "", http.StatusOK},
		{"mod-1", http.MethodGet, "/admin/admins", "", http.StatusForbidden},
		{"super-1", http.MethodGet, "/admin/admins", "", http.StatusOK},
		{"super-1", http.MethodPost, "/admin/dealers/d-1/credits", `{"delta":5}`, http.StatusOK},
		{"support-1", http.MethodGet, "/admin/reconcile", "", http.StatusOK},
		{"support-1", http.MethodGet, "/admin/audit", "", http.StatusOK},
	}
	for _, tc := range cases {
		rr := serve(t, h, tc.method, tc.path, tc.body, tokenFor(t, tc.admin, auth.RoleAdmin))
		if rr.Code != tc.want {
			t.Fatalf("%s %s %s: expected %d, got %d", tc.admin, tc.method, tc.path, tc.want, rr.Code)
		}
	}
}

func TestAdminCreateDealer(t *testing.T) {
	var got services.DealerInput
	var actor string
	h := newTestHandler(testDeps{
		admins: testAdmins,
		provisioning: stubProvisioning{createDealerFn: func(_ context.Context, actorID string, input services.DealerInput) (models.Dealer, error) {
			actor = actorID
			got = input
			return models.Dealer{ID: "d-1", Name: input.Name, Balance: *input.Credits}, nil
		}},
	})
	body := `{"name":"AutoSul","email":"contato@autosul.com.br","tax_id":"12.345.678/0001-90","region":"Florianópolis - SC","plan":"Professional","credits":25}`
	rr := serve(t, h, http.MethodPost, "/admin/dealers", body, tokenFor(t, "mod-1", auth.RoleAdmin))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if actor != "mod-1" || got.Plan != models.PlanProfessional || got.Credits == nil || *got.Credits != 25 {
		t.Fatalf("unexpected input %s %#v", actor, got)
	}
}

func TestAdminCreateDealerValidation(t *testing.T) {
	h := newTestHandler(testDeps{
		admins: testAdmins,
		provisioning: stubProvisioning{createDealerFn: func(context.Context, string, services.DealerInput) (models.Dealer, error) {
			return models.Dealer{}, services.ValidationError{Field: "email", Reason: "email"}
		}},
	})
	rr := serve(t, h, http.MethodPost, "/admin/dealers", `{"name":"x"}`, tokenFor(t, "mod-1", auth.RoleAdmin))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestAdminAdjustCreditsReportsClamp(t *testing.T) {
	h := newTestHandler(testDeps{
		admins: testAdmins,
		provisioning: stubProvisioning{adjustFn: func(_ context.Context, actorID, dealerID string, delta int64, note string) (services.Adjustment, error) {
			if dealerID != "d-1" || delta != -50 || note != "chargeback" {
				t.Fatalf("unexpected adjust %s %d %q", dealerID, delta, note)
			}
			return services.Adjustment{Balance: 0, Requested: -50, Applied: -7}, nil
		}},
	})
	rr := serve(t, h, http.MethodPost, "/admin/dealers/d-1/credits", `{"delta":-50,"note":"chargeback"}`, tokenFor(t, "mod-1", auth.RoleAdmin))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body map[string]any
	_ = json.Unmarshal(rr.Body.Bytes(), &body)
	if body["applied"] != float64(-7) || body["requested"] != float64(-50) || body["credits"] != float64(0) {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestAdminAdjustCreditsZeroDelta(t *testing.T) {
	h := newTestHandler(testDeps{
		admins: testAdmins,
		provisioning: stubProvisioning{adjustFn: func(context.Context, string, string, int64, string) (services.Adjustment, error) {
			return services.Adjustment{}, services.ErrInvalidAmount
		}},
	})
	rr := serve(t, h, http.MethodPost, "/admin/dealers/d-1/credits", `{"delta":0}`, tokenFor(t, "mod-1", auth.RoleAdmin))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestAdminGetDealerNotFound(t *testing.T) {
	h := newTestHandler(testDeps{
		admins: testAdmins,
		provisioning: stubProvisioning{getDealerFn: func(context.Context, string) (services.DealerDetail, error) {
			return services.DealerDetail{}, services.ErrUnknownDealer
		}},
	})
	rr := serve(t, h, http.MethodGet, "/admin/dealers/missing", "", tokenFor(t, "support-1", auth.RoleAdmin))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestAdminReconcileReport(t *testing.T) {
	h := newTestHandler(testDeps{
		admins: testAdmins,
		ledger: stubLedger{reconcileFn: func(context.Context) ([]models.BalanceDiscrepancy, error) {
			return []models.BalanceDiscrepancy{{DealerID: "d-1", StoredBalance: 5, CalculatedBalance: 4, Difference: 1}}, nil
		}},
	})
	rr := serve(t, h, http.MethodGet, "/admin/reconcile", "", tokenFor(t, "support-1", auth.RoleAdmin))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body map[string]any
	_ = json.Unmarshal(rr.Body.Bytes(), &body)
	if body["consistent"] != false {
		t.Fatalf("expected inconsistent report, got %v", body)
	}
}

func TestAdminEntriesByReference(t *testing.T) {
	h := newTestHandler(testDeps{
		admins: testAdmins,
		ledger: stubLedger{byReferenceFn: func(_ context.Context, reference string) ([]models.LedgerEntry, error) {
			return []models.LedgerEntry{{ID: "e-1", Reference: &reference, Amount: -1, Kind: models.EntryUnlockDebit}}, nil
		}},
	})
	rr := serve(t, h, http.MethodGet, "/admin/ledger/reference/lead-1", "", tokenFor(t, "support-1", auth.RoleAdmin))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var entries []map[string]any
	_ = json.Unmarshal(rr.Body.Bytes(), &entries)
	if len(entries) != 1 || entries[0]["reference"] != "lead-1" {
		t.Fatalf("unexpected entries %v", entries)
	}
}

func TestAdminToggleSelf(t *testing.T) {
	h := newTestHandler(testDeps{
		admins: testAdmins,
		provisioning: stubProvisioning{toggleAdminFn: func(_ context.Context, actorID, adminID string) (models.AdminUser, error) {
			if actorID == adminID {
				return models.AdminUser{}, services.ErrSelfDeactivation
			}
			return models.AdminUser{ID: adminID}, nil
		}},
	})
	rr := serve(t, h, http.MethodPost, "/admin/admins/super-1/toggle-status", "", tokenFor(t, "super-1", auth.RoleAdmin))
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	rr = serve(t, h, http.MethodPost, "/admin/admins/mod-1/toggle-status", "", tokenFor(t, "super-1", auth.RoleAdmin))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestAdminStats(t *testing.T) {
	h := newTestHandler(testDeps{
		admins: testAdmins,
		provisioning: stubProvisioning{statsFn: func(context.Context) (services.StatsReport, error) {
			return services.StatsReport{Revenue: "R$ 498,00", AveragePricePerCredit: "8.30"}, nil
		}},
	})
	rr := serve(t, h, http.MethodGet, "/admin/stats", "", tokenFor(t, "support-1", auth.RoleAdmin))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body map[string]any
	_ = json.Unmarshal(rr.Body.Bytes(), &body)
	if body["revenue"] != "R$ 498,00" {
		t.Fatalf("unexpected body %v", body)
	}
}
