package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cubixnet/comp/internal/domain"
	"github.com/cubixnet/comp/internal/engine"
	"github.com/cubixnet/comp/internal/network"
	"github.com/cubixnet/comp/internal/reconcile"
	"github.com/cubixnet/comp/internal/store"
	"github.com/cubixnet/comp/internal/tree"
	"github.com/cubixnet/comp/internal/worker"
)

type memPurchases struct{ *store.Memory }

func (m memPurchases) Create(ctx context.Context, p *domain.Purchase) error {
	return m.CreatePurchase(ctx, p)
}

func (m memPurchases) Get(ctx context.Context, id int64) (*domain.Purchase, error) {
	return m.GetPurchase(ctx, id)
}

type fakeWallet struct {
	balance decimal.Decimal
}

func (w *fakeWallet) Balance(_ context.Context, _ string) (decimal.Decimal, error) {
	return w.balance, nil
}

func (w *fakeWallet) Debit(_ context.Context, _ string, amount decimal.Decimal, _ string) error {
	w.balance = w.balance.Sub(amount)
	return nil
}

const testAPIKey = "test-key"

func newTestServer(t *testing.T) (*http.Server, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	ctx := context.Background()
	if err := mem.SeedRanks(ctx, domain.DefaultRanks()); err != nil {
		t.Fatalf("seeding ranks: %v", err)
	}
	if err := mem.SeedPacks(ctx, domain.DefaultPacks()); err != nil {
		t.Fatalf("seeding packs: %v", err)
	}

	treeSvc := tree.NewService(mem)
	eng := engine.NewService(mem, memPurchases{mem}, mem, &fakeWallet{balance: decimal.NewFromInt(100000)}, treeSvc, engine.Options{})
	enroller := network.NewService(mem, mem, nil)
	w := worker.NewReconcileWorker(reconcile.NewService(mem, mem), time.Hour, nil)

	handler := NewHandler(mem, eng, enroller, treeSvc, mem, mem, mem, w)
	srv := NewServer("8080", handler, testAPIKey)

	if _, err := enroller.EnrollRoot(ctx, "root"); err != nil {
		t.Fatalf("enrolling root: %v", err)
	}
	if _, err := enroller.Enroll(ctx, network.Enrollment{
		Address: "alice", Parent: "root", Leg: domain.LegA, Sponsor: "root",
	}); err != nil {
		t.Fatalf("enrolling alice: %v", err)
	}
	return srv, mem
}

func doRequest(t *testing.T, srv *http.Server, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func TestGetAccount(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/accounts/alice", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp["address"] != "alice" || resp["sponsor"] != "root" {
		t.Errorf("unexpected identity fields: %v", resp)
	}
	rank, _ := resp["rank"].(map[string]any)
	if rank["name"] != "Starter" {
		t.Errorf("rank = %v, want Starter", rank)
	}
	next, _ := resp["next_rank"].(map[string]any)
	if next == nil || next["name"] != "Builder" {
		t.Errorf("next_rank = %v, want Builder", next)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/accounts/ghost", "", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown account status = %d, want 404", rec.Code)
	}
}

func TestAdminRoutesRequireAuth(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/reconcile/run", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token status = %d, want 401", rec.Code)
	}
	rec = doRequest(t, srv, http.MethodPost, "/api/v1/reconcile/run", "", "wrong")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong token status = %d, want 401", rec.Code)
	}
	rec = doRequest(t, srv, http.MethodPost, "/api/v1/reconcile/run", "", testAPIKey)
	if rec.Code != http.StatusOK {
		t.Errorf("valid token status = %d, want 200: %s", rec.Code, rec.Body)
	}
}

func TestCreatePurchase(t *testing.T) {
	srv, mem := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/purchases",
		`{"address":"alice","tier":3}`, testAPIKey)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body)
	}

	alice, err := mem.Get(context.Background(), "alice")
	if err != nil {
		t.Fatalf("loading alice: %v", err)
	}
	if alice.LastPurchaseTier != 3 {
		t.Errorf("alice tier = %d, want 3", alice.LastPurchaseTier)
	}

	// The same buyer cannot move down a tier.
	rec = doRequest(t, srv, http.MethodPost, "/api/v1/purchases",
		`{"address":"alice","tier":2}`, testAPIKey)
	if rec.Code != http.StatusConflict {
		t.Errorf("downgrade status = %d, want 409", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodPost, "/api/v1/purchases",
		`{"address":"ghost","tier":2}`, testAPIKey)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown buyer status = %d, want 404", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodPost, "/api/v1/purchases", `{"tier":2}`, testAPIKey)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing address status = %d, want 400", rec.Code)
	}
}

func TestEnroll(t *testing.T) {
	srv, mem := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/enroll",
		`{"address":"bob","parent":"alice","leg":"B","sponsor":"alice"}`, testAPIKey)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body)
	}
	bob, err := mem.Get(context.Background(), "bob")
	if err != nil {
		t.Fatalf("loading bob: %v", err)
	}
	if bob.Parent != "alice" || bob.PlacementNode != domain.LegB {
		t.Errorf("bob placement = %s/%s", bob.Parent, bob.PlacementNode)
	}

	rec = doRequest(t, srv, http.MethodPost, "/api/v1/enroll",
		`{"address":"carol","parent":"alice","leg":"X","sponsor":"alice"}`, testAPIKey)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad leg status = %d, want 400", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodPost, "/api/v1/enroll",
		`{"address":"carol","parent":"ghost","leg":"A","sponsor":"alice"}`, testAPIKey)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown parent status = %d, want 404", rec.Code)
	}
}

func TestGetAncestorsAndPartners(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/enroll",
		`{"address":"bob","parent":"alice","leg":"A","sponsor":"alice"}`, testAPIKey)
	if rec.Code != http.StatusCreated {
		t.Fatalf("enrolling bob: %s", rec.Body)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/accounts/bob/ancestors?tree=sponsor", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("ancestors status = %d: %s", rec.Code, rec.Body)
	}
	var chain []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &chain); err != nil {
		t.Fatalf("decoding chain: %v", err)
	}
	if len(chain) != 2 || chain[0]["address"] != "root" || chain[1]["address"] != "alice" {
		t.Errorf("sponsor chain = %v, want root then alice", chain)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/accounts/bob/ancestors?tree=nope", "", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad tree status = %d, want 400", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/accounts/root/partners", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("partners status = %d: %s", rec.Code, rec.Body)
	}
	var partners []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &partners); err != nil {
		t.Fatalf("decoding partners: %v", err)
	}
	if len(partners) != 2 {
		t.Errorf("root has %d partners, want 2", len(partners))
	}
}

func TestListPacksAndBonuses(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/packs", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("packs status = %d", rec.Code)
	}
	var packs []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &packs); err != nil {
		t.Fatalf("decoding packs: %v", err)
	}
	if len(packs) != 6 {
		t.Errorf("got %d packs, want 6", len(packs))
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/accounts/alice/bonuses", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("bonuses status = %d", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("bonuses body = %q, want empty array", body)
	}
}
