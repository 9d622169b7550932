package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/cubixnet/comp/internal/domain"
	"github.com/cubixnet/comp/internal/network"
	"github.com/cubixnet/comp/internal/reconcile"
)

// AccountReader loads account state.
type AccountReader interface {
	Get(ctx context.Context, address string) (*domain.Account, error)
}

// Purchaser runs the purchase pipeline.
type Purchaser interface {
	ProcessPurchase(ctx context.Context, buyerAddress string, tier int) (*domain.Purchase, error)
}

// Enroller registers new accounts.
type Enroller interface {
	Enroll(ctx context.Context, e network.Enrollment) (*domain.Account, error)
}

// TreeReader reads the two ancestor structures.
type TreeReader interface {
	AncestorChain(ctx context.Context, address string, kind domain.TreeKind) ([]*domain.Account, error)
	DescendantSubtree(ctx context.Context, address string) ([]*domain.Account, error)
}

// LedgerReader reads bonus history.
type LedgerReader interface {
	ListByBeneficiary(ctx context.Context, address string, limit, offset int) ([]domain.BonusLedgerEntry, error)
}

// PurchaseReader reads purchase history.
type PurchaseReader interface {
	ListByBuyer(ctx context.Context, buyer string, limit, offset int) ([]domain.Purchase, error)
}

// CatalogReader reads rank and pack reference data.
type CatalogReader interface {
	Rank(ctx context.Context, id int) (domain.Rank, error)
	Ranks(ctx context.Context) ([]domain.Rank, error)
	Packs(ctx context.Context) ([]domain.Pack, error)
}

// ReconcileTrigger fires a single-flight reconciliation run.
type ReconcileTrigger interface {
	RunOnce(ctx context.Context) (summary reconcile.Summary, skipped bool, err error)
}

// Handler provides the HTTP endpoints of the compensation API.
type Handler struct {
	accounts  AccountReader
	engine    Purchaser
	enroller  Enroller
	tree      TreeReader
	ledger    LedgerReader
	purchases PurchaseReader
	catalog   CatalogReader
	reconcile ReconcileTrigger
}

// NewHandler creates a new API handler.
func NewHandler(accounts AccountReader, engine Purchaser, enroller Enroller, tree TreeReader,
	ledger LedgerReader, purchases PurchaseReader, catalog CatalogReader, trigger ReconcileTrigger) *Handler {
	return &Handler{
		accounts:  accounts,
		engine:    engine,
		enroller:  enroller,
		tree:      tree,
		ledger:    ledger,
		purchases: purchases,
		catalog:   catalog,
		reconcile: trigger,
	}
}

type rankInfo struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type nextRankInfo struct {
	ID            int             `json:"id"`
	Name          string          `json:"name"`
	MinimumVolume decimal.Decimal `json:"minimum_volume"`
	BestLegVolume decimal.Decimal `json:"best_leg_volume"`
}

type accountResponse struct {
	Address       string          `json:"address"`
	Parent        string          `json:"parent,omitempty"`
	PlacementNode string          `json:"placement_node"`
	Sponsor       string          `json:"sponsor,omitempty"`
	TreeDepth     int             `json:"tree_depth"`
	Rank          rankInfo        `json:"rank"`
	NextRank      *nextRankInfo   `json:"next_rank,omitempty"`
	TeamAVolume   decimal.Decimal `json:"team_a_volume"`
	TeamBVolume   decimal.Decimal `json:"team_b_volume"`
	UnmatchedA    decimal.Decimal `json:"unmatched_a"`
	UnmatchedB    decimal.Decimal `json:"unmatched_b"`
	TeamACount    int             `json:"team_a_count"`
	TeamBCount    int             `json:"team_b_count"`

	DirectSponsorBonus  decimal.Decimal `json:"direct_sponsor_bonus"`
	TeamMatchingBonus   decimal.Decimal `json:"team_matching_bonus"`
	DirectMatchingBonus decimal.Decimal `json:"direct_matching_bonus"`
	RankBonus           decimal.Decimal `json:"rank_bonus"`
	TotalEarnings       decimal.Decimal `json:"total_earnings"`
	WithdrawableBalance decimal.Decimal `json:"withdrawable_balance"`

	DirectReferralCount int             `json:"direct_referral_count"`
	LastPurchaseTier    int             `json:"last_purchase_tier"`
	LastPurchaseAmount  decimal.Decimal `json:"last_purchase_amount"`
}

// GetAccount handles GET /api/v1/accounts/{address}.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")
	account, err := h.accounts.Get(r.Context(), address)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}
		slog.Error("failed to get account", "address", address, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	rank, err := h.catalog.Rank(r.Context(), account.RankID)
	if err != nil {
		slog.Error("failed to load rank", "rank", account.RankID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := accountResponse{
		Address:             account.Address,
		Parent:              account.Parent,
		PlacementNode:       account.PlacementNode.String(),
		Sponsor:             account.Sponsor,
		TreeDepth:           account.TreeDepth,
		Rank:                rankInfo{ID: rank.ID, Name: rank.Name},
		TeamAVolume:         account.TeamAVolume,
		TeamBVolume:         account.TeamBVolume,
		UnmatchedA:          account.UnmatchedA(),
		UnmatchedB:          account.UnmatchedB(),
		TeamACount:          account.TeamACount,
		TeamBCount:          account.TeamBCount,
		DirectSponsorBonus:  account.DirectSponsorBonusEarned,
		TeamMatchingBonus:   account.TeamMatchingBonusEarned,
		DirectMatchingBonus: account.DirectMatchingBonusEarned,
		RankBonus:           account.RankBonusEarned,
		TotalEarnings:       account.TotalEarnings(),
		WithdrawableBalance: account.WithdrawableBalance,
		DirectReferralCount: account.DirectReferralCount,
		LastPurchaseTier:    account.LastPurchaseTier,
		LastPurchaseAmount:  account.LastPurchaseAmount,
	}

	if ranks, err := h.catalog.Ranks(r.Context()); err == nil {
		for _, next := range ranks {
			if next.ID > account.RankID {
				resp.NextRank = &nextRankInfo{
					ID:            next.ID,
					Name:          next.Name,
					MinimumVolume: next.MinimumVolume,
					BestLegVolume: decimal.Max(account.RankVolumeA, account.RankVolumeB),
				}
				break
			}
		}
	} else {
		slog.Warn("failed to resolve next rank", "address", address, "error", err)
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListBonuses handles GET /api/v1/accounts/{address}/bonuses.
func (h *Handler) ListBonuses(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")
	limit, offset := pagination(r, 20, 100)

	entries, err := h.ledger.ListByBeneficiary(r.Context(), address, limit, offset)
	if err != nil {
		slog.Error("failed to list bonuses", "address", address, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if entries == nil {
		entries = []domain.BonusLedgerEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// ListPurchases handles GET /api/v1/accounts/{address}/purchases.
func (h *Handler) ListPurchases(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")
	limit, offset := pagination(r, 20, 100)

	purchases, err := h.purchases.ListByBuyer(r.Context(), address, limit, offset)
	if err != nil {
		slog.Error("failed to list purchases", "address", address, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if purchases == nil {
		purchases = []domain.Purchase{}
	}
	writeJSON(w, http.StatusOK, purchases)
}

type chainMember struct {
	Address       string `json:"address"`
	PlacementNode string `json:"placement_node"`
	TreeDepth     int    `json:"tree_depth"`
	RankID        int    `json:"rank_id"`
}

func toChainMembers(accounts []*domain.Account) []chainMember {
	out := make([]chainMember, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, chainMember{
			Address:       a.Address,
			PlacementNode: a.PlacementNode.String(),
			TreeDepth:     a.TreeDepth,
			RankID:        a.RankID,
		})
	}
	return out
}

// GetAncestors handles GET /api/v1/accounts/{address}/ancestors?tree=placement|sponsor.
func (h *Handler) GetAncestors(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")
	kind := domain.PlacementTree
	switch r.URL.Query().Get("tree") {
	case "", string(domain.PlacementTree):
	case string(domain.SponsorTree):
		kind = domain.SponsorTree
	default:
		writeError(w, http.StatusBadRequest, "tree must be placement or sponsor")
		return
	}

	chain, err := h.tree.AncestorChain(r.Context(), address, kind)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}
		slog.Error("failed to get ancestors", "address", address, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, toChainMembers(chain))
}

// GetPartners handles GET /api/v1/accounts/{address}/partners.
func (h *Handler) GetPartners(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")
	subtree, err := h.tree.DescendantSubtree(r.Context(), address)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}
		slog.Error("failed to get partners", "address", address, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, toChainMembers(subtree))
}

// ListPacks handles GET /api/v1/packs.
func (h *Handler) ListPacks(w http.ResponseWriter, r *http.Request) {
	packs, err := h.catalog.Packs(r.Context())
	if err != nil {
		slog.Error("failed to list packs", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, packs)
}

type purchaseRequest struct {
	Address string `json:"address"`
	Tier    int    `json:"tier"`
}

// CreatePurchase handles POST /api/v1/purchases.
func (h *Handler) CreatePurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Address == "" || req.Tier <= 0 {
		writeError(w, http.StatusBadRequest, "address and tier are required")
		return
	}

	purchase, err := h.engine.ProcessPurchase(r.Context(), req.Address, req.Tier)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "account or pack not found")
		case errors.Is(err, domain.ErrInsufficientFunds):
			writeError(w, http.StatusPaymentRequired, "insufficient wallet balance")
		case errors.Is(err, domain.ErrTierDowngrade):
			writeError(w, http.StatusConflict, "cannot purchase a lower tier")
		default:
			slog.Error("failed to process purchase", "address", req.Address, "tier", req.Tier, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusCreated, purchase)
}

type enrollRequest struct {
	Address string `json:"address"`
	Parent  string `json:"parent"`
	Leg     string `json:"leg"`
	Sponsor string `json:"sponsor"`
	Email   string `json:"email"`
}

// Enroll handles POST /api/v1/enroll.
func (h *Handler) Enroll(w http.ResponseWriter, r *http.Request) {
	var req enrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var leg domain.Leg
	switch req.Leg {
	case "A":
		leg = domain.LegA
	case "B":
		leg = domain.LegB
	default:
		writeError(w, http.StatusBadRequest, "leg must be A or B")
		return
	}

	account, err := h.enroller.Enroll(r.Context(), network.Enrollment{
		Address: req.Address,
		Parent:  req.Parent,
		Leg:     leg,
		Sponsor: req.Sponsor,
		Email:   req.Email,
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "parent or sponsor not found")
			return
		}
		slog.Error("failed to enroll account", "address", req.Address, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"address":    account.Address,
		"tree_depth": account.TreeDepth,
		"rank_id":    account.RankID,
	})
}

// TriggerReconcile handles POST /api/v1/reconcile/run.
func (h *Handler) TriggerReconcile(w http.ResponseWriter, r *http.Request) {
	summary, skipped, err := h.reconcile.RunOnce(r.Context())
	if err != nil {
		slog.Error("manual reconciliation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "reconciliation failed")
		return
	}
	if skipped {
		writeJSON(w, http.StatusConflict, map[string]string{"status": "already running"})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func pagination(r *http.Request, def, max int) (limit, offset int) {
	limit = def
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = min(n, max)
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if n, err := strconv.Atoi(o); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.Warn("failed to write HTTP response body", "error", err)
		return
	}
	_, _ = w.Write([]byte("\n"))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
