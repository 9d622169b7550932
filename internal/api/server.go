// Package api exposes the read surface of the compensation engine plus
// a few authenticated admin triggers.
package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"
)

// NewServer creates an HTTP server with all routes configured.
func NewServer(port string, handler *Handler, adminAPIKey string) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/accounts/{address}", handler.GetAccount)
	mux.HandleFunc("GET /api/v1/accounts/{address}/bonuses", handler.ListBonuses)
	mux.HandleFunc("GET /api/v1/accounts/{address}/purchases", handler.ListPurchases)
	mux.HandleFunc("GET /api/v1/accounts/{address}/ancestors", handler.GetAncestors)
	mux.HandleFunc("GET /api/v1/accounts/{address}/partners", handler.GetPartners)
	mux.HandleFunc("GET /api/v1/packs", handler.ListPacks)

	admin := func(h http.HandlerFunc) http.Handler {
		if adminAPIKey == "" {
			return h
		}
		return requireAuth(adminAPIKey, h)
	}
	mux.Handle("POST /api/v1/purchases", admin(handler.CreatePurchase))
	mux.Handle("POST /api/v1/enroll", admin(handler.Enroll))
	mux.Handle("POST /api/v1/reconcile/run", admin(handler.TriggerReconcile))

	return &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func requireAuth(apiKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		token := strings.TrimPrefix(auth, "Bearer ")
		if !strings.HasPrefix(auth, "Bearer ") || subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
