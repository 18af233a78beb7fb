// Ops API server: read-only catalog endpoints plus a WebSocket feed of
// domain events, for dashboards and monitoring.
package api

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lotbot/lotbot/pkg/domain"
	"github.com/lotbot/lotbot/pkg/domain/catalog"
	"github.com/lotbot/lotbot/pkg/logger"
	"github.com/lotbot/lotbot/pkg/money"
)

// Server is the HTTP ops API.
type Server struct {
	store     catalog.Store
	bus       domain.EventBus
	apiKey    string
	wsHub     *WSHub
	startTime time.Time
	server    *http.Server
}

// NewServer creates an ops API server. With an empty apiKey a random
// session key is generated and printed once at startup.
func NewServer(store catalog.Store, bus domain.EventBus, apiKey string) *Server {
	if apiKey == "" {
		raw := make([]byte, 24)
		if _, err := rand.Read(raw); err == nil {
			apiKey = hex.EncodeToString(raw)
			fmt.Printf("\nOps API session key: %s\nSet OPS_API_KEY for a persistent key.\n\n", apiKey)
		}
	}
	s := &Server{
		store:     store,
		bus:       bus,
		apiKey:    apiKey,
		startTime: time.Now(),
	}
	s.wsHub = NewWSHub(s)
	return s
}

// Start begins listening on addr. It blocks until the listener fails or ctx
// is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/categories", s.handleCategories)
	mux.HandleFunc("/api/categories/", s.handleCategoryItems)
	mux.HandleFunc("/api/items/", s.handleItemDetail)
	mux.HandleFunc("/ws", s.wsHub.HandleWebSocket)

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.authMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.wsHub.Run(ctx)
	s.bus.SubscribeAll(func(event domain.Event) {
		s.wsHub.Broadcast(string(event.Type), event.Data)
	})

	logger.InfoCF("api", "ops API listening", map[string]interface{}{"addr": addr})
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop shuts the HTTP server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// ---------------------------------------------------------------------------
// Auth
// ---------------------------------------------------------------------------

// extractToken reads the API key from the Authorization header, the
// X-API-Key header or the token query parameter (used by WebSocket clients
// that cannot set headers).
func extractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	return r.URL.Query().Get("token")
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/health" {
			next.ServeHTTP(w, r)
			return
		}
		token := extractToken(r)
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.apiKey)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid or missing API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int(time.Since(s.startTime).Seconds()),
	})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	categories, err := s.store.ListCategories(r.Context())
	if err != nil {
		logger.ErrorCF("api", "failed to list categories", map[string]interface{}{"error": err.Error()})
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"categories": categories})
}

// handleCategoryItems serves GET /api/categories/{id}/items.
func (s *Server) handleCategoryItems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/categories/")
	idText, tail, _ := strings.Cut(rest, "/")
	if tail != "items" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	categoryID, err := strconv.ParseInt(idText, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid category id")
		return
	}

	items, err := s.store.ListItemsByCategory(r.Context(), categoryID)
	if err != nil {
		logger.ErrorCF("api", "failed to list items", map[string]interface{}{
			"category_id": categoryID,
			"error":       err.Error(),
		})
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

// handleItemDetail serves GET /api/items/{id}: the item with its best bid
// and image count.
func (s *Server) handleItemDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	idText := strings.TrimPrefix(r.URL.Path, "/api/items/")
	itemID, err := strconv.ParseInt(idText, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := s.store.GetItem(r.Context(), itemID)
	if err != nil {
		logger.ErrorCF("api", "failed to load item", map[string]interface{}{
			"item_id": itemID,
			"error":   err.Error(),
		})
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if item == nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}

	best, err := s.store.BestBid(r.Context(), itemID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	images, err := s.store.ListItemImages(r.Context(), itemID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	payload := map[string]interface{}{
		"item":        item,
		"start_price": money.FormatCents(item.StartPriceCents),
		"images":      len(images),
	}
	if best != nil {
		payload["best_bid"] = map[string]interface{}{
			"bidder_id":    int64(best.BidderID),
			"amount_cents": best.AmountCents,
			"amount":       money.FormatCents(best.AmountCents),
		}
	}
	writeJSON(w, http.StatusOK, payload)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.WarnCF("api", "failed to encode response", map[string]interface{}{"error": err.Error()})
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
