package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"coinledger/internal/config"
	"coinledger/internal/economy"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
)

type contextKey string

const accountContextKey contextKey = "account"

// AccountHeader carries the acting account. The chat layer in front of the
// API has already authenticated the user; the id is trusted as given.
const AccountHeader = "X-Account-ID"

type Server struct {
	cfg    config.Config
	log    *slog.Logger
	ledger *economy.Engine
	mux    *chi.Mux
}

func New(cfg config.Config, logger *slog.Logger, ledger *economy.Engine) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:    cfg,
		log:    logger,
		ledger: ledger,
		mux:    chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(ensureRequestID)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", AccountHeader, middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeOK(w, http.StatusOK, map[string]any{"transactions": s.ledger.TransactionCount()})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/accounts/{id}/balance", s.handleAccountBalance)
		r.Get("/leaderboard", s.handleLeaderboard)
		r.Get("/investments/types", s.handleInvestmentTypes)
		r.Get("/market", s.handleMarketList)
		r.Get("/market/{item}", s.handleMarketItem)

		r.Group(func(r chi.Router) {
			r.Use(s.accountMiddleware)
			r.Get("/balance", s.handleBalance)
			r.Post("/transfers", s.handleTransfer)
			r.Get("/transactions", s.handleTransactions)
			r.Get("/stats", s.handleStats)

			r.Get("/businesses", s.handleBusinessesList)
			r.Post("/businesses", s.handleCreateBusiness)
			r.Post("/businesses/collect", s.handleCollect)
			r.Post("/businesses/{id}/upgrade", s.handleUpgrade)

			r.Get("/investments", s.handleInvestmentsList)
			r.Post("/investments", s.handleCreateInvestment)

			r.Post("/market/{item}/buy", s.handleMarketTrade(true))
			r.Post("/market/{item}/sell", s.handleMarketTrade(false))

			r.Post("/lottery", s.handleLottery)
			r.Post("/daily", s.handleDaily)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.adminMiddleware)
			r.Post("/accounts/{id}/balance", s.handleAdminBalance)
			r.Post("/market/tick", s.handleAdminTick)
			r.Post("/investments/sweep", s.handleAdminSweep)
			r.Post("/transactions/prune", s.handleAdminPrune)
		})
	})
}

func (s *Server) accountMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(AccountHeader))
		if id == "" {
			writeError(w, http.StatusUnauthorized, "missing_account", "missing "+AccountHeader+" header")
			return
		}
		if !economy.ValidAccountID(id) {
			writeDomainError(w, economy.ErrInvalidAccount)
			return
		}
		ctx := context.WithValue(r.Context(), accountContextKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// adminMiddleware hides admin routes entirely when no token is configured.
func (s *Server) adminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AdminToken == "" {
			writeError(w, http.StatusNotFound, "not_found", "admin routes are disabled")
			return
		}
		token := bearerToken(r.Header.Get("Authorization"))
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AdminToken)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid admin token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func accountFromContext(ctx context.Context) string {
	id, _ := ctx.Value(accountContextKey).(string)
	return id
}

// ensureRequestID fills in a uuid request id so middleware.RequestID passes
// it through and the caller can correlate with the response header.
func ensureRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(middleware.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(middleware.RequestIDHeader, id)
		}
		w.Header().Set(middleware.RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"elapsed", time.Since(start).String(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func writeDomainError(w http.ResponseWriter, err error) {
	reason := economy.Reason(err)
	status := http.StatusInternalServerError
	switch reason {
	case "invalid_account", "invalid_amount", "invalid_target", "invalid_quantity",
		"invalid_business_type", "invalid_investment_type", "investment_too_low",
		"invalid_transaction", "insufficient_funds", "no_businesses", "balance_overflow":
		status = http.StatusBadRequest
	case "business_not_found", "unknown_item":
		status = http.StatusNotFound
	case "daily_cooldown":
		status = http.StatusTooManyRequests
	case "persist_failed":
		status = http.StatusServiceUnavailable
	default:
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			status, reason = http.StatusServiceUnavailable, "timeout"
		}
	}
	body := map[string]any{"success": false, "reason": reason, "error": err.Error()}
	var cd *economy.CooldownError
	if errors.As(err, &cd) {
		body["hours_left"] = cd.HoursLeft()
	}
	writeJSON(w, status, body)
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	return nil
}

// writeOK merges fields into a success envelope.
func writeOK(w http.ResponseWriter, status int, fields map[string]any) {
	body := map[string]any{"success": true}
	for k, v := range fields {
		body[k] = v
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, reason, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"reason":  reason,
		"error":   strings.TrimSpace(message),
	})
}

func queryLimit(r *http.Request, fallback int) int {
	v := strings.TrimSpace(r.URL.Query().Get("limit"))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
