// Package api exposes the ledger service over HTTP: a chi router with HMAC
// authentication, per-principal rate limiting and a websocket notification
// stream.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"token_swap/internal/domain"
	"token_swap/internal/infra"
	"token_swap/internal/infra/auth"
	"token_swap/internal/service"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

const maxNotificationLimit = 256

// Config captures the dependencies required to construct the server.
type Config struct {
	Service        *service.LedgerService
	Verifier       *auth.Verifier
	Hub            *Hub
	Metrics        *infra.Metrics // optional
	RateLimitRPS   float64
	RateLimitBurst int
	Logger         *slog.Logger
}

// Server encapsulates dependencies for the HTTP API.
type Server struct {
	svc      *service.LedgerService
	verifier *auth.Verifier
	hub      *Hub
	metrics  *infra.Metrics
	limiter  *RateLimiter
	logger   *slog.Logger

	router http.Handler
}

// New constructs the configured HTTP router.
func New(cfg Config) (*Server, error) {
	if cfg.Service == nil {
		return nil, errors.New("api: service is required")
	}
	if cfg.Verifier == nil {
		return nil, errors.New("api: verifier is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Hub == nil {
		cfg.Hub = NewHub(nil, cfg.Logger)
	}
	s := &Server{
		svc:      cfg.Service,
		verifier: cfg.Verifier,
		hub:      cfg.Hub,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger.With("module", "api"),
	}
	s.limiter = NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, s.throttled("rate_limit"))
	s.router = s.buildRouter()
	return s, nil
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Limiter returns the per-principal limiter, nil when limiting is disabled.
func (s *Server) Limiter() *RateLimiter {
	return s.limiter
}

func (s *Server) throttled(reason string) func() {
	return func() {
		if s.metrics != nil {
			s.metrics.RecordThrottle(reason)
		}
	}
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.Health)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/v1", func(v1 chi.Router) {
		// Public reads
		v1.Get("/state", s.GetState)
		v1.Get("/rates", s.ListRates)
		v1.Get("/rates/{from}/{to}", s.GetRate)
		v1.Post("/quote", s.Quote)
		v1.Get("/liquidity/{address}", s.ListShares)
		v1.Get("/liquidity/{address}/{asset}", s.GetShare)
		v1.Get("/balances/{address}", s.ListBalances)
		v1.Get("/balances/{address}/{asset}", s.GetBalance)
		v1.Get("/notifications", s.ListNotifications)
		v1.Get("/assets", s.ListAssets)
		v1.Handle("/stream", s.hub)

		// Signed mutations; the caller is the key's principal.
		v1.Group(func(protected chi.Router) {
			protected.Use(authenticate(s.verifier, s.throttled("auth")))
			protected.Use(s.limiter.Middleware)

			protected.Put("/state", s.SetState)
			protected.Put("/rates/{from}/{to}", s.SetRate)
			protected.Post("/swap", s.Swap)
			protected.Post("/liquidity/add", s.AddLiquidity)
			protected.Post("/liquidity/remove", s.RemoveLiquidity)
		})
	})

	return r
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "invalid payload: "+err.Error())
		return false
	}
	return true
}

func callerOf(r *http.Request) domain.Address {
	caller, _ := domain.CallerFrom(r.Context())
	return caller
}

// ======================================================================================
// Health
// ======================================================================================

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		State:   s.svc.State(),
		NextSeq: s.svc.NextSeq(),
		Streams: s.hub.Len(),
	})
}

// ======================================================================================
// State
// ======================================================================================

func (s *Server) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StateResponse{State: s.svc.State()})
}

func (s *Server) SetState(w http.ResponseWriter, r *http.Request) {
	var req SetStateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	seq, err := s.svc.SetState(r.Context(), callerOf(r), req.State)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.SetState(req.State)
	}
	writeJSON(w, http.StatusOK, StateResponse{State: req.State, Seq: seq})
}

// ======================================================================================
// Rates
// ======================================================================================

func (s *Server) ListRates(w http.ResponseWriter, r *http.Request) {
	rates, err := s.svc.Rates()
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	out := make([]RateResponse, 0, len(rates))
	for _, rate := range rates {
		out = append(out, RateResponse{From: rate.From, To: rate.To, Rate: rate.Rate})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) GetRate(w http.ResponseWriter, r *http.Request) {
	from, to := domain.AssetID(chi.URLParam(r, "from")), domain.AssetID(chi.URLParam(r, "to"))
	rate, err := s.svc.ExchangeRate(from, to)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RateResponse{From: from, To: to, Rate: rate})
}

func (s *Server) SetRate(w http.ResponseWriter, r *http.Request) {
	var req SetRateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	from, to := domain.AssetID(chi.URLParam(r, "from")), domain.AssetID(chi.URLParam(r, "to"))
	seq, err := s.svc.SetExchangeRate(r.Context(), callerOf(r), from, to, req.Rate)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RateResponse{From: from, To: to, Rate: req.Rate, Seq: seq})
}

// ======================================================================================
// Swap
// ======================================================================================

func (s *Server) Swap(w http.ResponseWriter, r *http.Request) {
	var req SwapRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := s.svc.Swap(r.Context(), callerOf(r), req.FromAsset, req.FromAmount, req.ToAsset)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SwapResponse{
		FromAsset:  req.FromAsset,
		FromAmount: req.FromAmount,
		ToAsset:    req.ToAsset,
		ToAmount:   res.Amount,
		Seq:        res.Seq,
	})
}

func (s *Server) Quote(w http.ResponseWriter, r *http.Request) {
	var req SwapRequest
	if !decodeBody(w, r, &req) {
		return
	}
	out, err := s.svc.Quote(req.FromAsset, req.FromAmount, req.ToAsset)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SwapResponse{
		FromAsset:  req.FromAsset,
		FromAmount: req.FromAmount,
		ToAsset:    req.ToAsset,
		ToAmount:   out,
	})
}

// ======================================================================================
// Liquidity
// ======================================================================================

func (s *Server) AddLiquidity(w http.ResponseWriter, r *http.Request) {
	var req LiquidityRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller := callerOf(r)
	res, err := s.svc.AddLiquidity(r.Context(), caller, req.Asset, req.Amount)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LiquidityResponse{Provider: caller, Asset: req.Asset, Share: res.Amount, Seq: res.Seq})
}

func (s *Server) RemoveLiquidity(w http.ResponseWriter, r *http.Request) {
	var req LiquidityRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller := callerOf(r)
	res, err := s.svc.RemoveLiquidity(r.Context(), caller, req.Asset, req.Amount)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LiquidityResponse{Provider: caller, Asset: req.Asset, Share: res.Amount, Seq: res.Seq})
}

func (s *Server) GetShare(w http.ResponseWriter, r *http.Request) {
	provider, asset := domain.Address(chi.URLParam(r, "address")), domain.AssetID(chi.URLParam(r, "asset"))
	if !domain.IsValidAssetID(asset) {
		writeLedgerError(w, domain.ErrInvalidAsset)
		return
	}
	share, err := s.svc.LiquidityShare(provider, asset)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LiquidityResponse{Provider: provider, Asset: asset, Share: share})
}

func (s *Server) ListShares(w http.ResponseWriter, r *http.Request) {
	provider := domain.Address(chi.URLParam(r, "address"))
	shares, err := s.svc.Shares(provider)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	out := make([]LiquidityResponse, 0, len(shares))
	for _, sh := range shares {
		out = append(out, LiquidityResponse{Provider: sh.Provider, Asset: sh.Asset, Share: sh.Amount})
	}
	writeJSON(w, http.StatusOK, out)
}

// ======================================================================================
// Balances, notifications, assets
// ======================================================================================

func (s *Server) GetBalance(w http.ResponseWriter, r *http.Request) {
	holder, asset := domain.Address(chi.URLParam(r, "address")), domain.AssetID(chi.URLParam(r, "asset"))
	amount, err := s.svc.Balance(holder, asset)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{Holder: holder, Asset: asset, Amount: amount})
}

func (s *Server) ListBalances(w http.ResponseWriter, r *http.Request) {
	holder := domain.Address(chi.URLParam(r, "address"))
	holdings, ok := s.svc.Holdings(holder)
	if !ok {
		writeError(w, http.StatusNotImplemented, "Unsupported", "bank cannot list holdings")
		return
	}
	out := make([]BalanceResponse, 0, len(holdings))
	for asset, amount := range holdings {
		out = append(out, BalanceResponse{Holder: holder, Asset: asset, Amount: amount})
	}
	sortBalances(out)
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) ListNotifications(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "InvalidRequest", "limit must be a positive integer")
			return
		}
		limit = min(n, maxNotificationLimit)
	}
	writeJSON(w, http.StatusOK, s.svc.Notifications(limit))
}

func (s *Server) ListAssets(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	assets, err := s.svc.Assets(activeOnly)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	if assets == nil {
		assets = []domain.AssetInfo{}
	}
	writeJSON(w, http.StatusOK, assets)
}

// HTTPServer wraps the router with the configured timeouts.
func HTTPServer(addr string, handler http.Handler, readTimeout, writeTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		WriteTimeout:      writeTimeout,
	}
}
