package routes

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/onda-protocol/onda-program-library-sub000/core/ledger"
	"github.com/onda-protocol/onda-program-library-sub000/gateway/middleware"
	"github.com/onda-protocol/onda-program-library-sub000/services/history"
)

// Scopes checked on mutating routes when authentication is enabled.
const (
	ScopeWrite = "instruments:write"
	ScopeAdmin = "ledger:admin"
)

// Rate limit buckets. Buckets without a configured limit are unlimited.
const (
	BucketAccounts = "accounts"
	BucketLoans    = "loans"
	BucketOptions  = "options"
	BucketRentals  = "rentals"
	BucketStream   = "stream"
)

type Config struct {
	Ledger  *ledger.Ledger
	History *history.Store
	Hub     *Hub
	// Authenticator guards mutating routes. Nil trusts the caller header.
	Authenticator *middleware.Authenticator
	RateLimiter   *middleware.RateLimiter
	Observability *middleware.Observability
	CORS          middleware.CORSConfig
	Logger        *slog.Logger
	// RequestTimeout bounds each ledger call, including the asset lock wait.
	RequestTimeout time.Duration
}

func New(cfg Config) (http.Handler, error) {
	if cfg.Ledger == nil {
		return nil, errors.New("routes: ledger required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	auth := cfg.Authenticator
	if auth == nil {
		auth = middleware.NewAuthenticator(middleware.AuthConfig{}, logger)
	}
	h := &handlers{ledger: cfg.Ledger, logger: logger, timeout: cfg.RequestTimeout}

	r := chi.NewRouter()
	r.Use(middleware.CORS(cfg.CORS))

	obs := cfg.Observability
	if obs != nil {
		r.Use(obs.Middleware("root"))
		r.Handle("/metrics", obs.MetricsHandler())
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	limiter := func(bucket string) func(http.Handler) http.Handler {
		if cfg.RateLimiter == nil {
			return func(next http.Handler) http.Handler { return next }
		}
		return cfg.RateLimiter.Middleware(bucket)
	}
	// Writes authenticate before the limiter so buckets key on the caller.
	reads := func(sr chi.Router, bucket string) chi.Router {
		return sr.With(limiter(bucket))
	}
	writes := func(sr chi.Router, bucket string, scopes ...string) chi.Router {
		return sr.With(auth.Middleware(scopes...), limiter(bucket))
	}

	r.Route("/v1/accounts", func(sr chi.Router) {
		reads(sr, BucketAccounts).Get("/{address}/balance", h.balance)
		writes(sr, BucketAccounts, ScopeAdmin).Post("/deposit", h.deposit)
	})

	r.Route("/v1/assets", func(sr chi.Router) {
		get := reads(sr, BucketAccounts)
		get.Get("/{asset}", h.read(h.assetMetadata))
		get.Get("/{asset}/custody", h.read(h.custodyView))
		get.Get("/{asset}/history", h.read(h.assetHistory(cfg.History)))
		w := writes(sr, BucketAccounts, ScopeWrite)
		w.Post("/", h.registerAsset)
		w.Post("/{asset}/transfer", mutate(h, h.transfer))
	})

	r.Route("/v1/loans/{asset}", func(sr chi.Router) {
		get := reads(sr, BucketLoans)
		get.Get("/", h.read(h.loanView))
		get.Get("/quote", h.read(h.loanQuote))
		get.Get("/offers", h.read(h.loanOffers))
		w := writes(sr, BucketLoans, ScopeWrite)
		w.Post("/ask", mutate(h, h.askLoan))
		w.Post("/fund", mutate(h, h.fundLoan))
		w.Post("/repay", mutate(h, h.repayLoan))
		w.Post("/repossess", mutate(h, h.repossessLoan))
		w.Post("/close", mutate(h, h.closeLoan))
		w.Post("/offers", mutate(h, h.offerLoan))
		w.Post("/offers/cancel", mutate(h, h.cancelLoanOffer))
		w.Post("/offers/take", mutate(h, h.takeLoanOffer))
	})

	r.Route("/v1/options/{asset}", func(sr chi.Router) {
		get := reads(sr, BucketOptions)
		get.Get("/", h.read(h.optionView))
		get.Get("/bids", h.read(h.optionBids))
		w := writes(sr, BucketOptions, ScopeWrite)
		w.Post("/ask", mutate(h, h.askOption))
		w.Post("/buy", mutate(h, h.buyOption))
		w.Post("/exercise", mutate(h, h.exerciseOption))
		w.Post("/close", mutate(h, h.closeOption))
		w.Post("/bids", mutate(h, h.bidOption))
		w.Post("/bids/cancel", mutate(h, h.cancelOptionBid))
		w.Post("/bids/sell", mutate(h, h.sellOptionIntoBid))
	})

	r.Route("/v1/rentals/{asset}", func(sr chi.Router) {
		get := reads(sr, BucketRentals)
		get.Get("/", h.read(h.rentalView))
		get.Get("/escrow", h.read(h.rentalEscrow))
		w := writes(sr, BucketRentals, ScopeWrite)
		w.Post("/list", mutate(h, h.listRental))
		w.Post("/take", mutate(h, h.takeRental))
		w.Post("/extend", mutate(h, h.extendRental))
		w.Post("/recover", mutate(h, h.recoverRental))
		w.Post("/withdraw", mutate(h, h.withdrawRentalEscrow))
		w.Post("/close", mutate(h, h.closeRental))
	})

	if cfg.Hub != nil {
		reads(r, BucketStream).Handle("/v1/events/ws", cfg.Hub)
	}

	return r, nil
}
