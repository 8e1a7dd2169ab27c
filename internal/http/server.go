// Package http serves the Coinly JSON API.
package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"coinly/internal/cache"
	"coinly/internal/core"
	"coinly/internal/importer"
	"coinly/internal/log"
	"coinly/internal/middleware/auth"
	"coinly/internal/middleware/ratelimit"
	"coinly/internal/middleware/security"
	"coinly/internal/middleware/trace"
	"coinly/internal/services"
	"coinly/internal/storage"
)

const (
	categoryCacheSize = 512
	categoryCacheTTL  = 5 * time.Minute
)

// Store is the persistence the API reads and writes.
type Store interface {
	Ping(ctx context.Context) error

	CreateAccount(ctx context.Context, a core.Account) (int64, error)
	ListAccounts(ctx context.Context, userID int64) ([]core.Account, error)
	GetAccount(ctx context.Context, id, userID int64) (*core.Account, error)
	UpdateAccount(ctx context.Context, a core.Account) error
	DeleteAccount(ctx context.Context, id, userID int64) error
	FindOrCreateAccount(ctx context.Context, userID int64, name, currency string) (int64, error)

	CreateCategory(ctx context.Context, c core.Category) (int64, error)
	ListCategories(ctx context.Context, userID int64) ([]core.Category, error)
	GetCategory(ctx context.Context, id, userID int64) (*core.Category, error)
	UpdateCategory(ctx context.Context, c core.Category) error
	DeleteCategory(ctx context.Context, id, userID int64) error
	FindCategoryByName(ctx context.Context, userID int64, name string, kind core.TransactionKind) (int64, error)

	ListRecurring(ctx context.Context, userID int64) ([]core.RecurringRule, error)
	GetRecurring(ctx context.Context, id, userID int64) (*core.RecurringRule, error)
	CreateRecurring(ctx context.Context, rule core.RecurringRule) (int64, error)
	UpdateRecurring(ctx context.Context, rule core.RecurringRule) error
	DeleteRecurring(ctx context.Context, id, userID int64) error
	SetRecurringActive(ctx context.Context, id, userID int64, active bool) error

	ListTransactions(ctx context.Context, userID int64, f storage.TransactionFilter) ([]core.Transaction, error)
	GetTransaction(ctx context.Context, id, userID int64) (*core.Transaction, error)
	UpdateTransaction(ctx context.Context, tx core.Transaction) error
	DeleteTransaction(ctx context.Context, id, userID int64) error
	TransactionStats(ctx context.Context, userID int64, start, end *core.Date) (*core.TransactionStats, error)

	MonthlyReport(ctx context.Context, userID int64, year, month int) (*core.MonthlyReport, error)
	YearlyReport(ctx context.Context, userID int64, year int) (*core.YearlyReport, error)
	CategoryReport(ctx context.Context, userID int64, start, end core.Date, kind core.TransactionKind) ([]core.CategoryTotal, error)
	IncomeVsExpenses(ctx context.Context, userID int64, start, end core.Date) ([]core.PeriodBalance, error)

	ListBudgets(ctx context.Context, userID int64) ([]core.Budget, error)
	GetBudget(ctx context.Context, id, userID int64) (*core.Budget, error)
	CreateBudget(ctx context.Context, b core.Budget) (int64, error)
	UpdateBudget(ctx context.Context, b core.Budget) error
	DeleteBudget(ctx context.Context, id, userID int64) error
	BudgetSpent(ctx context.Context, b core.Budget) (decimal.Decimal, error)

	ListSavingsGoals(ctx context.Context, userID int64) ([]core.SavingsGoal, error)
	GetSavingsGoal(ctx context.Context, id, userID int64) (*core.SavingsGoal, error)
	CreateSavingsGoal(ctx context.Context, g core.SavingsGoal) (int64, error)
	UpdateSavingsGoal(ctx context.Context, g core.SavingsGoal) error
	DeleteSavingsGoal(ctx context.Context, id, userID int64) error
	DepositToSavingsGoal(ctx context.Context, id, userID int64, amount decimal.Decimal) (*core.SavingsGoal, error)
}

// Poster posts a validated transaction.
type Poster interface {
	Post(ctx context.Context, tx core.Transaction) (int64, error)
}

// Previewer lists the rules that would fire on a date.
type Previewer interface {
	Preview(ctx context.Context, today core.Date) ([]services.PreviewItem, error)
}

// Runner executes the recurring pass for a date.
type Runner interface {
	Run(ctx context.Context, today core.Date) (services.Summary, error)
}

// Deps are the collaborators behind the handlers.
type Deps struct {
	Store     Store
	Poster    Poster
	Previewer Previewer
	Runner    Runner
	// Today is the scheduler's notion of the current date.
	Today func() core.Date
}

type Options struct {
	Verifier           *auth.Verifier
	Logger             *log.Logger
	RateLimitPerMinute int // 0 disables limiting
	TrustedProxies     []string
	DefaultCurrency    string
}

type Server struct {
	http.Server
	store      Store
	poster     Poster
	previewer  Previewer
	runner     Runner
	importer   *importer.Importer
	categories *cache.CategoryLookup
	today      func() core.Date

	defaultCurrency string
	limiter         *ratelimit.Limiter
	tracer          *trace.Middleware
	detector        *security.Detector
	shutdownOnce    sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps, opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Config{Component: log.ComponentHTTP})
	}
	today := deps.Today
	if today == nil {
		today = func() core.Date { return core.DateOf(time.Now()) }
	}

	if opts.Verifier == nil {
		return nil, errors.New("http server requires a token verifier")
	}

	ips, err := security.NewClientIPResolver(opts.TrustedProxies...)
	if err != nil {
		return nil, err
	}

	categories := cache.NewCategoryLookup(deps.Store, categoryCacheSize, categoryCacheTTL)
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		store:           deps.Store,
		poster:          deps.Poster,
		previewer:       deps.Previewer,
		runner:          deps.Runner,
		importer:        importer.New(categories, deps.Store, deps.Poster, opts.DefaultCurrency),
		categories:      categories,
		today:           today,
		defaultCurrency: opts.DefaultCurrency,
		tracer:          trace.NewMiddleware(logger, ips.ClientIP),
		detector:        security.NewDetector(logger, ips.ClientIP),
	}

	api := http.NewServeMux()
	api.HandleFunc("GET /api/recurring", s.handleListRecurring)
	api.HandleFunc("POST /api/recurring", s.handleCreateRecurring)
	api.HandleFunc("GET /api/recurring/preview", s.handlePreview)
	api.HandleFunc("POST /api/recurring/execute", s.handleExecute)
	api.HandleFunc("GET /api/recurring/{id}", s.handleGetRecurring)
	api.HandleFunc("PUT /api/recurring/{id}", s.handleUpdateRecurring)
	api.HandleFunc("DELETE /api/recurring/{id}", s.handleDeleteRecurring)
	api.HandleFunc("PATCH /api/recurring/{id}/toggle", s.handleToggleRecurring)
	api.HandleFunc("GET /api/recurring/{id}/upcoming", s.handleUpcoming)
	api.HandleFunc("GET /api/accounts", s.handleListAccounts)
	api.HandleFunc("POST /api/accounts", s.handleCreateAccount)
	api.HandleFunc("GET /api/accounts/{id}", s.handleGetAccount)
	api.HandleFunc("PUT /api/accounts/{id}", s.handleUpdateAccount)
	api.HandleFunc("DELETE /api/accounts/{id}", s.handleDeleteAccount)
	api.HandleFunc("GET /api/categories", s.handleListCategories)
	api.HandleFunc("POST /api/categories", s.handleCreateCategory)
	api.HandleFunc("PUT /api/categories/{id}", s.handleUpdateCategory)
	api.HandleFunc("DELETE /api/categories/{id}", s.handleDeleteCategory)
	api.HandleFunc("GET /api/transactions", s.handleListTransactions)
	api.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	api.HandleFunc("GET /api/transactions/stats", s.handleTransactionStats)
	api.HandleFunc("GET /api/transactions/{id}", s.handleGetTransaction)
	api.HandleFunc("PUT /api/transactions/{id}", s.handleUpdateTransaction)
	api.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)
	api.HandleFunc("POST /api/import", s.handleImport)
	api.HandleFunc("GET /api/reports/monthly", s.handleMonthlyReport)
	api.HandleFunc("GET /api/reports/yearly", s.handleYearlyReport)
	api.HandleFunc("GET /api/reports/category", s.handleCategoryReport)
	api.HandleFunc("GET /api/reports/expenses-by-period", s.handleExpensesByPeriod)
	api.HandleFunc("GET /api/reports/income-vs-expenses", s.handleIncomeVsExpenses)
	api.HandleFunc("GET /api/budgets", s.handleListBudgets)
	api.HandleFunc("POST /api/budgets", s.handleCreateBudget)
	api.HandleFunc("GET /api/budgets/{id}", s.handleGetBudget)
	api.HandleFunc("GET /api/budgets/{id}/status", s.handleBudgetStatus)
	api.HandleFunc("PUT /api/budgets/{id}", s.handleUpdateBudget)
	api.HandleFunc("DELETE /api/budgets/{id}", s.handleDeleteBudget)
	api.HandleFunc("GET /api/savings/goals", s.handleListGoals)
	api.HandleFunc("POST /api/savings/goals", s.handleCreateGoal)
	api.HandleFunc("GET /api/savings/goals/{id}", s.handleGetGoal)
	api.HandleFunc("PUT /api/savings/goals/{id}", s.handleUpdateGoal)
	api.HandleFunc("DELETE /api/savings/goals/{id}", s.handleDeleteGoal)
	api.HandleFunc("POST /api/savings/goals/{id}/deposit", s.handleDepositToGoal)

	var protected http.Handler = opts.Verifier.Middleware(respondError)(api)
	if opts.RateLimitPerMinute > 0 {
		s.limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute})
		protected = s.limiter.Middleware(ips.ClientIP, func(w http.ResponseWriter, r *http.Request) {
			logger.WarnContext(r.Context(), "Rate limit exceeded",
				log.FieldClientIP, ips.ClientIP(r),
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
			respondError(w, r, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
		})(protected)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("/api/", protected)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	s.Handler = s.tracer.Middleware(s.detector.Middleware(headers.Middleware(mux)))
	return s, nil
}

// Metrics exposes request counters collected by the trace middleware.
func (s *Server) Metrics() trace.Metrics {
	return s.tracer.GetMetrics()
}

// SecurityMetrics exposes the suspicious request counters.
func (s *Server) SecurityMetrics() security.DetectorMetrics {
	return s.detector.GetMetrics()
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("database unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
