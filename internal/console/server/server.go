package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/xela07ax/agent-mandate/internal/console/handler"
	"github.com/xela07ax/agent-mandate/internal/infra/auth"
)

// Scopes консоли
const (
	ScopeMandatesRead  = "mandates.read"
	ScopeMandatesWrite = "mandates.write"
	ScopeApprovals     = "approvals.decide"
)

type ConsoleServer struct {
	router *chi.Mux
	logger *zap.Logger

	// Интерфейс для проверки токенов (RS256), токены выпускает внешний IdP
	authValidator auth.TokenValidator

	// Обработчики бизнес-доменов
	mandateHandler  *handler.MandateHandler   // /v1/mandates, /v1/grantors
	approvalHandler *handler.ApprovalHandler  // /v1/approvals (HITL)
	dashHandler     *handler.DashboardHandler // /api/v1/dashboard
	auditHandler    *handler.AuditHandler     // /v1/audit (Action Log)
}

// NewConsoleServer инициализирует сервер консоли со всеми зависимостями
func NewConsoleServer(
	logger *zap.Logger,
	validator auth.TokenValidator,
	mandateH *handler.MandateHandler,
	approvalH *handler.ApprovalHandler,
	dashH *handler.DashboardHandler,
	auditH *handler.AuditHandler,
) *ConsoleServer {
	s := &ConsoleServer{
		router:          chi.NewRouter(),
		logger:          logger.Named("console-api"),
		authValidator:   validator,
		mandateHandler:  mandateH,
		approvalHandler: approvalH,
		dashHandler:     dashH,
		auditHandler:    auditH,
	}

	s.routes()
	return s
}

func (s *ConsoleServer) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware (для всех) ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// --- 2. ПУБЛИЧНЫЕ РОУТЫ ---
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// --- 3. ЗАЩИЩЕННЫЙ ПЕРИМЕТР (Требуют RS256 токен) ---
	r.Group(func(r chi.Router) {
		r.Use(auth.NewMiddleware(s.authValidator, s.logger))

		// Мандаты: агент читает, пользователь выпускает и отзывает
		r.With(auth.RequireAnyScope(ScopeMandatesRead, ScopeMandatesWrite)).
			Get("/v1/grantors/{id}/mandates", s.mandateHandler.ListForGrantor)

		r.Route("/v1/mandates", func(r chi.Router) {
			r.Use(auth.RequireAnyScope(ScopeMandatesWrite))
			r.Post("/", s.mandateHandler.Issue)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.mandateHandler.Get)
				r.Post("/revoke", s.mandateHandler.Revoke) // БД + Redis-сигнал шлюзам
			})
		})

		// Human-in-the-loop (Approvals)
		r.Route("/v1/approvals", func(r chi.Router) {
			r.Use(auth.RequireAnyScope(ScopeApprovals))
			r.Get("/", s.approvalHandler.List) // Очередь запросов на проверку
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.approvalHandler.GetDetails)
				r.Post("/decide", s.approvalHandler.Decide) // Approve/Reject + Redis Publish
			})
		})

		// Аудит и дашборд
		r.With(auth.RequireAnyScope(ScopeMandatesWrite, ScopeApprovals)).Get("/v1/audit", s.auditHandler.GetLogs)
		r.With(auth.RequireAnyScope(ScopeMandatesWrite, ScopeApprovals)).Get("/api/v1/dashboard/stats", s.dashHandler.GetStats)
	})
}

// ServeHTTP позволяет использовать ConsoleServer как стандартный http.Handler
func (s *ConsoleServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
