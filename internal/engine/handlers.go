package engine

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/xela07ax/agent-mandate/internal/connectors"
	"github.com/xela07ax/agent-mandate/internal/domain"
	"github.com/xela07ax/agent-mandate/internal/infra/auth"
)

const codeCannotVerify = "cannot_verify_authorization"

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// HTTPServer: REST-периметр шлюза покупок.
type HTTPServer struct {
	router    *chi.Mux
	gateway   *PurchaseGateway
	validator auth.TokenValidator
	scopes    []string
	metrics   *Metrics
	logger    *zap.Logger
}

func NewHTTPServer(gw *PurchaseGateway, validator auth.TokenValidator, requiredScopes []string, metrics *Metrics, logger *zap.Logger) *HTTPServer {
	if metrics == nil {
		metrics = gw.metrics
	}
	s := &HTTPServer{
		router:    chi.NewRouter(),
		gateway:   gw,
		validator: validator,
		scopes:    requiredScopes,
		metrics:   metrics,
		logger:    logger.Named("gateway-api"),
	}
	s.routes()
	return s
}

func (s *HTTPServer) routes() {
	r := s.router

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(TracingMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.NewMiddleware(s.validator, s.logger))
		r.Use(auth.RequireAnyScope(s.scopes...))

		r.Get("/v1/purchase", s.HandleProductInfo)
		r.Post("/v1/purchase", s.HandlePurchase)
	})
}

func (s *HTTPServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// HandleProductInfo GET /v1/purchase?productName=...
func (s *HTTPServer) HandleProductInfo(w http.ResponseWriter, r *http.Request) {
	specs, err := s.gateway.ProductInfo(r.Context(), r.URL.Query().Get("productName"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, specs)
}

// HandlePurchase POST /v1/purchase
func (s *HTTPServer) HandlePurchase(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := http.StatusOK
	defer func() {
		s.metrics.RequestDuration.WithLabelValues(strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	}()

	// 1. Мандаты до тела: без них разговаривать не о чем
	mandates, err := DecodeMandates(r.Header.Get(MandatesHeader))
	if err != nil {
		status = s.writeError(w, r, err)
		return
	}

	// 2. Заказ
	var order domain.PurchaseOrder
	if err := json.NewDecoder(r.Body).Decode(&order); err != nil {
		status = s.writeError(w, r, domain.ErrInvalidOrder)
		return
	}

	// 3. Пайплайн шлюза
	receipt, err := s.gateway.ProcessPurchase(r.Context(), auth.SubjectFromContext(r.Context()), mandates, order)
	if err != nil {
		status = s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, receipt)
}

// writeError переводит ошибку пайплайна в HTTP-ответ и возвращает код.
func (s *HTTPServer) writeError(w http.ResponseWriter, r *http.Request, err error) int {
	var violation *PolicyViolationError

	switch {
	case errors.Is(err, domain.ErrMandatesRequired):
		s.metrics.ErrorTotal.WithLabelValues("mandates_missing").Inc()
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Agent mandates are required to purchase a product"})
		return http.StatusUnauthorized

	case errors.Is(err, domain.ErrMalformedMandates):
		s.metrics.ErrorTotal.WithLabelValues("malformed_input").Inc()
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: domain.ErrMalformedMandates.Error(), Code: codeCannotVerify})
		return http.StatusBadRequest

	case errors.As(err, &violation):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: violation.Result.Message, Code: string(violation.Result.Reason)})
		return http.StatusUnauthorized

	case errors.Is(err, domain.ErrMandateRevoked):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error(), Code: "revoked"})
		return http.StatusUnauthorized

	case errors.Is(err, domain.ErrInvalidOrder):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return http.StatusBadRequest

	case errors.Is(err, connectors.ErrProductUnavailable):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
		return http.StatusUnprocessableEntity

	default:
		// Детали отказа поставщика наружу не отдаем
		s.logger.Error("purchase provider failure",
			zap.String("trace_id", extractTraceID(r.Context())), zap.Error(err))
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "purchase provider is unavailable"})
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
