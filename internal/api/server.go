package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/stockpile/pos-backend-go/internal/pos/domain"
	"github.com/stockpile/pos-backend-go/pkg/logging"
	"github.com/stockpile/pos-backend-go/pkg/metrics"
)

// AccountHeader carries the tenant identity. The upstream auth gateway
// verifies the credential and sets this header; the service trusts it.
const AccountHeader = "X-Account-ID"

// Store is the read/create surface the handlers need beyond checkout.
type Store interface {
	Ping(ctx context.Context) error
	ListSaleOrders(ctx context.Context, accountID string) ([]domain.SaleOrder, error)
	SaleOrder(ctx context.Context, accountID, saleOrderID string) (*domain.SaleOrder, error)
	ListProducts(ctx context.Context, accountID, search string) ([]domain.Product, error)
	CreateProduct(ctx context.Context, p *domain.Product) error
	ListCustomers(ctx context.Context, accountID string) ([]domain.Customer, error)
	CreateCustomer(ctx context.Context, c *domain.Customer) error
	ListSales(ctx context.Context, accountID string) ([]domain.Sale, error)
	ListPurchases(ctx context.Context, accountID string) ([]domain.Purchase, error)
	DashboardMetrics(ctx context.Context, accountID string) (*domain.DashboardMetrics, error)
}

// CheckoutService is the transactional side; implemented by checkout.Engine.
type CheckoutService interface {
	Checkout(ctx context.Context, accountID, idemKey string, in domain.CheckoutInput) (*domain.SaleOrder, error)
	RecordSale(ctx context.Context, accountID string, in domain.SaleInput) (*domain.Sale, error)
	RecordPurchase(ctx context.Context, accountID string, in domain.PurchaseInput) (*domain.Purchase, error)
}

type Server struct {
	store    Store
	checkout CheckoutService
	metrics  *metrics.ServerMetrics
	service  string
	devMode  bool
}

func NewServer(store Store, checkout CheckoutService, m *metrics.ServerMetrics, devMode bool) *Server {
	return &Server{store: store, checkout: checkout, metrics: m, service: "pos_server", devMode: devMode}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("POST /sale-orders", s.withAccount("checkout", s.handleCheckout))
	mux.HandleFunc("GET /sale-orders", s.withAccount("list_sale_orders", s.handleListSaleOrders))
	mux.HandleFunc("GET /sale-orders/{id}", s.withAccount("get_sale_order", s.handleGetSaleOrder))

	mux.HandleFunc("GET /products", s.withAccount("list_products", s.handleListProducts))
	mux.HandleFunc("POST /products", s.withAccount("create_product", s.handleCreateProduct))

	mux.HandleFunc("GET /customers", s.withAccount("list_customers", s.handleListCustomers))
	mux.HandleFunc("POST /customers", s.withAccount("create_customer", s.handleCreateCustomer))

	mux.HandleFunc("GET /sales", s.withAccount("list_sales", s.handleListSales))
	mux.HandleFunc("POST /sales", s.withAccount("create_sale", s.handleCreateSale))

	mux.HandleFunc("GET /purchases", s.withAccount("list_purchases", s.handleListPurchases))
	mux.HandleFunc("POST /purchases", s.withAccount("create_purchase", s.handleCreatePurchase))

	mux.HandleFunc("GET /dashboard", s.withAccount("dashboard", s.handleDashboard))

	return mux
}

type accountHandler func(w http.ResponseWriter, r *http.Request, accountID string)

func (s *Server) withAccount(name string, next accountHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		accountID := r.Header.Get(AccountHeader)
		if accountID == "" {
			s.writeJSON(w, name, http.StatusUnauthorized, start,
				map[string]any{"success": false, "message": "Missing account identity"})
			return
		}
		next(w, r, accountID)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if err := s.store.Ping(r.Context()); err != nil {
		s.writeJSON(w, "health", http.StatusServiceUnavailable, start, map[string]any{"status": "db_error"})
		return
	}
	s.writeJSON(w, "health", http.StatusOK, start, map[string]any{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, handler string, code int, start time.Time, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
	s.metrics.Requests.WithLabelValues(handler, httpStatusLabel(code)).Inc()
	s.metrics.LatencyMS.WithLabelValues(handler).Observe(float64(time.Since(start).Milliseconds()))
}

// writeError maps the error taxonomy onto status codes: validation and
// insufficient stock are 400, not-found is 404, everything else is an
// opaque 500 that gets logged with full context.
func (s *Server) writeError(w http.ResponseWriter, handler, accountID string, err error, start time.Time) {
	var (
		validation   *domain.ValidationError
		notFound     *domain.NotFoundError
		insufficient *domain.InsufficientStockError
	)
	switch {
	case errors.As(err, &validation):
		s.writeJSON(w, handler, http.StatusBadRequest, start,
			map[string]any{"success": false, "message": validation.Message})
	case errors.As(err, &insufficient):
		s.writeJSON(w, handler, http.StatusBadRequest, start,
			map[string]any{"success": false, "message": insufficient.Error()})
	case errors.As(err, &notFound):
		s.writeJSON(w, handler, http.StatusNotFound, start,
			map[string]any{"success": false, "message": notFound.Message})
	default:
		logging.Log(logging.Fields{
			Service:   s.service,
			AccountID: accountID,
			Step:      handler,
			Status:    "error",
			Error:     err.Error(),
		})
		body := map[string]any{"success": false, "message": "Internal server error"}
		if s.devMode {
			body["error"] = err.Error()
		}
		s.writeJSON(w, handler, http.StatusInternalServerError, start, body)
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, handler string, start time.Time, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeJSON(w, handler, http.StatusBadRequest, start,
			map[string]any{"success": false, "message": "Invalid JSON body"})
		return false
	}
	return true
}

func httpStatusLabel(code int) string {
	switch code {
	case http.StatusOK:
		return "200"
	case http.StatusCreated:
		return "201"
	case http.StatusBadRequest:
		return "400"
	case http.StatusUnauthorized:
		return "401"
	case http.StatusNotFound:
		return "404"
	case http.StatusServiceUnavailable:
		return "503"
	default:
		return "500"
	}
}
