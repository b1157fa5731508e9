package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/stockpile/pos-backend-go/internal/pos/domain"
	"github.com/stockpile/pos-backend-go/pkg/idempotency"
	"github.com/stockpile/pos-backend-go/pkg/logging"
)

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request, accountID string) {
	start := time.Now()
	var in domain.CheckoutInput
	if !s.decode(w, r, "checkout", start, &in) {
		return
	}

	order, err := s.checkout.Checkout(r.Context(), accountID, idempotency.Key(r), in)
	if err != nil {
		s.metrics.Checkouts.WithLabelValues("rejected").Inc()
		s.writeError(w, "checkout", accountID, err, start)
		return
	}

	s.metrics.Checkouts.WithLabelValues("completed").Inc()
	logging.Log(logging.Fields{
		Service:     s.service,
		AccountID:   accountID,
		SaleOrderID: order.SaleOrderID,
		Invoice:     order.InvoiceNumber,
		Step:        "checkout",
		Status:      "committed",
		DurationMS:  time.Since(start).Milliseconds(),
	})
	s.writeJSON(w, "checkout", http.StatusCreated, start, order)
}

func (s *Server) handleListSaleOrders(w http.ResponseWriter, r *http.Request, accountID string) {
	start := time.Now()
	orders, err := s.store.ListSaleOrders(r.Context(), accountID)
	if err != nil {
		s.writeError(w, "list_sale_orders", accountID, err, start)
		return
	}
	s.writeJSON(w, "list_sale_orders", http.StatusOK, start, orders)
}

func (s *Server) handleGetSaleOrder(w http.ResponseWriter, r *http.Request, accountID string) {
	start := time.Now()
	order, err := s.store.SaleOrder(r.Context(), accountID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, "get_sale_order", accountID, err, start)
		return
	}
	s.writeJSON(w, "get_sale_order", http.StatusOK, start, order)
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request, accountID string) {
	start := time.Now()
	products, err := s.store.ListProducts(r.Context(), accountID, r.URL.Query().Get("search"))
	if err != nil {
		s.writeError(w, "list_products", accountID, err, start)
		return
	}
	s.writeJSON(w, "list_products", http.StatusOK, start, products)
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request, accountID string) {
	start := time.Now()
	var p domain.Product
	if !s.decode(w, r, "create_product", start, &p) {
		return
	}
	if p.Name == "" || p.Price.Sign() <= 0 {
		s.writeJSON(w, "create_product", http.StatusBadRequest, start,
			map[string]any{"success": false, "message": "Product requires name and a positive price"})
		return
	}
	if p.StockQuantity < 0 {
		s.writeJSON(w, "create_product", http.StatusBadRequest, start,
			map[string]any{"success": false, "message": "Stock quantity must not be negative"})
		return
	}
	if p.ProductID == "" {
		p.ProductID = uuid.NewString()
	}
	p.AccountID = accountID
	if err := s.store.CreateProduct(r.Context(), &p); err != nil {
		s.writeError(w, "create_product", accountID, err, start)
		return
	}
	s.writeJSON(w, "create_product", http.StatusCreated, start, p)
}

func (s *Server) handleListCustomers(w http.ResponseWriter, r *http.Request, accountID string) {
	start := time.Now()
	customers, err := s.store.ListCustomers(r.Context(), accountID)
	if err != nil {
		s.writeError(w, "list_customers", accountID, err, start)
		return
	}
	s.writeJSON(w, "list_customers", http.StatusOK, start, customers)
}

func (s *Server) handleCreateCustomer(w http.ResponseWriter, r *http.Request, accountID string) {
	start := time.Now()
	var c domain.Customer
	if !s.decode(w, r, "create_customer", start, &c) {
		return
	}
	if c.Name == "" || c.Email == "" {
		s.writeJSON(w, "create_customer", http.StatusBadRequest, start,
			map[string]any{"success": false, "message": "Customer requires name and email"})
		return
	}
	if c.CustomerID == "" {
		c.CustomerID = uuid.NewString()
	}
	c.AccountID = accountID
	c.CreatedAt = time.Now().UTC()
	if err := s.store.CreateCustomer(r.Context(), &c); err != nil {
		s.writeError(w, "create_customer", accountID, err, start)
		return
	}
	s.writeJSON(w, "create_customer", http.StatusCreated, start, c)
}

func (s *Server) handleListSales(w http.ResponseWriter, r *http.Request, accountID string) {
	start := time.Now()
	sales, err := s.store.ListSales(r.Context(), accountID)
	if err != nil {
		s.writeError(w, "list_sales", accountID, err, start)
		return
	}
	s.writeJSON(w, "list_sales", http.StatusOK, start, sales)
}

func (s *Server) handleCreateSale(w http.ResponseWriter, r *http.Request, accountID string) {
	start := time.Now()
	var in domain.SaleInput
	if !s.decode(w, r, "create_sale", start, &in) {
		return
	}
	sale, err := s.checkout.RecordSale(r.Context(), accountID, in)
	if err != nil {
		s.writeError(w, "create_sale", accountID, err, start)
		return
	}
	s.writeJSON(w, "create_sale", http.StatusCreated, start, sale)
}

func (s *Server) handleListPurchases(w http.ResponseWriter, r *http.Request, accountID string) {
	start := time.Now()
	purchases, err := s.store.ListPurchases(r.Context(), accountID)
	if err != nil {
		s.writeError(w, "list_purchases", accountID, err, start)
		return
	}
	s.writeJSON(w, "list_purchases", http.StatusOK, start, purchases)
}

func (s *Server) handleCreatePurchase(w http.ResponseWriter, r *http.Request, accountID string) {
	start := time.Now()
	var in domain.PurchaseInput
	if !s.decode(w, r, "create_purchase", start, &in) {
		return
	}
	purchase, err := s.checkout.RecordPurchase(r.Context(), accountID, in)
	if err != nil {
		s.writeError(w, "create_purchase", accountID, err, start)
		return
	}
	s.writeJSON(w, "create_purchase", http.StatusCreated, start, purchase)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, accountID string) {
	start := time.Now()
	m, err := s.store.DashboardMetrics(r.Context(), accountID)
	if err != nil {
		s.writeError(w, "dashboard", accountID, err, start)
		return
	}
	s.writeJSON(w, "dashboard", http.StatusOK, start, m)
}
