package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/stockpile/pos-backend-go/internal/pos/domain"
)

const saleOrderColumns = `o.sale_order_id, o.account_id, o.customer_id, o.invoice_number,
       o.subtotal, o.tax, o.discount, o.total_amount, o.status,
       o.payment_method, o.notes, o.created_at,
       c.name, c.email, c.created_at`

func scanSaleOrder(row pgx.Row) (*domain.SaleOrder, error) {
	var (
		o         domain.SaleOrder
		status    string
		custName  *string
		custEmail *string
		custAt    *time.Time
	)
	err := row.Scan(&o.SaleOrderID, &o.AccountID, &o.CustomerID, &o.InvoiceNumber,
		&o.Subtotal, &o.Tax, &o.Discount, &o.TotalAmount, &status,
		&o.PaymentMethod, &o.Notes, &o.CreatedAt,
		&custName, &custEmail, &custAt)
	if err != nil {
		return nil, err
	}
	o.Status = domain.OrderStatus(status)
	if o.CustomerID != nil && custName != nil {
		o.Customer = &domain.Customer{
			CustomerID: *o.CustomerID,
			AccountID:  o.AccountID,
			Name:       *custName,
		}
		if custEmail != nil {
			o.Customer.Email = *custEmail
		}
		if custAt != nil {
			o.Customer.CreatedAt = *custAt
		}
	}
	o.Items = []domain.SaleItem{}
	return &o, nil
}

func loadSaleOrder(ctx context.Context, q querier, accountID, saleOrderID string) (*domain.SaleOrder, error) {
	row := q.QueryRow(ctx,
		`SELECT `+saleOrderColumns+`
		   FROM sale_orders o
		   LEFT JOIN customers c ON c.customer_id = o.customer_id
		  WHERE o.sale_order_id=$1 AND o.account_id=$2`,
		saleOrderID, accountID)
	o, err := scanSaleOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domain.NotFoundError{Message: "Sale order not found"}
	}
	if err != nil {
		return nil, err
	}
	items, err := loadSaleItems(ctx, q, []string{saleOrderID})
	if err != nil {
		return nil, err
	}
	o.Items = items[saleOrderID]
	if o.Items == nil {
		o.Items = []domain.SaleItem{}
	}
	return o, nil
}

func loadSaleItems(ctx context.Context, q querier, saleOrderIDs []string) (map[string][]domain.SaleItem, error) {
	out := make(map[string][]domain.SaleItem, len(saleOrderIDs))
	if len(saleOrderIDs) == 0 {
		return out, nil
	}
	rows, err := q.Query(ctx,
		`SELECT i.sale_item_id, i.sale_order_id, i.product_id, i.quantity, i.unit_price, i.total_price,
		        p.account_id, p.name, p.price, p.rating, p.stock_quantity
		   FROM sale_items i
		   JOIN products p ON p.product_id = i.product_id
		  WHERE i.sale_order_id = ANY($1)
		  ORDER BY i.id`,
		saleOrderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var it domain.SaleItem
		var p domain.Product
		if err := rows.Scan(&it.SaleItemID, &it.SaleOrderID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.TotalPrice,
			&p.AccountID, &p.Name, &p.Price, &p.Rating, &p.StockQuantity); err != nil {
			return nil, err
		}
		p.ProductID = it.ProductID
		it.Product = &p
		out[it.SaleOrderID] = append(out[it.SaleOrderID], it)
	}
	return out, rows.Err()
}

func (s *Postgres) ListSaleOrders(ctx context.Context, accountID string) ([]domain.SaleOrder, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+saleOrderColumns+`
		   FROM sale_orders o
		   LEFT JOIN customers c ON c.customer_id = o.customer_id
		  WHERE o.account_id=$1
		  ORDER BY o.created_at DESC`,
		accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []domain.SaleOrder{}
	ids := []string{}
	for rows.Next() {
		o, err := scanSaleOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
		ids = append(ids, o.SaleOrderID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	items, err := loadSaleItems(ctx, s.pool, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		if its := items[orders[i].SaleOrderID]; its != nil {
			orders[i].Items = its
		}
	}
	return orders, nil
}

func (s *Postgres) SaleOrder(ctx context.Context, accountID, saleOrderID string) (*domain.SaleOrder, error) {
	return loadSaleOrder(ctx, s.pool, accountID, saleOrderID)
}

func (s *Postgres) ListProducts(ctx context.Context, accountID, search string) ([]domain.Product, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT product_id, account_id, name, price, rating, stock_quantity
		   FROM products
		  WHERE account_id=$1 AND ($2 = '' OR name ILIKE '%' || $2 || '%')
		  ORDER BY name`,
		accountID, search)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := []domain.Product{}
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ProductID, &p.AccountID, &p.Name, &p.Price, &p.Rating, &p.StockQuantity); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *Postgres) CreateProduct(ctx context.Context, p *domain.Product) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO products(product_id, account_id, name, price, rating, stock_quantity)
		 VALUES($1,$2,$3,$4,$5,$6)`,
		p.ProductID, p.AccountID, p.Name, p.Price, p.Rating, p.StockQuantity)
	return err
}

func (s *Postgres) ListCustomers(ctx context.Context, accountID string) ([]domain.Customer, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT customer_id, account_id, name, email, created_at
		   FROM customers WHERE account_id=$1 ORDER BY name`,
		accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := []domain.Customer{}
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.CustomerID, &c.AccountID, &c.Name, &c.Email, &c.CreatedAt); err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func (s *Postgres) CreateCustomer(ctx context.Context, c *domain.Customer) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO customers(customer_id, account_id, name, email, created_at)
		 VALUES($1,$2,$3,$4,$5)`,
		c.CustomerID, c.AccountID, c.Name, c.Email, c.CreatedAt)
	return err
}

func (s *Postgres) ListSales(ctx context.Context, accountID string) ([]domain.Sale, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT s.sale_id, s.account_id, s.product_id, s.quantity, s.unit_price, s.total_amount, s.ts,
		        p.name, p.price, p.rating, p.stock_quantity
		   FROM sales s
		   JOIN products p ON p.product_id = s.product_id
		  WHERE s.account_id=$1
		  ORDER BY s.ts DESC`,
		accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := []domain.Sale{}
	for rows.Next() {
		var sl domain.Sale
		var p domain.Product
		if err := rows.Scan(&sl.SaleID, &sl.AccountID, &sl.ProductID, &sl.Quantity, &sl.UnitPrice, &sl.TotalAmount, &sl.Timestamp,
			&p.Name, &p.Price, &p.Rating, &p.StockQuantity); err != nil {
			return nil, err
		}
		p.ProductID = sl.ProductID
		p.AccountID = sl.AccountID
		sl.Product = &p
		sales = append(sales, sl)
	}
	return sales, rows.Err()
}

func (s *Postgres) ListPurchases(ctx context.Context, accountID string) ([]domain.Purchase, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT pu.purchase_id, pu.account_id, pu.product_id, pu.quantity, pu.unit_cost, pu.total_cost, pu.ts,
		        p.name, p.price, p.rating, p.stock_quantity
		   FROM purchases pu
		   JOIN products p ON p.product_id = pu.product_id
		  WHERE pu.account_id=$1
		  ORDER BY pu.ts DESC`,
		accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	purchases := []domain.Purchase{}
	for rows.Next() {
		var pu domain.Purchase
		var p domain.Product
		if err := rows.Scan(&pu.PurchaseID, &pu.AccountID, &pu.ProductID, &pu.Quantity, &pu.UnitCost, &pu.TotalCost, &pu.Timestamp,
			&p.Name, &p.Price, &p.Rating, &p.StockQuantity); err != nil {
			return nil, err
		}
		p.ProductID = pu.ProductID
		p.AccountID = pu.AccountID
		pu.Product = &p
		purchases = append(purchases, pu)
	}
	return purchases, rows.Err()
}

func (s *Postgres) DashboardMetrics(ctx context.Context, accountID string) (*domain.DashboardMetrics, error) {
	m := &domain.DashboardMetrics{
		PopularProducts: []domain.Product{},
		SalesSummary:    []domain.SalesSummary{},
		PurchaseSummary: []domain.PurchaseSummary{},
		ExpenseSummary:  []domain.ExpenseSummary{},
	}

	rows, err := s.pool.Query(ctx,
		`SELECT product_id, account_id, name, price, rating, stock_quantity
		   FROM products WHERE account_id=$1
		  ORDER BY stock_quantity DESC LIMIT 15`,
		accountID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ProductID, &p.AccountID, &p.Name, &p.Price, &p.Rating, &p.StockQuantity); err != nil {
			rows.Close()
			return nil, err
		}
		m.PopularProducts = append(m.PopularProducts, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.pool.Query(ctx,
		`SELECT sales_summary_id, account_id, total_value, change_percentage, date
		   FROM sales_summary WHERE account_id=$1 ORDER BY date DESC LIMIT 5`,
		accountID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var sm domain.SalesSummary
		if err := rows.Scan(&sm.SalesSummaryID, &sm.AccountID, &sm.TotalValue, &sm.ChangePercentage, &sm.Date); err != nil {
			rows.Close()
			return nil, err
		}
		m.SalesSummary = append(m.SalesSummary, sm)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.pool.Query(ctx,
		`SELECT purchase_summary_id, account_id, total_purchased, change_percentage, date
		   FROM purchase_summary WHERE account_id=$1 ORDER BY date DESC LIMIT 5`,
		accountID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var pm domain.PurchaseSummary
		if err := rows.Scan(&pm.PurchaseSummaryID, &pm.AccountID, &pm.TotalPurchased, &pm.ChangePercentage, &pm.Date); err != nil {
			rows.Close()
			return nil, err
		}
		m.PurchaseSummary = append(m.PurchaseSummary, pm)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.pool.Query(ctx,
		`SELECT expense_summary_id, account_id, total_expenses, date
		   FROM expense_summary WHERE account_id=$1 ORDER BY date DESC LIMIT 5`,
		accountID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var em domain.ExpenseSummary
		if err := rows.Scan(&em.ExpenseSummaryID, &em.AccountID, &em.TotalExpenses, &em.Date); err != nil {
			rows.Close()
			return nil, err
		}
		m.ExpenseSummary = append(m.ExpenseSummary, em)
	}
	rows.Close()
	return m, rows.Err()
}
