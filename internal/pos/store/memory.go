package store

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/stockpile/pos-backend-go/internal/pos/checkout"
	"github.com/stockpile/pos-backend-go/internal/pos/domain"
)

// Memory is an in-process store with the same transactional semantics as
// the Postgres store: WithinTx works on a copy of the state and swaps it in
// only on success, so a failed checkout leaves nothing behind. The single
// mutex serializes transactions, which stands in for row-level locking.
// It backs unit tests and local development without a database.
type Memory struct {
	mu sync.Mutex
	st *memState
}

type memOrder struct {
	order domain.SaleOrder
	seq   int64
}

type OutboxRecord struct {
	EventID string
	Topic   string
	Key     string
	Payload []byte
}

type memState struct {
	products          map[string]*domain.Product
	customers         map[string]*domain.Customer
	orders            map[string]*memOrder
	sales             []domain.Sale
	purchases         []domain.Purchase
	counters          map[string]int64
	idem              map[string]string
	outbox            []OutboxRecord
	salesSummaries    []domain.SalesSummary
	purchaseSummaries []domain.PurchaseSummary
	expenseSummaries  []domain.ExpenseSummary
	nextSeq           int64
}

func NewMemory() *Memory {
	return &Memory{st: &memState{
		products:  map[string]*domain.Product{},
		customers: map[string]*domain.Customer{},
		orders:    map[string]*memOrder{},
		counters:  map[string]int64{},
		idem:      map[string]string{},
	}}
}

func (s *memState) clone() *memState {
	next := &memState{
		products:          make(map[string]*domain.Product, len(s.products)),
		customers:         make(map[string]*domain.Customer, len(s.customers)),
		orders:            make(map[string]*memOrder, len(s.orders)),
		sales:             append([]domain.Sale(nil), s.sales...),
		purchases:         append([]domain.Purchase(nil), s.purchases...),
		counters:          make(map[string]int64, len(s.counters)),
		idem:              make(map[string]string, len(s.idem)),
		outbox:            append([]OutboxRecord(nil), s.outbox...),
		salesSummaries:    append([]domain.SalesSummary(nil), s.salesSummaries...),
		purchaseSummaries: append([]domain.PurchaseSummary(nil), s.purchaseSummaries...),
		expenseSummaries:  append([]domain.ExpenseSummary(nil), s.expenseSummaries...),
		nextSeq:           s.nextSeq,
	}
	for id, p := range s.products {
		cp := *p
		next.products[id] = &cp
	}
	for id, c := range s.customers {
		cc := *c
		next.customers[id] = &cc
	}
	for id, o := range s.orders {
		co := *o
		co.order.Items = append([]domain.SaleItem(nil), o.order.Items...)
		next.orders[id] = &co
	}
	for k, v := range s.counters {
		next.counters[k] = v
	}
	for k, v := range s.idem {
		next.idem[k] = v
	}
	return next
}

func counterKey(accountID string, year, month int) string {
	return accountID + "|" + strconv.Itoa(year) + "|" + strconv.Itoa(month)
}

func idemMapKey(accountID, key string) string {
	return accountID + "|" + key
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) WithinTx(ctx context.Context, fn func(ctx context.Context, tx checkout.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.st.clone()
	if err := fn(ctx, &memTx{st: next}); err != nil {
		return err
	}
	m.st = next
	return nil
}

type memTx struct {
	st *memState
}

func (t *memTx) NextInvoiceSeq(ctx context.Context, accountID string, year, month int) (int64, error) {
	key := counterKey(accountID, year, month)
	t.st.counters[key]++
	return t.st.counters[key], nil
}

func (t *memTx) ProductForUpdate(ctx context.Context, accountID, productID string) (*domain.Product, error) {
	p, ok := t.st.products[productID]
	if !ok || p.AccountID != accountID {
		return nil, &domain.NotFoundError{Message: "Product " + productID + " not found"}
	}
	cp := *p
	return &cp, nil
}

func (t *memTx) AdjustStock(ctx context.Context, productID string, delta int64) error {
	p, ok := t.st.products[productID]
	if !ok || p.StockQuantity+delta < 0 {
		return domain.ErrStockConflict
	}
	p.StockQuantity += delta
	return nil
}

func (t *memTx) InsertSaleOrder(ctx context.Context, o *domain.SaleOrder) error {
	cp := *o
	cp.Items = []domain.SaleItem{}
	t.st.nextSeq++
	t.st.orders[o.SaleOrderID] = &memOrder{order: cp, seq: t.st.nextSeq}
	return nil
}

func (t *memTx) InsertSaleItem(ctx context.Context, it *domain.SaleItem) error {
	o := t.st.orders[it.SaleOrderID]
	cp := *it
	cp.Product = nil
	o.order.Items = append(o.order.Items, cp)
	return nil
}

func (t *memTx) InsertSale(ctx context.Context, s *domain.Sale) error {
	cp := *s
	cp.Product = nil
	t.st.sales = append(t.st.sales, cp)
	return nil
}

func (t *memTx) InsertPurchase(ctx context.Context, p *domain.Purchase) error {
	cp := *p
	cp.Product = nil
	t.st.purchases = append(t.st.purchases, cp)
	return nil
}

func (t *memTx) InsertIdempotencyKey(ctx context.Context, accountID, key, saleOrderID string) error {
	k := idemMapKey(accountID, key)
	if _, exists := t.st.idem[k]; exists {
		return domain.ErrDuplicateIdempotencyKey
	}
	t.st.idem[k] = saleOrderID
	return nil
}

func (t *memTx) InsertOutboxEvent(ctx context.Context, eventID, topic, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	t.st.outbox = append(t.st.outbox, OutboxRecord{EventID: eventID, Topic: topic, Key: key, Payload: data})
	return nil
}

func (t *memTx) SaleOrderByID(ctx context.Context, accountID, saleOrderID string) (*domain.SaleOrder, error) {
	return t.st.saleOrder(accountID, saleOrderID)
}

func (s *memState) saleOrder(accountID, saleOrderID string) (*domain.SaleOrder, error) {
	o, ok := s.orders[saleOrderID]
	if !ok || o.order.AccountID != accountID {
		return nil, &domain.NotFoundError{Message: "Sale order not found"}
	}
	out := o.order
	out.Items = make([]domain.SaleItem, len(o.order.Items))
	for i, it := range o.order.Items {
		out.Items[i] = it
		if p, ok := s.products[it.ProductID]; ok {
			cp := *p
			out.Items[i].Product = &cp
		}
	}
	if out.CustomerID != nil {
		if c, ok := s.customers[*out.CustomerID]; ok {
			cc := *c
			out.Customer = &cc
		}
	}
	return &out, nil
}

func (m *Memory) SaleOrderByIdempotencyKey(ctx context.Context, accountID, key string) (*domain.SaleOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	saleOrderID, ok := m.st.idem[idemMapKey(accountID, key)]
	if !ok {
		return nil, &domain.NotFoundError{Message: "Sale order not found"}
	}
	return m.st.saleOrder(accountID, saleOrderID)
}

func (m *Memory) ListSaleOrders(ctx context.Context, accountID string) ([]domain.SaleOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	type scored struct {
		id  string
		seq int64
	}
	picks := []scored{}
	for id, o := range m.st.orders {
		if o.order.AccountID == accountID {
			picks = append(picks, scored{id: id, seq: o.seq})
		}
	}
	// Newest first; seq breaks ties between orders created in the same
	// instant.
	sort.Slice(picks, func(i, j int) bool {
		a, b := m.st.orders[picks[i].id], m.st.orders[picks[j].id]
		if !a.order.CreatedAt.Equal(b.order.CreatedAt) {
			return a.order.CreatedAt.After(b.order.CreatedAt)
		}
		return a.seq > b.seq
	})
	out := make([]domain.SaleOrder, 0, len(picks))
	for _, pk := range picks {
		o, err := m.st.saleOrder(accountID, pk.id)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, nil
}

func (m *Memory) SaleOrder(ctx context.Context, accountID, saleOrderID string) (*domain.SaleOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.saleOrder(accountID, saleOrderID)
}

func (m *Memory) ListProducts(ctx context.Context, accountID, search string) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Product{}
	needle := strings.ToLower(search)
	for _, p := range m.st.products {
		if p.AccountID != accountID {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(p.Name), needle) {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) CreateProduct(ctx context.Context, p *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.st.products[p.ProductID] = &cp
	return nil
}

func (m *Memory) ListCustomers(ctx context.Context, accountID string) ([]domain.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Customer{}
	for _, c := range m.st.customers {
		if c.AccountID == accountID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) CreateCustomer(ctx context.Context, c *domain.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cc := *c
	m.st.customers[c.CustomerID] = &cc
	return nil
}

func (m *Memory) ListSales(ctx context.Context, accountID string) ([]domain.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Sale{}
	for _, s := range m.st.sales {
		if s.AccountID != accountID {
			continue
		}
		cp := s
		if p, ok := m.st.products[s.ProductID]; ok {
			pp := *p
			cp.Product = &pp
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (m *Memory) ListPurchases(ctx context.Context, accountID string) ([]domain.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Purchase{}
	for _, pu := range m.st.purchases {
		if pu.AccountID != accountID {
			continue
		}
		cp := pu
		if p, ok := m.st.products[pu.ProductID]; ok {
			pp := *p
			cp.Product = &pp
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (m *Memory) DashboardMetrics(ctx context.Context, accountID string) (*domain.DashboardMetrics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dm := &domain.DashboardMetrics{
		PopularProducts: []domain.Product{},
		SalesSummary:    []domain.SalesSummary{},
		PurchaseSummary: []domain.PurchaseSummary{},
		ExpenseSummary:  []domain.ExpenseSummary{},
	}
	for _, p := range m.st.products {
		if p.AccountID == accountID {
			dm.PopularProducts = append(dm.PopularProducts, *p)
		}
	}
	sort.Slice(dm.PopularProducts, func(i, j int) bool {
		return dm.PopularProducts[i].StockQuantity > dm.PopularProducts[j].StockQuantity
	})
	if len(dm.PopularProducts) > 15 {
		dm.PopularProducts = dm.PopularProducts[:15]
	}
	for _, sm := range m.st.salesSummaries {
		if sm.AccountID == accountID {
			dm.SalesSummary = append(dm.SalesSummary, sm)
		}
	}
	sort.Slice(dm.SalesSummary, func(i, j int) bool { return dm.SalesSummary[i].Date.After(dm.SalesSummary[j].Date) })
	if len(dm.SalesSummary) > 5 {
		dm.SalesSummary = dm.SalesSummary[:5]
	}
	for _, pm := range m.st.purchaseSummaries {
		if pm.AccountID == accountID {
			dm.PurchaseSummary = append(dm.PurchaseSummary, pm)
		}
	}
	sort.Slice(dm.PurchaseSummary, func(i, j int) bool { return dm.PurchaseSummary[i].Date.After(dm.PurchaseSummary[j].Date) })
	if len(dm.PurchaseSummary) > 5 {
		dm.PurchaseSummary = dm.PurchaseSummary[:5]
	}
	for _, em := range m.st.expenseSummaries {
		if em.AccountID == accountID {
			dm.ExpenseSummary = append(dm.ExpenseSummary, em)
		}
	}
	sort.Slice(dm.ExpenseSummary, func(i, j int) bool { return dm.ExpenseSummary[i].Date.After(dm.ExpenseSummary[j].Date) })
	if len(dm.ExpenseSummary) > 5 {
		dm.ExpenseSummary = dm.ExpenseSummary[:5]
	}
	return dm, nil
}

// Seed helpers for tests and the local development mode.

func (m *Memory) SeedSalesSummary(sm domain.SalesSummary) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.salesSummaries = append(m.st.salesSummaries, sm)
}

func (m *Memory) SeedPurchaseSummary(pm domain.PurchaseSummary) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.purchaseSummaries = append(m.st.purchaseSummaries, pm)
}

func (m *Memory) SeedExpenseSummary(em domain.ExpenseSummary) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.expenseSummaries = append(m.st.expenseSummaries, em)
}

// Product returns the current product row, for assertions on stock levels.
func (m *Memory) Product(productID string) (domain.Product, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.st.products[productID]
	if !ok {
		return domain.Product{}, false
	}
	return *p, true
}

// OutboxEvents returns the committed outbox records.
func (m *Memory) OutboxEvents() []OutboxRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]OutboxRecord(nil), m.st.outbox...)
}

// OrderCount reports how many orders an account has, for atomicity checks.
func (m *Memory) OrderCount(accountID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, o := range m.st.orders {
		if o.order.AccountID == accountID {
			n++
		}
	}
	return n
}
