package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Load generator for the checkout endpoint. Besides latency percentiles it
// counts insufficient-stock rejections separately from transport failures
// and verifies that no invoice number was issued twice.

type benchResult struct {
	Timestamp          string         `json:"timestamp"`
	BaseURL            string         `json:"base_url"`
	AccountID          string         `json:"account_id"`
	Checkouts          int            `json:"checkouts"`
	Concurrency        int            `json:"concurrency"`
	SuccessfulRequests int            `json:"successful_requests"`
	ErrorRequests      int            `json:"error_requests"`
	DurationSeconds    float64        `json:"duration_seconds"`
	AvgLatencyMs       float64        `json:"avg_latency_ms"`
	MinLatencyMs       float64        `json:"min_latency_ms"`
	MaxLatencyMs       float64        `json:"max_latency_ms"`
	P50LatencyMs       float64        `json:"p50_latency_ms"`
	P90LatencyMs       float64        `json:"p90_latency_ms"`
	P95LatencyMs       float64        `json:"p95_latency_ms"`
	P99LatencyMs       float64        `json:"p99_latency_ms"`
	ThroughputRPS      float64        `json:"throughput_rps"`
	StatusCounts       map[string]int `json:"status_counts"`
	ErrorClasses       map[string]int `json:"error_classes"`
	FirstError         string         `json:"first_error"`
	DuplicateInvoices  int            `json:"duplicate_invoices"`
}

type benchMetrics struct {
	mu           sync.Mutex
	success      int
	errors       int
	total        time.Duration
	minLatency   time.Duration
	maxLatency   time.Duration
	latenciesMs  []float64
	statusCounts map[string]int
	errorClasses map[string]int
	firstError   string
	invoices     map[string]int
}

func newBenchMetrics() *benchMetrics {
	return &benchMetrics{
		statusCounts: make(map[string]int),
		errorClasses: make(map[string]int),
		invoices:     make(map[string]int),
	}
}

func (m *benchMetrics) record(latency time.Duration, status int, invoice, class string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusCounts[strconv.Itoa(status)]++
	if class != "" {
		m.errorClasses[class]++
	}
	if invoice != "" {
		m.invoices[invoice]++
	}
	if err != nil {
		m.errors++
		if m.firstError == "" {
			m.firstError = err.Error()
		}
		return
	}
	m.success++
	m.total += latency
	if m.minLatency == 0 || latency < m.minLatency {
		m.minLatency = latency
	}
	if latency > m.maxLatency {
		m.maxLatency = latency
	}
	m.latenciesMs = append(m.latenciesMs, float64(latency.Milliseconds()))
}

func (m *benchMetrics) duplicateInvoices() int {
	dups := 0
	for _, n := range m.invoices {
		if n > 1 {
			dups += n - 1
		}
	}
	return dups
}

func main() {
	baseURL := flag.String("base-url", getenv("POS_BASE_URL", "http://localhost:8080"), "pos-server base URL")
	accountID := flag.String("account", getenv("POS_ACCOUNT_ID", ""), "account to run checkouts for")
	productID := flag.String("product", "", "product to sell")
	quantity := flag.Int64("quantity", 1, "quantity per checkout line")
	unitPrice := flag.String("unit-price", "10.00", "unit price per line")
	total := flag.Int("total", 1000, "total number of checkouts")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	timeout := flag.Duration("timeout", 10*time.Second, "per-request timeout")
	output := flag.String("output", "", "optional output path for JSON result")
	flag.Parse()

	if *accountID == "" || *productID == "" {
		fmt.Fprintln(os.Stderr, "account and product are required")
		os.Exit(1)
	}
	if *total <= 0 || *concurrency <= 0 {
		fmt.Fprintln(os.Stderr, "total and concurrency must be > 0")
		os.Exit(1)
	}

	url := strings.TrimRight(*baseURL, "/") + "/sale-orders"
	payload := map[string]any{
		"items": []map[string]any{
			{"productId": *productID, "quantity": *quantity, "unitPrice": json.Number(*unitPrice)},
		},
	}

	tasks := make(chan struct{})
	var wg sync.WaitGroup
	m := newBenchMetrics()
	client := &http.Client{}

	start := time.Now()
	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range tasks {
				latency, status, invoice, class, err := runCheckout(client, url, *accountID, payload, *timeout)
				m.record(latency, status, invoice, class, err)
			}
		}()
	}

	for i := 0; i < *total; i++ {
		tasks <- struct{}{}
	}
	close(tasks)
	wg.Wait()

	duration := time.Since(start)
	avgLatency := 0.0
	minLatency := 0.0
	maxLatency := 0.0
	if m.success > 0 {
		avgLatency = float64(m.total.Milliseconds()) / float64(m.success)
		minLatency = float64(m.minLatency.Milliseconds())
		maxLatency = float64(m.maxLatency.Milliseconds())
	}
	p50, p90, p95, p99 := calcPercentiles(m.latenciesMs)

	result := benchResult{
		Timestamp:          time.Now().UTC().Format(time.RFC3339),
		BaseURL:            *baseURL,
		AccountID:          *accountID,
		Checkouts:          *total,
		Concurrency:        *concurrency,
		SuccessfulRequests: m.success,
		ErrorRequests:      m.errors,
		DurationSeconds:    duration.Seconds(),
		AvgLatencyMs:       avgLatency,
		MinLatencyMs:       minLatency,
		MaxLatencyMs:       maxLatency,
		P50LatencyMs:       p50,
		P90LatencyMs:       p90,
		P95LatencyMs:       p95,
		P99LatencyMs:       p99,
		ThroughputRPS:      float64(m.success) / duration.Seconds(),
		StatusCounts:       m.statusCounts,
		ErrorClasses:       m.errorClasses,
		FirstError:         m.firstError,
		DuplicateInvoices:  m.duplicateInvoices(),
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode result: %v\n", err)
		os.Exit(1)
	}

	if *output != "" {
		data, err := json.MarshalIndent(result, "", "  ")
		if err == nil {
			err = os.WriteFile(*output, data, 0o644)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to write output: %v\n", err)
			os.Exit(1)
		}
	}
}

func runCheckout(client *http.Client, url, accountID string, payload any, timeout time.Duration) (time.Duration, int, string, string, error) {
	data, _ := json.Marshal(payload)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return time.Since(start), 0, "", "transport", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Account-ID", accountID)
	req.Header.Set("Idempotency-Key", uuid.NewString())

	resp, err := client.Do(req)
	if err != nil {
		return time.Since(start), 0, "", "transport", err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	latency := time.Since(start)

	var parsed map[string]any
	_ = json.Unmarshal(body, &parsed)
	invoice, _ := parsed["invoiceNumber"].(string)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message, _ := parsed["message"].(string)
		return latency, resp.StatusCode, "", classifyError(resp.StatusCode, message),
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return latency, resp.StatusCode, invoice, "", nil
}

func classifyError(status int, message string) string {
	switch {
	case strings.Contains(message, "Insufficient stock"):
		return "insufficient_stock"
	case status == http.StatusNotFound:
		return "not_found"
	case status >= 500:
		return "http_5xx"
	case status >= 400:
		return "http_4xx"
	default:
		return ""
	}
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func calcPercentiles(values []float64) (float64, float64, float64, float64) {
	if len(values) == 0 {
		return 0, 0, 0, 0
	}
	sort.Float64s(values)
	return percentile(values, 0.50), percentile(values, 0.90), percentile(values, 0.95), percentile(values, 0.99)
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	rank := int(math.Ceil(p*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}
