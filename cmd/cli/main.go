package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
)

// Small ops console against a running pos-server: seed demo data, fire a
// checkout, inspect stock. Use -run for scripted, non-interactive mode.

type action struct {
	Name        string
	Description string
}

type model struct {
	actions  []action
	selected int
	status   string
	detail   string
	busy     bool
}

func initialModel() model {
	return model{
		actions: []action{
			{"seed", "Create a demo product and customer"},
			{"checkout", "Run one cart checkout against the demo product"},
			{"stock", "Show current products and stock levels"},
		},
		status: "Ready",
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "up":
			if m.selected > 0 {
				m.selected--
			}
		case "down":
			if m.selected < len(m.actions)-1 {
				m.selected++
			}
		case "enter":
			if m.busy {
				return m, nil
			}
			m.busy = true
			m.status = "Running..."
			return m, runActionCmd(m.actions[m.selected].Name)
		}
	case actionResult:
		m.busy = false
		m.status = msg.status
		m.detail = msg.detail
	}
	return m, nil
}

func (m model) View() string {
	b := &strings.Builder{}
	fmt.Fprintln(b, "pos-backend-go CLI")
	fmt.Fprintln(b, "")
	fmt.Fprintln(b, "Actions:")
	for i, a := range m.actions {
		marker := " "
		if i == m.selected {
			marker = ">"
		}
		fmt.Fprintf(b, " %s %s - %s\n", marker, a.Name, a.Description)
	}
	fmt.Fprintln(b, "")
	fmt.Fprintf(b, "Status: %s\n", m.status)
	if m.detail != "" {
		fmt.Fprintf(b, "%s\n", m.detail)
	}
	fmt.Fprintln(b, "\nControls: up/down select, enter to run, q to quit")
	return b.String()
}

type actionResult struct {
	status string
	detail string
}

const demoProductID = "demo-espresso-beans"

func runActionCmd(name string) tea.Cmd {
	return func() tea.Msg {
		baseURL := getenv("POS_BASE_URL", "http://localhost:8080")
		accountID := getenv("POS_ACCOUNT_ID", "demo-account")
		switch name {
		case "seed":
			return seed(baseURL, accountID)
		case "checkout":
			return runCheckout(baseURL, accountID)
		case "stock":
			return showStock(baseURL, accountID)
		default:
			return actionResult{status: fmt.Sprintf("unknown action %q", name)}
		}
	}
}

func seed(baseURL, accountID string) actionResult {
	product := map[string]any{
		"productId":     demoProductID,
		"name":          "Espresso Beans 1kg",
		"price":         "24.50",
		"stockQuantity": 100,
	}
	if _, err := call(baseURL, accountID, http.MethodPost, "/products", product); err != nil {
		return actionResult{status: fmt.Sprintf("Seed failed: %v", err)}
	}
	customer := map[string]any{
		"name":  "Walk-in Customer",
		"email": "walkin@example.com",
	}
	body, err := call(baseURL, accountID, http.MethodPost, "/customers", customer)
	if err != nil {
		return actionResult{status: fmt.Sprintf("Seed failed: %v", err)}
	}
	return actionResult{status: "Seeded demo product and customer", detail: body}
}

func runCheckout(baseURL, accountID string) actionResult {
	payload := map[string]any{
		"items": []map[string]any{
			{"productId": demoProductID, "quantity": 2, "unitPrice": json.Number("24.50")},
		},
		"tax": json.Number("3.50"),
	}
	body, err := call(baseURL, accountID, http.MethodPost, "/sale-orders", payload)
	if err != nil {
		return actionResult{status: fmt.Sprintf("Checkout failed: %v", err)}
	}
	var order map[string]any
	_ = json.Unmarshal([]byte(body), &order)
	invoice, _ := order["invoiceNumber"].(string)
	return actionResult{status: fmt.Sprintf("Checkout OK: %s", invoice), detail: body}
}

func showStock(baseURL, accountID string) actionResult {
	body, err := call(baseURL, accountID, http.MethodGet, "/products", nil)
	if err != nil {
		return actionResult{status: fmt.Sprintf("Stock query failed: %v", err)}
	}
	return actionResult{status: "Products", detail: body}
}

func call(baseURL, accountID, method, path string, payload any) (string, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return "", err
		}
		body = bytes.NewReader(data)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := strings.TrimRight(baseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Account-ID", accountID)
	if method == http.MethodPost {
		req.Header.Set("Idempotency-Key", uuid.NewString())
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))
	}
	return string(respBody), nil
}

func main() {
	runCmd := flag.String("run", "", "run action non-interactively: seed|checkout|stock")
	flag.Parse()

	if *runCmd != "" {
		res := runActionCmd(*runCmd)().(actionResult)
		fmt.Println(res.status)
		if res.detail != "" {
			fmt.Println(res.detail)
		}
		return
	}

	p := tea.NewProgram(initialModel())
	if _, err := p.Run(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func getenv(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}
