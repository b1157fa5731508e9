package logging

import (
	"encoding/json"
	"log"
	"time"
)

type Fields struct {
	Service     string `json:"service"`
	AccountID   string `json:"account_id,omitempty"`
	SaleOrderID string `json:"sale_order_id,omitempty"`
	Invoice     string `json:"invoice,omitempty"`
	ProductID   string `json:"product_id,omitempty"`
	Step        string `json:"step,omitempty"`
	Status      string `json:"status,omitempty"`
	DurationMS  int64  `json:"duration_ms,omitempty"`
	Message     string `json:"message,omitempty"`
	Error       string `json:"error,omitempty"`
}

func Log(fields Fields) {
	payload := map[string]any{
		"service":       fields.Service,
		"account_id":    fields.AccountID,
		"sale_order_id": fields.SaleOrderID,
		"invoice":       fields.Invoice,
		"product_id":    fields.ProductID,
		"step":          fields.Step,
		"status":        fields.Status,
		"duration_ms":   fields.DurationMS,
		"message":       fields.Message,
		"error":         fields.Error,
		"timestamp":     time.Now().UTC().Format(time.RFC3339Nano),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("{\"service\":%q,\"status\":\"log_error\",\"error\":%q}", fields.Service, err.Error())
		return
	}
	log.Print(string(data))
}
