package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *FraudwatchClient
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *FraudwatchClient) *Handlers {
	return &Handlers{client: client}
}

// HandleDetectTransaction runs one transaction through fraud detection.
func (h *Handlers) HandleDetectTransaction(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	txID := req.GetString("transaction_id", "")
	if txID == "" {
		return mcp.NewToolResultError("transaction_id is required"), nil
	}

	tx := map[string]any{"transaction_id": txID}
	args := req.GetArguments()
	if v, ok := args["amount"].(float64); ok {
		tx["amount"] = v
	} else {
		return mcp.NewToolResultError("amount is required"), nil
	}
	for _, key := range []string{"payer_email", "payer_ip", "payer_browser", "gateway_bank", "payment_mode", "payee_id"} {
		if v := req.GetString(key, ""); v != "" {
			tx[key] = v
		}
	}

	raw, err := h.client.Detect(ctx, tx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Detection failed: %v", err)), nil
	}

	text, err := formatVerdict(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse verdict: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleListRules lists the configured fraud rules.
func (h *Handlers) HandleListRules(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.ListRules(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list rules: %v", err)), nil
	}

	text, err := formatRuleList(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse rules: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleRecentTransactions lists recently evaluated transactions.
func (h *Handlers) HandleRecentTransactions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 20)

	raw, err := h.client.RecentTransactions(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list transactions: %v", err)), nil
	}

	text, err := formatTransactionList(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse transactions: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleFraudStats returns aggregate verdict counts.
func (h *Handlers) HandleFraudStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.Stats(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get stats: %v", err)), nil
	}

	text, err := formatStats(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse stats: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// --- Formatting helpers ---

func formatVerdict(raw json.RawMessage) (string, error) {
	var v struct {
		TransactionID string   `json:"transaction_id"`
		FraudByRule   bool     `json:"is_fraud_rule"`
		FraudByModel  *bool    `json:"is_fraud_predicted"`
		Reasons       []string `json:"fraud_reasons"`
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Transaction: %s\n", v.TransactionID)
	fmt.Fprintf(&sb, "Rule verdict: %s\n", fraudWord(v.FraudByRule))
	if v.FraudByModel == nil {
		sb.WriteString("Anomaly model: unavailable\n")
	} else {
		fmt.Fprintf(&sb, "Anomaly model: %s\n", fraudWord(*v.FraudByModel))
	}
	if len(v.Reasons) > 0 {
		sb.WriteString("Reasons:\n")
		for _, r := range v.Reasons {
			fmt.Fprintf(&sb, "  - %s\n", r)
		}
	}
	return sb.String(), nil
}

func fraudWord(fraud bool) string {
	if fraud {
		return "FRAUD"
	}
	return "clean"
}

func formatRuleList(raw json.RawMessage) (string, error) {
	var resp struct {
		Rules []struct {
			ID           int64   `json:"id"`
			Kind         string  `json:"kind"`
			Threshold    float64 `json:"threshold"`
			BlockedValue string  `json:"blocked_value"`
			Active       bool    `json:"active"`
		} `json:"rules"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("unexpected rules response format")
	}

	if len(resp.Rules) == 0 {
		return "No fraud rules configured.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d rule(s):\n\n", len(resp.Rules))
	for _, r := range resp.Rules {
		state := "active"
		if !r.Active {
			state = "inactive"
		}
		switch r.Kind {
		case "threshold_amount":
			fmt.Fprintf(&sb, "%d. %s: amount > %v [%s]\n", r.ID, r.Kind, r.Threshold, state)
		default:
			fmt.Fprintf(&sb, "%d. %s: %q [%s]\n", r.ID, r.Kind, r.BlockedValue, state)
		}
	}
	return sb.String(), nil
}

func formatTransactionList(raw json.RawMessage) (string, error) {
	var resp struct {
		Transactions []struct {
			TransactionID string   `json:"transaction_id"`
			Amount        float64  `json:"amount"`
			FraudByRule   bool     `json:"is_fraud_rule"`
			FraudByModel  *bool    `json:"is_fraud_predicted"`
			Reasons       []string `json:"fraud_reasons"`
		} `json:"transactions"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("unexpected transactions response format")
	}

	if len(resp.Transactions) == 0 {
		return "No transactions evaluated yet.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Last %d transaction(s), newest first:\n\n", len(resp.Transactions))
	for i, t := range resp.Transactions {
		verdict := "clean"
		if t.FraudByRule || (t.FraudByModel != nil && *t.FraudByModel) {
			verdict = "FRAUD"
		}
		fmt.Fprintf(&sb, "%d. %s | amount %v | %s\n", i+1, t.TransactionID, t.Amount, verdict)
		if len(t.Reasons) > 0 {
			fmt.Fprintf(&sb, "   %s\n", strings.Join(t.Reasons, "; "))
		}
	}
	return sb.String(), nil
}

func formatStats(raw json.RawMessage) (string, error) {
	var s struct {
		Total        int64 `json:"total"`
		FraudByRule  int64 `json:"fraud_by_rule"`
		FraudByModel int64 `json:"fraud_by_model"`
		Clean        int64 `json:"clean"`
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("Fraud detection stats:\n")
	fmt.Fprintf(&sb, "  Evaluated:      %d\n", s.Total)
	fmt.Fprintf(&sb, "  Fraud by rule:  %d\n", s.FraudByRule)
	fmt.Fprintf(&sb, "  Fraud by model: %d\n", s.FraudByModel)
	fmt.Fprintf(&sb, "  Clean:          %d\n", s.Clean)
	return sb.String(), nil
}
