package mcpserver

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// Tool definitions for the fraudwatch MCP server.

var ToolDetectTransaction = mcp.NewTool("detect_transaction",
	mcp.WithDescription("Evaluate a single transaction for fraud. Runs it through the active rule set and the anomaly scorer and returns the combined verdict."),
	mcp.WithString("transaction_id",
		mcp.Required(),
		mcp.Description("Unique identifier for the transaction"),
	),
	mcp.WithNumber("amount",
		mcp.Required(),
		mcp.Description("Transaction amount"),
	),
	mcp.WithString("payer_email",
		mcp.Description("Email address of the payer"),
	),
	mcp.WithString("payer_ip",
		mcp.Description("IP address the transaction originated from"),
	),
	mcp.WithString("payer_browser",
		mcp.Description("Browser reported by the payer's client"),
	),
	mcp.WithString("gateway_bank",
		mcp.Description("Payment gateway or bank handling the transaction"),
	),
	mcp.WithString("payment_mode",
		mcp.Description("Payment mode, e.g. card, upi, netbanking"),
	),
	mcp.WithString("payee_id",
		mcp.Description("Identifier of the payee"),
	),
)

var ToolListRules = mcp.NewTool("list_rules",
	mcp.WithDescription("List the configured fraud rules, including inactive ones."),
)

var ToolRecentTransactions = mcp.NewTool("recent_transactions",
	mcp.WithDescription("List recently evaluated transactions with their verdicts, newest first."),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of transactions to return (default 20, max 1000)"),
	),
)

var ToolFraudStats = mcp.NewTool("fraud_stats",
	mcp.WithDescription("Aggregate counts of evaluated transactions: total, flagged by rules, flagged by the anomaly model, and clean."),
)
