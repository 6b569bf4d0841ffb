package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"charm.land/fantasy"

	"sheetsql/internal/store"
)

// DescribeTableInput is the input of the describe_table tool
type DescribeTableInput struct {
	Table string `json:"table" description:"Name of the table to describe"`
}

// RunQueryInput is the input of the run_query tool
type RunQueryInput struct {
	SQL string `json:"sql" description:"A single read-only SQL statement (SELECT, WITH, DESCRIBE, ...)"`
}

// ListTablesInput is the (empty) input of the list_tables tool
type ListTablesInput struct{}

// toolHandlers holds the store-backed functions behind each tool. They
// return the JSON text given to the model.
type toolHandlers struct {
	store    store.Store
	rowLimit int
	logger   *slog.Logger
}

func (h *toolHandlers) listTables(ctx context.Context) (string, error) {
	tables, err := h.store.Tables(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list tables: %w", err)
	}
	return encode(tables)
}

func (h *toolHandlers) describeTable(ctx context.Context, table string) (string, error) {
	if strings.TrimSpace(table) == "" {
		return "", fmt.Errorf("table parameter is required")
	}
	cols, err := h.store.Describe(ctx, table)
	if err != nil {
		return "", fmt.Errorf("failed to describe table %s: %w", table, err)
	}
	return encode(cols)
}

func (h *toolHandlers) runQuery(ctx context.Context, sql string) (string, error) {
	if strings.TrimSpace(sql) == "" {
		return "", fmt.Errorf("sql parameter is required")
	}
	result, err := h.store.Query(ctx, sql, h.rowLimit)
	if err != nil {
		if errors.Is(err, store.ErrNotReadOnly) {
			return "", fmt.Errorf("only read-only statements can be run: %w", err)
		}
		return "", fmt.Errorf("query failed: %w", err)
	}
	return encode(result)
}

// NewTools returns the agent's tools over s
func NewTools(s store.Store, rowLimit int, logger *slog.Logger) []fantasy.AgentTool {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	h := &toolHandlers{store: s, rowLimit: rowLimit, logger: logger}

	return []fantasy.AgentTool{
		fantasy.NewAgentTool(
			"list_tables",
			"List the imported tables with their row counts",
			func(ctx context.Context, _ ListTablesInput, call fantasy.ToolCall) (fantasy.ToolResponse, error) {
				return h.respond("list_tables", func() (string, error) { return h.listTables(ctx) })
			},
		),
		fantasy.NewAgentTool(
			"describe_table",
			"Show the columns and types of one imported table",
			func(ctx context.Context, in DescribeTableInput, call fantasy.ToolCall) (fantasy.ToolResponse, error) {
				return h.respond("describe_table", func() (string, error) { return h.describeTable(ctx, in.Table) })
			},
		),
		fantasy.NewAgentTool(
			"run_query",
			"Run a read-only SQL query against the imported tables and return the rows as JSON",
			func(ctx context.Context, in RunQueryInput, call fantasy.ToolCall) (fantasy.ToolResponse, error) {
				return h.respond("run_query", func() (string, error) { return h.runQuery(ctx, in.SQL) })
			},
		),
	}
}

// respond turns a handler failure into an error response for the model
func (h *toolHandlers) respond(name string, fn func() (string, error)) (fantasy.ToolResponse, error) {
	text, err := fn()
	if err != nil {
		h.logger.Warn("Tool call failed", "error", err, "tool", name)
		return fantasy.NewTextErrorResponse(err.Error()), nil
	}
	return fantasy.NewTextResponse(text), nil
}

func encode(v interface{}) (string, error) {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode result as JSON: %v", err)
	}
	return string(jsonBytes), nil
}
