package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
)

// Handlers holds the handler functions for each MCP tool. It remembers the
// session opened by open_editor so later calls can omit session_id.
type Handlers struct {
	client *Client

	mu        sync.Mutex
	sessionID string
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *Client) *Handlers {
	return &Handlers{client: client}
}

func (h *Handlers) session(req mcp.CallToolRequest) (string, *mcp.CallToolResult) {
	if id := req.GetString("session_id", ""); id != "" {
		return id, nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sessionID == "" {
		return "", mcp.NewToolResultError("No editor session. Call open_editor first or pass session_id.")
	}
	return h.sessionID, nil
}

// patchArgs copies the named arguments that were actually passed, so an
// omitted field is left unchanged rather than cleared.
func patchArgs(req mcp.CallToolRequest, names ...string) map[string]string {
	args := req.GetArguments()
	patch := make(map[string]string)
	for _, name := range names {
		if v, ok := args[name]; ok {
			if s, ok := v.(string); ok {
				patch[name] = s
			}
		}
	}
	return patch
}

// HandleOpenEditor opens a session and makes it the default.
func (h *Handlers) HandleOpenEditor(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.OpenSession(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to open editor: %v", err)), nil
	}

	var resp sessionResponse
	if err := json.Unmarshal(raw, &resp); err != nil || resp.Session.ID == "" {
		return mcp.NewToolResultError("Failed to parse editor session"), nil
	}

	h.mu.Lock()
	h.sessionID = resp.Session.ID
	h.mu.Unlock()

	return mcp.NewToolResultText(fmt.Sprintf("Session: %s\n\n%s", resp.Session.ID, formatTariffs(resp.Tariffs))), nil
}

// HandleListTariffs shows the session's working copy.
func (h *Handlers) HandleListTariffs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, errResult := h.session(req)
	if errResult != nil {
		return errResult, nil
	}

	raw, err := h.client.GetSession(ctx, sessionID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list tariffs: %v", err)), nil
	}

	var resp sessionResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse tariffs: %v", err)), nil
	}
	return mcp.NewToolResultText(formatTariffs(resp.Tariffs)), nil
}

// HandleAddTariff appends a blank tariff.
func (h *Handlers) HandleAddTariff(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, errResult := h.session(req)
	if errResult != nil {
		return errResult, nil
	}

	raw, err := h.client.AddTariff(ctx, sessionID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to add tariff: %v", err)), nil
	}

	var resp struct {
		Tariff tariffView `json:"tariff"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse tariff: %v", err)), nil
	}
	return mcp.NewToolResultText("Tariff added.\n\n" + formatTariffs([]tariffView{resp.Tariff})), nil
}

// HandleRemoveTariff removes a tariff by key.
func (h *Handlers) HandleRemoveTariff(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, errResult := h.session(req)
	if errResult != nil {
		return errResult, nil
	}
	key := req.GetString("tariff_key", "")
	if key == "" {
		return mcp.NewToolResultError("tariff_key is required"), nil
	}

	raw, err := h.client.RemoveTariff(ctx, sessionID, key)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to remove tariff: %v", err)), nil
	}
	return mcp.NewToolResultText(formatRemoved(raw, "Tariff", key)), nil
}

// HandleUpdateTariff patches id, title and subtitle.
func (h *Handlers) HandleUpdateTariff(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, errResult := h.session(req)
	if errResult != nil {
		return errResult, nil
	}
	key := req.GetString("tariff_key", "")
	if key == "" {
		return mcp.NewToolResultError("tariff_key is required"), nil
	}
	patch := patchArgs(req, "id", "title", "subtitle")
	if len(patch) == 0 {
		return mcp.NewToolResultError("Pass at least one of id, title or subtitle"), nil
	}

	raw, err := h.client.UpdateTariff(ctx, sessionID, key, patch)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to update tariff: %v", err)), nil
	}

	var resp struct {
		Tariff tariffView `json:"tariff"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse tariff: %v", err)), nil
	}
	return mcp.NewToolResultText("Tariff updated.\n\n" + formatTariffs([]tariffView{resp.Tariff})), nil
}

// HandleAddPlan appends a default plan.
func (h *Handlers) HandleAddPlan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, errResult := h.session(req)
	if errResult != nil {
		return errResult, nil
	}
	key := req.GetString("tariff_key", "")
	if key == "" {
		return mcp.NewToolResultError("tariff_key is required"), nil
	}

	raw, err := h.client.AddPlan(ctx, sessionID, key)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to add plan: %v", err)), nil
	}

	var resp struct {
		Plan planView `json:"plan"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse plan: %v", err)), nil
	}
	return mcp.NewToolResultText("Plan added.\n" + formatPlan(resp.Plan, "")), nil
}

// HandleRemovePlan removes a plan by key.
func (h *Handlers) HandleRemovePlan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, errResult := h.session(req)
	if errResult != nil {
		return errResult, nil
	}
	tariffKey := req.GetString("tariff_key", "")
	planKey := req.GetString("plan_key", "")
	if tariffKey == "" || planKey == "" {
		return mcp.NewToolResultError("tariff_key and plan_key are required"), nil
	}

	raw, err := h.client.RemovePlan(ctx, sessionID, tariffKey, planKey)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to remove plan: %v", err)), nil
	}
	return mcp.NewToolResultText(formatRemoved(raw, "Plan", planKey)), nil
}

// HandleUpdatePlan patches name, price and features.
func (h *Handlers) HandleUpdatePlan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, errResult := h.session(req)
	if errResult != nil {
		return errResult, nil
	}
	tariffKey := req.GetString("tariff_key", "")
	planKey := req.GetString("plan_key", "")
	if tariffKey == "" || planKey == "" {
		return mcp.NewToolResultError("tariff_key and plan_key are required"), nil
	}
	patch := patchArgs(req, "name", "price", "features")
	if len(patch) == 0 {
		return mcp.NewToolResultError("Pass at least one of name, price or features"), nil
	}

	raw, err := h.client.UpdatePlan(ctx, sessionID, tariffKey, planKey, patch)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to update plan: %v", err)), nil
	}

	var resp struct {
		Plan planView `json:"plan"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse plan: %v", err)), nil
	}
	return mcp.NewToolResultText("Plan updated.\n" + formatPlan(resp.Plan, "")), nil
}

// HandleExportJSON returns the serialized document.
func (h *Handlers) HandleExportJSON(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, errResult := h.session(req)
	if errResult != nil {
		return errResult, nil
	}

	raw, err := h.client.Output(ctx, sessionID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to export: %v", err)), nil
	}

	var resp struct {
		JSON string `json:"json"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse export: %v", err)), nil
	}
	return mcp.NewToolResultText(resp.JSON), nil
}

// HandleGetPublicTariff looks up a published tariff.
func (h *Handlers) HandleGetPublicTariff(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("id is required"), nil
	}

	raw, err := h.client.GetPublicTariff(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get tariff: %v", err)), nil
	}

	var resp struct {
		Tariff tariffView `json:"tariff"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse tariff: %v", err)), nil
	}
	return mcp.NewToolResultText(formatTariffs([]tariffView{resp.Tariff})), nil
}

// --- Formatting ---

type planView struct {
	Key      string   `json:"key"`
	Name     string   `json:"name"`
	Price    string   `json:"price"`
	Features []string `json:"features"`
}

type tariffView struct {
	Key      string     `json:"key"`
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Subtitle string     `json:"subtitle"`
	Plans    []planView `json:"plans"`
}

type sessionResponse struct {
	Session struct {
		ID string `json:"id"`
	} `json:"session"`
	Tariffs []tariffView `json:"tariffs"`
}

func formatTariffs(tariffs []tariffView) string {
	if len(tariffs) == 0 {
		return "No tariffs."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d tariff(s):\n", len(tariffs))
	for i, t := range tariffs {
		id := t.ID
		if id == "" {
			id = "(no id)"
		}
		fmt.Fprintf(&sb, "\n%d. %s", i+1, id)
		if t.Key != "" {
			fmt.Fprintf(&sb, " [tariff_key: %s]", t.Key)
		}
		sb.WriteString("\n")
		if t.Title != "" {
			fmt.Fprintf(&sb, "   Title: %s\n", t.Title)
		}
		if t.Subtitle != "" {
			fmt.Fprintf(&sb, "   Subtitle: %s\n", t.Subtitle)
		}
		if len(t.Plans) == 0 {
			sb.WriteString("   No plans.\n")
		}
		for _, p := range t.Plans {
			sb.WriteString(formatPlan(p, "   "))
		}
	}
	return sb.String()
}

func formatPlan(p planView, indent string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s- %s", indent, p.Name)
	if p.Price != "" {
		fmt.Fprintf(&sb, ": %s", p.Price)
	}
	if p.Key != "" {
		fmt.Fprintf(&sb, " [plan_key: %s]", p.Key)
	}
	sb.WriteString("\n")
	for _, f := range p.Features {
		fmt.Fprintf(&sb, "%s    * %s\n", indent, f)
	}
	return sb.String()
}

func formatRemoved(raw json.RawMessage, what, key string) string {
	var resp struct {
		Removed bool `json:"removed"`
	}
	if json.Unmarshal(raw, &resp) == nil && !resp.Removed {
		return fmt.Sprintf("%s %s was not found; nothing changed.", what, key)
	}
	return fmt.Sprintf("%s %s removed.", what, key)
}
