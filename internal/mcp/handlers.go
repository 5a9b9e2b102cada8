package mcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/hpungsan/bdistudio/internal/bdi"
	"github.com/hpungsan/bdistudio/internal/config"
	"github.com/hpungsan/bdistudio/internal/contexts"
	"github.com/hpungsan/bdistudio/internal/errors"
	"github.com/hpungsan/bdistudio/internal/sessions"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	store    *sessions.Store
	registry *contexts.Registry
	cfg      *config.Config
	logger   *zap.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(store *sessions.Store, registry *contexts.Registry, cfg *config.Config, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{store: store, registry: registry, cfg: cfg, logger: logger}
}

// Request types for each tool

// SessionCreateRequest represents the arguments for session_create.
type SessionCreateRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Context     string         `json:"context,omitempty"`
	LLMProvider string         `json:"llm_provider,omitempty"`
	LLMModel    string         `json:"llm_model,omitempty"`
	LLMSettings map[string]any `json:"llm_settings,omitempty"`
}

// SessionRef identifies a session.
type SessionRef struct {
	SessionID string `json:"session_id"`
}

// SessionListRequest represents the arguments for session_list.
type SessionListRequest struct {
	Status string `json:"status,omitempty"`
}

// SessionUpdateRequest represents the arguments for session_update.
type SessionUpdateRequest struct {
	SessionID   string    `json:"session_id"`
	Name        *string   `json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
	Status      *string   `json:"status,omitempty"`
	ChatHistory *[]any    `json:"chat_history,omitempty"`
}

// SessionConfigRequest represents the arguments for session_config.
type SessionConfigRequest struct {
	SessionID   string          `json:"session_id"`
	Context     *string         `json:"context,omitempty"`
	LLMProvider *string         `json:"llm_provider,omitempty"`
	LLMModel    *string         `json:"llm_model,omitempty"`
	LLMSettings *map[string]any `json:"llm_settings,omitempty"`
}

// BDIGetRequest represents the arguments for bdi_get.
type BDIGetRequest struct {
	SessionID string `json:"session_id"`
	Format    string `json:"format,omitempty"`
	Save      bool   `json:"save,omitempty"`
}

// BDIUpdateRequest represents the arguments for bdi_update.
type BDIUpdateRequest struct {
	SessionID     string          `json:"session_id"`
	DomainSummary *string         `json:"domain_summary,omitempty"`
	Beneficiario  *map[string]any `json:"beneficiario,omitempty"`
	Desires       *[]any          `json:"desires,omitempty"`
	Beliefs       *[]any          `json:"beliefs,omitempty"`
	Intentions    *[]any          `json:"intentions,omitempty"`
	Mode          string          `json:"mode,omitempty"`
}

// BeliefBaseRequest represents the arguments for belief_base_get and
// belief_base_update.
type BeliefBaseRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Context   string `json:"context,omitempty"`
	Beliefs   *[]any `json:"beliefs,omitempty"`
}

// BeliefsImportRequest represents the arguments for beliefs_import.
type BeliefsImportRequest struct {
	SessionID string `json:"session_id"`
	Context   string `json:"context"`
}

// ContextCreateRequest represents the arguments for context_create.
type ContextCreateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ContextRef identifies a context.
type ContextRef struct {
	Name string `json:"name"`
}

// ContextListRequest represents the arguments for context_list.
type ContextListRequest struct {
	Status string `json:"status,omitempty"`
}

// Output types

// SessionListOutput is the result of session_list.
type SessionListOutput struct {
	Sessions []sessions.Session `json:"sessions"`
	Count    int                `json:"count"`
}

// ContextListOutput is the result of context_list.
type ContextListOutput struct {
	Contexts []contexts.Metadata `json:"contexts"`
	Count    int                 `json:"count"`
}

// BeliefBaseOutput is the result of belief_base_get and belief_base_update.
type BeliefBaseOutput struct {
	SessionID string `json:"session_id,omitempty"`
	Context   string `json:"context,omitempty"`
	Beliefs   []any  `json:"beliefs"`
	Count     int    `json:"count"`
}

// Handler implementations

// HandleSessionCreate handles the session_create tool call.
func (h *Handlers) HandleSessionCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SessionCreateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	provider := input.LLMProvider
	if provider == "" {
		provider = h.cfg.DefaultLLMProvider
	}
	model := input.LLMModel
	if model == "" {
		model = h.cfg.DefaultLLMModel
	}

	result, err := h.store.Create(sessions.CreateInput{
		Name:        input.Name,
		Description: input.Description,
		Tags:        input.Tags,
		Context:     input.Context,
		LLMProvider: provider,
		LLMModel:    model,
		LLMSettings: input.LLMSettings,
	})
	if err != nil {
		return h.fail(err), nil
	}

	return successResult(result)
}

// HandleSessionGet handles the session_get tool call.
func (h *Handlers) HandleSessionGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SessionRef](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if err := requireField("session_id", input.SessionID); err != nil {
		return h.fail(err), nil
	}

	result, err := h.store.Get(input.SessionID)
	if err != nil {
		return h.fail(err), nil
	}

	return successResult(result)
}

// HandleSessionList handles the session_list tool call.
func (h *Handlers) HandleSessionList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SessionListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	items, err := h.store.List(ctx, sessions.ListInput{Status: sessions.Status(input.Status)})
	if err != nil {
		return h.fail(err), nil
	}

	return successResult(SessionListOutput{Sessions: items, Count: len(items)})
}

// HandleSessionUpdate handles the session_update tool call.
func (h *Handlers) HandleSessionUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SessionUpdateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if err := requireField("session_id", input.SessionID); err != nil {
		return h.fail(err), nil
	}

	result, err := h.store.UpdateMetadata(input.SessionID, sessions.MetadataInput{
		Name:        input.Name,
		Description: input.Description,
		Tags:        input.Tags,
		Status:      input.Status,
		ChatHistory: input.ChatHistory,
	})
	if err != nil {
		return h.fail(err), nil
	}

	return successResult(result)
}

// HandleSessionConfig handles the session_config tool call.
func (h *Handlers) HandleSessionConfig(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SessionConfigRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if err := requireField("session_id", input.SessionID); err != nil {
		return h.fail(err), nil
	}

	result, err := h.store.UpdateConfig(input.SessionID, sessions.ConfigInput{
		Context:     input.Context,
		LLMProvider: input.LLMProvider,
		LLMModel:    input.LLMModel,
		LLMSettings: input.LLMSettings,
	})
	if err != nil {
		return h.fail(err), nil
	}

	return successResult(result)
}

// HandleSessionArchive handles the session_archive tool call.
func (h *Handlers) HandleSessionArchive(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SessionRef](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if err := requireField("session_id", input.SessionID); err != nil {
		return h.fail(err), nil
	}

	result, err := h.store.Delete(input.SessionID)
	if err != nil {
		return h.fail(err), nil
	}

	return successResult(result)
}

// HandleBDIGet handles the bdi_get tool call.
func (h *Handlers) HandleBDIGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[BDIGetRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if err := requireField("session_id", input.SessionID); err != nil {
		return h.fail(err), nil
	}

	switch input.Format {
	case "", "json":
		doc, err := h.store.BDI(input.SessionID)
		if err != nil {
			return h.fail(err), nil
		}
		return successResult(doc)
	case "markdown":
		if input.Save {
			report, err := h.store.WriteReport(input.SessionID)
			if err != nil {
				return h.fail(err), nil
			}
			return successResult(report)
		}
		md, err := h.store.Report(input.SessionID)
		if err != nil {
			return h.fail(err), nil
		}
		return successResult(sessions.ReportOutput{Markdown: md})
	}
	return errorResult(errors.NewInvalidRequest("format must be json or markdown")), nil
}

// HandleBDIUpdate handles the bdi_update tool call.
func (h *Handlers) HandleBDIUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[BDIUpdateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if err := requireField("session_id", input.SessionID); err != nil {
		return h.fail(err), nil
	}

	u := bdi.Update{
		DomainSummary: input.DomainSummary,
		Beneficiario:  input.Beneficiario,
		Desires:       input.Desires,
		Beliefs:       input.Beliefs,
		Intentions:    input.Intentions,
	}
	if u.IsEmpty() {
		return errorResult(errors.NewInvalidRequest("at least one BDI field must be provided")), nil
	}

	var result *bdi.Document
	switch input.Mode {
	case "", "replace":
		result, err = h.store.UpdateBDI(input.SessionID, u)
	case "append":
		result, err = h.store.AppendBDI(input.SessionID, u)
	default:
		return errorResult(errors.NewInvalidRequest("mode must be replace or append")), nil
	}
	if err != nil {
		return h.fail(err), nil
	}

	return successResult(result)
}

// HandleBeliefBaseGet handles the belief_base_get tool call.
func (h *Handlers) HandleBeliefBaseGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[BeliefBaseRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if err := validateBeliefBaseOwner(input); err != nil {
		return h.fail(err), nil
	}

	var beliefs []any
	if input.SessionID != "" {
		beliefs, err = h.store.BeliefBase(input.SessionID)
	} else {
		beliefs, err = h.registry.BeliefBase(input.Context)
	}
	if err != nil {
		return h.fail(err), nil
	}

	return successResult(BeliefBaseOutput{
		SessionID: input.SessionID,
		Context:   input.Context,
		Beliefs:   beliefs,
		Count:     len(beliefs),
	})
}

// HandleBeliefBaseUpdate handles the belief_base_update tool call.
func (h *Handlers) HandleBeliefBaseUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[BeliefBaseRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if err := validateBeliefBaseOwner(input); err != nil {
		return h.fail(err), nil
	}
	if input.Beliefs == nil {
		return errorResult(errors.NewInvalidRequest("beliefs is required")), nil
	}
	beliefs := *input.Beliefs

	if input.SessionID != "" {
		err = h.store.UpdateBeliefBase(input.SessionID, beliefs)
	} else {
		_, err = h.registry.SaveBeliefBase(input.Context, beliefs)
	}
	if err != nil {
		return h.fail(err), nil
	}

	return successResult(BeliefBaseOutput{
		SessionID: input.SessionID,
		Context:   input.Context,
		Beliefs:   beliefs,
		Count:     len(beliefs),
	})
}

// HandleBeliefsImport handles the beliefs_import tool call.
func (h *Handlers) HandleBeliefsImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[BeliefsImportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if err := requireField("session_id", input.SessionID); err != nil {
		return h.fail(err), nil
	}
	if err := requireField("context", input.Context); err != nil {
		return h.fail(err), nil
	}

	result, err := h.store.ImportContextBeliefs(input.SessionID, input.Context, h.registry)
	if err != nil {
		return h.fail(err), nil
	}

	return successResult(result)
}

// HandleContextCreate handles the context_create tool call.
func (h *Handlers) HandleContextCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ContextCreateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.registry.Create(input.Name, input.Description)
	if err != nil {
		return h.fail(err), nil
	}

	return successResult(result)
}

// HandleContextList handles the context_list tool call.
func (h *Handlers) HandleContextList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ContextListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	items, err := h.registry.List(ctx, contexts.ListInput{Status: input.Status})
	if err != nil {
		return h.fail(err), nil
	}

	return successResult(ContextListOutput{Contexts: items, Count: len(items)})
}

// HandleContextGet handles the context_get tool call.
func (h *Handlers) HandleContextGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ContextRef](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if err := requireField("name", input.Name); err != nil {
		return h.fail(err), nil
	}

	result, err := h.registry.Get(input.Name)
	if err != nil {
		return h.fail(err), nil
	}

	return successResult(result)
}

// HandleContextDelete handles the context_delete tool call.
func (h *Handlers) HandleContextDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ContextRef](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if err := requireField("name", input.Name); err != nil {
		return h.fail(err), nil
	}

	result, err := h.registry.Delete(input.Name)
	if err != nil {
		return h.fail(err), nil
	}

	return successResult(result)
}

// ChatHistoryOutput is the result of session_chat_history.
type ChatHistoryOutput struct {
	SessionID string `json:"session_id"`
	Messages  []any  `json:"messages"`
	Count     int    `json:"count"`
}

// HandleSessionChatHistory handles the session_chat_history tool call.
func (h *Handlers) HandleSessionChatHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SessionRef](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if err := requireField("session_id", input.SessionID); err != nil {
		return h.fail(err), nil
	}

	messages, err := h.store.ChatHistory(input.SessionID)
	if err != nil {
		return h.fail(err), nil
	}

	return successResult(ChatHistoryOutput{SessionID: input.SessionID, Messages: messages, Count: len(messages)})
}

// HandleContextRefresh handles the context_refresh tool call.
func (h *Handlers) HandleContextRefresh(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ContextRef](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if err := requireField("name", input.Name); err != nil {
		return h.fail(err), nil
	}

	result, err := h.registry.RefreshCounts(ctx, input.Name, h.registry.DirIndex(input.Name))
	if err != nil {
		return h.fail(err), nil
	}

	return successResult(result)
}

// Argument helpers

func requireField(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return errors.NewInvalidRequest(name + " is required")
	}
	return nil
}

// validateBeliefBaseOwner requires exactly one of session_id and context.
func validateBeliefBaseOwner(input BeliefBaseRequest) error {
	hasSession := strings.TrimSpace(input.SessionID) != ""
	hasContext := strings.TrimSpace(input.Context) != ""
	if hasSession == hasContext {
		return errors.NewInvalidRequest("exactly one of session_id or context is required")
	}
	return nil
}

// Result helpers

// fail logs internal errors, which errorResult hides from the client.
func (h *Handlers) fail(err error) *mcp.CallToolResult {
	if se, ok := errors.As(err); !ok || se.Code == errors.ErrInternal {
		h.logger.Error("tool call failed", zap.Error(err))
	}
	return errorResult(err)
}

// errorResult creates an MCP error result from any error.
// Internal error details are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if studioErr, ok := errors.As(err); ok {
		message := studioErr.Message
		// Keep context added by wrapping (e.g. "items[2]: ...").
		if prefix := strings.TrimSuffix(err.Error(), studioErr.Error()); prefix != err.Error() && prefix != "" {
			message = prefix + message
		}
		errorObj := map[string]any{
			"code":    studioErr.Code,
			"message": message,
			"status":  studioErr.Status,
		}
		if studioErr.Code != errors.ErrInternal && studioErr.Details != nil {
			errorObj["details"] = studioErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
