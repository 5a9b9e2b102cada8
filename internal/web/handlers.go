package web

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/hpungsan/bdistudio/internal/bdi"
	"github.com/hpungsan/bdistudio/internal/config"
	"github.com/hpungsan/bdistudio/internal/contexts"
	"github.com/hpungsan/bdistudio/internal/errors"
	"github.com/hpungsan/bdistudio/internal/sessions"
)

// Handlers contains HTTP route handlers for the studio API.
type Handlers struct {
	store    *sessions.Store
	registry *contexts.Registry
	cfg      *config.Config
	logger   *zap.Logger
	version  string
}

// CreateSessionRequest is the body of POST /api/sessions.
type CreateSessionRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Tags        []string       `json:"tags"`
	Context     string         `json:"context"`
	LLMProvider string         `json:"llm_provider"`
	LLMModel    string         `json:"llm_model"`
	LLMSettings map[string]any `json:"llm_settings"`
}

// UpdateBDIRequest is the body of PUT /api/sessions/{id}/bdi.
// Omitted fields keep their stored value.
type UpdateBDIRequest struct {
	DomainSummary *string         `json:"domain_summary"`
	Beneficiario  *map[string]any `json:"beneficiario"`
	Desires       *[]any          `json:"desires"`
	Beliefs       *[]any          `json:"beliefs"`
	Intentions    *[]any          `json:"intentions"`
}

// CreateContextRequest is the body of POST /api/contexts.
type CreateContextRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// HandleSessionList handles GET /api/sessions.
func (h *Handlers) HandleSessionList(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.List(r.Context(), sessions.ListInput{
		Status: sessions.Status(r.URL.Query().Get("status")),
	})
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	if limit := parseIntParam(r, "limit", 0); limit > 0 && limit < len(items) {
		items = items[:limit]
	}

	renderJSON(w, http.StatusOK, map[string]any{
		"sessions": items,
		"count":    len(items),
	})
}

// HandleSessionCreate handles POST /api/sessions.
func (h *Handlers) HandleSessionCreate(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody[CreateSessionRequest](w, r)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	provider := body.LLMProvider
	if provider == "" {
		provider = h.cfg.DefaultLLMProvider
	}
	model := body.LLMModel
	if model == "" {
		model = h.cfg.DefaultLLMModel
	}

	sess, err := h.store.Create(sessions.CreateInput{
		Name:        body.Name,
		Description: body.Description,
		Tags:        body.Tags,
		Context:     body.Context,
		LLMProvider: provider,
		LLMModel:    model,
		LLMSettings: body.LLMSettings,
	})
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/sessions/"+sess.SessionID)
	renderJSON(w, http.StatusCreated, sess)
}

// HandleSessionGet handles GET /api/sessions/{id}.
func (h *Handlers) HandleSessionGet(w http.ResponseWriter, r *http.Request) {
	sess, err := h.store.Get(r.PathValue("id"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, sess)
}

// HandleSessionArchive handles DELETE /api/sessions/{id}. Sessions are
// archived, not removed.
func (h *Handlers) HandleSessionArchive(w http.ResponseWriter, r *http.Request) {
	meta, err := h.store.Delete(r.PathValue("id"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, meta)
}

// HandleBDIGet handles GET /api/sessions/{id}/bdi.
func (h *Handlers) HandleBDIGet(w http.ResponseWriter, r *http.Request) {
	doc, err := h.store.BDI(r.PathValue("id"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, doc)
}

// HandleBDIUpdate handles PUT /api/sessions/{id}/bdi.
func (h *Handlers) HandleBDIUpdate(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody[UpdateBDIRequest](w, r)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	u := bdi.Update{
		DomainSummary: body.DomainSummary,
		Beneficiario:  body.Beneficiario,
		Desires:       body.Desires,
		Beliefs:       body.Beliefs,
		Intentions:    body.Intentions,
	}
	if u.IsEmpty() {
		h.renderError(w, r, errors.NewInvalidRequest("at least one BDI field must be provided"))
		return
	}

	doc, err := h.store.UpdateBDI(r.PathValue("id"), u)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, doc)
}

// HandleReport handles GET /sessions/{id}/report: the BDI document as an
// HTML page. With ?save=true the Markdown is also stored in the session.
func (h *Handlers) HandleReport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	sess, err := h.store.Get(id)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	var md string
	if parseBoolParam(r, "save") {
		report, err := h.store.WriteReport(id)
		if err != nil {
			h.renderError(w, r, err)
			return
		}
		md = report.Markdown
	} else {
		doc, err := h.store.BDI(id)
		if err != nil {
			h.renderError(w, r, err)
			return
		}
		md = bdi.Markdown(sess.Metadata.Name, *doc)
	}

	renderPage(w, http.StatusOK, PageData{
		Title:   sess.Metadata.Name,
		Version: h.version,
		Body:    renderMarkdown(md),
	})
}

// HandleContextList handles GET /api/contexts.
func (h *Handlers) HandleContextList(w http.ResponseWriter, r *http.Request) {
	items, err := h.registry.List(r.Context(), contexts.ListInput{
		Status: r.URL.Query().Get("status"),
	})
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, map[string]any{
		"contexts": items,
		"count":    len(items),
	})
}

// HandleContextCreate handles POST /api/contexts.
func (h *Handlers) HandleContextCreate(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody[CreateContextRequest](w, r)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	meta, err := h.registry.Create(body.Name, body.Description)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/contexts/"+meta.NormalizedName)
	renderJSON(w, http.StatusCreated, meta)
}

// HandleContextGet handles GET /api/contexts/{name}.
func (h *Handlers) HandleContextGet(w http.ResponseWriter, r *http.Request) {
	meta, err := h.registry.Get(r.PathValue("name"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, meta)
}

// HandleContextDelete handles DELETE /api/contexts/{name}. Deleting a
// context that does not exist answers 200 with deleted=false.
func (h *Handlers) HandleContextDelete(w http.ResponseWriter, r *http.Request) {
	out, err := h.registry.Delete(r.PathValue("name"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// parseBoolParam parses a boolean query parameter.
func parseBoolParam(r *http.Request, name string) bool {
	s := r.URL.Query().Get(name)
	return s == "true" || s == "1"
}
