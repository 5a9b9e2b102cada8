package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"go.uber.org/zap"

	"github.com/hpungsan/bdistudio/internal/errors"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
<main>
{{.Body}}
</main>
<footer>BDI Studio {{.Version}}</footer>
</body>
</html>
`))

// PageData is the template data for HTML pages.
type PageData struct {
	Title   string
	Version string
	Body    template.HTML
}

// renderPage writes an HTML page with the given status.
func renderPage(w http.ResponseWriter, status int, data PageData) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderError writes a StudioError as JSON, or as an HTML page when the
// client asks for HTML. Internal details never reach the client.
func (h *Handlers) renderError(w http.ResponseWriter, r *http.Request, err error) {
	sErr, ok := errors.As(err)
	if !ok {
		sErr = errors.NewInternal(err)
	}
	if sErr.Code == errors.ErrInternal {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}

	if strings.Contains(r.Header.Get("Accept"), "text/html") {
		renderPage(w, sErr.Status, PageData{
			Title:   fmt.Sprintf("Error %d", sErr.Status),
			Version: h.version,
			Body:    template.HTML("<p>" + template.HTMLEscapeString(sErr.Message) + "</p>"),
		})
		return
	}

	errorObj := map[string]any{
		"code":    string(sErr.Code),
		"message": sErr.Message,
		"status":  sErr.Status,
	}
	if sErr.Code != errors.ErrInternal && sErr.Details != nil {
		errorObj["details"] = sErr.Details
	}
	renderJSON(w, sErr.Status, map[string]any{"error": errorObj})
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// renderMarkdown converts markdown text to HTML using goldmark.
// Raw HTML in the source is not passed through.
func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return template.HTML("<pre>" + template.HTMLEscapeString(md) + "</pre>")
	}
	return template.HTML(buf.String())
}

// decodeBody decodes a JSON request body into T. Unknown fields are rejected.
func decodeBody[T any](w http.ResponseWriter, r *http.Request) (T, error) {
	var v T
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return v, errors.NewInvalidRequest(fmt.Sprintf("invalid request body: %v", err))
	}
	return v, nil
}
