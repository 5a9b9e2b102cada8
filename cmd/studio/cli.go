package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/bdistudio/internal/bdi"
	"github.com/hpungsan/bdistudio/internal/config"
	"github.com/hpungsan/bdistudio/internal/contexts"
	"github.com/hpungsan/bdistudio/internal/errors"
	"github.com/hpungsan/bdistudio/internal/sessions"
	"github.com/hpungsan/bdistudio/internal/web"
)

// maxStdinBytes bounds JSON documents piped to the CLI.
const maxStdinBytes = 4 << 20

// deps bundles what the commands operate on.
type deps struct {
	store    *sessions.Store
	registry *contexts.Registry
	cfg      *config.Config
	logger   *zap.Logger
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(store *sessions.Store, registry *contexts.Registry, cfg *config.Config, logger *zap.Logger) *cli.App {
	d := &deps{store: store, registry: registry, cfg: cfg, logger: logger}
	app := &cli.App{
		Name:    "studio",
		Usage:   "BDI studio session and context store",
		Version: Version,
		Commands: []*cli.Command{
			sessionCmd(d),
			contextCmd(d),
			serveCmd(d),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// sessionCmd groups the session subcommands.
func sessionCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "session",
		Usage: "Manage BDI sessions",
		Subcommands: []*cli.Command{
			sessionCreateCmd(d),
			sessionGetCmd(d),
			sessionListCmd(d),
			sessionUpdateCmd(d),
			sessionConfigCmd(d),
			sessionArchiveCmd(d),
			sessionChatHistoryCmd(d),
			sessionBDICmd(d),
			sessionUpdateBDICmd(d),
			sessionBeliefsCmd(d),
			sessionImportBeliefsCmd(d),
			sessionReportCmd(d),
		},
	}
}

func sessionCreateCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "Create a new session",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Session name", Required: true},
			&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "Session description"},
			&cli.StringFlag{Name: "tags", Usage: "Comma-separated tags"},
			&cli.StringFlag{Name: "context", Aliases: []string{"c"}, Usage: "Knowledge context name"},
			&cli.StringFlag{Name: "provider", Usage: "LLM provider (defaults to config)"},
			&cli.StringFlag{Name: "model", Usage: "LLM model (defaults to config)"},
			&cli.StringFlag{Name: "settings", Usage: "LLM settings as a JSON object"},
		},
		Action: func(c *cli.Context) error {
			input := sessions.CreateInput{
				Name:        c.String("name"),
				Description: c.String("description"),
				Tags:        parseTags(c.String("tags")),
				Context:     c.String("context"),
				LLMProvider: firstNonEmpty(c.String("provider"), d.cfg.DefaultLLMProvider),
				LLMModel:    firstNonEmpty(c.String("model"), d.cfg.DefaultLLMModel),
			}
			if raw := c.String("settings"); raw != "" {
				settings, err := parseSettings(raw)
				if err != nil {
					return outputError(err)
				}
				input.LLMSettings = settings
			}

			output, err := d.store.Create(input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

func sessionGetCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Get a session (refreshes last_accessed)",
		ArgsUsage: "<session-id>",
		Action: func(c *cli.Context) error {
			id, err := requireArg(c, "session-id")
			if err != nil {
				return outputError(err)
			}
			output, err := d.store.Get(id)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

func sessionListCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List sessions, most recently accessed first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "status", Aliases: []string{"s"}, Usage: "Filter by status: active|archived|draft"},
		},
		Action: func(c *cli.Context) error {
			items, err := d.store.List(c.Context, sessions.ListInput{Status: sessions.Status(c.String("status"))})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"sessions": items, "count": len(items)})
		},
	}
}

func sessionUpdateCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "update",
		Usage:     "Update session metadata",
		ArgsUsage: "<session-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "New name"},
			&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "New description"},
			&cli.StringFlag{Name: "tags", Usage: "Comma-separated tags (replaces existing)"},
			&cli.StringFlag{Name: "status", Aliases: []string{"s"}, Usage: "New status: active|archived|draft"},
		},
		Action: func(c *cli.Context) error {
			id, err := requireArg(c, "session-id")
			if err != nil {
				return outputError(err)
			}

			var input sessions.MetadataInput
			if c.IsSet("name") {
				v := c.String("name")
				input.Name = &v
			}
			if c.IsSet("description") {
				v := c.String("description")
				input.Description = &v
			}
			if c.IsSet("tags") {
				tags := parseTags(c.String("tags"))
				if tags == nil {
					tags = []string{}
				}
				input.Tags = &tags
			}
			if c.IsSet("status") {
				v := c.String("status")
				input.Status = &v
			}

			output, err := d.store.UpdateMetadata(id, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

func sessionConfigCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "config",
		Usage:     "Update session configuration",
		ArgsUsage: "<session-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "context", Aliases: []string{"c"}, Usage: "Knowledge context name"},
			&cli.StringFlag{Name: "provider", Usage: "LLM provider"},
			&cli.StringFlag{Name: "model", Usage: "LLM model"},
			&cli.StringFlag{Name: "settings", Usage: "LLM settings as a JSON object (replaces existing)"},
		},
		Action: func(c *cli.Context) error {
			id, err := requireArg(c, "session-id")
			if err != nil {
				return outputError(err)
			}

			var input sessions.ConfigInput
			if c.IsSet("context") {
				v := c.String("context")
				input.Context = &v
			}
			if c.IsSet("provider") {
				v := c.String("provider")
				input.LLMProvider = &v
			}
			if c.IsSet("model") {
				v := c.String("model")
				input.LLMModel = &v
			}
			if c.IsSet("settings") {
				settings, err := parseSettings(c.String("settings"))
				if err != nil {
					return outputError(err)
				}
				input.LLMSettings = &settings
			}

			output, err := d.store.UpdateConfig(id, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

func sessionArchiveCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "archive",
		Usage:     "Archive a session (files are kept)",
		ArgsUsage: "<session-id>",
		Action: func(c *cli.Context) error {
			id, err := requireArg(c, "session-id")
			if err != nil {
				return outputError(err)
			}
			output, err := d.store.Delete(id)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

func sessionChatHistoryCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "chat-history",
		Usage:     "Print a session's chat transcript",
		ArgsUsage: "<session-id>",
		Action: func(c *cli.Context) error {
			id, err := requireArg(c, "session-id")
			if err != nil {
				return outputError(err)
			}
			messages, err := d.store.ChatHistory(id)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"session_id": id, "messages": messages, "count": len(messages)})
		},
	}
}

func sessionBDICmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "bdi",
		Usage:     "Print a session's BDI document",
		ArgsUsage: "<session-id>",
		Action: func(c *cli.Context) error {
			id, err := requireArg(c, "session-id")
			if err != nil {
				return outputError(err)
			}
			output, err := d.store.BDI(id)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// bdiUpdateInput is the JSON document read by update-bdi.
type bdiUpdateInput struct {
	DomainSummary *string         `json:"domain_summary"`
	Beneficiario  *map[string]any `json:"beneficiario"`
	Desires       *[]any          `json:"desires"`
	Beliefs       *[]any          `json:"beliefs"`
	Intentions    *[]any          `json:"intentions"`
}

func sessionUpdateBDICmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "update-bdi",
		Usage:     "Merge a partial BDI document (reads JSON from stdin)",
		ArgsUsage: "<session-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: "replace", Usage: "Sequence mode: replace|append"},
		},
		Action: func(c *cli.Context) error {
			id, err := requireArg(c, "session-id")
			if err != nil {
				return outputError(err)
			}
			mode := c.String("mode")
			if mode != "replace" && mode != "append" {
				return outputError(errors.NewInvalidRequest("mode must be replace or append"))
			}

			var in bdiUpdateInput
			if err := decodeStdin(&in); err != nil {
				return outputError(err)
			}
			u := bdi.Update{
				DomainSummary: in.DomainSummary,
				Beneficiario:  in.Beneficiario,
				Desires:       in.Desires,
				Beliefs:       in.Beliefs,
				Intentions:    in.Intentions,
			}
			if u.IsEmpty() {
				return outputError(errors.NewInvalidRequest("at least one BDI field is required"))
			}

			merge := d.store.UpdateBDI
			if mode == "append" {
				merge = d.store.AppendBDI
			}
			output, err := merge(id, u)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

func sessionBeliefsCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "beliefs",
		Usage:     "Print a session's belief base",
		ArgsUsage: "<session-id>",
		Action: func(c *cli.Context) error {
			id, err := requireArg(c, "session-id")
			if err != nil {
				return outputError(err)
			}
			beliefs, err := d.store.BeliefBase(id)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"beliefs": beliefs, "count": len(beliefs)})
		},
	}
}

func sessionImportBeliefsCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "import-beliefs",
		Usage:     "Import a context's belief base into a session",
		ArgsUsage: "<session-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "context", Aliases: []string{"c"}, Usage: "Context name", Required: true},
		},
		Action: func(c *cli.Context) error {
			id, err := requireArg(c, "session-id")
			if err != nil {
				return outputError(err)
			}
			output, err := d.store.ImportContextBeliefs(id, c.String("context"), d.registry)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

func sessionReportCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "report",
		Usage:     "Write the BDI markdown report into the session directory",
		ArgsUsage: "<session-id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "print", Aliases: []string{"p"}, Usage: "Print markdown instead of JSON"},
		},
		Action: func(c *cli.Context) error {
			id, err := requireArg(c, "session-id")
			if err != nil {
				return outputError(err)
			}
			output, err := d.store.WriteReport(id)
			if err != nil {
				return outputError(err)
			}
			if c.Bool("print") {
				_, err := fmt.Fprint(os.Stdout, output.Markdown)
				return err
			}
			return outputJSON(output)
		},
	}
}

// contextCmd groups the context subcommands.
func contextCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "context",
		Usage: "Manage knowledge contexts",
		Subcommands: []*cli.Command{
			contextCreateCmd(d),
			contextListCmd(d),
			contextGetCmd(d),
			contextUpdateCmd(d),
			contextRefreshCmd(d),
			contextDeleteCmd(d),
			contextBeliefsCmd(d),
		},
	}
}

func contextCreateCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "create",
		Usage:     "Create a knowledge context",
		ArgsUsage: "<name>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "Context description"},
		},
		Action: func(c *cli.Context) error {
			name, err := requireArg(c, "name")
			if err != nil {
				return outputError(err)
			}
			output, err := d.registry.Create(name, c.String("description"))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

func contextListCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List contexts, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "status", Aliases: []string{"s"}, Usage: "Filter by status"},
		},
		Action: func(c *cli.Context) error {
			items, err := d.registry.List(c.Context, contexts.ListInput{Status: c.String("status")})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"contexts": items, "count": len(items)})
		},
	}
}

func contextGetCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Get a context's metadata",
		ArgsUsage: "<name>",
		Action: func(c *cli.Context) error {
			name, err := requireArg(c, "name")
			if err != nil {
				return outputError(err)
			}
			output, err := d.registry.Get(name)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

func contextUpdateCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "update",
		Usage:     "Update a context's metadata",
		ArgsUsage: "<name>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "display-name", Usage: "New display name"},
			&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "New description"},
			&cli.StringFlag{Name: "status", Aliases: []string{"s"}, Usage: "New status"},
		},
		Action: func(c *cli.Context) error {
			name, err := requireArg(c, "name")
			if err != nil {
				return outputError(err)
			}

			var patch contexts.MetadataPatch
			if c.IsSet("display-name") {
				v := c.String("display-name")
				patch.Name = &v
			}
			if c.IsSet("description") {
				v := c.String("description")
				patch.Description = &v
			}
			if c.IsSet("status") {
				v := c.String("status")
				patch.Status = &v
			}

			output, err := d.registry.UpdateMetadata(name, patch)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

func contextRefreshCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "refresh",
		Usage:     "Recount a context's documents and base beliefs",
		ArgsUsage: "<name>",
		Action: func(c *cli.Context) error {
			name, err := requireArg(c, "name")
			if err != nil {
				return outputError(err)
			}
			output, err := d.registry.RefreshCounts(c.Context, name, d.registry.DirIndex(name))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

func contextDeleteCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a context directory and everything under it",
		ArgsUsage: "<name>",
		Action: func(c *cli.Context) error {
			name, err := requireArg(c, "name")
			if err != nil {
				return outputError(err)
			}
			output, err := d.registry.Delete(name)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

func contextBeliefsCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "beliefs",
		Usage:     "Print a context's belief base",
		ArgsUsage: "<name>",
		Action: func(c *cli.Context) error {
			name, err := requireArg(c, "name")
			if err != nil {
				return outputError(err)
			}
			if _, err := d.registry.Get(name); err != nil {
				return outputError(err)
			}
			beliefs, err := d.registry.BeliefBase(name)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"beliefs": beliefs, "count": len(beliefs)})
		},
	}
}

// serveCmd starts the HTTP API.
func serveCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the studio HTTP API and report pages",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Bind address (defaults to config)"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Port (defaults to config)"},
		},
		Action: func(c *cli.Context) error {
			cfg := *d.cfg
			if c.IsSet("bind") {
				cfg.WebBind = c.String("bind")
			}
			if c.IsSet("port") {
				port := c.Int("port")
				if port <= 0 || port > 65535 {
					return outputError(errors.NewInvalidRequest("port must be between 1 and 65535"))
				}
				cfg.WebPort = port
			}
			srv := web.NewServer(d.store, d.registry, &cfg, d.logger, Version)
			if err := web.Run(srv, d.logger); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			return nil
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if se, ok := errors.As(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", se.Code, se.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// requireArg returns the first positional argument.
func requireArg(c *cli.Context, name string) (string, error) {
	arg := strings.TrimSpace(c.Args().First())
	if arg == "" {
		return "", errors.NewInvalidRequest(name + " argument is required")
	}
	return arg, nil
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all content from stdin, failing past limit bytes.
func readStdin(limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(os.Stdin, limit+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > limit {
		return "", fmt.Errorf("stdin exceeds %d bytes", limit)
	}
	return strings.TrimSpace(string(data)), nil
}

// decodeStdin decodes a piped JSON document into v.
func decodeStdin(v any) error {
	if !stdinHasData() {
		return errors.NewInvalidRequest("a JSON document must be piped via stdin")
	}
	raw, err := readStdin(maxStdinBytes)
	if err != nil {
		return errors.NewInvalidRequest(err.Error())
	}
	if raw == "" {
		return errors.NewInvalidRequest("stdin is empty")
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid JSON: %v", err))
	}
	return nil
}

// parseTags splits a comma-separated string into a slice of tags.
func parseTags(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// parseSettings decodes an LLM settings JSON object.
func parseSettings(raw string) (map[string]any, error) {
	var settings map[string]any
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("settings must be a JSON object: %v", err))
	}
	if settings == nil {
		settings = map[string]any{}
	}
	return settings, nil
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return b
}
