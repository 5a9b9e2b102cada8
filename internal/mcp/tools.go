package mcp

import "github.com/mark3labs/mcp-go/mcp"

var objectItems = map[string]any{"type": "object"}

var sessionCreateToolDef = mcp.NewTool("session_create",
	mcp.WithDescription("Create an authoring session with an empty belief base and an empty BDI document."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Session name")),
	mcp.WithString("description", mcp.Description("Free-text description")),
	mcp.WithArray("tags", mcp.Items(map[string]any{"type": "string"}), mcp.Description("Tags")),
	mcp.WithString("context", mcp.Description("Normalized name of the knowledge context the session draws from")),
	mcp.WithString("llm_provider", mcp.Description("LLM provider; defaults to the configured provider")),
	mcp.WithString("llm_model", mcp.Description("LLM model; defaults to the configured model")),
	mcp.WithObject("llm_settings", mcp.Description("Generation options (temperature, top_p, max_tokens, max_output_tokens, reasoning_effort, use_defaults)")),
)

var sessionGetToolDef = mcp.NewTool("session_get",
	mcp.WithDescription("Get a session's metadata and configuration. Refreshes last_accessed."),
	mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
)

var sessionListToolDef = mcp.NewTool("session_list",
	mcp.WithDescription("List sessions, most recently accessed first."),
	mcp.WithString("status", mcp.Enum("active", "archived", "draft"), mcp.Description("Only sessions in this status")),
)

var sessionUpdateToolDef = mcp.NewTool("session_update",
	mcp.WithDescription("Update session metadata. Omitted fields are left unchanged; tags replace the stored set."),
	mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
	mcp.WithString("name", mcp.Description("New name")),
	mcp.WithString("description", mcp.Description("New description")),
	mcp.WithArray("tags", mcp.Items(map[string]any{"type": "string"}), mcp.Description("Replacement tags")),
	mcp.WithString("status", mcp.Enum("active", "archived", "draft"), mcp.Description("New status")),
	mcp.WithArray("chat_history", mcp.Items(objectItems), mcp.Description("Chat transcript to store alongside the session")),
)

var sessionConfigToolDef = mcp.NewTool("session_config",
	mcp.WithDescription("Update session configuration. llm_settings, when given, replaces the stored settings."),
	mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
	mcp.WithString("context", mcp.Description("Context name")),
	mcp.WithString("llm_provider", mcp.Description("LLM provider")),
	mcp.WithString("llm_model", mcp.Description("LLM model")),
	mcp.WithObject("llm_settings", mcp.Description("Generation options")),
)

var sessionChatHistoryToolDef = mcp.NewTool("session_chat_history",
	mcp.WithDescription("Get the chat transcript stored with a session."),
	mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
)

var sessionArchiveToolDef = mcp.NewTool("session_archive",
	mcp.WithDescription("Archive a session. Sessions are never removed."),
	mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
)

var bdiGetToolDef = mcp.NewTool("bdi_get",
	mcp.WithDescription("Get a session's BDI document (domain_summary, beneficiario, desires, beliefs, intentions)."),
	mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
	mcp.WithString("format", mcp.Enum("json", "markdown"), mcp.Description("Output format (default json)")),
	mcp.WithBoolean("save", mcp.Description("With format=markdown, also write bdi_report.md into the session directory")),
)

var bdiUpdateToolDef = mcp.NewTool("bdi_update",
	mcp.WithDescription("Update a session's BDI document. Supplied fields replace the stored value; with mode=append, sequences are added after the stored entries."),
	mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
	mcp.WithString("domain_summary", mcp.Description("Domain summary")),
	mcp.WithObject("beneficiario", mcp.Description("Beneficiary description")),
	mcp.WithArray("desires", mcp.Items(objectItems), mcp.Description("Desires")),
	mcp.WithArray("beliefs", mcp.Items(objectItems), mcp.Description("Beliefs")),
	mcp.WithArray("intentions", mcp.Items(objectItems), mcp.Description("Intentions")),
	mcp.WithString("mode", mcp.Enum("replace", "append"), mcp.Description("replace (default) or append for sequences")),
)

var beliefBaseGetToolDef = mcp.NewTool("belief_base_get",
	mcp.WithDescription("Get the base beliefs of a session or of a context. Give exactly one of session_id or context."),
	mcp.WithString("session_id", mcp.Description("Session ID")),
	mcp.WithString("context", mcp.Description("Context name")),
)

var beliefBaseUpdateToolDef = mcp.NewTool("belief_base_update",
	mcp.WithDescription("Replace the base beliefs of a session or of a context. Give exactly one of session_id or context."),
	mcp.WithString("session_id", mcp.Description("Session ID")),
	mcp.WithString("context", mcp.Description("Context name")),
	mcp.WithArray("beliefs", mcp.Required(), mcp.Items(objectItems), mcp.Description("Replacement beliefs")),
)

var beliefsImportToolDef = mcp.NewTool("beliefs_import",
	mcp.WithDescription("Copy a context's base beliefs into a session's belief base, skipping entries already present."),
	mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
	mcp.WithString("context", mcp.Required(), mcp.Description("Context name")),
)

var contextCreateToolDef = mcp.NewTool("context_create",
	mcp.WithDescription("Create a knowledge context. The display name is normalized into the context's identifier."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Display name")),
	mcp.WithString("description", mcp.Description("Description")),
)

var contextListToolDef = mcp.NewTool("context_list",
	mcp.WithDescription("List knowledge contexts, newest first."),
	mcp.WithString("status", mcp.Description("Only contexts whose metadata status equals this")),
)

var contextGetToolDef = mcp.NewTool("context_get",
	mcp.WithDescription("Get a knowledge context's metadata."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Context name")),
)

var contextDeleteToolDef = mcp.NewTool("context_delete",
	mcp.WithDescription("Delete a knowledge context with its documents and belief base."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Context name")),
)

var contextRefreshToolDef = mcp.NewTool("context_refresh",
	mcp.WithDescription("Recount a context's documents and base beliefs and store the counters in its metadata."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Context name")),
)
