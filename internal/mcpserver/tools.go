package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the tariffdesk MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolOpenEditor = mcp.NewTool("open_editor",
	mcp.WithDescription(
		"Open a tariff editor session over the currently published tariffs document. "+
			"Returns the session id and every tariff and plan with the keys other tools need. "+
			"Later tools use this session unless session_id is given."),
)

var ToolListTariffs = mcp.NewTool("list_tariffs",
	mcp.WithDescription(
		"Show the working copy of an editor session: tariffs in order, their plans, prices and features, "+
			"with tariff_key and plan_key values."),
	mcp.WithString("session_id",
		mcp.Description("Editor session id. Defaults to the session from open_editor.")),
)

var ToolAddTariff = mcp.NewTool("add_tariff",
	mcp.WithDescription(
		"Append a new tariff with an empty id, title and subtitle and one plan named 'M'. "+
			"Use update_tariff afterwards to fill it in."),
	mcp.WithString("session_id",
		mcp.Description("Editor session id. Defaults to the session from open_editor.")),
)

var ToolRemoveTariff = mcp.NewTool("remove_tariff",
	mcp.WithDescription("Remove a tariff and all its plans from the working copy."),
	mcp.WithString("tariff_key",
		mcp.Required(),
		mcp.Description("The tariff_key from list_tariffs (e.g. 'trf_...'), not the tariff id")),
	mcp.WithString("session_id",
		mcp.Description("Editor session id. Defaults to the session from open_editor.")),
)

var ToolUpdateTariff = mcp.NewTool("update_tariff",
	mcp.WithDescription(
		"Change a tariff's id, title or subtitle. Only the fields you pass are changed; values are trimmed."),
	mcp.WithString("tariff_key",
		mcp.Required(),
		mcp.Description("The tariff_key from list_tariffs")),
	mcp.WithString("id",
		mcp.Description("Public identifier used by the pricing page, e.g. 'full' or 'single'")),
	mcp.WithString("title",
		mcp.Description("Heading shown in the pricing modal")),
	mcp.WithString("subtitle",
		mcp.Description("Text shown under the heading")),
	mcp.WithString("session_id",
		mcp.Description("Editor session id. Defaults to the session from open_editor.")),
)

var ToolAddPlan = mcp.NewTool("add_plan",
	mcp.WithDescription(
		"Append a plan named 'NEW' with no price or features to a tariff. "+
			"The new plan stays at the end; canonical M, L, XL ordering is applied on the next load."),
	mcp.WithString("tariff_key",
		mcp.Required(),
		mcp.Description("The tariff_key from list_tariffs")),
	mcp.WithString("session_id",
		mcp.Description("Editor session id. Defaults to the session from open_editor.")),
)

var ToolRemovePlan = mcp.NewTool("remove_plan",
	mcp.WithDescription("Remove one plan from a tariff."),
	mcp.WithString("tariff_key",
		mcp.Required(),
		mcp.Description("The tariff_key from list_tariffs")),
	mcp.WithString("plan_key",
		mcp.Required(),
		mcp.Description("The plan_key from list_tariffs (e.g. 'pln_...')")),
	mcp.WithString("session_id",
		mcp.Description("Editor session id. Defaults to the session from open_editor.")),
)

var ToolUpdatePlan = mcp.NewTool("update_plan",
	mcp.WithDescription(
		"Change a plan's name, price or features. Only the fields you pass are changed."),
	mcp.WithString("tariff_key",
		mcp.Required(),
		mcp.Description("The tariff_key from list_tariffs")),
	mcp.WithString("plan_key",
		mcp.Required(),
		mcp.Description("The plan_key from list_tariffs")),
	mcp.WithString("name",
		mcp.Description("Plan name, usually 'M', 'L' or 'XL'")),
	mcp.WithString("price",
		mcp.Description("Price label exactly as displayed, e.g. '1 990 ₽'")),
	mcp.WithString("features",
		mcp.Description("Features, one per line. Blank lines are dropped.")),
	mcp.WithString("session_id",
		mcp.Description("Editor session id. Defaults to the session from open_editor.")),
)

var ToolExportJSON = mcp.NewTool("export_json",
	mcp.WithDescription(
		"Generate the tariffs.json document for the session's working copy. "+
			"The result is the text an operator publishes; the server never saves it."),
	mcp.WithString("session_id",
		mcp.Description("Editor session id. Defaults to the session from open_editor.")),
)

var ToolGetPublicTariff = mcp.NewTool("get_public_tariff",
	mcp.WithDescription(
		"Look up a published tariff by its id as the pricing page sees it. Edits in a session are not visible here."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Tariff id, e.g. 'full' or 'single'")),
)
