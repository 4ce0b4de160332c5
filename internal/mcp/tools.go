package mcp

import "github.com/mark3labs/mcp-go/mcp"

const (
	tokenDesc    = "Share token of the current configuration (the value of the config query parameter). Empty means the defaults."
	quantityDesc = "Number of identical desks, 1 to 99. Overrides the quantity stored in the token."
)

var configureToolDef = mcp.NewTool("desk_configure",
	mcp.WithDescription("Build a desk configuration from a share token and optional field values. Returns the normalized values, layer images, article list and a share URL."),
	mcp.WithString("token", mcp.Description(tokenDesc)),
	mcp.WithObject("values", mcp.Description("Field id to option id, applied over the token. Legacy option aliases are accepted.")),
	mcp.WithNumber("table_quantity", mcp.Description(quantityDesc)),
)

var editToolDef = mcp.NewTool("desk_edit",
	mcp.WithDescription("Change one field. When other fields would be forced to change, nothing is committed unless confirm is true; the response lists the changes and the pending token."),
	mcp.WithString("token", mcp.Description(tokenDesc)),
	mcp.WithString("field", mcp.Required(), mcp.Description("Field id, e.g. width, frame, color, superstructure")),
	mcp.WithString("value", mcp.Required(), mcp.Description("Option id for the field")),
	mcp.WithBoolean("confirm", mcp.Description("Commit even if dependent fields change")),
	mcp.WithNumber("table_quantity", mcp.Description(quantityDesc)),
)

var decodeToolDef = mcp.NewTool("desk_decode",
	mcp.WithDescription("Read a share token in the current or legacy format and report its raw and normalized values."),
	mcp.WithString("token", mcp.Required(), mcp.Description(tokenDesc)),
)

var encodeToolDef = mcp.NewTool("desk_encode",
	mcp.WithDescription("Normalize field values and render their share token."),
	mcp.WithObject("values", mcp.Required(), mcp.Description("Field id to option id")),
	mcp.WithNumber("table_quantity", mcp.Description(quantityDesc)),
	mcp.WithBoolean("legacy", mcp.Description("Write the old compressed format, which carries no quantity")),
)

var quoteToolDef = mcp.NewTool("desk_quote",
	mcp.WithDescription("Prepare a quote request for a configuration. The message is returned as text, Markdown, HTML and a mailto link; nothing is sent."),
	mcp.WithString("token", mcp.Description(tokenDesc)),
	mcp.WithNumber("table_quantity", mcp.Description(quantityDesc)),
	mcp.WithString("name", mcp.Description("Contact name")),
	mcp.WithString("email", mcp.Description("Reply address")),
	mcp.WithString("company", mcp.Description("Company")),
	mcp.WithString("message", mcp.Description("Free text for the sales team")),
)

var cartToolDef = mcp.NewTool("desk_cart",
	mcp.WithDescription("List the order cart form fields for a configuration."),
	mcp.WithString("token", mcp.Description(tokenDesc)),
	mcp.WithNumber("table_quantity", mcp.Description(quantityDesc)),
)

var schemaToolDef = mcp.NewTool("desk_schema",
	mcp.WithDescription("Describe the configurable fields, their options and defaults."),
)
