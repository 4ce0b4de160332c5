package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/deskforge/deskcfg/internal/errors"
	"github.com/deskforge/deskcfg/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	pipeline *ops.Pipeline
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(p *ops.Pipeline) *Handlers {
	return &Handlers{pipeline: p}
}

// Request types for each tool

// ConfigureRequest represents the arguments for desk_configure.
type ConfigureRequest struct {
	Token         string            `json:"token,omitempty"`
	Values        map[string]string `json:"values,omitempty"`
	TableQuantity int               `json:"table_quantity,omitempty"`
}

// EditRequest represents the arguments for desk_edit.
type EditRequest struct {
	Token         string `json:"token,omitempty"`
	Field         string `json:"field"`
	Value         string `json:"value"`
	Confirm       bool   `json:"confirm,omitempty"`
	TableQuantity int    `json:"table_quantity,omitempty"`
}

// DecodeRequest represents the arguments for desk_decode.
type DecodeRequest struct {
	Token string `json:"token"`
}

// EncodeRequest represents the arguments for desk_encode.
type EncodeRequest struct {
	Values        map[string]string `json:"values"`
	TableQuantity int               `json:"table_quantity,omitempty"`
	Legacy        bool              `json:"legacy,omitempty"`
}

// QuoteRequest represents the arguments for desk_quote.
type QuoteRequest struct {
	Token         string `json:"token,omitempty"`
	TableQuantity int    `json:"table_quantity,omitempty"`
	Name          string `json:"name,omitempty"`
	Email         string `json:"email,omitempty"`
	Company       string `json:"company,omitempty"`
	Message       string `json:"message,omitempty"`
}

// CartRequest represents the arguments for desk_cart.
type CartRequest struct {
	Token         string `json:"token,omitempty"`
	TableQuantity int    `json:"table_quantity,omitempty"`
}

// Handler implementations

// HandleConfigure handles the desk_configure tool call.
func (h *Handlers) HandleConfigure(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ConfigureRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Configure(ctx, h.pipeline, ops.ConfigureInput{
		Token:         input.Token,
		Values:        input.Values,
		TableQuantity: input.TableQuantity,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleEdit handles the desk_edit tool call.
func (h *Handlers) HandleEdit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[EditRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if input.Field == "" {
		return errorResult(errors.NewInvalidRequest("field is required")), nil
	}

	result, err := ops.Edit(ctx, h.pipeline, ops.EditInput{
		Token:         input.Token,
		Field:         input.Field,
		Value:         input.Value,
		Confirm:       input.Confirm,
		TableQuantity: input.TableQuantity,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleDecode handles the desk_decode tool call.
func (h *Handlers) HandleDecode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DecodeRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Decode(ctx, h.pipeline, ops.DecodeInput{Token: input.Token})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleEncode handles the desk_encode tool call.
func (h *Handlers) HandleEncode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[EncodeRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Encode(ctx, h.pipeline, ops.EncodeInput{
		Values:        input.Values,
		TableQuantity: input.TableQuantity,
		Legacy:        input.Legacy,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleQuote handles the desk_quote tool call.
func (h *Handlers) HandleQuote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[QuoteRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Quote(ctx, h.pipeline, ops.QuoteInput{
		Token:         input.Token,
		TableQuantity: input.TableQuantity,
		Name:          input.Name,
		Email:         input.Email,
		Company:       input.Company,
		Message:       input.Message,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleCart handles the desk_cart tool call.
func (h *Handlers) HandleCart(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CartRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Cart(ctx, h.pipeline, ops.CartInput{
		Token:         input.Token,
		TableQuantity: input.TableQuantity,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSchema handles the desk_schema tool call.
func (h *Handlers) HandleSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return successResult(ops.Describe(h.pipeline))
}

// errorResult creates an MCP error result from any error.
// Internal error details are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var dErr *errors.DeskError
	if stderrors.As(err, &dErr) {
		errorObj := map[string]any{
			"code":    dErr.Code,
			"message": dErr.Message,
			"status":  dErr.Status,
		}
		if dErr.Code != errors.ErrInternal && dErr.Details != nil {
			errorObj["details"] = dErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
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
