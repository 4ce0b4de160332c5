package mcp

import (
	"encoding/json"
	stderrors "errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/deskforge/deskcfg/internal/errors"
)

// decode reads a desk_* tool's arguments into its request struct.
// A malformed or mistyped argument is reported as INVALID_REQUEST naming the tool.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var result T
	tool := req.Params.Name
	if tool == "" {
		tool = "tool"
	}

	b, err := json.Marshal(req.GetArguments())
	if err != nil {
		return result, errors.NewInvalidRequest(tool + ": arguments are not JSON")
	}
	if err := json.Unmarshal(b, &result); err != nil {
		var typeErr *json.UnmarshalTypeError
		if stderrors.As(err, &typeErr) && typeErr.Field != "" {
			return result, errors.NewInvalidRequest(tool + ": argument " + typeErr.Field + " must be " + typeErr.Type.String())
		}
		return result, errors.NewInvalidRequest(tool + ": invalid arguments")
	}
	return result, nil
}
