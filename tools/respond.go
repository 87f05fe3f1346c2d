package tools

import (
	"encoding/json"

	"emperror.dev/errors"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/youssefotb/remindmcp/common"
)

type toolError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// envelope is the uniform tool result: success plus either data or errors.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Errors  []toolError `json:"errors,omitempty"`
}

func marshalResult(env *envelope) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(env)
	if err != nil {
		return nil, errors.WithMessage(err, "marshaling tool result")
	}
	return mcp.NewToolResultText(string(b)), nil
}

// errorResult renders err as an in-band failure. Duplicate collisions also
// carry the existing campaign id in the data section.
func errorResult(err error) *mcp.CallToolResult {
	env := &envelope{
		Errors: []toolError{{Kind: common.ErrKind(err), Message: err.Error()}},
	}

	var dup *common.DuplicateError
	if errors.As(err, &dup) {
		env.Data = map[string]interface{}{"existing_campaign_id": dup.ExistingID}
	}

	res, mErr := marshalResult(env)
	if mErr != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return res
}
