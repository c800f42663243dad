package contacts

import (
	"context"
	"encoding/json"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool names.
const (
	ToolList = "list_contacts"
	ToolGet  = "get_contact"
)

// ListInput is the argument of list_contacts.
type ListInput struct {
	Query string `json:"query,omitempty" jsonschema:"case-insensitive text to look for in names, notes, skills and locations"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of contacts to return, default 20"`
}

// ListOutput is the result of list_contacts.
type ListOutput struct {
	Contacts []Contact `json:"contacts"`
}

// GetInput is the argument of get_contact.
type GetInput struct {
	File string `json:"file" jsonschema:"file name as returned by list_contacts"`
}

// NewServer returns an MCP server exposing dir through the list_contacts and
// get_contact tools. get_contact returns the stored event as JSON text.
func NewServer(dir *Dir, version string) *mcpsdk.Server {
	s := mcpsdk.NewServer(&mcpsdk.Implementation{Name: "memento-contacts", Version: version}, nil)

	mcpsdk.AddTool(s, &mcpsdk.Tool{
		Name:        ToolList,
		Description: "List people met in captured conversations, newest first.",
	}, func(ctx context.Context, _ *mcpsdk.CallToolRequest, in ListInput) (*mcpsdk.CallToolResult, ListOutput, error) {
		cs, err := dir.List(ctx, in.Query, in.Limit)
		if err != nil {
			return nil, ListOutput{}, err
		}
		if cs == nil {
			cs = []Contact{}
		}
		return nil, ListOutput{Contacts: cs}, nil
	})

	mcpsdk.AddTool(s, &mcpsdk.Tool{
		Name:        ToolGet,
		Description: "Return one captured conversation with its summary, transcript and location.",
	}, func(ctx context.Context, _ *mcpsdk.CallToolRequest, in GetInput) (*mcpsdk.CallToolResult, any, error) {
		ev, err := dir.Get(ctx, in.File)
		if err != nil {
			return nil, nil, err
		}
		data, err := json.MarshalIndent(ev, "", "  ")
		if err != nil {
			return nil, nil, err
		}
		return &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}},
		}, nil, nil
	})

	return s
}
