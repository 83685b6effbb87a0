package genaiutils

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/ohtaman/planchat/pkg/llms"
	"google.golang.org/genai"
)

// ConvertTools converts from a list of llms tools to a list of genai tools.
func ConvertTools(tools []llms.Tool) ([]*genai.Tool, error) {
	genaiTools := make([]*genai.Tool, 0, len(tools))
	for i, tool := range tools {
		if tool.Type != "function" {
			return nil, errors.Newf("tool [%d]: unsupported type %q, want 'function'", i, tool.Type)
		}

		genaiFuncDecl := &genai.FunctionDeclaration{
			Name:        tool.Function.Name,
			Description: tool.Function.Description,
		}

		if tool.Function.Parameters != nil {
			schema, err := ConvertSchema(tool.Function.Parameters)
			if err != nil {
				return nil, errors.Wrapf(err, "tool [%d]", i)
			}
			genaiFuncDecl.Parameters = schema
		}

		genaiTools = append(genaiTools, &genai.Tool{
			FunctionDeclarations: []*genai.FunctionDeclaration{genaiFuncDecl},
		})
	}

	return genaiTools, nil
}

// schemaNode is the subset of a JSON schema that function parameters use.
type schemaNode struct {
	Type        string                 `json:"type"`
	Description string                 `json:"description,omitempty"`
	Properties  map[string]*schemaNode `json:"properties,omitempty"`
	Required    []string               `json:"required,omitempty"`
	Items       *schemaNode            `json:"items,omitempty"`
	Enum        []string               `json:"enum,omitempty"`
}

// ConvertSchema converts a function parameters definition, either a
// *jsonschema.Schema or a raw map decoded from JSON, to a genai.Schema.
func ConvertSchema(params any) (*genai.Schema, error) {
	if params == nil {
		return nil, nil
	}

	bs, err := json.Marshal(params)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal parameters")
	}
	var node schemaNode
	if err := json.Unmarshal(bs, &node); err != nil {
		return nil, errors.Wrap(err, "failed to decode parameters schema")
	}
	return convertNode(&node), nil
}

func convertNode(n *schemaNode) *genai.Schema {
	if n == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        ConvertSchemaType(n.Type),
		Description: n.Description,
		Required:    n.Required,
		Enum:        n.Enum,
	}
	if len(n.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(n.Properties))
		for k, v := range n.Properties {
			out.Properties[k] = convertNode(v)
		}
	}
	if n.Items != nil {
		out.Items = convertNode(n.Items)
	}
	return out
}

// ConvertSchemaType converts a JSON schema type name to a genai.Type.
func ConvertSchemaType(ty string) genai.Type {
	switch ty {
	case "object":
		return genai.TypeObject
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	default:
		return genai.TypeUnspecified
	}
}

func Float32Ptr(f float32) *float32 {
	if f == 0 {
		return nil
	}
	return &f
}

func Int32Ptr(i int32) *int32 {
	if i == 0 {
		return nil
	}
	return &i
}
