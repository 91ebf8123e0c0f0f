package toolbox

import (
	"encoding/json"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/jsonschema-go/jsonschema"
)

// RegisterTools defines every catalog tool with Genkit so turn requests
// expose the strict schemas to the model. The orchestrator runs in
// return-tool-requests mode and executes calls through the catalog
// itself; the handlers here serve any direct generate flow.
func RegisterTools(g *genkit.Genkit, c *Catalog) []ai.ToolRef {
	refs := make([]ai.ToolRef, 0, len(c.tools))
	for _, t := range c.tools {
		tool := t
		schema, err := SchemaMap(tool.InputSchema)
		if err != nil {
			c.logger.Warn("tool schema not registrable, skipping", "tool", tool.Name, "error", err)
			continue
		}
		def := genkit.DefineToolWithInputSchema(g, tool.Name, tool.Description, schema,
			func(ctx *ai.ToolContext, input any) (string, error) {
				args, _ := input.(map[string]any)
				return c.Call(ctx, tool.Name, args)
			})
		refs = append(refs, def)
	}
	return refs
}

// SchemaMap renders a schema in the map form Genkit's tool registration
// takes. A nil schema becomes an empty open object.
func SchemaMap(s *jsonschema.Schema) (map[string]any, error) {
	if s == nil {
		return map[string]any{"type": "object"}, nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
