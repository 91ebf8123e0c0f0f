package toolbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/medkitlab/sage/internal/log"
)

var (
	// ErrUnknownTool indicates a call for a tool outside the catalog.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrToolFailed indicates the channel executed the tool and reported
	// a failure result.
	ErrToolFailed = errors.New("tool execution failed")
)

// Tool is one callable administrative action: its name, the description
// shown to the model, and its strict-transformed parameter schema.
type Tool struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

// Config configures the catalog connection.
type Config struct {
	// Endpoint is the tool channel's streamable HTTP URL.
	Endpoint string

	// Token is an optional bearer token for authenticated calls.
	Token string

	// ClientName and ClientVersion identify this client to the channel.
	ClientName    string
	ClientVersion string
}

// caller is the slice of *mcp.ClientSession the catalog needs. Tests
// substitute a stub.
type caller interface {
	CallTool(ctx context.Context, params *mcp.CallToolParams) (*mcp.CallToolResult, error)
	Close() error
}

// Catalog holds the discovered, manifest-validated tool set and executes
// calls over the channel session. Read-only after Connect.
type Catalog struct {
	session caller
	tools   []Tool
	byName  map[string]Tool
	logger  log.Logger
}

// Connect dials the tool channel, discovers its tools, and builds the
// catalog from the intersection of discovery and the manifest. The caller
// decides what a connect failure means; the assistant treats it as
// "no tools available".
func Connect(ctx context.Context, cfg Config, logger log.Logger) (*Catalog, error) {
	client := mcp.NewClient(&mcp.Implementation{
		Name:    cfg.ClientName,
		Version: cfg.ClientVersion,
	}, nil)

	transport := &mcp.StreamableClientTransport{
		Endpoint:   cfg.Endpoint,
		HTTPClient: httpClient(cfg.Token),
	}

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to tool channel: %w", err)
	}

	listed, err := session.ListTools(ctx, nil)
	if err != nil {
		_ = session.Close()
		return nil, fmt.Errorf("discovering tools: %w", err)
	}

	tools, err := buildCatalog(listed.Tools, logger)
	if err != nil {
		_ = session.Close()
		return nil, err
	}

	logger.Info("tool channel connected",
		"endpoint", cfg.Endpoint,
		"tools", len(tools))

	return newCatalog(session, tools, logger), nil
}

func newCatalog(session caller, tools []Tool, logger log.Logger) *Catalog {
	byName := make(map[string]Tool, len(tools))
	for _, t := range tools {
		byName[t.Name] = t
	}
	return &Catalog{
		session: session,
		tools:   tools,
		byName:  byName,
		logger:  logger,
	}
}

// buildCatalog intersects discovered tools with the manifest, in manifest
// order, applying the strict schema transform to each survivor.
func buildCatalog(discovered []*mcp.Tool, logger log.Logger) ([]Tool, error) {
	byName := make(map[string]*mcp.Tool, len(discovered))
	for _, t := range discovered {
		byName[t.Name] = t
	}

	for _, t := range discovered {
		if !slices.Contains(manifest, t.Name) {
			logger.Warn("channel advertises tool outside manifest, ignoring", "tool", t.Name)
		}
	}

	var tools []Tool
	for _, name := range manifest {
		src, ok := byName[name]
		if !ok {
			logger.Warn("manifest tool not served by channel, skipping", "tool", name)
			continue
		}

		parsed, err := parseWireSchema(src.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("decoding schema for %s: %w", name, err)
		}
		schema, err := Strict(parsed)
		if err != nil {
			return nil, fmt.Errorf("transforming schema for %s: %w", name, err)
		}
		tools = append(tools, Tool{
			Name:        src.Name,
			Description: src.Description,
			InputSchema: schema,
		})
	}
	return tools, nil
}

// parseWireSchema decodes a discovered tool's input schema. The client
// SDK surfaces it as any (a map[string]any after the wire round trip),
// so it is rebuilt into a typed schema through its JSON form.
func parseWireSchema(v any) (*jsonschema.Schema, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal wire schema: %w", err)
	}
	var schema jsonschema.Schema
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("unmarshal wire schema: %w", err)
	}
	return &schema, nil
}

// Tools returns the catalog contents in manifest order.
func (c *Catalog) Tools() []Tool {
	out := make([]Tool, len(c.tools))
	copy(out, c.tools)
	return out
}

// Call invokes the named tool with the given arguments and returns the
// result serialized for the model. A channel-reported failure comes back
// as an error wrapping ErrToolFailed so the orchestrator can feed it to
// the model instead of aborting the turn.
func (c *Catalog) Call(ctx context.Context, name string, args map[string]any) (string, error) {
	if _, ok := c.byName[name]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	c.logger.Info("executing tool", "tool", name)

	result, err := c.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		return "", fmt.Errorf("calling %s: %w", name, err)
	}

	text := resultText(result)
	if result.IsError {
		return "", fmt.Errorf("%w: %s: %s", ErrToolFailed, name, text)
	}
	return text, nil
}

// Close releases the channel session.
func (c *Catalog) Close() error {
	if c.session == nil {
		return nil
	}
	return c.session.Close()
}

// resultText serializes a tool result for the model: structured content
// when present, otherwise the concatenated text parts.
func resultText(result *mcp.CallToolResult) string {
	if result.StructuredContent != nil {
		if data, err := json.Marshal(result.StructuredContent); err == nil {
			return string(data)
		}
	}

	var parts []string
	for _, content := range result.Content {
		if tc, ok := content.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// httpClient returns an HTTP client that attaches the bearer token when
// one is configured.
func httpClient(token string) *http.Client {
	if token == "" {
		return http.DefaultClient
	}
	return &http.Client{Transport: &authTransport{token: token}}
}

type authTransport struct {
	token string
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+t.token)
	return http.DefaultTransport.RoundTrip(clone)
}
