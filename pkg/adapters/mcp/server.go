package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/mathspeak"
	"github.com/aretw0/mathspeak/pkg/domain"
	"github.com/aretw0/mathspeak/pkg/speech"
	"github.com/go-chi/chi/v5"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// ConstraintsURI names the resource listing loaded constraints.
const ConstraintsURI = "mathspeak://constraints"

// Engine is the part of the mathspeak engine exposed as MCP tools.
type Engine interface {
	Evaluate(ctx context.Context, tree *domain.Tree, id domain.NodeID, c domain.Constraint) ([]domain.Description, error)
	Resolve(c domain.Constraint) domain.Resolution
	Constraints() []domain.Constraint
	RuleCount(c domain.Constraint) int
	Generation() uint64
}

// SpeakArgs are the arguments of the speak tool.
type SpeakArgs struct {
	Tree   string `json:"tree"`
	Node   *int   `json:"node,omitempty"`
	Domain string `json:"domain,omitempty"`
	Style  string `json:"style,omitempty"`
	Format string `json:"format,omitempty"`
}

// SpeakResult mirrors the HTTP speak response.
type SpeakResult struct {
	Constraint   domain.Constraint    `json:"constraint" jsonschema_description:"The requested constraint, normalized"`
	Resolved     domain.Constraint    `json:"resolved" jsonschema_description:"The most specific constraint present in the rule base"`
	Format       speech.Format        `json:"format"`
	Output       string               `json:"output" jsonschema_description:"The rendered speech"`
	Descriptions []domain.Description `json:"descriptions"`
}

// ConstraintInfo is one loaded constraint with its rule count.
type ConstraintInfo struct {
	domain.Constraint
	Rules int `json:"rules"`
}

// ConstraintsResult lists the loaded constraints.
type ConstraintsResult struct {
	Generation  uint64           `json:"generation"`
	Constraints []ConstraintInfo `json:"constraints"`
}

// Server exposes an engine as an MCP server.
type Server struct {
	engine    Engine
	defaults  domain.Constraint
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server for engine. Requests that name no domain
// or style fall back to defaults.
func NewServer(engine Engine, defaults domain.Constraint) *Server {
	s := &Server{
		engine:   engine,
		defaults: defaults.Normalize(),
		mcpServer: server.NewMCPServer("mathspeak-mcp", strings.TrimSpace(mathspeak.Version),
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
			server.WithRecovery(),
		),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio serves on stdin and stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves over Server-Sent Events on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL("http://"+baseHost(addr)))

	r := chi.NewRouter()
	r.Handle("/sse", sseServer.SSEHandler())
	r.Handle("/message", sseServer.MessageHandler())
	httpServer := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("MCP server listening (SSE)", "addr", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func baseHost(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}

func (s *Server) registerTools() {
	speakTool := mcp.NewTool("speak",
		mcp.WithDescription("Speak a classified math tree under a domain and style."),
		mcp.WithString("tree", mcp.Required(), mcp.Description("The tree as JSON: {kind, role, content, attributes, children}")),
		mcp.WithNumber("node", mcp.Description("Node id to speak (default: root)")),
		mcp.WithString("domain", mcp.Description("Rule-set family")),
		mcp.WithString("style", mcp.Description("Verbosity level")),
		mcp.WithString("format", mcp.Description("Output format: text, ssml or json")),
		mcp.WithOutputSchema[SpeakResult](),
	)
	s.mcpServer.AddTool(speakTool, mcp.NewStructuredToolHandler(s.handleSpeak))

	constraintsTool := mcp.NewTool("list_constraints",
		mcp.WithDescription("List the domain and style pairs with loaded rules."),
		mcp.WithOutputSchema[ConstraintsResult](),
	)
	s.mcpServer.AddTool(constraintsTool, mcp.NewStructuredToolHandler(s.handleConstraints))
}

func (s *Server) handleSpeak(ctx context.Context, request mcp.CallToolRequest, args SpeakArgs) (SpeakResult, error) {
	if strings.TrimSpace(args.Tree) == "" {
		return SpeakResult{}, errors.New("tree is required")
	}
	format, err := speech.ParseFormat(args.Format)
	if err != nil {
		return SpeakResult{}, err
	}
	tree, err := domain.DecodeTree([]byte(args.Tree))
	if err != nil {
		return SpeakResult{}, err
	}
	id := tree.Root()
	if args.Node != nil {
		id = domain.NodeID(*args.Node)
	}

	c := domain.Constraint{Domain: args.Domain, Style: args.Style}
	if c.Domain == "" {
		c.Domain = s.defaults.Domain
	}
	if c.Style == "" {
		c.Style = s.defaults.Style
	}

	seq, err := s.engine.Evaluate(ctx, tree, id, c)
	if err != nil {
		slog.Warn("MCP speak failed", "err", err, "constraint", c.String())
		return SpeakResult{}, fmt.Errorf("speak failed: %w", err)
	}
	renderer, err := speech.For(format)
	if err != nil {
		return SpeakResult{}, err
	}
	out, err := renderer.Render(seq)
	if err != nil {
		return SpeakResult{}, fmt.Errorf("render failed: %w", err)
	}
	return SpeakResult{
		Constraint:   c.Normalize(),
		Resolved:     s.engine.Resolve(c).Resolved,
		Format:       format,
		Output:       out,
		Descriptions: seq,
	}, nil
}

func (s *Server) handleConstraints(ctx context.Context, request mcp.CallToolRequest, _ struct{}) (ConstraintsResult, error) {
	return s.constraints(), nil
}

func (s *Server) constraints() ConstraintsResult {
	cs := s.engine.Constraints()
	res := ConstraintsResult{Generation: s.engine.Generation(), Constraints: make([]ConstraintInfo, 0, len(cs))}
	for _, c := range cs {
		res.Constraints = append(res.Constraints, ConstraintInfo{Constraint: c, Rules: s.engine.RuleCount(c)})
	}
	return res
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(ConstraintsURI, "Loaded constraints",
		mcp.WithMIMEType("application/json"),
	), s.readConstraints)
}

func (s *Server) readConstraints(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(s.constraints())
	if err != nil {
		return nil, fmt.Errorf("failed to encode constraints: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ConstraintsURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
