package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/isdmx/buildbox/build"
	"github.com/isdmx/buildbox/config"
	"github.com/isdmx/buildbox/sandbox"
)

// Builder runs one build command for a language
type Builder interface {
	Run(ctx context.Context, lang sandbox.Language, command string) (build.Result, error)
}

// Lifecycle manages the per-language containers
type Lifecycle interface {
	EnsureReady(ctx context.Context, lang sandbox.Language) error
	Stop(ctx context.Context, lang sandbox.Language) (bool, error)
	Remove(ctx context.Context, lang sandbox.Language) error
	Status(ctx context.Context, lang sandbox.Language) (sandbox.ContainerStatus, error)
}

// MCPServer represents the MCP server
type MCPServer struct {
	config     *config.Config
	logger     *zap.Logger
	builder    Builder
	containers Lifecycle
	catalog    *sandbox.Catalog
	fs         sandbox.FileSystem
	sandboxDir string
	mcpServer  *server.MCPServer
}

// New creates a new MCPServer
func New(cfg *config.Config, logger *zap.Logger, builder Builder, containers Lifecycle, catalog *sandbox.Catalog) (*MCPServer, error) {
	dir, err := filepath.Abs(cfg.Sandbox.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve sandbox dir: %w", err)
	}

	s := &MCPServer{
		config:     cfg,
		logger:     logger,
		builder:    builder,
		containers: containers,
		catalog:    catalog,
		fs:         sandbox.RealFileSystem{},
		sandboxDir: dir,
	}

	logger.Info("configuration loaded",
		zap.String("server.transport", cfg.Server.Transport),
		zap.Int("server.http_port", cfg.Server.HTTPPort),
		zap.String("sandbox.backend", cfg.Sandbox.Backend),
		zap.String("sandbox.dir", dir),
		zap.String("sandbox.container_prefix", cfg.Sandbox.ContainerPrefix),
		zap.String("sandbox.mount_path", cfg.Sandbox.MountPath),
		zap.Bool("sandbox.verbose", cfg.Sandbox.Verbose),
		zap.String("cache.backend", cfg.Cache.Backend),
		zap.Any("languages", cfg.ImageOverrides()),
	)

	s.mcpServer = server.NewMCPServer("buildbox", "A sandboxed build and test runner")
	s.registerTools()

	return s, nil
}

func languageProperty() map[string]any {
	langs := sandbox.Languages()
	enum := make([]string, len(langs))
	for i, l := range langs {
		enum[i] = string(l)
	}
	return map[string]any{
		"type":        "string",
		"description": "Project language",
		"enum":        enum,
	}
}

func (s *MCPServer) registerTools() {
	s.mcpServer.AddTool(mcp.Tool{
		Name:        "run_build_command",
		Description: "Run a build or test command against the generated project. Results are cached by command and file contents.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"language": languageProperty(),
				"command": map[string]any{
					"type":        "string",
					"description": "Whitespace-separated command line, e.g. \"cargo test\". No shell interpretation.",
				},
				"prepare": map[string]any{
					"type":        "boolean",
					"description": "Pull the image and create and start the container first (optional)",
				},
			},
			Required: []string{"language", "command"},
		},
	}, s.handleRunBuildCommand)

	s.addLanguageTool("prepare_container", "Pull the language image, then create and start its container", s.handlePrepareContainer)
	s.addLanguageTool("stop_container", "Stop the language container if it is running", s.handleStopContainer)
	s.addLanguageTool("remove_container", "Force-remove the language container", s.handleRemoveContainer)
	s.addLanguageTool("container_status", "Report image presence and container state for a language", s.handleContainerStatus)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "write_project",
		Description: "Write the generated project files for a language into the sandbox directory, replacing its contents",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"language": languageProperty(),
				"manifest": map[string]any{"type": "string", "description": "Dependency manifest text"},
				"solution": map[string]any{"type": "string", "description": "Solution source text"},
				"test":     map[string]any{"type": "string", "description": "Test source text"},
				"extra_config": map[string]any{
					"type":        "string",
					"description": "Extra configuration text, e.g. tsconfig.json (optional)",
				},
			},
			Required: []string{"language", "manifest", "solution"},
		},
	}, s.handleWriteProject)
}

func (s *MCPServer) addLanguageTool(name, description string, handler server.ToolHandlerFunc) {
	s.mcpServer.AddTool(mcp.Tool{
		Name:        name,
		Description: description,
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{"language": languageProperty()},
			Required:   []string{"language"},
		},
	}, handler)
}

func requireLanguage(request mcp.CallToolRequest) (sandbox.Language, error) {
	tag, err := request.RequireString("language")
	if err != nil {
		return "", fmt.Errorf("language parameter is required: %w", err)
	}
	return sandbox.ParseLanguage(tag)
}

func (s *MCPServer) handleRunBuildCommand(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	lang, err := requireLanguage(request)
	if err != nil {
		return nil, err
	}
	command, err := request.RequireString("command")
	if err != nil {
		return nil, fmt.Errorf("command parameter is required: %w", err)
	}

	if request.GetBool("prepare", false) && sandbox.EnvironmentFromConfig(s.config) == sandbox.Container {
		if err := s.containers.EnsureReady(ctx, lang); err != nil {
			return errorResult("Container preparation failed: %v", err), nil
		}
	}

	result, err := s.builder.Run(ctx, lang, command)
	if err != nil {
		s.logger.Error("build orchestration failed",
			zap.Error(err),
			zap.String("language", string(lang)),
			zap.String("command", command))
		return errorResult("Build failed: %v", err), nil
	}

	return jsonResult(result)
}

func (s *MCPServer) handlePrepareContainer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	lang, err := requireLanguage(request)
	if err != nil {
		return nil, err
	}
	if err := s.containers.EnsureReady(ctx, lang); err != nil {
		return errorResult("Container preparation failed: %v", err), nil
	}
	return s.statusResult(ctx, lang)
}

func (s *MCPServer) handleStopContainer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	lang, err := requireLanguage(request)
	if err != nil {
		return nil, err
	}
	stopped, err := s.containers.Stop(ctx, lang)
	if err != nil {
		return errorResult("Stop failed: %v", err), nil
	}
	return jsonResult(map[string]bool{"stopped": stopped})
}

func (s *MCPServer) handleRemoveContainer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	lang, err := requireLanguage(request)
	if err != nil {
		return nil, err
	}
	if err := s.containers.Remove(ctx, lang); err != nil {
		return errorResult("Remove failed: %v", err), nil
	}
	return jsonResult(map[string]bool{"removed": true})
}

func (s *MCPServer) handleContainerStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	lang, err := requireLanguage(request)
	if err != nil {
		return nil, err
	}
	return s.statusResult(ctx, lang)
}

func (s *MCPServer) statusResult(ctx context.Context, lang sandbox.Language) (*mcp.CallToolResult, error) {
	status, err := s.containers.Status(ctx, lang)
	if err != nil {
		return errorResult("Status failed: %v", err), nil
	}
	return jsonResult(status)
}

func (s *MCPServer) handleWriteProject(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	lang, err := requireLanguage(request)
	if err != nil {
		return nil, err
	}
	desc, err := s.catalog.Lookup(lang)
	if err != nil {
		return nil, err
	}

	project := sandbox.Project{
		Manifest: request.GetString("manifest", ""),
		Solution: request.GetString("solution", ""),
		Test:     request.GetString("test", ""),
	}
	if extra := request.GetString("extra_config", ""); extra != "" {
		project.Extra = []string{extra}
	}

	if err := sandbox.WriteProject(s.fs, s.sandboxDir, desc, project); err != nil {
		return errorResult("Write failed: %v", err), nil
	}

	s.logger.Info("project written", zap.String("language", string(lang)), zap.String("dir", s.sandboxDir))
	return jsonResult(map[string]any{"files": desc.FilePaths()})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: string(data)},
		},
	}, nil
}

func errorResult(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: fmt.Sprintf(format, args...)},
		},
		IsError: true,
	}
}

// ServeStdio starts the server on stdio
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server on stdio")
	return server.ServeStdio(s.mcpServer)
}

// ServeHTTP starts the server on HTTP
func (s *MCPServer) ServeHTTP() error {
	port := s.config.Server.HTTPPort
	s.logger.Info("starting MCP server on HTTP", zap.Int("port", port))

	httpServer := server.NewStreamableHTTPServer(s.mcpServer)
	return httpServer.Start(fmt.Sprintf(":%d", port))
}

// GetMCPServer returns the underlying MCP server for fx
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}
