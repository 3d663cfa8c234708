// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes iris image-analysis tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/iris/internal/models"
	"github.com/starford/iris/internal/vision"
)

const guideURI = "iris://analysis-guide"

// Server wraps the MCP server with iris tools.
type Server struct {
	mcp *server.MCPServer
	svc *vision.Service
}

// New creates a new MCP server with all iris tools registered.
func New(svc *vision.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Iris",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	noteArg := mcp.WithString("note", mcp.Required(), mcp.Description("Vault path of the note (e.g. travel/lisbon.md)"))
	imageArg := mcp.WithString("image", mcp.Required(), mcp.Description("Image reference as written in the note (e.g. tram.png)"))
	actionArg := mcp.WithString("action", mcp.Required(),
		mcp.Enum(actionNames()...),
		mcp.Description("Analysis to perform"))
	instructionArg := mcp.WithString("instruction", mcp.Description("Free-form instruction, required for the custom action"))
	noContextArg := mcp.WithBoolean("no_context", mcp.Description("Key the result on the image only, ignoring the surrounding note"))

	s.mcp.AddTool(mcp.NewTool("list_images",
		mcp.WithDescription("List the images embedded in a note, in document order."),
		noteArg,
	), s.listImages)

	s.mcp.AddTool(mcp.NewTool("build_context",
		mcp.WithDescription("Return the note context around an embedded image and the cache key of every action."),
		noteArg, imageArg,
	), s.buildContext)

	s.mcp.AddTool(mcp.NewTool("read_image",
		mcp.WithDescription("Return the bytes of a vault image embedded in a note."),
		noteArg, imageArg,
	), s.readImage)

	s.mcp.AddTool(mcp.NewTool("lookup_analysis",
		mcp.WithDescription("Return a cached analysis without calling the analyzer."),
		noteArg, imageArg, actionArg, instructionArg, noContextArg,
	), s.lookupAnalysis)

	s.mcp.AddTool(mcp.NewTool("analyze_image",
		mcp.WithDescription("Analyze an image, serving from the cache when possible. "+
			"Fails when no analyzer is configured and the result is not cached; "+
			"read the guide via get_analysis_guide for the manual workflow."),
		noteArg, imageArg, actionArg, instructionArg, noContextArg,
	), s.analyzeImage)

	s.mcp.AddTool(mcp.NewTool("store_analysis",
		mcp.WithDescription("Cache an analysis result under a key returned by build_context."),
		mcp.WithString("key", mcp.Required(), mcp.Description("Cache key")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Analysis text")),
		mcp.WithString("model", mcp.Description("Model that produced the content")),
	), s.storeAnalysis)

	s.mcp.AddTool(mcp.NewTool("image_usages",
		mcp.WithDescription("List the notes that embed or link to an image."),
		imageArg,
	), s.imageUsages)

	s.mcp.AddTool(mcp.NewTool("cache_stats",
		mcp.WithDescription("Report cache counters."),
	), s.cacheStats)

	s.mcp.AddTool(mcp.NewTool("invalidate_cache",
		mcp.WithDescription("Drop one cache entry."),
		mcp.WithString("key", mcp.Required(), mcp.Description("Cache key")),
	), s.invalidateCache)

	s.mcp.AddTool(mcp.NewTool("clear_cache",
		mcp.WithDescription("Drop every cache entry."),
	), s.clearCache)

	s.mcp.AddTool(mcp.NewTool("get_analysis_guide",
		mcp.WithDescription("Returns the iris analysis guide: actions, workflow and cache keys."),
	), s.getAnalysisGuide)

	s.mcp.AddResource(
		mcp.NewResource(guideURI, "Analysis Guide",
			mcp.WithResourceDescription("How to analyze vault images and reuse cached results."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readGuideResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func actionNames() []string {
	out := make([]string, len(models.Actions))
	for i, a := range models.Actions {
		out[i] = string(a)
	}
	return out
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func noteAndImage(req mcp.CallToolRequest) (string, string, error) {
	note, err := req.RequireString("note")
	if err != nil {
		return "", "", err
	}
	image, err := req.RequireString("image")
	if err != nil {
		return "", "", err
	}
	return note, image, nil
}

func analysisRequest(req mcp.CallToolRequest) (vision.Request, error) {
	note, image, err := noteAndImage(req)
	if err != nil {
		return vision.Request{}, err
	}
	action, err := req.RequireString("action")
	if err != nil {
		return vision.Request{}, err
	}
	return vision.Request{
		Note:        note,
		Image:       image,
		Action:      models.Action(strings.ToLower(action)),
		Instruction: req.GetString("instruction", ""),
		NoContext:   req.GetBool("no_context", false),
	}, nil
}

func (s *Server) listImages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	note, err := req.RequireString("note")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	images, err := s.svc.Images(ctx, note)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(images) == 0 {
		return mcp.NewToolResultText("no images found"), nil
	}
	return jsonResult(images)
}

func (s *Server) buildContext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	note, image, err := noteAndImage(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.BuildContext(ctx, note, image)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) readImage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	note, image, err := noteAndImage(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	img, data, err := s.svc.ImageData(ctx, note, image)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultImage(img.Path, base64.StdEncoding.EncodeToString(data), img.MimeType), nil
}

func (s *Server) lookupAnalysis(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := analysisRequest(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := s.svc.Lookup(ctx, r)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(out)
}

func (s *Server) analyzeImage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := analysisRequest(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := s.svc.Analyze(ctx, r)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(out)
}

func (s *Server) storeAnalysis(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := req.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result := models.AnalysisResult{Content: content, ModelUsed: req.GetString("model", "")}
	if err := s.svc.Store(ctx, key, result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("stored: %s", key)), nil
}

func (s *Server) imageUsages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	image, err := req.RequireString("image")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	notes, err := s.svc.Usages(ctx, image)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(notes) == 0 {
		return mcp.NewToolResultText("no usages found"), nil
	}
	return mcp.NewToolResultText(strings.Join(notes, "\n")), nil
}

func (s *Server) cacheStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.Stats(ctx))
}

func (s *Server) invalidateCache(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := req.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.svc.Invalidate(ctx, key)
	return mcp.NewToolResultText(fmt.Sprintf("invalidated: %s", key)), nil
}

func (s *Server) clearCache(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.svc.Clear(ctx)
	return mcp.NewToolResultText("cache cleared"), nil
}

func (s *Server) getAnalysisGuide(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(AnalysisGuide), nil
}

func (s *Server) readGuideResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      guideURI,
			MIMEType: "text/markdown",
			Text:     AnalysisGuide,
		},
	}, nil
}
