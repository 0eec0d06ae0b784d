package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/xid"
	"github.com/rs/zerolog"

	"github.com/benoute/fetchmcp"
)

const (
	toolName          = "fetch"
	defaultMaxLength  = 5000
	defaultStartIndex = 0
	notAvailable      = "N/A"
)

// absoluteURLPattern requires a scheme followed by "://" and a host, which is
// what "absolute URI" means for something we can GET.
const absoluteURLPattern = `^[A-Za-z][A-Za-z0-9+.-]*://[^\s/?#]+[^\s]*$`

// fetchParams is the tool input. Optional fields are pointers so that an
// omitted value can be told apart from an explicit zero.
type fetchParams struct {
	URL        string `json:"url"`
	MaxLength  *int   `json:"max_length,omitempty"`
	StartIndex *int   `json:"start_index,omitempty"`
	Raw        *bool  `json:"raw,omitempty"`
}

// fetchRequest is fetchParams with defaults applied and ranges checked.
type fetchRequest struct {
	URL        string
	MaxLength  int
	StartIndex int
	Raw        bool
}

func (p fetchParams) resolve() (fetchRequest, error) {
	req := fetchRequest{
		URL:        p.URL,
		MaxLength:  defaultMaxLength,
		StartIndex: defaultStartIndex,
	}
	if p.MaxLength != nil {
		req.MaxLength = *p.MaxLength
	}
	if p.StartIndex != nil {
		req.StartIndex = *p.StartIndex
	}
	if p.Raw != nil {
		req.Raw = *p.Raw
	}

	if _, err := fetchmcp.ParseURL(req.URL); err != nil {
		return req, err
	}
	if req.MaxLength <= 0 {
		return req, fmt.Errorf("max_length must be a positive integer, got %d", req.MaxLength)
	}
	if req.StartIndex < 0 {
		return req, fmt.Errorf("start_index must be a non-negative integer, got %d", req.StartIndex)
	}
	return req, nil
}

func ptr[T any](v T) *T { return &v }

func fetchInputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:     "object",
		Required: []string{"url"},
		Properties: map[string]*jsonschema.Schema{
			"url": {
				Type:        "string",
				Format:      "uri",
				Pattern:     absoluteURLPattern,
				Description: "URL to fetch",
			},
			"max_length": {
				Type:        "integer",
				Minimum:     ptr(1.0),
				Default:     json.RawMessage(strconv.Itoa(defaultMaxLength)),
				Description: "Maximum number of characters to return",
			},
			"start_index": {
				Type:        "integer",
				Minimum:     ptr(0.0),
				Default:     json.RawMessage(strconv.Itoa(defaultStartIndex)),
				Description: "Start content from this character index",
			},
			"raw": {
				Type:        "boolean",
				Default:     json.RawMessage("false"),
				Description: "Get raw content without markdown conversion",
			},
		},
	}
}

func fetchOutputSchema() *jsonschema.Schema {
	success := &jsonschema.Schema{
		Type:     "object",
		Required: []string{"title", "url", "content"},
		Properties: map[string]*jsonschema.Schema{
			"title":   {Types: []string{"string", "null"}, Description: "Page title"},
			"url":     {Type: "string", Description: "Fetched URL"},
			"content": {Type: "string", Description: "Extracted content"},
		},
	}
	failure := &jsonschema.Schema{
		Type:     "object",
		Required: []string{"error", "url"},
		Properties: map[string]*jsonschema.Schema{
			"error": {Type: "string", Description: "Error message"},
			"url":   {Type: "string", Description: "URL that failed"},
		},
	}
	return &jsonschema.Schema{
		Type:  "object",
		OneOf: []*jsonschema.Schema{success, failure},
	}
}

// registerFetch adds the fetch tool to server.
func registerFetch(server *mcp.Server, h *fetchHandler) {
	mcp.AddTool(server, &mcp.Tool{
		Name:  toolName,
		Title: "Fetch URL",
		Description: "Fetches a URL from the internet and extracts its main content as clean, " +
			"readable Markdown. Navigation, sidebars, footers and ads are removed. Use " +
			"start_index and max_length to page through long documents, or raw to get " +
			"the response body unchanged.",
		InputSchema:  fetchInputSchema(),
		OutputSchema: fetchOutputSchema(),
		Annotations: &mcp.ToolAnnotations{
			Title:         "Fetch URL",
			ReadOnlyHint:  true,
			OpenWorldHint: ptr(true),
		},
	}, h.call)
}

// documentFetcher is the part of fetchmcp.Fetcher the handler needs.
type documentFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetchmcp.Document, error)
}

type fetchHandler struct {
	fetcher   documentFetcher
	extractor fetchmcp.Extractor
	// metadata appends a second text block describing the page.
	metadata bool
	log      zerolog.Logger
}

func (h *fetchHandler) call(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input fetchParams,
) (*mcp.CallToolResult, any, error) {
	return h.handle(ctx, input).toolResult(), nil, nil
}

// handle runs one fetch. Every failure, including a panic in a parser, ends up
// as a fetchFailure.
func (h *fetchHandler) handle(ctx context.Context, input fetchParams) (out outcome) {
	log := h.log.With().
		Str("invocation", xid.New().String()).
		Str("url", input.URL).
		Logger()
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			out = fetchFailure{Error: fmt.Sprintf("internal error: %v", rec), URL: input.URL}
		}
		switch o := out.(type) {
		case fetchFailure:
			log.Warn().Str("error", o.Error).Dur("duration", time.Since(start)).Msg("Fetch failed")
		case fetchSuccess:
			log.Info().Int("chars", fetchmcp.RuneLen(o.Content)).Dur("duration", time.Since(start)).Msg("Fetched")
		}
	}()

	req, err := input.resolve()
	if err != nil {
		return fetchFailure{Error: err.Error(), URL: input.URL}
	}
	log.Debug().
		Int("max_length", req.MaxLength).
		Int("start_index", req.StartIndex).
		Bool("raw", req.Raw).
		Msg("Fetching")

	doc, err := h.fetcher.Fetch(ctx, req.URL)
	if err != nil {
		return fetchFailure{Error: err.Error(), URL: req.URL}
	}

	if req.Raw {
		body, err := doc.Text()
		if err != nil {
			return fetchFailure{Error: err.Error(), URL: req.URL}
		}
		return fetchSuccess{
			URL:     req.URL,
			Content: fetchmcp.Window(body, req.StartIndex, req.MaxLength),
		}
	}

	ex, err := h.extractor.Extract(ctx, doc, fetchmcp.ExtractOptions{Debug: false, Markdown: true})
	if err != nil {
		return fetchFailure{Error: err.Error(), URL: req.URL}
	}

	res := fetchSuccess{
		URL:     req.URL,
		Content: fetchmcp.Window(ex.Content, req.StartIndex, req.MaxLength),
	}
	if ex.Title != "" {
		res.Title = ptr(ex.Title)
	}
	if h.metadata {
		res.extraction = ex
	}
	return res
}

// outcome is either a fetchSuccess or a fetchFailure.
type outcome interface {
	toolResult() *mcp.CallToolResult
}

type fetchSuccess struct {
	Title   *string `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`

	// extraction is set when the metadata block is requested.
	extraction *fetchmcp.Extraction
}

func (s fetchSuccess) toolResult() *mcp.CallToolResult {
	res := jsonResult(s)
	if s.extraction != nil {
		res.Content = append(res.Content, &mcp.TextContent{Text: metadataBlock(s.URL, s.extraction)})
	}
	return res
}

type fetchFailure struct {
	Error string `json:"error"`
	URL   string `json:"url"`
}

func (f fetchFailure) toolResult() *mcp.CallToolResult {
	res := jsonResult(f)
	res.IsError = true
	return res
}

// jsonResult returns v both as structured content and as its JSON text for
// clients that only read text blocks.
func jsonResult(v any) *mcp.CallToolResult {
	text, err := json.Marshal(v)
	if err != nil {
		text = []byte(fmt.Sprintf("%v", v))
	}
	return &mcp.CallToolResult{
		Content:           []mcp.Content{&mcp.TextContent{Text: string(text)}},
		StructuredContent: v,
	}
}

func metadataBlock(rawURL string, ex *fetchmcp.Extraction) string {
	published := ""
	if ex.Published != nil {
		published = ex.Published.Format(time.RFC3339)
	}
	wordCount := ""
	if ex.WordCount > 0 {
		wordCount = strconv.Itoa(ex.WordCount)
	}

	var sb strings.Builder
	sb.WriteString("\n\n---\n\n**Metadata:**\n")
	for _, field := range []struct{ label, value string }{
		{"URL", rawURL},
		{"Title", ex.Title},
		{"Author", ex.Author},
		{"Published", published},
		{"Word Count", wordCount},
		{"Domain", ex.Domain},
		{"Parse Time", fmt.Sprintf("%dms", ex.ParseTime.Milliseconds())},
		{"Description", ex.Description},
	} {
		value := strings.TrimSpace(field.value)
		if value == "" {
			value = notAvailable
		}
		fmt.Fprintf(&sb, "**%s:** %s\n", field.label, value)
	}
	return strings.TrimRight(sb.String(), "\n")
}
