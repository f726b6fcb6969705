// Builtin tools: web_search (DuckDuckGo HTML scraping) and calculator
// (restricted arithmetic via pkg/mathexpr). Both fold every failure into a
// descriptive result string — the model reads tool errors as data.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/scandukuri/basic-tool-calling-agent-v1/internal/infra/llm"
	"github.com/scandukuri/basic-tool-calling-agent-v1/pkg/mathexpr"
)

const (
	// DefaultSearchBaseURL is the DuckDuckGo HTML (no-JS) endpoint root.
	DefaultSearchBaseURL = "https://html.duckduckgo.com"

	searchTimeout     = 30 * time.Second
	searchUserAgent   = "Mozilla/5.0"
	defaultNumResults = 5
)

// WebSearchSpec advertises the web_search tool to the model.
var WebSearchSpec = llm.ToolSpec{
	Type: llm.ToolCallTypeFunction,
	Function: llm.FunctionSpec{
		Name:        "web_search",
		Description: "Search the web for information using DuckDuckGo",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {"type": "string", "description": "Search query"},
				"num_results": {"type": "integer", "description": "Number of results (default 5)", "default": 5}
			},
			"required": ["query"]
		}`),
	},
}

// CalculatorSpec advertises the calculator tool to the model.
var CalculatorSpec = llm.ToolSpec{
	Type: llm.ToolCallTypeFunction,
	Function: llm.FunctionSpec{
		Name:        "calculator",
		Description: "Evaluate mathematical expressions safely",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"expression": {"type": "string", "description": "Math expression to evaluate"}
			},
			"required": ["expression"]
		}`),
	},
}

// RegisterBuiltIns registers the gateway's static tool set.
func RegisterBuiltIns(r *Registry) error {
	if err := r.Register(WebSearchSpec, NewWebSearchExecutor(DefaultSearchBaseURL)); err != nil {
		return err
	}
	return r.Register(CalculatorSpec, CalculatorExecutor{})
}

// ─── web_search ──────────────────────────────────────────────────────────────

// WebSearchExecutor issues a text search against the DuckDuckGo HTML
// endpoint and extracts result titles and snippets from the returned page.
type WebSearchExecutor struct {
	baseURL    string
	httpClient *http.Client
}

// NewWebSearchExecutor creates a WebSearchExecutor with a 30s timeout.
// baseURL is injectable for tests; production wiring passes
// DefaultSearchBaseURL.
func NewWebSearchExecutor(baseURL string) *WebSearchExecutor {
	return &WebSearchExecutor{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: searchTimeout,
		},
	}
}

type webSearchParams struct {
	Query      string `json:"query"`
	NumResults int    `json:"num_results"`
}

func (e *WebSearchExecutor) Execute(ctx context.Context, params json.RawMessage) (string, error) {
	var in webSearchParams
	if err := json.Unmarshal(params, &in); err != nil {
		return "Search error: invalid parameters", nil
	}
	if in.NumResults <= 0 {
		in.NumResults = defaultNumResults
	}

	searchURL := e.baseURL + "/html/?q=" + url.QueryEscape(in.Query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return fmt.Sprintf("Search error: %v", err), nil
	}
	req.Header.Set("User-Agent", searchUserAgent)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Sprintf("Search error: %v", err), nil
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return fmt.Sprintf("Search failed with status %d", resp.StatusCode), nil
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return fmt.Sprintf("Search error: %v", err), nil
	}

	results := extractResults(doc, in.NumResults)
	if len(results) == 0 {
		return "No results found", nil
	}
	return strings.Join(results, "\n\n"), nil
}

// extractResults walks the DOM collecting up to max "title: snippet" lines
// from DuckDuckGo result blocks (div.result > a.result__a / a.result__snippet).
func extractResults(doc *html.Node, max int) []string {
	var results []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if len(results) >= max {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Div && hasClass(n, "result") {
			title := anchorText(n, "result__a")
			if title != "" {
				snippet := anchorText(n, "result__snippet")
				results = append(results, title+": "+snippet)
			}
			return // result blocks do not nest
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return results
}

// anchorText finds the first <a> descendant carrying class and returns its
// trimmed text content, or "" if absent.
func anchorText(n *html.Node, class string) string {
	var found *html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.A && hasClass(n, class) {
			found = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	if found == nil {
		return ""
	}
	return strings.TrimSpace(textContent(found))
}

// textContent returns the concatenated text of all children.
func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textContent(c))
	}
	return b.String()
}

// hasClass reports whether the element's class attribute contains name as a
// whole word.
func hasClass(n *html.Node, name string) bool {
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(attr.Val) {
			if c == name {
				return true
			}
		}
	}
	return false
}

// ─── calculator ──────────────────────────────────────────────────────────────

// CalculatorExecutor evaluates restricted arithmetic expressions.
// Pure: no I/O, no shared state.
type CalculatorExecutor struct{}

type calculatorParams struct {
	Expression string `json:"expression"`
}

func (CalculatorExecutor) Execute(_ context.Context, params json.RawMessage) (string, error) {
	var in calculatorParams
	if err := json.Unmarshal(params, &in); err != nil {
		return "Calculation error: invalid parameters", nil
	}
	v, err := mathexpr.Evaluate(in.Expression)
	if err != nil {
		return fmt.Sprintf("Calculation error: %v", err), nil
	}
	return mathexpr.Format(v), nil
}
