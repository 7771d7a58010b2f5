package tool_webfetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"chatgate/src/agent"
)

// Tool name constant
const Name = "web_fetch"

const webFetchPrompt = `Fetches content from a URL and returns it in the specified format.

WHEN TO USE THIS TOOL:
- Use when you need to download content from a URL
- Helpful for retrieving documentation, API responses, or web content

HOW TO USE:
- Provide the URL to fetch content from
- Specify the desired output format (text, markdown, or html)
- Optionally set a timeout for the request

FEATURES:
- Supports three output formats: text, markdown, and html
- Automatically handles HTTP redirects
- Sets reasonable timeouts to prevent hanging

LIMITATIONS:
- Maximum response size is 5MB
- Only supports HTTP and HTTPS protocols
- Cannot handle authentication or cookies`

// WebFetchInput represents the parameters for web_fetch
type WebFetchInput struct {
	URL     string `json:"url" required:"true" description:"The URL to fetch content from"`
	Format  string `json:"format" required:"true" description:"The format to return the content in (text, markdown, or html)"`
	Timeout int    `json:"timeout,omitempty" description:"Optional timeout in seconds (max 120, default 30)"`
}

// WebFetchOutput represents the response from web_fetch
type WebFetchOutput struct {
	Content     string `json:"content" description:"The fetched content in the requested format"`
	StatusCode  int    `json:"status_code" description:"HTTP status code of the response"`
	URL         string `json:"url" description:"The final URL after any redirects"`
	ContentType string `json:"content_type,omitempty" description:"Content-Type header from the response"`
}

// Tool returns the web_fetch tool definition.
func Tool() (agent.Tool, error) {
	return agent.NewGenericTool(Name, webFetchPrompt, webFetchHandler)
}

const maxResponseSize = 5 * 1024 * 1024

func webFetchHandler(ctx context.Context, input WebFetchInput) (WebFetchOutput, error) {
	format := strings.ToLower(input.Format)
	if format != "text" && format != "markdown" && format != "html" {
		return WebFetchOutput{}, fmt.Errorf("format must be one of: text, markdown, html")
	}
	if !strings.HasPrefix(input.URL, "http://") && !strings.HasPrefix(input.URL, "https://") {
		return WebFetchOutput{}, fmt.Errorf("URL must start with http:// or https://")
	}

	timeout := input.Timeout
	if timeout <= 0 {
		timeout = 30
	} else if timeout > 120 {
		timeout = 120
	}

	client := &http.Client{
		Timeout: time.Duration(timeout) * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, input.URL, nil)
	if err != nil {
		return WebFetchOutput{}, fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("User-Agent", "chatgate/1.0")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := client.Do(req)
	if err != nil {
		return WebFetchOutput{}, fmt.Errorf("failed to fetch URL: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return WebFetchOutput{}, fmt.Errorf("request failed with status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return WebFetchOutput{}, fmt.Errorf("failed to read response: %v", err)
	}

	content := string(body)
	contentType := resp.Header.Get("Content-Type")

	var processed string
	switch format {
	case "text":
		if strings.Contains(contentType, "text/html") {
			text, err := extractTextFromHTML(content)
			if err != nil {
				slog.Warn("failed to extract text from HTML, returning raw content", "error", err)
				processed = content
			} else {
				processed = text
			}
		} else {
			processed = content
		}

	case "markdown":
		if strings.Contains(contentType, "text/html") {
			markdown, err := convertHTMLToMarkdown(content)
			if err != nil {
				slog.Warn("failed to convert HTML to markdown, wrapping in code block", "error", err)
				processed = "```html\n" + content + "\n```"
			} else {
				processed = markdown
			}
		} else if strings.Contains(contentType, "application/json") {
			processed = "```json\n" + content + "\n```"
		} else {
			processed = "```\n" + content + "\n```"
		}

	default:
		processed = content
	}

	slog.Info("fetched web content",
		"url", input.URL,
		"status", resp.StatusCode,
		"size", len(body),
		"format", format,
	)

	return WebFetchOutput{
		Content:     processed,
		StatusCode:  resp.StatusCode,
		URL:         resp.Request.URL.String(),
		ContentType: contentType,
	}, nil
}

// extractTextFromHTML extracts plain text from HTML content.
func extractTextFromHTML(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("script, style").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	lines := strings.Split(doc.Text(), "\n")
	var cleaned []string
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return strings.Join(cleaned, "\n"), nil
}

// convertHTMLToMarkdown converts HTML content to Markdown.
func convertHTMLToMarkdown(html string) (string, error) {
	converter := md.NewConverter("", true, nil)
	markdown, err := converter.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("failed to convert HTML to markdown: %w", err)
	}
	markdown = strings.TrimSpace(markdown)
	return strings.ReplaceAll(markdown, "\n\n\n", "\n\n"), nil
}
