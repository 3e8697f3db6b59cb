// response/parse.go
// Classifies transfer outcomes for batch results. A request succeeds when the transfer
// completed without a transport error and the status code is below 400. For failures,
// ErrorSummary mines the response body for a human-readable message by content type.
package response

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/antchfx/xmlquery"
	"golang.org/x/net/html"
)

// maxSummaryLength caps extracted error summaries so a multi-megabyte error page does
// not balloon the batch result.
const maxSummaryLength = 512

// IsSuccess reports whether a completed transfer counts as successful.
func IsSuccess(statusCode int, transportErr error) bool {
	return transportErr == nil && statusCode < 400
}

// jsonError covers the common error envelope shapes returned by HTTP APIs.
type jsonError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Detail  string `json:"detail"`
}

// ErrorSummary derives a short error description for a failed request from its status
// code, content type, and body.
func ErrorSummary(statusCode int, contentType string, body []byte) string {
	prefix := fmt.Sprintf("HTTP %d %s", statusCode, http.StatusText(statusCode))
	if len(body) == 0 {
		return prefix
	}

	mimeType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mimeType = contentType
	}

	var detail string
	switch mimeType {
	case "application/json":
		detail = summarizeJSON(body)
	case "application/xml", "text/xml":
		detail = summarizeXML(body)
	case "text/html":
		detail = summarizeHTML(body)
	case "text/plain":
		detail = strings.TrimSpace(string(body))
	}

	if detail == "" {
		return prefix
	}
	return prefix + ": " + truncate(detail)
}

// summarizeJSON pulls the first populated message-like field from a JSON error body.
func summarizeJSON(body []byte) string {
	var envelope jsonError
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}

	for _, candidate := range []string{envelope.Message, envelope.Error, envelope.Detail} {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}

// summarizeXML accumulates the non-empty text nodes of an XML error body.
func summarizeXML(body []byte) string {
	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	var messages []string
	var traverse func(*xmlquery.Node)
	traverse = func(n *xmlquery.Node) {
		if n.Type == xmlquery.TextNode && strings.TrimSpace(n.Data) != "" {
			messages = append(messages, strings.TrimSpace(n.Data))
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(doc)

	return strings.Join(messages, "; ")
}

// summarizeHTML concatenates the text of <title> and <p> elements in an HTML error page.
func summarizeHTML(body []byte) string {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	var messages []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "title" || n.Data == "p") {
			if text := nodeText(n); text != "" {
				messages = append(messages, text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return strings.Join(messages, "; ")
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(strings.TrimSpace(c.Data) + " ")
		}
		for child := c.FirstChild; child != nil; child = child.NextSibling {
			collect(child)
		}
	}
	collect(n)
	return strings.TrimSpace(b.String())
}

func truncate(s string) string {
	if len(s) <= maxSummaryLength {
		return s
	}
	return s[:maxSummaryLength] + "..."
}
