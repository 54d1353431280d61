// ABOUTME: Read-only HTML transcript view of a session
// ABOUTME: Markdown message bodies rendered with goldmark

package gateway

import (
	"bytes"
	"fmt"
	"html"
	"net/http"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/Jegama/calvinist-parrot-sub000/internal/store"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
)

// speakerLabels maps message kinds to display names
var speakerLabels = map[string]string{
	store.KindUser:      "You",
	store.KindAssistant: "Parrot",
	store.KindReviewer:  "Calvin",
	store.KindCitations: "Further reading",
}

// handleSessionView renders GET /api/sessions/view?sessionId=... as a
// minimal HTML transcript. Same authorization rules as the JSON endpoint.
func (g *Gateway) handleSessionView(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	session, messages, status := g.loadAuthorizedSession(r)
	if status != http.StatusOK {
		http.Error(w, http.StatusText(status), status)
		return
	}

	var page strings.Builder
	page.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\">")
	fmt.Fprintf(&page, "<title>%s</title>", html.EscapeString(session.Title))
	page.WriteString("</head><body>\n")
	fmt.Fprintf(&page, "<h1>%s</h1>\n", html.EscapeString(session.Title))

	for _, msg := range messages {
		label, ok := speakerLabels[msg.Kind]
		if !ok {
			continue
		}

		var rendered bytes.Buffer
		if err := markdown.Convert([]byte(msg.Body), &rendered); err != nil {
			g.logger.Warn("failed to render message body", "message_id", msg.ID, "error", err)
			rendered.Reset()
			fmt.Fprintf(&rendered, "<p>%s</p>", html.EscapeString(msg.Body))
		}

		fmt.Fprintf(&page, "<section class=%q>\n<h2>%s</h2>\n%s</section>\n",
			msg.Kind, html.EscapeString(label), rendered.String())
	}

	page.WriteString("</body></html>\n")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, page.String())
}
