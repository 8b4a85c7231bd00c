package action

import (
	"strconv"
	"strings"

	"github.com/strandkit/strand/core/http"
)

// Error page template. $1 expands to the status code, $2 to the reason
// phrase, $3 to the detail line.
const defaultErrorTemplate = `<html>
<head><title>$1 $2</title></head>
<body>
<h1>$1 $2</h1>
<p>$3</p>
</body>
</html>
`

// ErrorPages renders error responses from per-status templates, falling
// back to the default template for unlisted codes.
type ErrorPages struct {
	Templates map[int]string
}

// NewErrorPages returns a renderer with no per-status overrides.
func NewErrorPages() *ErrorPages {
	return &ErrorPages{Templates: make(map[int]string)}
}

// Render composes a full error response: status, body, Finish. Safe to call
// on a response whose headers were already composed; in that case only the
// body is written.
func (e *ErrorPages) Render(w *http.Response, status int, detail string) {
	tmpl, ok := e.Templates[status]
	if !ok {
		tmpl = defaultErrorTemplate
	}
	if detail == "" {
		detail = http.StatusText(status)
	}

	w.SetStatus(status)
	body := strings.NewReplacer(
		"$1", strconv.Itoa(status),
		"$2", http.StatusText(status),
		"$3", detail,
	).Replace(tmpl)
	w.WriteString(body)
	w.Finish()
}
