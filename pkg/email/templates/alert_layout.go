package templates

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// AlertEmail is the data rendered into the alert email layout.
type AlertEmail struct {
	Subject  string
	Body     string
	Priority string
	Footer   string
}

var priorityColors = map[string]string{
	"critical": "#b91c1c",
	"high":     "#c2410c",
	"normal":   "#1d4ed8",
	"low":      "#4b5563",
}

// AlertLayout renders an alert as a minimal inline-styled HTML document.
// Paragraphs are separated by blank lines in Body; single newlines become <br>.
func AlertLayout(data AlertEmail) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		color, ok := priorityColors[data.Priority]
		if !ok {
			color = priorityColors["normal"]
		}

		var b strings.Builder
		b.WriteString(`<!DOCTYPE html><html><head><meta charset="utf-8"><title>`)
		b.WriteString(templ.EscapeString(data.Subject))
		b.WriteString(`</title></head><body style="font-family:sans-serif;color:#111827">`)
		fmt.Fprintf(&b, `<div style="border-left:4px solid %s;padding:12px 16px">`, color)
		b.WriteString(`<h1 style="font-size:18px;margin:0 0 12px">`)
		b.WriteString(templ.EscapeString(data.Subject))
		b.WriteString(`</h1>`)
		for _, para := range paragraphs(data.Body) {
			b.WriteString(`<p style="margin:0 0 12px;line-height:1.5">`)
			lines := strings.Split(para, "\n")
			for i, line := range lines {
				if i > 0 {
					b.WriteString("<br>")
				}
				b.WriteString(templ.EscapeString(line))
			}
			b.WriteString(`</p>`)
		}
		b.WriteString(`</div>`)
		if data.Footer != "" {
			b.WriteString(`<p style="font-size:12px;color:#6b7280">`)
			b.WriteString(templ.EscapeString(data.Footer))
			b.WriteString(`</p>`)
		}
		b.WriteString(`</body></html>`)

		_, err := io.WriteString(w, b.String())
		return err
	})
}

func paragraphs(body string) []string {
	var out []string
	for _, p := range strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
