package notifiers

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/Adda-Baaj/notice-watch/internal/domain"
)

// DefaultRenderLimit is how many entries a human-facing message lists.
const DefaultRenderLimit = 5

const testSubjectPrefix = "[TEST] "

var htmlTemplate = template.Must(template.New("notification").Parse(`<html><body>
<h3>📢 New Notices{{if .SourceName}} from {{.SourceName}}{{end}} ({{.Count}}):</h3>
<table border="1" cellspacing="0" cellpadding="5">
<tr><th>#</th><th>Date</th><th>Title</th><th>Link</th></tr>
{{- range .Rows}}
<tr><td>{{.Index}}</td><td>{{.Date}}</td><td>{{.Title}}</td><td>{{if .HasLink}}<a href="{{.Link}}" target="_blank" style="text-decoration:none;"><button style="padding:5px 10px;background-color:#007BFF;color:white;border:none;border-radius:5px;">View</button></a>{{else}}No link{{end}}</td></tr>
{{- end}}
</table>
{{- if .More}}
<p>+{{.More}} more</p>
{{- end}}
{{- if .Removed}}
<h4>Removed from the listing:</h4>
<ul>
{{- range .Removed}}
<li>{{.}}</li>
{{- end}}
</ul>
{{- end}}
{{- if .SourceURL}}
<p><a href="{{.SourceURL}}">{{.SourceURL}}</a></p>
{{- end}}
</body></html>`))

type renderRow struct {
	Index   int
	Date    string
	Title   string
	Link    string
	HasLink bool
}

type renderData struct {
	SourceName string
	SourceURL  string
	Count      int
	Rows       []renderRow
	More       int
	Removed    []string
}

func buildRenderData(n Notification, limit int) renderData {
	if limit <= 0 {
		limit = DefaultRenderLimit
	}
	shown := n.Entries
	if len(shown) > limit {
		shown = shown[:limit]
	}

	data := renderData{
		SourceName: n.SourceName,
		SourceURL:  n.SourceURL,
		Count:      n.Count,
		More:       len(n.Entries) - len(shown),
	}
	for i, e := range shown {
		data.Rows = append(data.Rows, renderRow{
			Index:   i + 1,
			Date:    e.Date,
			Title:   e.Title,
			Link:    e.Link,
			HasLink: e.HasLink(),
		})
	}
	for _, k := range n.Removed {
		data.Removed = append(data.Removed, domain.DisplayKey(k))
	}
	return data
}

// RenderSubject prefixes subject in testing mode.
func RenderSubject(subject string, testing bool) string {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = emailDefaultSubject
	}
	if testing {
		return testSubjectPrefix + subject
	}
	return subject
}

// RenderHTML renders the email body for n, listing at most limit entries.
func RenderHTML(n Notification, limit int) (string, error) {
	var b strings.Builder
	if err := htmlTemplate.Execute(&b, buildRenderData(n, limit)); err != nil {
		return "", fmt.Errorf("render html notification: %w", err)
	}
	return b.String(), nil
}

// RenderText renders the plain text body used by chat channels.
func RenderText(n Notification, limit int) string {
	data := buildRenderData(n, limit)

	var b strings.Builder
	if n.Testing {
		b.WriteString(testSubjectPrefix)
	}
	if data.SourceName != "" {
		fmt.Fprintf(&b, "📢 New Notices from %s (%d):\n\n", data.SourceName, data.Count)
	} else {
		fmt.Fprintf(&b, "📢 New Notices (%d):\n\n", data.Count)
	}
	for _, r := range data.Rows {
		fmt.Fprintf(&b, "%d. %s - %s\n", r.Index, r.Date, r.Title)
		if r.HasLink {
			fmt.Fprintf(&b, "   🔗 %s\n", r.Link)
		}
	}
	if data.More > 0 {
		fmt.Fprintf(&b, "+%d more\n", data.More)
	}
	if len(data.Removed) > 0 {
		b.WriteString("\nRemoved:\n")
		for _, k := range data.Removed {
			fmt.Fprintf(&b, "- %s\n", k)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// splitMessage cuts text into chunks of at most max runes, preferring line
// boundaries.
func splitMessage(text string, max int) []string {
	runes := []rune(text)
	if max <= 0 || len(runes) <= max {
		return []string{text}
	}

	var parts []string
	for len(runes) > max {
		cut := max
		for i := max; i > max/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		parts = append(parts, strings.TrimRight(string(runes[:cut]), "\n"))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}
