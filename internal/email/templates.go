package email

import (
	"fmt"
	"html"
	"strings"

	"github.com/solsticehq/solstice/internal/model"
)

// CheckIn is the generated content of one check-in email.
type CheckIn struct {
	Insights       string
	Questions      []string
	Frequency      model.Frequency
	UnsubscribeURL string
}

func checkInSubject(in CheckIn) string {
	switch in.Frequency {
	case model.FrequencyQuarterly:
		return "Your quarterly reflection check-in"
	default:
		return "Your reflection check-in"
	}
}

func checkInHTML(in CheckIn) string {
	var b strings.Builder
	b.WriteString(`<div style="max-width:600px;margin:0 auto;font-family:Georgia,serif;color:#2d2a26;">`)
	b.WriteString(`<h2 style="font-weight:normal;">Time to check in with your year</h2>`)

	for _, para := range strings.Split(in.Insights, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		fmt.Fprintf(&b, `<p>%s</p>`, html.EscapeString(para))
	}

	if len(in.Questions) > 0 {
		b.WriteString(`<h3 style="font-weight:normal;">Worth sitting with</h3><ul>`)
		for _, q := range in.Questions {
			fmt.Fprintf(&b, `<li style="margin-bottom:8px;">%s</li>`, html.EscapeString(q))
		}
		b.WriteString(`</ul>`)
	}

	if in.UnsubscribeURL != "" {
		fmt.Fprintf(&b,
			`<p style="margin-top:32px;font-size:12px;color:#8a8680;">No longer want these check-ins? <a href="%s">Unsubscribe</a>.</p>`,
			in.UnsubscribeURL,
		)
	}
	b.WriteString(`</div>`)
	return b.String()
}

func checkInText(in CheckIn) string {
	var b strings.Builder
	b.WriteString("Time to check in with your year\n\n")
	b.WriteString(strings.TrimSpace(in.Insights))
	b.WriteString("\n")

	if len(in.Questions) > 0 {
		b.WriteString("\nWorth sitting with:\n")
		for _, q := range in.Questions {
			fmt.Fprintf(&b, "  - %s\n", q)
		}
	}

	if in.UnsubscribeURL != "" {
		fmt.Fprintf(&b, "\nNo longer want these check-ins? Unsubscribe: %s\n", in.UnsubscribeURL)
	}
	return b.String()
}
