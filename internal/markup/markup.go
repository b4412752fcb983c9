// Package markup restricts server-supplied rich text to an allowlisted
// subset of HTML before it reaches the conversation log.
package markup

import (
	"github.com/microcosm-cc/bluemonday"
)

// HTML is assistant content that has passed through Sanitize.
type HTML string

var policy = newPolicy()

func newPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("p", "br", "b", "strong", "i", "em", "u", "ul", "ol", "li",
		"h1", "h2", "h3", "h4", "blockquote", "code", "pre", "span", "div", "table",
		"thead", "tbody", "tr", "th", "td", "hr")
	p.AllowStandardURLs()
	p.AllowAttrs("href").OnElements("a")
	p.RequireNoFollowOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return p
}

// Sanitize strips every tag and attribute outside the allowlist. Scripts,
// event handlers and inline styles never survive.
func Sanitize(raw string) HTML {
	return HTML(policy.Sanitize(raw))
}

// String returns the sanitized markup.
func (h HTML) String() string { return string(h) }
