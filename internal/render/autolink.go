package render

import (
	"html"
	"html/template"
	"net/url"
	"regexp"
	"strings"
)

// entityPattern matches URLs, @mentions and #hashtags. Word-boundary checks
// that need look-behind are done in AutoLink.
var entityPattern = regexp.MustCompile(`(https?://[^\s<>"']+)|@(\w+)|#(\w*[\pL_]\w*)`)

const (
	trailingURLPunct = ".,!?;:)]}'\""
	// maxHandle is the longest screen name the service allows.
	maxHandle = 20
)

// AutoLink escapes text and turns URLs, mentions and hashtags into anchors.
func AutoLink(text string) template.HTML {
	var b strings.Builder
	last := 0

	for _, m := range entityPattern.FindAllStringSubmatchIndex(text, -1) {
		start, end := m[0], m[1]
		if start > 0 && !isBoundary(text[start-1]) && m[2] < 0 {
			// @ or # glued to a word, e.g. an email address or "C#".
			continue
		}
		if m[4] >= 0 && (m[5]-m[4] > maxHandle || (end < len(text) && text[end] == '@')) {
			// Too long to be a handle; linking a prefix would name someone else.
			continue
		}

		b.WriteString(html.EscapeString(text[last:start]))

		switch {
		case m[2] >= 0:
			raw := text[m[2]:m[3]]
			link := strings.TrimRight(raw, trailingURLPunct)
			end = m[2] + len(link)
			b.WriteString(linkURL(link))
		case m[4] >= 0:
			b.WriteString(linkMention(text[m[4]:m[5]]))
		case m[6] >= 0:
			b.WriteString(linkHashtag(text[m[6]:m[7]]))
		}
		last = end
	}

	b.WriteString(html.EscapeString(text[last:]))
	return template.HTML(b.String())
}

func isBoundary(c byte) bool {
	return !(c == '_' || c == '@' || c == '#' || c == '&' ||
		(c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'))
}

func linkURL(u string) string {
	esc := html.EscapeString(u)
	return `<a href="` + esc + `" rel="nofollow" target="_blank">` + esc + `</a>`
}

func linkMention(name string) string {
	esc := html.EscapeString(name)
	return `@<a class="tweet-url username" href="https://twitter.com/` + url.PathEscape(name) +
		`" data-screen-name="` + esc + `" rel="nofollow" target="_blank">` + esc + `</a>`
}

func linkHashtag(tag string) string {
	esc := html.EscapeString(tag)
	return `<a href="https://twitter.com/search?q=` + url.QueryEscape("#"+tag) +
		`" title="#` + esc + `" class="tweet-url hashtag" rel="nofollow" target="_blank">#` + esc + `</a>`
}
