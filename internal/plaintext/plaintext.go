// Package plaintext projects an HTML body onto a single line of readable
// text for previews, search snippets and notifications.
package plaintext

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	comment    = regexp.MustCompile(`(?s)<!--.*?-->`)
	rawContent = regexp.MustCompile(`(?is)<(script|style|head|title)\b[^>]*>.*?</(script|style|head|title)\s*>`)
	tag        = regexp.MustCompile(`</?([A-Za-z!][A-Za-z0-9]*)[^>]*>`)
	whitespace = regexp.MustCompile(`[\s\p{Zs}]+`)
)

// breaksText lists elements whose boundaries separate words
var breaksText = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "br": true,
	"dd": true, "details": true, "div": true, "dl": true, "dt": true, "figcaption": true,
	"footer": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"header": true, "hr": true, "img": true, "li": true, "ol": true, "p": true, "pre": true,
	"section": true, "summary": true, "table": true, "td": true, "th": true, "tr": true, "ul": true,
}

// FromHTML returns the visible text of s with tags removed, entities
// decoded and whitespace collapsed. A bare "<" that does not start a tag is
// kept. FromHTML(FromHTML(s)) == FromHTML(s).
func FromHTML(s string) string {
	// a pass never grows its input and only rewrites whitespace in place,
	// so the loop reaches a fixed point
	for {
		next := project(s)
		if next == s {
			return s
		}
		s = next
	}
}

func project(s string) string {
	s = comment.ReplaceAllString(s, " ")
	s = rawContent.ReplaceAllString(s, " ")
	s = tag.ReplaceAllStringFunc(s, func(t string) string {
		if breaksText[strings.ToLower(tag.FindStringSubmatch(t)[1])] {
			return " "
		}
		return ""
	})
	s = html.UnescapeString(s)
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Truncate shortens s to at most n runes, appending an ellipsis when text
// was cut
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	if n == 1 {
		return "…"
	}
	return strings.TrimRight(string(runes[:n-1]), " ") + "…"
}
