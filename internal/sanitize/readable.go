package sanitize

import (
	"strings"

	"golang.org/x/net/html"
)

// Readable returns out with the renderer chrome that Transform adds removed:
// the quote disclosure header and blocked-image placeholders. Quoted text
// itself is kept. out is expected to be Transform output.
func Readable(out string) string {
	doc, err := html.Parse(strings.NewReader(out))
	if err != nil {
		return out
	}
	removeAll(collect(doc, isChrome))

	var b strings.Builder
	if err := html.Render(&b, doc); err != nil {
		return out
	}
	return b.String()
}

func isChrome(n *html.Node) bool {
	if isElement(n, "summary") {
		return isDisclosure(n.Parent)
	}
	return isElement(n, "span") && hasClass(n, blockedClass)
}
