package sanitize

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// state is the per-call scratch space shared by the passes of one Transform
type state struct {
	opts             Options
	hasBlockedImages bool
}

type pass struct {
	name string
	run  func(root *html.Node, st *state)
}

// passes run in order; later passes rely on the invariants of earlier ones.
// Entity decoding happens once in the tokenizer when the input is parsed.
var passes = []pass{
	{"structure", stripStructure},
	{"active-content", stripActiveContent},
	{"tracking-pixels", stripTrackingPixels},
	{"hidden-content", stripHiddenContent},
	{"preheaders", stripPreheaders},
	{"quotes", collapseQuotes},
	{"images", enforceImagePolicy},
	{"style-urls", scrubStyles},
	{"links", hardenLinks},
	{"whitespace", normalizeWhitespace},
}

func stripStructure(root *html.Node, _ *state) {
	removeAll(collect(root, func(n *html.Node) bool {
		switch n.Type {
		case html.CommentNode, html.DoctypeNode:
			return true
		}
		return isElement(n, "html", "head", "title", "meta", "link", "base")
	}))
}

func stripActiveContent(root *html.Node, _ *state) {
	removeAll(collect(root, func(n *html.Node) bool {
		return isElement(n, "script", "style", "noscript")
	}))
}

func stripTrackingPixels(root *html.Node, _ *state) {
	removeAll(collect(root, func(n *html.Node) bool {
		if !isElement(n, "img") {
			return false
		}
		w, okW := attr(n, "width")
		h, okH := attr(n, "height")
		if !okW || !okH {
			return false
		}
		w, h = strings.TrimSpace(w), strings.TrimSpace(h)
		return (w == "1" && h == "1") || (w == "0" && h == "0")
	}))
}

func stripHiddenContent(root *html.Node, _ *state) {
	removeAll(collect(root, func(n *html.Node) bool {
		if !isElement(n) {
			return false
		}
		style, ok := attr(n, "style")
		return ok && isConcealed(style)
	}))
}

func stripPreheaders(root *html.Node, _ *state) {
	removeAll(collect(root, func(n *html.Node) bool {
		if !isElement(n) {
			return false
		}
		class, ok := attr(n, "class")
		return ok && strings.Contains(strings.ToLower(class), "preheader")
	}))
}

const (
	quoteClass       = "mr-quote"
	quoteStyle       = "margin:0 0 0 0.8ex;border-left:2px solid #c0c4c9;padding-left:1ex"
	disclosureClass  = "mr-quote-toggle"
	quotedBodyClass  = "mr-quoted"
	disclosureHeader = "Show quoted text"
)

func isDisclosure(n *html.Node) bool {
	return isElement(n, "details") && hasClass(n, disclosureClass)
}

func collapseQuotes(root *html.Node, _ *state) {
	for _, n := range collect(root, func(n *html.Node) bool {
		if !isElement(n) {
			return false
		}
		class, ok := attr(n, "class")
		return ok && strings.TrimSpace(class) == "gmail_quote"
	}) {
		if hasAncestor(n, isDisclosure) {
			continue
		}
		body := newElement("div", html.Attribute{Key: "class", Val: quotedBodyClass})
		if isElement(n, "blockquote") {
			// the blockquote itself is the quote; keep it inside the disclosure
			setAttr(n, "class", quoteClass)
			replace(n, disclosure(body))
			body.AppendChild(n)
			continue
		}
		moveChildren(n, body)
		replace(n, disclosure(body))
	}

	for _, n := range collect(root, func(n *html.Node) bool { return isElement(n, "blockquote") }) {
		addClass(n, quoteClass)
		setAttr(n, "style", quoteStyle)
	}

	for _, n := range collect(root, func(n *html.Node) bool { return isElement(n, "blockquote") }) {
		if hasAncestor(n, isDisclosure) || hasAncestor(n, func(p *html.Node) bool { return isElement(p, "blockquote") }) {
			continue
		}
		body := newElement("div", html.Attribute{Key: "class", Val: quotedBodyClass})
		d := disclosure(body)
		replace(n, d)
		body.AppendChild(n)
	}
}

func disclosure(body *html.Node) *html.Node {
	d := newElement("details", html.Attribute{Key: "class", Val: disclosureClass})
	summary := newElement("summary")
	summary.AppendChild(newText(disclosureHeader))
	d.AppendChild(summary)
	d.AppendChild(body)
	return d
}

type imageVerdict int

const (
	imageAllow imageVerdict = iota
	imageUnsafe
	imageRemote
)

var unsafeImageSchemes = []string{"about:", "javascript:", "vbscript:", "data:application/"}

// classifyImageSource decides what to do with an <img src>
func classifyImageSource(src string) imageVerdict {
	s := strings.ToLower(strings.TrimSpace(src))
	for _, scheme := range unsafeImageSchemes {
		if strings.HasPrefix(s, scheme) {
			return imageUnsafe
		}
	}
	if strings.HasPrefix(s, "data:") || strings.HasPrefix(s, "cid:") {
		return imageAllow
	}
	return imageRemote
}

// imageHost returns the host of a remote source, or "" if it has none
func imageHost(src string) string {
	u, err := url.Parse(strings.TrimSpace(src))
	if err != nil {
		return ""
	}
	return u.Hostname()
}

const (
	blockedClass        = "mr-blocked-image"
	blockedPrivacyClass = "mr-blocked-privacy"
	blockedUnsafeClass  = "mr-blocked-unsafe"
)

func blockedPlaceholder(kind, text string) *html.Node {
	span := newElement("span", html.Attribute{Key: "class", Val: blockedClass + " " + kind})
	span.AppendChild(newText(text))
	return span
}

func enforceImagePolicy(root *html.Node, st *state) {
	for _, img := range collect(root, func(n *html.Node) bool { return isElement(n, "img") }) {
		src, ok := attr(img, "src")
		if !ok {
			if !st.opts.LoadExternalImages && removeAttr(img, "srcset") {
				st.hasBlockedImages = true
			}
			continue
		}

		switch classifyImageSource(src) {
		case imageUnsafe:
			replace(img, blockedPlaceholder(blockedUnsafeClass, "Image blocked for security: unsafe URL scheme"))
			st.hasBlockedImages = true
		case imageRemote:
			if st.opts.LoadExternalImages {
				continue
			}
			text := "Image blocked for privacy"
			if host := imageHost(src); host != "" {
				text += " (" + host + ")"
			}
			replace(img, blockedPlaceholder(blockedPrivacyClass, text))
			st.hasBlockedImages = true
		default:
			if !st.opts.LoadExternalImages && removeAttr(img, "srcset") {
				st.hasBlockedImages = true
			}
		}
	}
}

func scrubStyles(root *html.Node, st *state) {
	for _, n := range collect(root, func(n *html.Node) bool {
		_, ok := attr(n, "style")
		return isElement(n) && ok
	}) {
		style, _ := attr(n, "style")
		clean, blocked := scrubStyle(style, st.opts.LoadExternalImages)
		if blocked {
			st.hasBlockedImages = true
		}
		if strings.TrimSpace(clean) == "" {
			removeAttr(n, "style")
			continue
		}
		setAttr(n, "style", clean)
	}
}

func hardenLinks(root *html.Node, _ *state) {
	for _, a := range collect(root, func(n *html.Node) bool { return isElement(n, "a") }) {
		setAttr(a, "target", "_blank")

		rel, _ := attr(a, "rel")
		tokens := strings.Fields(strings.ToLower(rel))
		for _, want := range []string{"noopener", "noreferrer"} {
			found := false
			for _, t := range tokens {
				if t == want {
					found = true
					break
				}
			}
			if !found {
				tokens = append(tokens, want)
			}
		}
		setAttr(a, "rel", strings.Join(tokens, " "))
	}
}

// whitespaceRun and asciiSpace leave U+00A0 alone; &nbsp; runs are spacing
var whitespaceRun = regexp.MustCompile(`\s+`)

const asciiSpace = " \t\r\n\f"

// maxConsecutiveBreaks caps runs of <br>; longer runs are provider filler
const maxConsecutiveBreaks = 2

func normalizeWhitespace(root *html.Node, _ *state) {
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if isElement(n, "pre", "textarea", "listing", "plaintext") {
			return
		}

		breaks := 0
		for c := n.FirstChild; c != nil; {
			next := c.NextSibling
			switch {
			case c.Type == html.TextNode && strings.Trim(c.Data, asciiSpace) == "":
				prev := c.PrevSibling
				if prev == nil || next == nil || isBlock(prev) || isBlock(next) || isElement(prev, "br") {
					n.RemoveChild(c)
				} else {
					c.Data = " "
				}
			case c.Type == html.TextNode:
				c.Data = whitespaceRun.ReplaceAllString(c.Data, " ")
				breaks = 0
			case isElement(c, "br"):
				breaks++
				if breaks > maxConsecutiveBreaks {
					n.RemoveChild(c)
				}
			default:
				breaks = 0
				walk(c)
			}
			c = next
		}
	}
	walk(root)
}
