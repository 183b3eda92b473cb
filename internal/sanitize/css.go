package sanitize

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
)

// parseStyle parses an inline style attribute. The parser drops the value of
// a final declaration that has no trailing semicolon, so one is appended; ok
// is false when any declaration still comes back without a value.
func parseStyle(style string) (decls []*css.Declaration, ok bool) {
	s := strings.TrimSpace(style)
	if s == "" {
		return nil, true
	}
	if !strings.HasSuffix(s, ";") {
		s += ";"
	}
	decls, err := parser.ParseDeclarations(s)
	if err != nil {
		return nil, false
	}
	for _, d := range decls {
		if strings.TrimSpace(d.Property) == "" || strings.TrimSpace(d.Value) == "" {
			return nil, false
		}
	}
	return decls, true
}

// isConcealed reports whether an inline style hides its element
func isConcealed(style string) bool {
	if strings.TrimSpace(style) == "" {
		return false
	}

	decls, ok := parseStyle(style)
	if !ok || len(decls) == 0 {
		return concealedCompact(style)
	}
	for _, d := range decls {
		if concealingDeclaration(d.Property, d.Value) {
			return true
		}
	}
	return false
}

func concealingDeclaration(property, value string) bool {
	property = strings.ToLower(strings.TrimSpace(property))
	value = strings.ToLower(strings.TrimSpace(value))
	value = strings.TrimSpace(strings.TrimSuffix(value, "!important"))

	switch property {
	case "display":
		return value == "none"
	case "visibility":
		return value == "hidden"
	case "font-size", "opacity":
		return isZeroLength(value)
	}
	return false
}

// concealedCompact is the fallback for styles the CSS parser rejects
func concealedCompact(style string) bool {
	compact := strings.ToLower(strings.Join(strings.Fields(style), ""))
	for _, decl := range strings.Split(compact, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if ok && concealingDeclaration(k, v) {
			return true
		}
	}
	return false
}

// isZeroLength matches 0, 0.0, 0px, 0em, 0% and the like
func isZeroLength(v string) bool {
	end := 0
	for end < len(v) && (v[end] == '.' || v[end] == '-' || v[end] == '+' || (v[end] >= '0' && v[end] <= '9')) {
		end++
	}
	if end == 0 {
		return false
	}
	f, err := strconv.ParseFloat(v[:end], 64)
	if err != nil {
		return false
	}
	unit := v[end:]
	switch unit {
	case "", "px", "pt", "em", "rem", "ex", "%", "pc", "mm", "cm", "in", "vw", "vh":
		return f == 0
	}
	return false
}

var urlFunc = regexp.MustCompile(`(?i)url\(\s*['"]?([^'")]*)['"]?\s*\)`)

// scrubStyle drops declarations that execute script or, unless allowRemote,
// load remote resources. blocked reports whether a remote or unsafe url() was
// removed. A style with nothing to drop is returned as it was.
func scrubStyle(style string, allowRemote bool) (clean string, blocked bool) {
	decls, ok := parseStyle(style)
	if !ok {
		lower := strings.ToLower(style)
		if strings.Contains(lower, "url(") || strings.Contains(lower, "expression(") ||
			strings.Contains(lower, "javascript:") || strings.Contains(lower, "vbscript:") {
			return "", strings.Contains(lower, "url(")
		}
		return style, false
	}

	dropped := false
	kept := make([]string, 0, len(decls))
	for _, d := range decls {
		prop := strings.ToLower(strings.TrimSpace(d.Property))
		value := strings.ToLower(d.Value)
		if prop == "behavior" || prop == "-moz-binding" ||
			strings.Contains(value, "expression(") || strings.Contains(value, "javascript:") || strings.Contains(value, "vbscript:") {
			blocked = blocked || strings.Contains(value, "url(")
			dropped = true
			continue
		}

		drop := false
		for _, m := range urlFunc.FindAllStringSubmatch(d.Value, -1) {
			switch classifyImageSource(m[1]) {
			case imageUnsafe:
				drop = true
			case imageRemote:
				drop = drop || !allowRemote
			}
		}
		if drop {
			blocked, dropped = true, true
			continue
		}

		decl := d.Property + ":" + d.Value
		if d.Important {
			decl += " !important"
		}
		kept = append(kept, decl)
	}
	if !dropped {
		return style, blocked
	}
	return strings.Join(kept, ";"), blocked
}
