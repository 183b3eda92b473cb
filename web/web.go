// Package web embeds the HTML templates served by the preview handlers.
package web

import "embed"

//go:embed templates
var Assets embed.FS
