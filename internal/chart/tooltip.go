package chart

import (
	"fmt"
	"html"
	"strings"

	"embedview/internal/embeddings"
)

// TooltipSeparator joins rendered extras inside a tooltip.
const TooltipSeparator = "<br/>"

// RenderExtra renders one extra as an HTML fragment. Image paths are
// resolved against linkPrefix.
func RenderExtra(e embeddings.Extra, linkPrefix string) string {
	name := html.EscapeString(e.Name)
	if e.Type == embeddings.ExtraImage {
		src := html.EscapeString(linkPrefix + e.Value)
		return fmt.Sprintf(`<b> %s: </b> <img src="%s" alt="%s" width="80px"/>`, name, src, name)
	}
	return fmt.Sprintf("<b> %s: </b> %s", name, html.EscapeString(e.Value))
}

// Tooltip renders extras in order, joined by TooltipSeparator.
func Tooltip(extras []embeddings.Extra, linkPrefix string) string {
	parts := make([]string, len(extras))
	for i, e := range extras {
		parts[i] = RenderExtra(e, linkPrefix)
	}
	return strings.Join(parts, TooltipSeparator)
}
