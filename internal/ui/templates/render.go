// Package templates holds the dashboard's HTML components. Fragments are
// patched into the page by the datastar SSE handlers, so every component
// renders a single root element carrying the id it replaces.
//
// Components live in .templ files; regenerate the _templ.go files with
// `templ generate` after editing them.
package templates

import (
	"context"
	"fmt"
	"strings"

	"github.com/a-h/templ"
)

// Render renders c to a string for use as an SSE element patch.
func Render(ctx context.Context, c templ.Component) (string, error) {
	var buf strings.Builder
	if err := c.Render(ctx, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}
