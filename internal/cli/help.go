package cli

import "github.com/charmbracelet/glamour"

// NewHelpRenderer returns a function rendering markdown command help for the
// terminal, detecting light/dark background automatically. Rendering errors
// fall back to the raw markdown.
func NewHelpRenderer() func(string) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
	)
	if err != nil {
		return func(markdown string) string { return markdown }
	}
	return func(markdown string) string {
		out, err := r.Render(markdown)
		if err != nil {
			return markdown
		}
		return out
	}
}
