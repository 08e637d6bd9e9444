package console

import (
	"io"
	"log/slog"

	"github.com/flotilla-io/flotilla/internal/cli"
	"github.com/flotilla-io/flotilla/internal/logging"
	"github.com/flotilla-io/flotilla/internal/remote"
	"github.com/flotilla-io/flotilla/internal/resolver"
	"github.com/flotilla-io/flotilla/pkg/ports"
)

// TemplateEditor is the optional write surface of a template store. Stores
// that persist templates (the file adapter) implement it; read-only stores
// leave the save and delete commands unavailable.
type TemplateEditor interface {
	Delete(name string) error
}

// Context carries every collaborator a command can touch. It is built once at
// startup and shared by all commands; there is no package-level state.
type Context struct {
	Logger    *slog.Logger
	Resolver  *resolver.Resolver
	Sessions  *remote.Manager
	Provider  ports.InventoryProvider
	Templates ports.TemplateStore
	Editor    TemplateEditor
	Out       *cli.Console

	// In is the confirmation input stream, normally os.Stdin. The prompt
	// loop shares it.
	In io.Reader

	// readLine is installed by the prompt loop so confirmation prompts read
	// from the same buffered reader as the loop itself.
	readLine func() (string, error)
}

func (c *Context) logger() *slog.Logger {
	if c.Logger == nil {
		return logging.NewNop()
	}
	return c.Logger
}
