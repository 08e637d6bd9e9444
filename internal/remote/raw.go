package remote

import (
	"os"

	"golang.org/x/term"
)

// TTY switches the local controlling terminal into unbuffered, unechoed
// character input and back. Tests substitute a fake.
type TTY interface {
	// MakeRaw switches the terminal to raw mode and returns the function
	// restoring the previous attributes. The restore function must be safe to
	// call exactly once on every exit path.
	MakeRaw() (restore func() error, err error)
}

// StdinTTY controls the process's real stdin via golang.org/x/term.
type StdinTTY struct{}

// MakeRaw switches stdin to raw mode.
func (StdinTTY) MakeRaw() (func() error, error) {
	fd := int(os.Stdin.Fd())
	old, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}
	return func() error { return term.Restore(fd, old) }, nil
}
