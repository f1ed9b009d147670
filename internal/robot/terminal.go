package robot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// ErrNoTerminal is returned by Terminal when stdin is not a TTY.
var ErrNoTerminal = errors.New("confirmation needs an interactive terminal")

// Terminal asks on the controlling terminal. Anything but y/yes denies.
type Terminal struct {
	mu  sync.Mutex
	in  *os.File
	out io.Writer
}

// NewTerminal prompts on stdin/stdout.
func NewTerminal() *Terminal {
	return &Terminal{in: os.Stdin, out: os.Stdout}
}

func (t *Terminal) Confirm(ctx context.Context, req Request) (bool, error) {
	fd := int(t.in.Fd())
	if !term.IsTerminal(fd) {
		return false, ErrNoTerminal
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	state, err := term.MakeRaw(fd)
	if err != nil {
		return false, fmt.Errorf("raw mode: %w", err)
	}
	defer term.Restore(fd, state)

	tty := term.NewTerminal(struct {
		io.Reader
		io.Writer
	}{t.in, t.out}, "Allow? [y/N] ")
	fmt.Fprintf(tty, "\r\n%s\r\n%s\r\n\r\nReason: %s\r\n", req.Title, req.Message, req.Reason)

	type answer struct {
		line string
		err  error
	}
	done := make(chan answer, 1)
	go func() {
		line, err := tty.ReadLine()
		done <- answer{line, err}
	}()

	select {
	case a := <-done:
		if a.err != nil {
			return false, fmt.Errorf("read answer: %w", a.err)
		}
		switch strings.ToLower(strings.TrimSpace(a.line)) {
		case "y", "yes":
			return true, nil
		}
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
