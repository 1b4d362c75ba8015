package tui

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/atotto/clipboard"
)

var errNoClipboard = errors.New("no clipboard available (install wl-clipboard, xclip or xsel)")

// copyText puts text on the clipboard. A configured command receives the
// text on stdin; otherwise the platform clipboard is used.
func copyText(text, command string) error {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		if clipboard.Unsupported {
			return errNoClipboard
		}
		return clipboard.WriteAll(text)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := exec.CommandContext(ctx, parts[0], parts[1:]...)
	c.Stdin = strings.NewReader(text)
	return c.Run()
}
