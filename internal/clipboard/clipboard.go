// Package clipboard provides cross-platform clipboard support.
package clipboard

import (
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	atotto "github.com/atotto/clipboard"
)

// ErrUnavailable is returned when no clipboard mechanism exists.
var ErrUnavailable = errors.New("no clipboard available")

var (
	writeAll    = atotto.WriteAll
	unsupported = func() bool { return atotto.Unsupported }
	lookPath    = exec.LookPath
	runCommand  = func(name string, args []string, stdin string) error {
		cmd := exec.Command(name, args...)
		cmd.Stdin = strings.NewReader(stdin)
		return cmd.Run()
	}
)

// Write copies text to the system clipboard. It uses the native clipboard
// when possible and falls back to the platform copy commands.
func Write(text string) error {
	var nativeErr error
	if !unsupported() {
		if nativeErr = writeAll(text); nativeErr == nil {
			return nil
		}
	}

	name, args, ok := fallbackCommand()
	if !ok {
		if nativeErr != nil {
			return fmt.Errorf("writing clipboard: %w", nativeErr)
		}
		return ErrUnavailable
	}
	if err := runCommand(name, args, text); err != nil {
		return fmt.Errorf("running %s: %w", name, err)
	}
	return nil
}

// Available checks if clipboard functionality is available.
func Available() bool {
	if !unsupported() {
		return true
	}
	_, _, ok := fallbackCommand()
	return ok
}

func fallbackCommand() (string, []string, bool) {
	switch runtime.GOOS {
	case "darwin":
		if _, err := lookPath("pbcopy"); err == nil {
			return "pbcopy", nil, true
		}
	case "windows":
		return "cmd", []string{"/c", "clip"}, true
	default:
		// Try wl-copy first for Wayland, then xclip and xsel
		if _, err := lookPath("wl-copy"); err == nil {
			return "wl-copy", nil, true
		}
		if _, err := lookPath("xclip"); err == nil {
			return "xclip", []string{"-selection", "clipboard"}, true
		}
		if _, err := lookPath("xsel"); err == nil {
			return "xsel", []string{"--clipboard", "--input"}, true
		}
	}
	return "", nil, false
}
