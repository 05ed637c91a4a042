package pdf

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
)

// ValidReaders lists the supported PDF reader values.
var ValidReaders = []string{"system", "skim", "preview", "zathura", "evince", "okular"}

// Viewer shows PDF files in an external reader.
type Viewer struct {
	reader string
}

// NewViewer creates a viewer for the configured reader ("" means system).
func NewViewer(reader string) *Viewer {
	if reader == "" {
		reader = "system"
	}
	return &Viewer{reader: reader}
}

// Show starts the reader on path and returns a function that closes it.
// Readers started through a launcher (open, xdg-open) cannot be closed
// and the returned function is then a no-op.
func (v *Viewer) Show(path string) (func(), error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("PDF file does not exist: %s", path)
		}
		return nil, fmt.Errorf("checking PDF file: %w", err)
	}

	cmd, err := v.Command(runtime.GOOS, path)
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", cmd.Path, err)
	}

	return func() {
		if cmd.Process != nil {
			cmd.Process.Kill()
			cmd.Wait()
		}
	}, nil
}

// Command returns the command that opens path on the given platform.
func (v *Viewer) Command(goos, path string) (*exec.Cmd, error) {
	switch goos {
	case "darwin":
		return v.darwinCommand(path), nil
	case "linux":
		return v.linuxCommand(path), nil
	default:
		return nil, fmt.Errorf("unsupported platform: %s", goos)
	}
}

func (v *Viewer) darwinCommand(path string) *exec.Cmd {
	switch v.reader {
	case "skim":
		return exec.Command("open", "-a", "Skim", path)
	case "preview":
		return exec.Command("open", "-a", "Preview", path)
	default: // "system"
		return exec.Command("open", path)
	}
}

func (v *Viewer) linuxCommand(path string) *exec.Cmd {
	switch v.reader {
	case "zathura":
		return exec.Command("zathura", path)
	case "evince":
		return exec.Command("evince", path)
	case "okular":
		return exec.Command("okular", path)
	default: // "system"
		return exec.Command("xdg-open", path)
	}
}
