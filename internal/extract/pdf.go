package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ErrPDFToolNotFound is returned when pdftotext is not installed.
var ErrPDFToolNotFound = errors.New("pdftotext not found in PATH (install poppler-utils)")

// CommandRunner executes an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}

// PDF extracts text with poppler's pdftotext.
type PDF struct {
	runner   CommandRunner
	lookPath func(string) (string, error)
}

// NewPDF uses the real pdftotext binary.
func NewPDF() *PDF {
	return &PDF{runner: execRunner{}, lookPath: exec.LookPath}
}

// NewPDFWithRunner injects a runner. The binary lookup is skipped.
func NewPDFWithRunner(runner CommandRunner) *PDF {
	return &PDF{runner: runner}
}

// ContentTypes implements Extractor.
func (p *PDF) ContentTypes() []string {
	return []string{"application/pdf"}
}

// Extract implements Extractor. Pages are counted by the form feeds pdftotext emits after each page.
func (p *PDF) Extract(ctx context.Context, data []byte) (Result, error) {
	if len(data) == 0 {
		return Result{}, errors.New("empty PDF")
	}
	if p.lookPath != nil {
		if _, err := p.lookPath("pdftotext"); err != nil {
			return Result{}, ErrPDFToolNotFound
		}
	}

	f, err := os.CreateTemp("", "docrag-*.pdf")
	if err != nil {
		return Result{}, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(data); err != nil {
		f.Close()
		return Result{}, fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return Result{}, fmt.Errorf("close temp file: %w", err)
	}

	out, err := p.runner.Run(ctx, "pdftotext", "-enc", "UTF-8", "-layout", f.Name(), "-")
	if err != nil {
		return Result{}, fmt.Errorf("pdftotext failed: %w", err)
	}

	text := string(out)
	pages := strings.Count(text, "\f")
	if pages == 0 && strings.TrimSpace(text) != "" {
		pages = 1
	}
	return Result{Text: strings.ReplaceAll(text, "\f", "\n"), Pages: pages}, nil
}
