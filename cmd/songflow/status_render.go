package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const ansiReset = "\x1b[0m"

var statusStyles = map[statusKind]struct{ tag, color string }{
	statusInfo:  {"INFO", "\x1b[34m"},
	statusOK:    {"OK", "\x1b[32m"},
	statusWarn:  {"WARN", "\x1b[33m"},
	statusError: {"ERROR", "\x1b[31m"},
}

const (
	statusLabelWidth = 24
	statusIndent     = "  "
)

// statusPrinter writes the sectioned report printed by `songflow status`.
// Colour is used only when the writer is a terminal.
type statusPrinter struct {
	w        io.Writer
	colorize bool
	sections int
}

func newStatusPrinter(w io.Writer) *statusPrinter {
	return &statusPrinter{w: w, colorize: shouldColorize(w)}
}

func (p *statusPrinter) section(title string) {
	if p.sections > 0 {
		fmt.Fprintln(p.w)
	}
	p.sections++
	line := "== " + title + " =="
	if p.colorize {
		line = statusStyles[statusInfo].color + line + ansiReset
	}
	fmt.Fprintln(p.w, line)
}

func (p *statusPrinter) line(label string, kind statusKind, message string) {
	fmt.Fprintln(p.w, renderStatusLine(label, kind, message, p.colorize))
}

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	style := statusStyles[kind]
	text := fmt.Sprintf("%s%-*s [%s]", statusIndent, statusLabelWidth, label+":", style.tag)
	if message != "" {
		text += " " + message
	}
	if colorize {
		text = style.color + text + ansiReset
	}
	return text
}

func shouldColorize(w io.Writer) bool {
	if _, set := os.LookupEnv("NO_COLOR"); set {
		return false
	}
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}
