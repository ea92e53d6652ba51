package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Printer writes human output, colored only when w is a terminal.
type Printer struct {
	w       io.Writer
	profile termenv.Profile
}

// NewPrinter returns a Printer for w.
func NewPrinter(w io.Writer) *Printer {
	p := &Printer{w: w, profile: termenv.Ascii}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.profile = termenv.ColorProfile()
	}
	return p
}

// Banner prints the stagehand banner.
func (p *Printer) Banner() {
	lines := []struct{ text, color string }{
		{"      _                   _                     _ ", "#818cf8"},
		{"  ___| |_ __ _  __ _  ___| |__   __ _ _ __   __| |", "#a78bfa"},
		{" / __| __/ _` |/ _` |/ _ \\ '_ \\ / _` | '_ \\ / _` |", "#c084fc"},
		{" \\__ \\ || (_| | (_| |  __/ | | | (_| | | | | (_| |", "#e879f9"},
		{" |___/\\__\\__,_|\\__, |\\___|_| |_|\\__,_|_| |_|\\__,_|", "#f472b6"},
		{"               |___/                              ", "#fb7185"},
	}
	fmt.Fprintln(p.w)
	for _, l := range lines {
		fmt.Fprintln(p.w, p.paint(l.text, l.color))
	}
	fmt.Fprintln(p.w)
}

// System prints a standardized system message.
func (p *Printer) System(format string, args ...any) {
	fmt.Fprintf(p.w, "%s %s\n", p.paint(">>>", "#a78bfa"), fmt.Sprintf(format, args...))
}

// OK prints a success line.
func (p *Printer) OK(format string, args ...any) {
	fmt.Fprintf(p.w, "%s %s\n", p.paint("✔", "#22c55e"), fmt.Sprintf(format, args...))
}

// Fail prints a failure line.
func (p *Printer) Fail(format string, args ...any) {
	fmt.Fprintf(p.w, "%s %s\n", p.paint("✘", "#ef4444"), fmt.Sprintf(format, args...))
}

// Row prints a name column followed by dimmed detail.
func (p *Printer) Row(name, detail string) {
	fmt.Fprintf(p.w, "  %-16s %s\n", p.bold(name), p.paint(detail, "#94a3b8"))
}

func (p *Printer) paint(s, hex string) string {
	return p.profile.String(s).Foreground(p.profile.Color(hex)).String()
}

func (p *Printer) bold(s string) string {
	return p.profile.String(s).Bold().String()
}
