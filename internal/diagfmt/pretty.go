package diagfmt

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"anvil/internal/diag"
	"anvil/internal/source"
)

var (
	errorColor   = color.New(color.FgRed, color.Bold)
	dangerColor  = color.New(color.FgMagenta, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	noteColor    = color.New(color.FgCyan)
	caretColor   = color.New(color.FgGreen, color.Bold)
	shapeColor   = color.New(color.Faint)
)

// Pretty renders diagnostics in a human-readable form. It walks bag.Items()
// (call bag.Sort() first for stable output) and prints, per diagnostic:
//
//	<path>:<line>:<col>: <SEV> <CODE>: <message>  (<shape>)
//
// followed by the offending source line with a caret underline when
// opts.Context is set, and the notes when opts.ShowNotes is set.
func Pretty(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts PrettyOpts) {
	items := bag.Items()
	shown := len(items)
	if opts.Max > 0 && shown > opts.Max {
		shown = opts.Max
	}
	for _, d := range items[:shown] {
		printOne(w, d, fs, opts)
	}
	if shown < len(items) {
		fmt.Fprintf(w, "... and %d more diagnostic(s)\n", len(items)-shown)
	}
}

func printOne(w io.Writer, d diag.Diagnostic, fs *source.FileSet, opts PrettyOpts) {
	sev := d.Severity.String()
	if opts.Color {
		sev = severityColor(d.Severity).Sprint(sev)
	}
	fmt.Fprintf(w, "%s: %s %s: %s", position(fs, d.Primary, opts.PathMode), sev, d.Code, d.Message)
	if d.Shape != "" {
		tag := "(" + d.Shape + ")"
		if opts.Color {
			tag = shapeColor.Sprint(tag)
		}
		fmt.Fprintf(w, "  %s", tag)
	}
	fmt.Fprintln(w)

	if opts.Context {
		printContext(w, fs, d.Primary, opts)
	}
	if opts.ShowNotes {
		for _, n := range d.Notes {
			fmt.Fprintf(w, "  note: %s: %s\n", position(fs, n.Span, opts.PathMode), n.Msg)
			if opts.Context {
				printContext(w, fs, n.Span, opts)
			}
		}
	}
}

// printContext prints the first line the span covers with a ^~~~ underline.
func printContext(w io.Writer, fs *source.FileSet, span source.Span, opts PrettyOpts) {
	if span.Empty() && span.Start == 0 {
		return
	}
	f := fs.Get(span.File)
	start, _ := fs.Resolve(span)
	lineStart := int(span.Start) - int(start.Col-1)
	if lineStart < 0 || lineStart > len(f.Content) {
		return
	}
	lineEnd := lineStart + bytes.IndexByte(f.Content[lineStart:], '\n')
	if lineEnd < lineStart {
		lineEnd = len(f.Content)
	}
	line := strings.ReplaceAll(string(f.Content[lineStart:lineEnd]), "\t", " ")
	fmt.Fprintf(w, "    %s\n", line)

	width := int(span.End) - int(span.Start)
	if width < 1 {
		width = 1
	}
	if rest := lineEnd - int(span.Start); width > rest && rest > 0 {
		width = rest
	}
	underline := "^" + strings.Repeat("~", width-1)
	if opts.Color {
		underline = caretColor.Sprint(underline)
	}
	fmt.Fprintf(w, "    %s%s\n", strings.Repeat(" ", int(start.Col-1)), underline)
}

func position(fs *source.FileSet, span source.Span, mode PathMode) string {
	f := fs.Get(span.File)
	start, _ := fs.Resolve(span)
	return fmt.Sprintf("%s:%d:%d", formatPath(f, fs, mode), start.Line, start.Col)
}

func formatPath(f *source.File, fs *source.FileSet, mode PathMode) string {
	switch mode {
	case PathModeAbsolute:
		return f.FormatPath("absolute", "")
	case PathModeRelative:
		return f.FormatPath("relative", fs.BaseDir())
	case PathModeBasename:
		return f.FormatPath("basename", "")
	default:
		return f.FormatPath("auto", "")
	}
}

func severityColor(sev diag.Severity) *color.Color {
	switch sev {
	case diag.SevError:
		return errorColor
	case diag.SevDanger:
		return dangerColor
	case diag.SevWarning:
		return warningColor
	default:
		return noteColor
	}
}
