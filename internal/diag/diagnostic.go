package diag

import (
	"anvil/internal/source"
)

type Note struct {
	Span source.Span
	Msg  string
}

// Diagnostic is one finding against a model. Shape holds the rendered shape
// ID the finding is about, empty for document-level findings.
type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Shape    string
	Primary  source.Span
	Notes    []Note
}

func New(sev Severity, code Code, primary source.Span, msg string) Diagnostic {
	return Diagnostic{
		Severity: sev,
		Code:     code,
		Primary:  primary,
		Message:  msg,
	}
}

func NewError(code Code, primary source.Span, msg string) Diagnostic {
	return New(SevError, code, primary, msg)
}

func (d Diagnostic) OnShape(id string) Diagnostic {
	d.Shape = id
	return d
}

func (d Diagnostic) WithNote(sp source.Span, msg string) Diagnostic {
	d.Notes = append(d.Notes, Note{Span: sp, Msg: msg})
	return d
}
