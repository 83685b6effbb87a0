// Package prompts provides Jinja-style prompt templates for assistants.
package prompts

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/nikolalohinski/gonja"
	"github.com/nikolalohinski/gonja/exec"
)

// FormatPrompter formats a system prompt from input values.
type FormatPrompter interface {
	// FormatPrompt renders the prompt with the given values.
	FormatPrompt(values map[string]any) (string, error)
	// GetInputVariables returns the declared input variables of the prompt.
	GetInputVariables() []string
}

// Template is a prompt template using the Jinja syntax, e.g.
// `Answer in the language of {{ user_input }}`.
type Template struct {
	text           string
	inputVariables []string
	tpl            *exec.Template
}

var _ FormatPrompter = (*Template)(nil)

// NewTemplate parses the template text. The input variables are declarative:
// missing values render as empty strings, matching the optional `{var?}`
// interpolation of the original prompt format.
func NewTemplate(text string, inputVariables ...string) (*Template, error) {
	if err := checkDelimiters(text); err != nil {
		return nil, err
	}
	tpl, err := gonja.FromString(text)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to parse prompt template")
	}
	return &Template{
		text:           text,
		inputVariables: inputVariables,
		tpl:            tpl,
	}, nil
}

// templateDelimiters are the Jinja open/close delimiter pairs.
var templateDelimiters = [][2]string{
	{"{%", "%}"},
	{"{{", "}}"},
	{"{#", "#}"},
}

// checkDelimiters rejects template text with an unterminated tag. The gonja
// tokenizer blocks on such input instead of returning an error, so the check
// runs before parsing.
func checkDelimiters(text string) error {
	for _, d := range templateDelimiters {
		open, term := d[0], d[1]
		rest := text
		for {
			i := strings.Index(rest, open)
			if i < 0 {
				break
			}
			rest = rest[i+len(open):]
			j := strings.Index(rest, term)
			if j < 0 {
				return errors.Newf("unterminated %q tag in prompt template", open)
			}
			rest = rest[j+len(term):]
		}
	}
	return nil
}

// MustNewTemplate is like NewTemplate and panics on error.
// Use for static templates only.
func MustNewTemplate(text string, inputVariables ...string) *Template {
	t, err := NewTemplate(text, inputVariables...)
	if err != nil {
		panic(err)
	}
	return t
}

// String returns the raw template text.
func (t *Template) String() string {
	return t.text
}

// GetInputVariables implements the FormatPrompter interface.
func (t *Template) GetInputVariables() []string {
	return t.inputVariables
}

// FormatPrompt implements the FormatPrompter interface.
func (t *Template) FormatPrompt(values map[string]any) (string, error) {
	ctx := gonja.Context{}
	for _, name := range t.inputVariables {
		// default for declared variables not provided by the caller
		ctx[name] = ""
	}
	for k, v := range values {
		ctx[k] = v
	}
	out, err := t.tpl.Execute(ctx)
	if err != nil {
		return "", errors.WithMessage(err, "failed to render prompt template")
	}
	return out, nil
}
