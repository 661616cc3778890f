package testutils

import (
	"fmt"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/mcuadros/go-defaults"
)

// TestingT is the subset of testing.T the asserter needs.
type TestingT interface {
	Errorf(format string, args ...interface{})
}

// TextAssertOptions controls how rendered output is normalized before
// comparison. Defaults come from the struct tags.
type TextAssertOptions struct {
	IgnoreLeadingWhitespace  bool `default:"false"`
	IgnoreTrailingWhitespace bool `default:"false"`
	IgnoreEmptyLines         bool `default:"false"`
	TrimSpace                bool `default:"false"`
	EnableColors             bool `default:"false"`
}

// TextOption is a functional option for configuring a TextAsserter.
type TextOption func(*TextAssertOptions)

// WithIgnoreLeadingWhitespace ignores leading whitespace on each line.
func WithIgnoreLeadingWhitespace(ignore bool) TextOption {
	return func(opts *TextAssertOptions) { opts.IgnoreLeadingWhitespace = ignore }
}

// WithIgnoreTrailingWhitespace ignores trailing whitespace on each line.
func WithIgnoreTrailingWhitespace(ignore bool) TextOption {
	return func(opts *TextAssertOptions) { opts.IgnoreTrailingWhitespace = ignore }
}

// WithIgnoreEmptyLines skips blank lines entirely.
func WithIgnoreEmptyLines(ignore bool) TextOption {
	return func(opts *TextAssertOptions) { opts.IgnoreEmptyLines = ignore }
}

// WithTrimSpace trims the whole text before line comparison.
func WithTrimSpace(trim bool) TextOption {
	return func(opts *TextAssertOptions) { opts.TrimSpace = trim }
}

// WithColors enables colorized unified diffs.
func WithColors(enable bool) TextOption {
	return func(opts *TextAssertOptions) { opts.EnableColors = enable }
}

// TextAsserter compares multi-line command output against expectations and
// reports mismatches as unified diffs.
type TextAsserter struct {
	t       TestingT
	options TextAssertOptions
}

// NewTextAsserter creates a TextAsserter with default options.
func NewTextAsserter(t *testing.T) *TextAsserter {
	return NewTextAsserterWithInterface(t)
}

// NewTextAsserterWithInterface is NewTextAsserter for callers that only have
// the TestingT interface.
func NewTextAsserterWithInterface(t TestingT) *TextAsserter {
	opts := TextAssertOptions{}
	defaults.SetDefaults(&opts)
	return &TextAsserter{t: t, options: opts}
}

// WithOptions applies functional options and returns the asserter for
// chaining.
func (ta *TextAsserter) WithOptions(opts ...TextOption) *TextAsserter {
	for _, opt := range opts {
		opt(&ta.options)
	}
	return ta
}

// GetOptions returns a copy of the current options.
func (ta *TextAsserter) GetOptions() TextAssertOptions {
	return ta.options
}

// Assert fails the test with a unified diff when actual differs from
// expected after normalization.
func (ta *TextAsserter) Assert(actual, expected string) {
	if diff := ta.diff(actual, expected); diff != "" {
		ta.t.Errorf("Text assertion failed:\n%s", diff)
	}
}

func (ta *TextAsserter) diff(actual, expected string) string {
	normalizedActual := ta.normalize(actual)
	normalizedExpected := ta.normalize(expected)

	if normalizedActual == normalizedExpected {
		return ""
	}

	edits := myers.ComputeEdits("", normalizedExpected, normalizedActual)
	unified := gotextdiff.ToUnified("expected", "actual", normalizedExpected, edits)

	return ta.colorizeUnifiedDiff(fmt.Sprint(unified))
}

func (ta *TextAsserter) normalize(text string) string {
	if ta.options.TrimSpace {
		text = strings.TrimSpace(text)
	}

	var result []string
	for _, line := range strings.Split(text, "\n") {
		if ta.options.IgnoreEmptyLines && strings.TrimSpace(line) == "" {
			continue
		}
		if ta.options.IgnoreLeadingWhitespace {
			line = strings.TrimLeft(line, " \t")
		}
		if ta.options.IgnoreTrailingWhitespace {
			line = strings.TrimRight(line, " \t")
		}
		result = append(result, line)
	}

	return strings.Join(result, "\n")
}

func (ta *TextAsserter) colorizeUnifiedDiff(diff string) string {
	if !ta.options.EnableColors {
		return diff
	}

	red := color.New(color.FgRed)
	red.EnableColor()
	green := color.New(color.FgGreen)
	green.EnableColor()
	cyan := color.New(color.FgCyan)
	cyan.EnableColor()
	yellow := color.New(color.FgYellow)
	yellow.EnableColor()

	var colorized []string
	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "---") || strings.HasPrefix(line, "+++"):
			colorized = append(colorized, yellow.Sprint(line))
		case strings.HasPrefix(line, "@@"):
			colorized = append(colorized, cyan.Sprint(line))
		case strings.HasPrefix(line, "-"):
			colorized = append(colorized, red.Sprint(highlightWhitespace(line)))
		case strings.HasPrefix(line, "+"):
			colorized = append(colorized, green.Sprint(highlightWhitespace(line)))
		default:
			colorized = append(colorized, line)
		}
	}

	return strings.Join(colorized, "\n")
}

// highlightWhitespace replaces spaces and tabs with visible characters so
// whitespace-only differences show up in colorized diffs.
func highlightWhitespace(line string) string {
	result := strings.ReplaceAll(line, " ", "·")
	return strings.ReplaceAll(result, "\t", "→")
}
