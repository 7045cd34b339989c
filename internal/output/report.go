package output

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/wesleyorama2/expcfg/internal/config"
)

// Reporter writes validation results for one or more config files.
type Reporter struct {
	w       io.Writer
	scheme  *ColorScheme
	noColor bool

	// Quiet suppresses the line printed for files that pass
	Quiet bool
}

// NewReporter creates a reporter writing to w.
func NewReporter(w io.Writer, noColor bool) *Reporter {
	scheme := DefaultColorScheme()
	if noColor {
		scheme = NoColorScheme()
	}
	return &Reporter{w: w, scheme: scheme, noColor: noColor}
}

// Success reports a file that loaded cleanly.
func (r *Reporter) Success(path string, cfg *config.ExperimentConfig) {
	if r.Quiet {
		return
	}

	fmt.Fprintf(r.w, "%s %s: %s mode, seed %d, models %v\n",
		SuccessIcon(r.noColor), r.scheme.Path.Sprint(path), r.scheme.Highlight.Sprint(cfg.Mode()), cfg.Seed(), cfg.Models())

	if cfg.FlagOverridden() {
		fmt.Fprintf(r.w, "  %s is_search_params is %t but the document carries %s settings\n",
			WarningIcon(r.noColor), cfg.IsSearchParams(), r.scheme.Highlight.Sprint(cfg.Mode()))
	}
}

// Failure reports a file that could not be loaded, listing every violation.
func (r *Reporter) Failure(path string, err error) {
	var verrs *config.ValidationErrors
	if !errors.As(err, &verrs) {
		label := "error:"
		if kind, ok := config.Kind(err); ok {
			label = fmt.Sprintf("%s error:", kind)
		}
		fmt.Fprintf(r.w, "%s %s: %s %s\n",
			ErrorIcon(r.noColor), r.scheme.Path.Sprint(path), r.scheme.Error.Sprint(label), err)
		return
	}

	fmt.Fprintf(r.w, "%s %s: %s\n",
		ErrorIcon(r.noColor), r.scheme.Path.Sprint(path), r.scheme.Error.Sprint(problemCount(len(verrs.Errors))))

	r.group("schema errors", r.scheme.Schema, verrs.ByKind(config.KindSchema))
	r.group("invariant errors", r.scheme.Invariant, verrs.ByKind(config.KindInvariant))
}

func (r *Reporter) group(title string, c *color.Color, errs []*config.ValidationError) {
	if len(errs) == 0 {
		return
	}

	fmt.Fprintf(r.w, "  %s\n", c.Sprint(title+":"))
	for _, e := range errs {
		field := e.Field
		if field == "" {
			field = "(document)"
		}
		if e.Invariant != "" {
			fmt.Fprintf(r.w, "    - %s %s: %s\n", r.scheme.Rule.Sprintf("[%s]", e.Invariant), r.scheme.Field.Sprint(field), e.Message)
		} else {
			fmt.Fprintf(r.w, "    - %s: %s\n", r.scheme.Field.Sprint(field), e.Message)
		}
	}
}

// Summary prints the pass/fail totals.
func (r *Reporter) Summary(passed, failed int) {
	total := passed + failed
	if failed == 0 {
		fmt.Fprintf(r.w, "%s\n", r.scheme.Success.Sprintf("%d of %d config files valid", passed, total))
		return
	}
	fmt.Fprintf(r.w, "%s\n", r.scheme.Error.Sprintf("%d of %d config files invalid", failed, total))
}

func problemCount(n int) string {
	if n == 1 {
		return "1 problem"
	}
	return fmt.Sprintf("%d problems", n)
}
