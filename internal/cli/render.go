package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"gopkg.in/yaml.v3"

	"github.com/testforge/cardforge/internal/domain"
	"github.com/testforge/cardforge/internal/services/suite"
)

var (
	green = color.New(color.FgGreen, color.Bold)
	red   = color.New(color.FgRed, color.Bold)
	dim   = color.New(color.Faint)
)

// printReport writes r as indented JSON, or as text with a colored status
func printReport(w io.Writer, r *suite.Report, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	text := r.String()
	head, rest, _ := strings.Cut(text, "\n")
	status := green
	if !r.Success {
		status = red
	}
	word, line, _ := strings.Cut(head, " ")
	status.Fprint(w, word)
	fmt.Fprintf(w, " %s\n", line)
	if rest != "" {
		fmt.Fprint(w, rest)
	}
	if !r.Success && r.Class != domain.ClassNone {
		dim.Fprintf(w, "class: %s\n", r.Class)
	}
	return nil
}

// attemptBar shows run-and-fix progress as a bar over the attempt budget
type attemptBar struct {
	w        io.Writer
	cardType string
	bar      *progressbar.ProgressBar
}

func newAttemptBar(w io.Writer, cardType string) *attemptBar {
	return &attemptBar{w: w, cardType: cardType}
}

// progress matches RunAndFixRequest.Progress
func (b *attemptBar) progress(attempt, max int) {
	if b.bar == nil {
		b.bar = progressbar.NewOptions(max,
			progressbar.OptionSetWriter(b.w),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(30),
			progressbar.OptionClearOnFinish(),
		)
	}
	_ = b.bar.Set(attempt - 1)
	b.bar.Describe(fmt.Sprintf("   Fixing %s (attempt %d/%d)", b.cardType, attempt, max))
}

func (b *attemptBar) done() {
	if b.bar != nil {
		_ = b.bar.Finish()
	}
}

// readConfig decodes a card configuration from a YAML or JSON file, or
// stdin when path is "-".
func readConfig(path string) (*domain.CardConfiguration, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading card configuration: %w", err)
	}
	var cfg domain.CardConfiguration
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, domain.ValidationError("config", fmt.Sprintf("cannot parse %s: %v", path, err))
	}
	return &cfg, nil
}
