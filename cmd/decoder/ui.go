package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/danielpatrickdp/subcrack/internal/refine"
)

// #region styles

var (
	colorAccent  = lipgloss.Color("#20B9B4")
	colorSuccess = lipgloss.Color("#2CD7C7")
	colorWarning = lipgloss.Color("#F4D03F")
	colorError   = lipgloss.Color("#E74C3C")
	colorMuted   = lipgloss.Color("#6C7A80")
)

var styles = struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Text    lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(colorAccent),
	Label:   lipgloss.NewStyle().Foreground(colorMuted).Width(12),
	Muted:   lipgloss.NewStyle().Foreground(colorMuted),
	Success: lipgloss.NewStyle().Bold(true).Foreground(colorSuccess),
	Warning: lipgloss.NewStyle().Bold(true).Foreground(colorWarning),
	Error:   lipgloss.NewStyle().Bold(true).Foreground(colorError),
	Text: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorAccent).
		Padding(0, 1),
}

func field(w io.Writer, label string, value any) {
	fmt.Fprintln(w, styles.Label.Render(label)+fmt.Sprint(value))
}

// #endregion styles

// #region prompter

// formPrompter answers refiner prompts with huh fields. Ctrl-C ends the
// dialogue the same way EOF does.
type formPrompter struct{}

func (formPrompter) Ask(prompt string) (string, error) {
	title := strings.TrimSpace(prompt)
	if prompt == refine.PromptContinue {
		yes := true
		err := huh.NewConfirm().
			Title(title).
			Affirmative("Yes").
			Negative("No").
			Value(&yes).
			Run()
		if err != nil {
			return "", formErr(err)
		}
		if yes {
			return "Yes", nil
		}
		return "No", nil
	}

	var answer string
	err := huh.NewInput().
		Title(title).
		CharLimit(1).
		Validate(func(s string) error {
			if s == "_" {
				return nil
			}
			_, err := refine.ParseSymbol(s)
			return err
		}).
		Value(&answer).
		Run()
	if err != nil {
		return "", formErr(err)
	}
	if answer == "_" {
		answer = " "
	}
	return answer, nil
}

func formErr(err error) error {
	if errors.Is(err, huh.ErrUserAborted) {
		return io.EOF
	}
	return err
}

// #endregion prompter
