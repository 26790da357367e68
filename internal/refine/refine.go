// Package refine applies operator-chosen symbol swaps to a candidate
// decryption. It never rescores: the operator judges readability.
package refine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/danielpatrickdp/subcrack/internal/alphabet"
	"github.com/danielpatrickdp/subcrack/internal/cipher"
)

// Operator-facing protocol text.
const (
	PromptReplace  = "Please input the character you would like to be replaced: "
	PromptWith     = "Please input the character you would like to be replaced with: "
	PromptContinue = "Would you like to continue? Yes/No: "

	MsgInvalidInput  = "The input is not valid"
	MsgInvalidOption = "That is not a valid option"
)

// #region errors

// InvalidSwapInputError reports a token that is not exactly one alphabet
// symbol. The refiner recovers from it by re-prompting.
type InvalidSwapInputError struct {
	Input string
}

func (e *InvalidSwapInputError) Error() string {
	return fmt.Sprintf("invalid swap input %q: expected one symbol of %q", e.Input, alphabet.Symbols)
}

// ParseSymbol upper-cases token, strips a trailing newline and returns the
// single symbol it names.
func ParseSymbol(token string) (byte, error) {
	t := strings.ToUpper(strings.TrimRight(token, "\r\n"))
	if len(t) != 1 || !alphabet.Valid(t[0]) {
		return 0, &InvalidSwapInputError{Input: token}
	}
	return t[0], nil
}

// ParseAnswer maps a continue answer to true (yes) or false (no).
func ParseAnswer(answer string) (bool, bool) {
	switch strings.TrimRight(answer, "\r\n") {
	case "Y", "y", "Yes", "yes":
		return true, true
	case "N", "n", "No", "no":
		return false, true
	}
	return false, false
}

// #endregion errors

// #region types

// Swap is one applied correction: every From in the text became To and
// every To became From.
type Swap struct {
	Seq  int    `json:"seq"`
	From byte   `json:"from"`
	To   byte   `json:"to"`
	Text string `json:"text"` // candidate after the swap
}

func (s Swap) String() string { return fmt.Sprintf("%c=%c", s.From, s.To) }

// Result is the outcome of a refinement session.
type Result struct {
	Text    string
	Mapping cipher.Mapping
	Swaps   []Swap
}

// Recorder is called after every applied swap with the updated mapping.
type Recorder interface {
	RecordSwap(ctx context.Context, s Swap, m cipher.Mapping) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, s Swap, m cipher.Mapping) error

func (f RecorderFunc) RecordSwap(ctx context.Context, s Swap, m cipher.Mapping) error {
	return f(ctx, s, m)
}

// #endregion types

// #region refiner

// Refiner drives the prompt/validate/swap loop.
type Refiner struct {
	prompter Prompter
	out      io.Writer
	verbose  bool
	recorder Recorder
	logger   *slog.Logger
}

// Option configures a Refiner.
type Option func(*Refiner)

// WithVerbose writes the candidate after every swap.
func WithVerbose(v bool) Option { return func(r *Refiner) { r.verbose = v } }

// WithOutput sets where messages and verbose candidates are written.
func WithOutput(w io.Writer) Option { return func(r *Refiner) { r.out = w } }

// WithRecorder persists every swap.
func WithRecorder(rec Recorder) Option { return func(r *Refiner) { r.recorder = rec } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Refiner) {
		if l != nil {
			r.logger = l
		}
	}
}

// New returns a Refiner reading answers from p.
func New(p Prompter, opts ...Option) *Refiner {
	r := &Refiner{prompter: p, out: io.Discard, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run refines text, the decryption of some ciphertext under m, until the
// operator declines to continue. Invalid tokens are reported and
// re-prompted. A prompter that runs out of input (io.EOF) ends the session
// normally with the swaps applied so far.
func (r *Refiner) Run(ctx context.Context, text string, m cipher.Mapping) (Result, error) {
	if err := m.Validate(); err != nil {
		return Result{}, err
	}
	if err := alphabet.Validate(text); err != nil {
		return Result{}, err
	}
	res := Result{Text: text, Mapping: m}

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		from, to, err := r.askPair()
		if errors.Is(err, io.EOF) {
			return res, nil
		}
		if err != nil {
			return res, err
		}

		if err := r.apply(ctx, &res, from, to); err != nil {
			return res, err
		}

		more, err := r.askContinue()
		if errors.Is(err, io.EOF) {
			return res, nil
		}
		if err != nil {
			return res, err
		}
		if !more {
			return res, nil
		}
	}
}

// Apply performs swaps without prompting, validating each pair first.
func (r *Refiner) Apply(ctx context.Context, text string, m cipher.Mapping, pairs []Pair) (Result, error) {
	if err := m.Validate(); err != nil {
		return Result{}, err
	}
	if err := alphabet.Validate(text); err != nil {
		return Result{}, err
	}
	res := Result{Text: text, Mapping: m}
	for _, p := range pairs {
		from, err := ParseSymbol(string(p.From))
		if err != nil {
			return res, err
		}
		to, err := ParseSymbol(string(p.To))
		if err != nil {
			return res, err
		}
		if err := r.apply(ctx, &res, from, to); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (r *Refiner) apply(ctx context.Context, res *Result, from, to byte) error {
	fi, _ := alphabet.Index(from)
	ti, _ := alphabet.Index(to)

	res.Text = cipher.SwapText(res.Text, from, to)
	res.Mapping = res.Mapping.SwapImages(fi, ti)
	s := Swap{Seq: len(res.Swaps) + 1, From: from, To: to, Text: res.Text}
	res.Swaps = append(res.Swaps, s)

	r.logger.Debug("refine swap", "seq", s.Seq, "from", string(from), "to", string(to))
	if r.verbose {
		fmt.Fprintln(r.out, res.Text)
	}
	if r.recorder != nil {
		if err := r.recorder.RecordSwap(ctx, s, res.Mapping); err != nil {
			return fmt.Errorf("record swap %d: %w", s.Seq, err)
		}
	}
	return nil
}

func (r *Refiner) askPair() (byte, byte, error) {
	for {
		a, err := r.prompter.Ask(PromptReplace)
		if err != nil {
			return 0, 0, err
		}
		b, err := r.prompter.Ask(PromptWith)
		if err != nil {
			return 0, 0, err
		}
		from, errA := ParseSymbol(a)
		to, errB := ParseSymbol(b)
		if errA == nil && errB == nil {
			return from, to, nil
		}
		fmt.Fprintln(r.out, MsgInvalidInput)
	}
}

func (r *Refiner) askContinue() (bool, error) {
	for {
		ans, err := r.prompter.Ask(PromptContinue)
		if err != nil {
			return false, err
		}
		if more, ok := ParseAnswer(ans); ok {
			return more, nil
		}
		fmt.Fprintln(r.out, MsgInvalidOption)
	}
}

// #endregion refiner
