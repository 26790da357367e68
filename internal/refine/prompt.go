package refine

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Prompter supplies operator answers. Ask returns io.EOF when no more
// answers are available.
type Prompter interface {
	Ask(prompt string) (string, error)
}

// #region scanner

// ScannerPrompter writes prompts to w and reads one line per answer. Lines
// have no length limit; an over-long answer is just an invalid token.
type ScannerPrompter struct {
	w  io.Writer
	br *bufio.Reader
}

// NewScannerPrompter reads answers from r, typically os.Stdin.
func NewScannerPrompter(r io.Reader, w io.Writer) *ScannerPrompter {
	return &ScannerPrompter{w: w, br: bufio.NewReader(r)}
}

func (p *ScannerPrompter) Ask(prompt string) (string, error) {
	fmt.Fprint(p.w, prompt)
	line, err := p.br.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// #endregion scanner

// #region script

// ScriptPrompter replays canned answers in order.
type ScriptPrompter struct {
	answers []string
	asked   []string
}

// NewScriptPrompter returns a prompter that answers with answers.
func NewScriptPrompter(answers ...string) *ScriptPrompter {
	return &ScriptPrompter{answers: answers}
}

func (p *ScriptPrompter) Ask(prompt string) (string, error) {
	p.asked = append(p.asked, prompt)
	if len(p.answers) == 0 {
		return "", io.EOF
	}
	a := p.answers[0]
	p.answers = p.answers[1:]
	return a, nil
}

// Asked returns every prompt seen so far.
func (p *ScriptPrompter) Asked() []string { return p.asked }

// Pair is a requested swap of two plaintext symbols.
type Pair struct {
	From, To byte
}

var rxPair = regexp.MustCompile(`^([A-Z_])=([A-Z_])$`)

// ParseScript reads swaps written as "E=T, A=O". Pairs are separated by
// commas and '_' stands for the space symbol.
func ParseScript(line string) ([]Pair, error) {
	line = strings.ToUpper(strings.TrimSpace(line))
	if line == "" {
		return nil, nil
	}
	var pairs []Pair
	for _, field := range strings.Split(line, ",") {
		field = strings.TrimSpace(field)
		m := rxPair.FindStringSubmatch(field)
		if m == nil {
			return nil, fmt.Errorf("parse script: %w", &InvalidSwapInputError{Input: field})
		}
		pairs = append(pairs, Pair{From: scriptSymbol(m[1][0]), To: scriptSymbol(m[2][0])})
	}
	return pairs, nil
}

func scriptSymbol(c byte) byte {
	if c == '_' {
		return ' '
	}
	return c
}

// Answers renders pairs as the prompt answers a scripted session needs:
// each pair followed by "yes", the last followed by "no".
func Answers(pairs []Pair) []string {
	out := make([]string, 0, len(pairs)*3)
	for i, p := range pairs {
		out = append(out, string(p.From), string(p.To))
		if i == len(pairs)-1 {
			out = append(out, "no")
		} else {
			out = append(out, "yes")
		}
	}
	return out
}

// #endregion script
