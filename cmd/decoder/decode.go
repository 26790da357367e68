package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/subcrack/internal/anneal"
	"github.com/danielpatrickdp/subcrack/internal/decoder"
)

// #region flags

var decodeOpts struct {
	file        string
	language    string
	seed        uint64
	iterations  int
	mode        string
	temperature float64
	trackBest   bool
	persist     bool
	quiet       bool
}

var decodeCmd = &cobra.Command{
	Use:   "decode [ciphertext...]",
	Short: "Decode one or more ciphertexts",
	Long: "Decode runs the optimizer on the ciphertext given as arguments. With\n" +
		"--file each non-empty line of the file is one ciphertext. Input is\n" +
		"upper-cased; symbols outside A-Z and space are rejected.\n" +
		"Ciphertexts are decoded concurrently and printed in input order.",
	RunE: runDecode,
}

func init() {
	f := decodeCmd.Flags()
	f.StringVarP(&decodeOpts.file, "file", "f", "", "read ciphertexts from file, one per line (- for stdin)")
	f.StringVarP(&decodeOpts.language, "language", "l", "", "reference language (default from config)")
	f.Uint64Var(&decodeOpts.seed, "seed", 0, "random seed (0 uses the config seed, or a fresh one)")
	f.IntVarP(&decodeOpts.iterations, "iterations", "n", 0, "optimizer iterations")
	f.StringVar(&decodeOpts.mode, "mode", "", "annealing or fixed")
	f.Float64Var(&decodeOpts.temperature, "temperature", 0, "initial (or fixed) temperature")
	f.BoolVar(&decodeOpts.trackBest, "track-best", false, "also report the best state visited")
	f.BoolVar(&decodeOpts.persist, "persist", true, "store the result as a session")
	f.BoolVarP(&decodeOpts.quiet, "quiet", "q", false, "print only the plaintext")
}

// #endregion flags

// #region run

func runDecode(cmd *cobra.Command, args []string) error {
	texts, err := ciphertexts(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	schedule, err := decodeSchedule(cmd.Flags().Changed("temperature"))
	if err != nil {
		return err
	}

	a, err := newApp(decodeOpts.persist)
	if err != nil {
		return err
	}
	defer a.Close()

	language := decodeOpts.language
	if language == "" {
		language = cfg.DefaultLanguage
	}
	seed := decodeOpts.seed
	if seed == 0 {
		seed = cfg.Seed
	}

	reqs := make([]decoder.Request, len(texts))
	for i, text := range texts {
		reqs[i] = decoder.Request{
			Ciphertext: text,
			Language:   language,
			Seed:       seed,
			Config:     &schedule,
			Persist:    decodeOpts.persist,
		}
	}

	responses, err := a.svc.DecodeAll(cmd.Context(), reqs, cfg.Concurrency)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for i, resp := range responses {
		if decodeOpts.quiet {
			fmt.Fprintln(out, resp.Plaintext)
			continue
		}
		if i > 0 {
			fmt.Fprintln(out)
		}
		printResponse(out, resp)
	}
	return nil
}

// decodeSchedule applies the schedule flags to the configured optimizer.
// temperatureSet reports whether --temperature was given, so 0 is usable.
func decodeSchedule(temperatureSet bool) (anneal.Config, error) {
	c := cfg.Optimizer
	switch decodeOpts.mode {
	case "":
	case string(anneal.ModeFixed):
		c.Mode = anneal.ModeFixed
	case string(anneal.ModeAnnealing):
		c.Mode = anneal.ModeAnnealing
	default:
		return c, fmt.Errorf("unknown mode %q", decodeOpts.mode)
	}
	if decodeOpts.iterations > 0 {
		c.Iterations = decodeOpts.iterations
	}
	if temperatureSet {
		c.InitialTemperature = decodeOpts.temperature
		if c.FloorTemperature > c.InitialTemperature {
			c.FloorTemperature = c.InitialTemperature
		}
	}
	if decodeOpts.trackBest {
		c.TrackBest = true
	}
	return c, c.Validate()
}

func ciphertexts(stdin io.Reader, args []string) ([]string, error) {
	if decodeOpts.file == "" {
		if len(args) == 0 {
			return nil, fmt.Errorf("no ciphertext given")
		}
		return []string{strings.ToUpper(strings.Join(args, " "))}, nil
	}
	if len(args) > 0 {
		return nil, fmt.Errorf("pass ciphertexts as arguments or with --file, not both")
	}

	var data []byte
	var err error
	if decodeOpts.file == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(decodeOpts.file)
	}
	if err != nil {
		return nil, fmt.Errorf("read ciphertexts: %w", err)
	}
	var texts []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimRight(line, "\r"); line != "" {
			texts = append(texts, strings.ToUpper(line))
		}
	}
	if len(texts) == 0 {
		return nil, fmt.Errorf("%s holds no ciphertext", decodeOpts.file)
	}
	return texts, nil
}

// #endregion run

// #region output

func printResponse(w io.Writer, resp decoder.Response) {
	res := resp.Result
	if res.Cancelled {
		fmt.Fprintln(w, styles.Warning.Render("Cancelled")+styles.Muted.Render(fmt.Sprintf(" after %d iterations", res.Iterations)))
	} else {
		fmt.Fprintln(w, styles.Title.Render("Decoded"))
	}
	if resp.SessionID != "" {
		field(w, "Session", resp.SessionID)
	}
	field(w, "Language", resp.Language)
	field(w, "Seed", resp.Seed)
	field(w, "Key", fmt.Sprintf("%q", resp.Key()))
	field(w, "Score", fmt.Sprintf("%.4f (ciphertext %.4f)", resp.Score, resp.CiphertextScore))
	field(w, "Accepted", fmt.Sprintf("%d / %d", res.Accepted, res.Iterations))
	if len(resp.Attempts) > 1 {
		field(w, "Attempts", len(resp.Attempts))
	}
	if res.Best != nil && res.Best.Score > resp.Score {
		field(w, "Best", fmt.Sprintf("%.4f at iteration %d", res.Best.Score, res.Best.Iteration))
		fmt.Fprintln(w, styles.Muted.Render(res.Best.Plaintext))
	}
	fmt.Fprintln(w, styles.Text.Render(resp.Plaintext))
}

// #endregion output
