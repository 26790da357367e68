package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/subcrack/internal/alphabet"
)

var modelTop int

var modelCmd = &cobra.Command{
	Use:   "model [language]",
	Short: "Show reference corpus statistics",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		language := cfg.DefaultLanguage
		if len(args) == 1 {
			language = args[0]
		}
		m, err := a.registry.Get(language)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, styles.Title.Render(language))
		field(out, "Symbols", m.Len())
		field(out, "Alphabet", fmt.Sprintf("%q", alphabet.Symbols))
		fmt.Fprintln(out)
		fmt.Fprintln(out, styles.Muted.Render("Unigram frequency (%)"))
		fmt.Fprintln(out, m.FrequencyString())
		fmt.Fprintln(out)
		fmt.Fprintln(out, styles.Muted.Render(fmt.Sprintf("%-6s %10s %14s", "Pair", "Count", "log P")))
		for _, b := range m.TopBigrams(modelTop) {
			fmt.Fprintf(out, "%-6q %10d %14.4f\n", b.Pair, b.Count, b.LogLikelihood)
		}
		return nil
	},
}

func init() {
	modelCmd.Flags().IntVar(&modelTop, "top", 20, "bigrams to list")
}
