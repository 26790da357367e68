package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/subcrack/internal/refine"
)

var refineOpts struct {
	script  string
	tui     bool
	verbose bool
}

var refineCmd = &cobra.Command{
	Use:   "refine <session>",
	Short: "Swap symbols in a stored decryption by hand",
	Long: "Refine prompts for pairs of symbols and swaps them in the session's\n" +
		"active plaintext. Each swap is stored as a new version. Use _ for the\n" +
		"space symbol in --script, e.g. --script \"E=T, A=_\".",
	Args: cobra.ExactArgs(1),
	RunE: runRefine,
}

func init() {
	f := refineCmd.Flags()
	f.StringVar(&refineOpts.script, "script", "", "apply swaps without prompting")
	f.BoolVar(&refineOpts.tui, "tui", false, "prompt with terminal forms")
	f.BoolVarP(&refineOpts.verbose, "verbose", "v", false, "print the text after every swap")
}

func runRefine(cmd *cobra.Command, args []string) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	sessionID := args[0]
	out := cmd.OutOrStdout()

	var res refine.Result
	switch {
	case refineOpts.script != "":
		pairs, perr := refine.ParseScript(refineOpts.script)
		if perr != nil {
			return perr
		}
		res, err = a.svc.ApplySwaps(cmd.Context(), sessionID, pairs)
	default:
		var p refine.Prompter = refine.NewScannerPrompter(cmd.InOrStdin(), out)
		if refineOpts.tui {
			p = formPrompter{}
		}
		_, current, cerr := a.svc.Current(sessionID)
		if cerr != nil {
			return cerr
		}
		fmt.Fprintln(out, styles.Text.Render(current.Plaintext))
		res, err = a.svc.Refine(cmd.Context(), sessionID, p,
			refine.WithVerbose(refineOpts.verbose),
			refine.WithOutput(out),
		)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(out, styles.Title.Render(fmt.Sprintf("%d swaps applied", len(res.Swaps))))
	if len(res.Swaps) > 0 {
		field(out, "Key", fmt.Sprintf("%q", res.Mapping.Key()))
		fmt.Fprintln(out, styles.Text.Render(res.Text))
	}
	return nil
}
