package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/subcrack/internal/corpus"
	"github.com/danielpatrickdp/subcrack/internal/replay"
	"github.com/danielpatrickdp/subcrack/internal/state"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to subcrack.db (DB mode)")
	sessionID := flag.String("session", "", "session to verify (DB mode)")
	corpusPath := flag.String("corpus", "", "reference corpus for score checks (DB mode, optional)")
	fixturePath := flag.String("fixture", "", "path to fixture JSON (fixture mode)")
	flag.Parse()

	dbMode := *dbPath != "" && *sessionID != ""
	if dbMode == (*fixturePath != "") {
		fmt.Fprintln(os.Stderr, "usage: replay --db path/to/subcrack.db --session id [--corpus path]")
		fmt.Fprintln(os.Stderr, "       replay --fixture path/to/fixture.json")
		os.Exit(2)
	}

	var exitCode int
	if *fixturePath != "" {
		exitCode = runFixtureMode(*fixturePath)
	} else {
		exitCode = runDBMode(*dbPath, *sessionID, *corpusPath)
	}
	os.Exit(exitCode)
}

// #endregion main

// #region db-mode

func runDBMode(dbPath, sessionID, corpusPath string) int {
	store, err := state.NewStore(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		return 2
	}
	defer store.Close()

	var model *corpus.Model
	if corpusPath != "" {
		model, err = corpus.LoadFile(corpusPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load corpus: %v\n", err)
			return 2
		}
	}

	chain, err := replay.VerifyChain(store, model, sessionID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "verify chain: %v\n", err)
		return 2
	}
	if len(chain) == 0 {
		fmt.Fprintln(os.Stderr, "no versions found for session")
		return 2
	}

	fmt.Printf("%-10s| %-10s| %-12s| %s\n", "Version", "Source", "Check", "Match")
	fmt.Printf("%-10s+%-11s+%-13s+%s\n", "----------", "-----------", "-------------", "------")
	var all []replay.Check
	for _, cc := range chain {
		for _, c := range cc.Checks {
			fmt.Printf("%-10s| %-10s| %-12s| %s\n", shortID(cc.VersionID), cc.Source, c.Name, matchLabel(c.Match))
			if !c.Match {
				fmt.Printf("%-10s|   expected %q\n%-10s|   replayed %q\n", "", c.Expected, "", c.Replayed)
			}
		}
		all = append(all, cc.Checks...)
	}
	return printSummary(all)
}

// #endregion db-mode

// #region fixture-mode

func runFixtureMode(path string) int {
	f, err := replay.LoadFixture(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		return 2
	}
	model, err := f.Model()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load model: %v\n", err)
		return 2
	}

	res, err := replay.Replay(context.Background(), model, f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		return 2
	}

	if f.Description != "" {
		fmt.Printf("%s\n\n", f.Description)
	}
	fmt.Printf("%-14s| %-30s| %-30s| %s\n", "Check", "Expected", "Replayed", "Match")
	fmt.Printf("%-14s+%-31s+%-31s+%s\n",
		"--------------", "-------------------------------", "-------------------------------", "------")
	for _, c := range res.Checks {
		fmt.Printf("%-14s| %-30s| %-30s| %s\n", c.Name, clip(c.Expected), clip(c.Replayed), matchLabel(c.Match))
	}
	return printSummary(res.Checks)
}

// #endregion fixture-mode

// #region output

// printSummary prints the totals and returns the exit code.
func printSummary(checks []replay.Check) int {
	s := replay.Summarize(checks)
	fmt.Printf("\nSummary: %d total, %d match, %d diverge\n", s.Total, s.Matches, s.Diverge)
	if s.Diverge > 0 {
		return 1
	}
	return 0
}

func matchLabel(ok bool) string {
	if ok {
		return "OK"
	}
	return "DIFF"
}

func clip(s string) string {
	if len(s) > 30 {
		return s[:27] + "..."
	}
	return s
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
