package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/subcrack/internal/replay"
	"github.com/danielpatrickdp/subcrack/internal/state"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to subcrack.db")
	sessionID := flag.String("session", "", "session to export")
	corpusPath := flag.String("corpus", "", "reference corpus path recorded in the fixture")
	description := flag.String("description", "", "fixture description")
	outPath := flag.String("out", "", "output fixture JSON path")
	flag.Parse()

	if *dbPath == "" || *sessionID == "" || *outPath == "" || *corpusPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fixture-export --db path/to/db --session id --corpus path/to/corpus.txt --out path/to/fixture.json [--description text]")
		os.Exit(2)
	}

	if err := run(*dbPath, *sessionID, *corpusPath, *description, *outPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region export

func run(dbPath, sessionID, corpusPath, description, outPath string) error {
	store, err := state.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	f, err := replay.FromSession(store, sessionID)
	if err != nil {
		return err
	}
	f.CorpusPath = corpusPath
	if description != "" {
		f.Description = description
	}

	if err := replay.SaveFixture(outPath, f); err != nil {
		return err
	}
	fmt.Printf("Exported session %s (%d swaps, seed %d) to %s\n", sessionID, len(f.Swaps), f.Seed, outPath)
	return nil
}

// #endregion export
