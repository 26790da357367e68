package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/subcrack/internal/logging"
	"github.com/danielpatrickdp/subcrack/internal/state"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to subcrack.db")
	last := flag.Int("last", 20, "show N most recent sessions")
	session := flag.String("session", "", "show one session's version trail")
	version := flag.String("version", "", "show single version detail")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/subcrack.db [--last N] [--session id] [--version id] [--json]")
		os.Exit(2)
	}

	store, err := state.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	switch {
	case *version != "":
		err = runDetailMode(store, *version, *jsonOut)
	case *session != "":
		err = runSessionMode(store, *session, *jsonOut)
	default:
		err = runListMode(store, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type sessionRow struct {
	SessionID string  `json:"session_id"`
	Language  string  `json:"language"`
	Length    int     `json:"length"`
	Versions  int     `json:"versions"`
	Score     float64 `json:"score"`
	Source    string  `json:"source"`
	CreatedAt string  `json:"created_at"`
}

func runListMode(store *state.Store, last int, jsonOut bool) error {
	sessions, err := store.ListSessions(last)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(os.Stderr, "no sessions found")
		return nil
	}

	rows := make([]sessionRow, 0, len(sessions))
	for _, s := range sessions {
		versions, err := store.ListVersions(s.SessionID, 0)
		if err != nil {
			return err
		}
		row := sessionRow{
			SessionID: s.SessionID,
			Language:  s.Language,
			Length:    len(s.Ciphertext),
			Versions:  len(versions),
			CreatedAt: s.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
		if cur, err := store.GetCurrent(s.SessionID); err == nil {
			row.Score = cur.Score
			row.Source = string(cur.Source)
		}
		rows = append(rows, row)
	}

	if jsonOut {
		return printJSON(rows)
	}

	fmt.Printf("%-12s  %-10s  %6s  %8s  %12s  %-9s  %s\n",
		"Session", "Language", "Length", "Versions", "Score", "Active", "Time")
	fmt.Printf("%-12s+-%-10s+-%6s+-%8s+-%12s+-%-9s+-%s\n",
		"------------", "----------", "------", "--------", "------------", "---------", "--------------------")
	for _, r := range rows {
		fmt.Printf("%-12s  %-10s  %6d  %8d  %12.4f  %-9s  %s\n",
			shortID(r.SessionID), r.Language, r.Length, r.Versions, r.Score, r.Source, r.CreatedAt)
	}
	return nil
}

// #endregion list-mode

// #region session-mode

type trailRow struct {
	VersionID string  `json:"version_id"`
	ParentID  string  `json:"parent_id,omitempty"`
	Source    string  `json:"source"`
	Trigger   string  `json:"trigger"`
	Decision  string  `json:"decision"`
	Reason    string  `json:"reason,omitempty"`
	Score     float64 `json:"score"`
	CreatedAt string  `json:"created_at"`
}

func runSessionMode(store *state.Store, sessionID string, jsonOut bool) error {
	sess, err := store.GetSession(sessionID)
	if err != nil {
		return err
	}
	trail, err := store.ListWithProvenance(sessionID)
	if err != nil {
		return err
	}
	current, err := store.GetCurrent(sessionID)
	if err != nil {
		return err
	}

	rows := make([]trailRow, len(trail))
	for i, vp := range trail {
		rows[i] = trailRow{
			VersionID: vp.VersionID,
			ParentID:  vp.ParentID,
			Source:    string(vp.Source),
			Trigger:   vp.TriggerType,
			Decision:  vp.Decision,
			Reason:    vp.Reason,
			Score:     vp.Score,
			CreatedAt: vp.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	if jsonOut {
		return printJSON(map[string]any{
			"session_id": sess.SessionID,
			"language":   sess.Language,
			"ciphertext": sess.Ciphertext,
			"active":     current.VersionID,
			"plaintext":  current.Plaintext,
			"trail":      rows,
		})
	}

	fmt.Printf("Session:    %s\n", sess.SessionID)
	fmt.Printf("Language:   %s\n", sess.Language)
	fmt.Printf("Ciphertext: %s\n\n", sess.Ciphertext)

	fmt.Printf("%-10s  %-10s  %-9s  %-12s  %-8s  %12s  %s\n",
		"Version", "Parent", "Source", "Trigger", "Decision", "Score", "Reason")
	fmt.Printf("%-10s+-%-10s+-%-9s+-%-12s+-%-8s+-%12s+-%s\n",
		"----------", "----------", "---------", "------------", "--------", "------------", "----------")
	for _, r := range rows {
		parent := "-"
		if r.ParentID != "" {
			parent = shortID(r.ParentID)
		}
		marker := " "
		if r.VersionID == current.VersionID {
			marker = "*"
		}
		fmt.Printf("%s%-9s  %-10s  %-9s  %-12s  %-8s  %12.4f  %s\n",
			marker, shortID(r.VersionID), parent, r.Source, r.Trigger, r.Decision, r.Score, r.Reason)
	}

	fmt.Printf("\nActive plaintext (%s):\n%s\n", shortID(current.VersionID), current.Plaintext)
	return nil
}

// #endregion session-mode

// #region detail-mode

type detailOutput struct {
	VersionID string  `json:"version_id"`
	SessionID string  `json:"session_id"`
	ParentID  string  `json:"parent_id"`
	CreatedAt string  `json:"created_at"`
	Source    string  `json:"source"`
	Key       string  `json:"key"`
	Score     float64 `json:"score"`
	Plaintext string  `json:"plaintext"`
	Trail     []any   `json:"provenance,omitempty"`
}

func runDetailMode(store *state.Store, versionID string, jsonOut bool) error {
	v, err := store.GetVersion(versionID)
	if err != nil {
		return err
	}
	trail, err := store.ListWithProvenance(v.SessionID)
	if err != nil {
		return err
	}

	out := detailOutput{
		VersionID: v.VersionID,
		SessionID: v.SessionID,
		ParentID:  v.ParentID,
		CreatedAt: v.CreatedAt.Format("2006-01-02T15:04:05Z"),
		Source:    string(v.Source),
		Key:       v.Mapping.Key(),
		Score:     v.Score,
		Plaintext: v.Plaintext,
	}
	for _, vp := range trail {
		if vp.VersionID != versionID {
			continue
		}
		if d := parseDetail(vp.TriggerType, vp.DetailJSON); d != nil {
			out.Trail = append(out.Trail, d)
		}
	}

	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("Version:   %s\n", out.VersionID)
	fmt.Printf("Session:   %s\n", out.SessionID)
	fmt.Printf("Parent:    %s\n", out.ParentID)
	fmt.Printf("Created:   %s\n", out.CreatedAt)
	fmt.Printf("Source:    %s\n", out.Source)
	fmt.Printf("Key:       %q\n", out.Key)
	fmt.Printf("Score:     %.4f\n", out.Score)
	fmt.Printf("Plaintext: %s\n", out.Plaintext)

	for _, d := range out.Trail {
		switch rec := d.(type) {
		case *logging.RunRecord:
			fmt.Printf("\nRun Record:\n")
			fmt.Printf("  Seed:        %d\n", rec.Seed)
			fmt.Printf("  Schedule:    %s, %d iterations, T %.3g→%.3g every %d\n",
				rec.Schedule.Mode, rec.Schedule.Iterations, rec.Schedule.InitialTemperature,
				rec.Schedule.FloorTemperature, rec.Schedule.CoolingInterval)
			fmt.Printf("  Start:       %s (%.4f)\n", rec.Schedule.Start, rec.InitialScore)
			fmt.Printf("  Accepted:    %d / %d\n", rec.Accepted, rec.Iterations)
			fmt.Printf("  Cancelled:   %v\n", rec.Cancelled)
			if rec.BestKey != "" {
				fmt.Printf("  Best:        %.4f %q\n", rec.BestScore, rec.BestKey)
			}
		case *logging.SwapRecord:
			fmt.Printf("\nSwap #%d: %s=%s\n", rec.Seq, rec.From, rec.To)
		case *logging.RollbackRecord:
			fmt.Printf("\nRollback from %s\n", shortID(rec.FromVersion))
		}
	}
	return nil
}

// #endregion detail-mode

// #region output

func parseDetail(trigger, detailJSON string) any {
	if detailJSON == "" {
		return nil
	}
	var target any
	switch trigger {
	case logging.TriggerDecodeRun:
		target = &logging.RunRecord{}
	case logging.TriggerRefine:
		target = &logging.SwapRecord{}
	case logging.TriggerRollback:
		target = &logging.RollbackRecord{}
	default:
		return nil
	}
	if err := json.Unmarshal([]byte(detailJSON), target); err != nil {
		return nil
	}
	return target
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
