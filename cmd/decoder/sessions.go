package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/subcrack/internal/state"
)

// #region sessions

var sessionsLast int

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List stored sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := state.NewStore(cfg.Database)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()

		sessions, err := store.ListSessions(sessionsLast)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(sessions) == 0 {
			fmt.Fprintln(out, styles.Muted.Render("no sessions"))
			return nil
		}
		fmt.Fprintln(out, styles.Muted.Render(fmt.Sprintf("%-36s  %-10s  %12s  %-9s  %s", "Session", "Language", "Score", "Active", "Plaintext")))
		for _, s := range sessions {
			cur, err := store.GetCurrent(s.SessionID)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%-36s  %-10s  %12.4f  %-9s  %s\n",
				s.SessionID, s.Language, cur.Score, cur.Source, preview(cur.Plaintext, 40))
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <session>",
	Short: "Show a session's version history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := state.NewStore(cfg.Database)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()

		sess, err := store.GetSession(args[0])
		if err != nil {
			return err
		}
		current, err := store.GetCurrent(sess.SessionID)
		if err != nil {
			return err
		}
		trail, err := store.ListWithProvenance(sess.SessionID)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, styles.Title.Render("Session "+sess.SessionID))
		field(out, "Language", sess.Language)
		field(out, "Created", sess.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Fprintln(out, styles.Muted.Render(sess.Ciphertext))
		fmt.Fprintln(out)
		for _, v := range trail {
			marker := " "
			if v.VersionID == current.VersionID {
				marker = styles.Success.Render("*")
			}
			fmt.Fprintf(out, "%s %s  %-9s  %-12s  %12.4f  %s\n",
				marker, v.VersionID, v.Source, v.TriggerType, v.Score, v.Reason)
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, styles.Text.Render(current.Plaintext))
		return nil
	},
}

func init() {
	sessionsCmd.Flags().IntVar(&sessionsLast, "last", 20, "sessions to list, newest first")
	sessionsCmd.AddCommand(showCmd)
}

// #endregion sessions

// #region rollback

var rollbackCmd = &cobra.Command{
	Use:   "rollback <session> <version>",
	Short: "Make an earlier version the active one",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		v, err := a.svc.Rollback(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, styles.Success.Render("Active version ")+v.VersionID)
		fmt.Fprintln(out, styles.Text.Render(v.Plaintext))
		return nil
	},
}

// #endregion rollback

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
