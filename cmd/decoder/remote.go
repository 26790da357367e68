package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/subcrack/internal/rpc"
)

var remoteOpts struct {
	addr       string
	timeout    time.Duration
	language   string
	seed       uint64
	iterations int
	persist    bool
}

var remoteCmd = &cobra.Command{
	Use:   "remote <ciphertext...>",
	Short: "Decode a ciphertext on a running decoder server",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := remoteOpts.addr
		if addr == "" {
			addr = cfg.GRPCAddr
		}
		client, err := rpc.NewClient(addr)
		if err != nil {
			return err
		}
		defer client.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), remoteOpts.timeout)
		defer cancel()

		ok, err := client.Healthy(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("decoder at %s is not serving", addr)
		}

		res, err := client.Decode(ctx, rpc.DecodeRequest{
			Ciphertext: strings.Join(args, " "),
			Language:   remoteOpts.language,
			Seed:       remoteOpts.seed,
			Iterations: remoteOpts.iterations,
			Persist:    remoteOpts.persist,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, styles.Title.Render("Decoded by "+addr))
		if res.SessionID != "" {
			field(out, "Session", res.SessionID)
		}
		field(out, "Language", res.Language)
		field(out, "Seed", res.Seed)
		field(out, "Key", fmt.Sprintf("%q", res.Key))
		field(out, "Score", fmt.Sprintf("%.4f (ciphertext %.4f)", res.Score, res.CiphertextScore))
		field(out, "Accepted", fmt.Sprintf("%d / %d", res.Accepted, res.Iterations))
		fmt.Fprintln(out, styles.Text.Render(res.Plaintext))
		return nil
	},
}

func init() {
	f := remoteCmd.Flags()
	f.StringVar(&remoteOpts.addr, "addr", "", "server address (default from config)")
	f.DurationVar(&remoteOpts.timeout, "timeout", 2*time.Minute, "request timeout")
	f.StringVarP(&remoteOpts.language, "language", "l", "", "reference language (server default if empty)")
	f.Uint64Var(&remoteOpts.seed, "seed", 0, "random seed (0 for a fresh one)")
	f.IntVarP(&remoteOpts.iterations, "iterations", "n", 0, "optimizer iterations (server default if 0)")
	f.BoolVar(&remoteOpts.persist, "persist", false, "store the result on the server")
}
