package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newAskCmd(rt *runtime) *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "ask <document-id> <question...>",
		Short: "Answer a question from one indexed document",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), rt.cfg, rt.logger)
			if err != nil {
				return err
			}
			defer a.close()

			ans, err := a.answer().Answer(cmd.Context(), args[0], user, strings.Join(args[1:], " "))
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, ans.Text)
			fmt.Fprintln(w)
			dim := color.New(color.Faint)
			dim.Fprintf(w, "Sources from %q:\n", ans.Document.Name())
			for _, s := range ans.Sources {
				dim.Fprintf(w, "  %d. segment %d (score %.3f)\n", s.Rank, s.Seq, s.Score)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "requesting user id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
