package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kailas-cloud/docrag/internal/usecase/indexing"
)

var contentTypes = map[string]string{
	".pdf":      "application/pdf",
	".txt":      "text/plain",
	".md":       "text/markdown",
	".markdown": "text/markdown",
}

func newIngestCmd(rt *runtime) *cobra.Command {
	var (
		owner       string
		name        string
		description string
		tags        []string
	)
	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Upload and index a local file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			ct, ok := contentTypes[strings.ToLower(filepath.Ext(path))]
			if !ok {
				return fmt.Errorf("unsupported file extension %q", filepath.Ext(path))
			}
			data, err := os.ReadFile(filepath.Clean(path))
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			if name == "" {
				name = filepath.Base(path)
			}

			a, err := newApp(cmd.Context(), rt.cfg, rt.logger)
			if err != nil {
				return err
			}
			defer a.close()

			out, err := a.indexing().Ingest(context.WithoutCancel(cmd.Context()), indexing.Upload{
				OwnerID:     owner,
				Name:        name,
				Description: description,
				Tags:        tags,
				ContentType: ct,
				Data:        data,
			})
			printOutcome(cmd, out, err)
			return err
		},
	}
	cmd.Flags().StringVar(&owner, "user", "", "owner user id")
	cmd.Flags().StringVar(&name, "name", "", "display name (defaults to the file name)")
	cmd.Flags().StringVar(&description, "description", "", "free-form description")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tag, repeatable")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func printOutcome(cmd *cobra.Command, out indexing.Outcome, err error) {
	w := cmd.OutOrStdout()
	if id := out.Document.ID(); id != "" {
		fmt.Fprintf(w, "%s %s\n", color.New(color.Bold).Sprint("document:"), id)
		fmt.Fprintf(w, "%s %s (%d/%d segments)\n", color.New(color.Bold).Sprint("status:"),
			out.Document.Status(), out.Document.SuccessfulSegments(), out.Document.TotalSegments())
	}
	switch {
	case err != nil:
		color.New(color.FgRed).Fprintln(w, out.Message)
	case out.Document.SuccessfulSegments() < out.Document.TotalSegments():
		color.New(color.FgYellow).Fprintln(w, out.Message)
	default:
		color.New(color.FgGreen).Fprintln(w, out.Message)
	}
}
