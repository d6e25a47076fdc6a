package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/scribe/internal/config"
	"github.com/MikeSquared-Agency/scribe/internal/ingest"
)

func newParseCmd(cfg *config.Config) *cobra.Command {
	var (
		format  string
		title   string
		preview bool
	)

	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse a conversation export and print the normalized result as JSON",
		Long:  "Parse a conversation export without storing it. Use - to read from stdin.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}

			orch := ingest.New(nil, slog.Default()).WithPreviewTurns(cfg.PreviewTurns)
			f, err := ingest.ParseFormat(format)
			if err != nil {
				return err
			}
			opts := ingest.Options{Format: f, Title: title}
			raw := ingest.DecodeRaw(data)

			var out any
			if preview {
				out, err = orch.Preview(raw, opts)
			} else {
				out, err = orch.Parse(raw, opts)
			}
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "force a format: json-transcript, chat-log, whatsapp or srt")
	cmd.Flags().StringVar(&title, "title", "", "conversation title")
	cmd.Flags().BoolVar(&preview, "preview", false, "print only the preview summary")

	return cmd
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
