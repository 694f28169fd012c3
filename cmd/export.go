package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/schoolhub/lessonshop/internal/fallback"
)

func newExportCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Save the remote catalog to a file",
		Long: `Fetches the lesson catalog and writes it to a file that can later be
used as a fallback catalog (--fallback or LESSONSHOP_FALLBACK_FILE).

The format follows the file extension: .parquet, .yaml, .json or .jsonl.`,
		Example: `  lessonshop export --output lessons.parquet
  lessonshop export -o fallback/lessons.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			lessons, err := newClient().FetchLessons(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to fetch lessons: %w", err)
			}
			if err := fallback.Save(output, lessons); err != nil {
				return err
			}
			slog.Info("Catalog exported", "path", output, "lessons", len(lessons))
			printf(cmd, "Exported %d lessons to %s\n", len(lessons), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "lessons.yaml", "Output file")

	return cmd
}
