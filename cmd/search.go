package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/schoolhub/lessonshop/internal/storage"
	"github.com/schoolhub/lessonshop/internal/storefront"
)

func newSearchCmd() *cobra.Command {
	var (
		sortBy  string
		sortDir string
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search lessons by subject or location",
		Long: `Runs one search against the lessons API and prints the matches.

An empty query lists the whole catalog.`,
		Example: `  lessonshop search hendon
  lessonshop search "brent cross" --sort price --dir desc`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := storage.ParseSortKey(sortBy)
			if err != nil {
				return err
			}
			dir, err := storage.ParseSortDir(sortDir)
			if err != nil {
				return err
			}

			s := storefront.NewSession(cmd.Context(), newClient(), storefront.Options{SearchWindow: cfg.SearchDebounce})
			defer s.Close()
			s.SetSort(key, dir)

			query := strings.Join(args, " ")
			result := s.SearchNow(cmd.Context(), query)
			if !result.OK() {
				return fmt.Errorf("search %q failed: %w", query, result.Err)
			}

			lessons := s.Lessons()
			if len(lessons) == 0 {
				printf(cmd, "No lessons match %q\n", query)
				return nil
			}
			printf(cmd, "%s\n", lessonTable(lessons))
			return nil
		},
	}

	cmd.Flags().StringVar(&sortBy, "sort", "subject", "Sort by subject, location, price or spaces")
	cmd.Flags().StringVar(&sortDir, "dir", "asc", "Sort direction (asc or desc)")

	return cmd
}
