package cmd

import (
	"strconv"

	"github.com/charmbracelet/lipgloss/v2/table"
	"github.com/spf13/cobra"

	"github.com/schoolhub/lessonshop/internal/models"
	"github.com/schoolhub/lessonshop/internal/storage"
	"github.com/schoolhub/lessonshop/internal/storefront"
)

func newLessonsCmd() *cobra.Command {
	var (
		sortBy       string
		sortDir      string
		fallbackFile string
		offline      bool
	)

	cmd := &cobra.Command{
		Use:   "lessons",
		Short: "List the lesson catalog",
		Long: `Fetches the lesson catalog and prints it as a table.

When the API cannot be reached the built-in (or fallback file) catalog is
printed instead and a warning is logged.`,
		Example: `  # Cheapest lessons first
  lessonshop lessons --sort price

  # Show the fallback file without calling the API
  lessonshop lessons --fallback lessons.parquet --offline`,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := storage.ParseSortKey(sortBy)
			if err != nil {
				return err
			}
			dir, err := storage.ParseSortDir(sortDir)
			if err != nil {
				return err
			}

			s := storefront.NewSession(cmd.Context(), newClient(), storefront.Options{
				Lessons: startingLessons(fallbackFile),
			})
			defer s.Close()

			if !offline {
				s.Load(cmd.Context())
			}
			s.SetSort(key, dir)
			printf(cmd, "%s\n", lessonTable(s.Lessons()))
			return nil
		},
	}

	cmd.Flags().StringVar(&sortBy, "sort", "subject", "Sort by subject, location, price or spaces")
	cmd.Flags().StringVar(&sortDir, "dir", "asc", "Sort direction (asc or desc)")
	cmd.Flags().StringVar(&fallbackFile, "fallback", "", "Catalog file used when the API is unavailable")
	cmd.Flags().BoolVar(&offline, "offline", false, "Do not call the API")

	return cmd
}

func lessonTable(lessons []models.Lesson) string {
	rows := make([][]string, 0, len(lessons))
	for _, l := range lessons {
		rows = append(rows, []string{
			l.ID.String(),
			l.Subject,
			l.Location,
			"£" + l.Price.StringFixed(2),
			strconv.Itoa(l.Spaces),
		})
	}
	return table.New().
		Headers("ID", "SUBJECT", "LOCATION", "PRICE", "SPACES").
		Rows(rows...).
		String()
}
