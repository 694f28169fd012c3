package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/schoolhub/lessonshop/internal/models"
	"github.com/schoolhub/lessonshop/internal/ordering"
	"github.com/schoolhub/lessonshop/internal/receipts"
	"github.com/schoolhub/lessonshop/internal/storefront"
)

// lessonArg is one --lesson flag: an id and the number of spaces wanted.
type lessonArg struct {
	ID  models.LessonID
	Qty int
}

// parseLessonArg parses "id" or "id:qty".
func parseLessonArg(s string) (lessonArg, error) {
	s = strings.TrimSpace(s)
	id, qtyStr := s, ""
	if i := strings.LastIndex(s, ":"); i >= 0 {
		id, qtyStr = s[:i], s[i+1:]
	}

	arg := lessonArg{ID: models.StrID(strings.TrimSpace(id)), Qty: 1}
	if arg.ID.IsZero() {
		return arg, fmt.Errorf("invalid lesson %q: missing id", s)
	}
	if qtyStr != "" {
		n, err := strconv.Atoi(qtyStr)
		if err != nil || n < 1 {
			return arg, fmt.Errorf("invalid lesson %q: quantity must be a positive integer", s)
		}
		arg.Qty = n
	}
	return arg, nil
}

func newOrderCmd() *cobra.Command {
	var (
		name        string
		phone       string
		lessons     []string
		receiptsDir string
		noReceipt   bool
	)

	cmd := &cobra.Command{
		Use:   "order",
		Short: "Book lessons from the command line",
		Long: `Fills a cart from the live catalog and submits it as an order.

Each --lesson takes one space, or as many as given after a colon. After the
order is accepted the remaining spaces of every booked lesson are pushed
back to the API and a YAML receipt is written.`,
		Example: `  lessonshop order --name "Ana Lee" --phone 0123456 --lesson 1 --lesson 65f0c0ffee:2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(lessons) == 0 {
				return errors.New("at least one --lesson is required")
			}
			wanted := make([]lessonArg, 0, len(lessons))
			for _, l := range lessons {
				arg, err := parseLessonArg(l)
				if err != nil {
					return err
				}
				wanted = append(wanted, arg)
			}

			ctx := cmd.Context()
			s := storefront.NewSession(ctx, newClient(), storefront.Options{Lessons: []models.Lesson{}})
			defer s.Close()

			if r := s.Load(ctx); !r.OK() {
				return fmt.Errorf("failed to fetch lessons: %w", r.Err)
			}

			for _, w := range wanted {
				for i := 0; i < w.Qty; i++ {
					if !s.AddToCart(w.ID) {
						return fmt.Errorf("lesson %s: only %d space(s) available", w.ID, i)
					}
				}
			}
			s.SetBuyer(name, phone)

			s.Workflow().OnTransition = func(from, to ordering.State) {
				slog.Info("Order step", "step", to)
			}

			lines := s.Cart()
			out := s.Checkout(ctx)
			if out.Err != nil {
				return fmt.Errorf("order not placed: %w", out.Err)
			}

			total := 0
			for _, l := range lines {
				total += l.Qty
			}
			printf(cmd, "Order confirmed for %s: %d space(s)\n", strings.TrimSpace(name), total)

			if noReceipt {
				return nil
			}
			if cmd.Flags().Changed("receipts-dir") {
				cfg.ReceiptsDir = receiptsDir
			}
			receipt := receipts.New(strings.TrimSpace(name), strings.TrimSpace(phone), lines, out.Order, time.Now())
			path, err := receipts.Save(cfg.ReceiptsDir, receipt)
			if err != nil {
				return err
			}
			printf(cmd, "Receipt saved to: %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Buyer name (letters and spaces)")
	cmd.Flags().StringVar(&phone, "phone", "", "Buyer phone number (at least 5 digits)")
	cmd.Flags().StringArrayVarP(&lessons, "lesson", "l", nil, "Lesson to book as id or id:qty (repeatable)")
	cmd.Flags().StringVar(&receiptsDir, "receipts-dir", "receipts", "Directory for order receipts; overrides LESSONSHOP_RECEIPTS_DIR")
	cmd.Flags().BoolVar(&noReceipt, "no-receipt", false, "Do not write a receipt")

	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("phone")

	return cmd
}
