package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// NewPushCmd создаёт группу команд для просмотра записей рассылок.
func NewPushCmd(storeFn func(ctx context.Context) (*Store, error), outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Inspect scheduled pushes",
	}

	cmd.AddCommand(
		newPushListCmd(storeFn, outputFn),
		newPushShowCmd(storeFn, outputFn),
	)

	return cmd
}

func newPushListCmd(storeFn func(ctx context.Context) (*Store, error), outputFn func() *Output) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List scheduled and running pushes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := storeFn(ctx)
			if err != nil {
				return err
			}
			out := outputFn()

			pushes, err := store.Pushes.ListScheduled(ctx, limit)
			if err != nil {
				return err
			}

			headers := []string{"ID", "PUSH_TIME", "STATUS", "SENT", "FAILED", "CAMPAIGN"}
			rows := make([][]string, len(pushes))
			for i, p := range pushes {
				campaignID := "-"
				if p.CampaignID != nil {
					campaignID = p.CampaignID.String()
				}
				rows[i] = []string{
					p.ID.String(),
					p.PushTime,
					string(p.Status),
					strconv.Itoa(p.SentSum()),
					strconv.Itoa(p.FailedSum()),
					campaignID,
				}
			}

			out.Print(headers, rows, pushes)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of pushes")
	return cmd
}

func newPushShowCmd(storeFn func(ctx context.Context) (*Store, error), outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show <push-id>",
		Short: "Show a push record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid push id: %w", err)
			}

			store, err := storeFn(ctx)
			if err != nil {
				return err
			}
			out := outputFn()

			p, err := store.Pushes.GetByID(ctx, id)
			if err != nil {
				return err
			}

			out.JSON(p)
			return nil
		},
	}
}
