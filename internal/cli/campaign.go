package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/Megaphone/internal/campaign"
	"github.com/shaiso/Megaphone/internal/domain"
	"github.com/shaiso/Megaphone/internal/repo"
)

// NewCampaignCmd создаёт группу команд для управления кампаниями.
func NewCampaignCmd(storeFn func(ctx context.Context) (*Store, error), outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "campaign",
		Short: "Manage push campaigns",
	}

	cmd.AddCommand(
		newCampaignListCmd(storeFn, outputFn),
		newCampaignShowCmd(storeFn, outputFn),
		newCampaignCreateCmd(storeFn, outputFn),
		newCampaignSetStatusCmd(storeFn, outputFn, "pause", domain.CampaignStatePaused),
		newCampaignSetStatusCmd(storeFn, outputFn, "resume", domain.CampaignStateActive),
	)

	return cmd
}

func newCampaignListCmd(storeFn func(ctx context.Context) (*Store, error), outputFn func() *Output) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List campaigns",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := storeFn(ctx)
			if err != nil {
				return err
			}
			out := outputFn()

			campaigns, err := store.Campaigns.List(ctx, limit, 0)
			if err != nil {
				return err
			}

			headers := []string{"ID", "NAME", "INTERVAL", "SEND_TIME", "STATUS", "VARIANTS"}
			rows := make([][]string, len(campaigns))
			for i, c := range campaigns {
				interval := string(c.Interval)
				if c.IsCron() {
					interval = "cron: " + c.CronExpr
				}
				rows[i] = []string{
					c.ID.String(),
					c.Name,
					interval,
					c.SendTime,
					string(c.Status),
					strconv.Itoa(len(c.EffectiveVariants())),
				}
			}

			out.Print(headers, rows, campaigns)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of campaigns")
	return cmd
}

func newCampaignShowCmd(storeFn func(ctx context.Context) (*Store, error), outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show <campaign-id>",
		Short: "Show campaign details and its pushes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid campaign id: %w", err)
			}

			store, err := storeFn(ctx)
			if err != nil {
				return err
			}
			out := outputFn()

			c, err := store.Campaigns.GetByID(ctx, id)
			if err != nil {
				return err
			}
			pushes, err := store.Pushes.ListByCampaign(ctx, id)
			if err != nil {
				return err
			}

			out.JSON(map[string]any{
				"campaign": c,
				"pushes":   pushes,
			})
			return nil
		},
	}
}

func newCampaignCreateCmd(storeFn func(ctx context.Context) (*Store, error), outputFn func() *Output) *cobra.Command {
	var (
		name       string
		interval   string
		sendTime   string
		dayOfWeek  int
		dayOfMonth int
		cronExpr   string
		query      string
		payload    string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a campaign",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			c := &domain.Campaign{
				ID:         uuid.New(),
				Name:       name,
				Interval:   domain.Interval(interval),
				SendTime:   sendTime,
				DayOfWeek:  dayOfWeek,
				DayOfMonth: dayOfMonth,
				CronExpr:   cronExpr,
				Query:      query,
				Payload:    payload,
				Status:     domain.CampaignStateActive,
				CreatedAt:  time.Now(),
				UpdatedAt:  time.Now(),
			}

			// Конфигурационные ошибки ловим до записи в БД.
			if c.IsCron() {
				if err := campaign.ValidateCronExpr(c.CronExpr); err != nil {
					return err
				}
			} else if _, err := campaign.NextPushTime(c, time.Now()); err != nil {
				return err
			}

			store, err := storeFn(ctx)
			if err != nil {
				return err
			}
			out := outputFn()

			if err := store.Campaigns.Create(ctx, c); err != nil {
				return err
			}

			out.Success("Campaign created: " + c.ID.String())
			if audience, err := store.Installations.Count(ctx, repo.InstallationFilter{Where: c.Query}); err == nil {
				out.Success(fmt.Sprintf("Matching audience: %d installations", audience))
			}
			out.JSON(c)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Campaign name")
	cmd.Flags().StringVar(&interval, "interval", "daily", "Interval: daily, weekly or monthly")
	cmd.Flags().StringVar(&sendTime, "send-time", "09:00:00", "Local wall-clock send time (hh:mm:ss)")
	cmd.Flags().IntVar(&dayOfWeek, "day-of-week", 0, "Day of week for weekly campaigns (0 = Sunday)")
	cmd.Flags().IntVar(&dayOfMonth, "day-of-month", 1, "Day of month for monthly campaigns")
	cmd.Flags().StringVar(&cronExpr, "cron", "", "Cron expression (overrides interval)")
	cmd.Flags().StringVar(&query, "query", "{}", "Recipient filter (JSON)")
	cmd.Flags().StringVar(&payload, "payload", "", "Message payload (JSON)")
	cmd.MarkFlagRequired("payload")

	return cmd
}

func newCampaignSetStatusCmd(storeFn func(ctx context.Context) (*Store, error), outputFn func() *Output, use string, state domain.CampaignState) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <campaign-id>",
		Short: use + " a campaign",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid campaign id: %w", err)
			}

			store, err := storeFn(ctx)
			if err != nil {
				return err
			}
			out := outputFn()

			if err := store.Campaigns.SetStatus(ctx, id, state); err != nil {
				return err
			}
			out.Success(fmt.Sprintf("Campaign %s: %s", id, state))
			return nil
		},
	}
}
