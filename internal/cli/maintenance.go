package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"serotonyl.ru/karmabot/internal/app"
	"serotonyl.ru/karmabot/internal/config"
)

func loadCore(ctx context.Context) (*app.Core, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return app.NewCore(ctx, cfg)
}

// NewSweepCommand создаёт команду sweep: один проход обслуживания, как на тике cron.
func NewSweepCommand(_ *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Подвести итоги истёкших голосований и удалить старую историю",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			core, err := loadCore(ctx)
			if err != nil {
				return err
			}
			defer core.Store.Close()

			if err := core.KarmaHandler.ProcessExpired(ctx, time.Now()); err != nil {
				return err
			}
			open, err := core.Karma.Pending(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "готово, открытых голосований: %d\n", len(open))
			return nil
		},
	}
}

// NewDigestCommand создаёт команду digest. С --post рейтинг публикуется в канал.
func NewDigestCommand(_ *RootOptions) *cobra.Command {
	var channel string
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Напечатать рейтинг ненулевой кармы",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			core, err := loadCore(ctx)
			if err != nil {
				return err
			}
			defer core.Store.Close()

			if channel != "" {
				return core.KarmaHandler.ReportDigest(ctx, channel)
			}

			records, err := core.Karma.Digest(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "#\tUSER\tID\tKARMA")
			for i, r := range records {
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", i+1, core.Members.UserName(ctx, r.UserID), r.UserID, r.Points)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&channel, "post", "", "ID канала для публикации дайджеста")
	return cmd
}
