package commands

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/Warpmeet/internal/call"
	"github.com/BioHazard786/Warpmeet/internal/config"
	"github.com/BioHazard786/Warpmeet/internal/ui"
)

const historyTimeout = 15 * time.Second

var errNoToken = errors.New("meeting history needs an access token (--token or WARPMEET_TOKEN)")

var historyCmd = &cobra.Command{
	Use:     "history",
	Aliases: []string{"h"},
	Short:   "List the meetings you joined",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(config.Options{})
		if err != nil {
			return err
		}
		if cfg.Token == "" {
			return errNoToken
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), historyTimeout)
		defer cancel()

		sp := ui.RunConnectionSpinner("Fetching meeting history...")
		h := &call.History{BaseURL: cfg.HTTPBase(), Token: cfg.Token}
		meetings, err := h.List(ctx)
		sp.Stop()
		if err != nil {
			return err
		}

		rows := make([]ui.MeetingRow, len(meetings))
		for i, m := range meetings {
			rows[i] = ui.MeetingRow{Code: m.MeetingCode, When: m.CreatedAt}
		}
		ui.RenderHistory(cmd.OutOrStdout(), rows)
		return nil
	},
}
