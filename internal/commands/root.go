package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/Warpmeet/internal/config"
	"github.com/BioHazard786/Warpmeet/internal/ui"
	"github.com/BioHazard786/Warpmeet/internal/version"
)

// Connection flags shared by every command.
var (
	flagServer   string
	flagInsecure bool
	flagName     string
	flagToken    string
)

var rootCmd = &cobra.Command{
	Use:     "warpmeet",
	Short:   "Peer-to-peer video meetings from the terminal",
	Long:    `Warpmeet joins browser-compatible WebRTC meetings from the command line. Every participant connects directly to every other one; the server only relays signaling and chat, and keeps a meeting history for signed-in users.`,
	Version: version.Version,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagServer, "server", "d", "", "signaling server domain (env DOMAIN)")
	pf.BoolVar(&flagInsecure, "insecure", false, "use ws/http instead of wss/https")
	pf.StringVarP(&flagName, "name", "n", "", "display name (env WARPMEET_NAME)")
	pf.StringVarP(&flagToken, "token", "t", "", "access token for meeting history (env WARPMEET_TOKEN)")

	rootCmd.AddCommand(joinCmd, historyCmd)
}

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context) int {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.PrintError(err.Error())
		return 1
	}
	return 0
}

func loadConfig(extra config.Options) (*config.Client, error) {
	extra.Domain = flagServer
	extra.Insecure = flagInsecure
	extra.Name = flagName
	extra.Token = flagToken
	return config.Load(extra)
}
