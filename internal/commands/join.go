package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BioHazard786/Warpmeet/internal/call"
	"github.com/BioHazard786/Warpmeet/internal/config"
	"github.com/BioHazard786/Warpmeet/internal/media"
	"github.com/BioHazard786/Warpmeet/internal/netutil"
	"github.com/BioHazard786/Warpmeet/internal/roomname"
	"github.com/BioHazard786/Warpmeet/internal/ui"
)

var (
	flagSTUN     string
	flagTURN     string
	flagTURNUser string
	flagTURNPass string
	flagAudio    string
	flagCamera   string
	flagScreen   string
	flagRelay    bool
)

var errRelayWithoutTURN = errors.New("cannot force relay mode without a TURN server configured")

var joinCmd = &cobra.Command{
	Use:     "join [room]",
	Aliases: []string{"j"},
	Short:   "Join a meeting room",
	Long: `Join a meeting room and connect to everyone in it.

Without a room argument a new room with a random name is created. Room
names keep only letters, digits and hyphens, so "Team Sync!" and
"TeamSync" are the same room. Media sources are files: Ogg/Opus for the
microphone and IVF/VP8 for camera and screen. Without a file the
microphone sends silence.

Examples:
  warpmeet join
  warpmeet join standup
  warpmeet join --name Ada --camera cam.ivf standup
  warpmeet join --insecure --server localhost:8080 demo`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		room := roomname.Generate()
		if len(args) == 1 {
			room = args[0]
		}
		return joinCall(cmd.Context(), room)
	},
}

func init() {
	f := joinCmd.Flags()
	f.StringVar(&flagSTUN, "stun", "", "STUN server (env STUN_SERVER)")
	f.StringVar(&flagTURN, "turn", "", "TURN server host (env TURN_SERVER)")
	f.StringVar(&flagTURNUser, "turn-user", "", "TURN username (env TURN_USERNAME)")
	f.StringVar(&flagTURNPass, "turn-pass", "", "TURN password (env TURN_PASSWORD)")
	f.BoolVar(&flagRelay, "relay", false, "send media only through the TURN server")
	f.StringVar(&flagAudio, "audio", "", "Ogg/Opus file played as the microphone")
	f.StringVar(&flagCamera, "camera", "", "IVF/VP8 file played as the camera")
	f.StringVar(&flagScreen, "screen", "", "IVF/VP8 file played as the screen share")
}

func joinCall(ctx context.Context, room string) error {
	cfg, err := loadConfig(config.Options{
		STUNServer: flagSTUN,
		TURNServer: flagTURN,
		TURNUser:   flagTURNUser,
		TURNPass:   flagTURNPass,
		ForceRelay: flagRelay,
	})
	if err != nil {
		return err
	}
	if cfg.ForceRelay && cfg.GetTURNServers() == nil {
		return errRelayWithoutTURN
	}
	if !cfg.ForceRelay && cfg.GetTURNServers() != nil && netutil.ShouldForceRelay() {
		ui.PrintInfo("VPN or CGNAT detected, relaying media through TURN")
		cfg.ForceRelay = true
	}
	if cfg.Insecure {
		ui.PrintWarning(fmt.Sprintf("Using an unencrypted connection to %s", cfg.Domain))
	}

	session, err := call.New(call.Options{
		Config: cfg,
		Room:   room,
		Media:  media.Options{AudioFile: flagAudio, CameraFile: flagCamera, ScreenFile: flagScreen},
		Log:    zap.L().Named("call"),
	})
	if err != nil {
		return err
	}

	ui.RenderRoomInfo(os.Stdout, room, cfg.RoomLink(room), cfg.Name)
	view := ui.NewCallView(room, cfg.Name, session)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- session.Run(ctx, view) }()

	viewErr := view.Run()
	session.Hangup()
	cancel()
	runErr := <-done

	if viewErr != nil {
		return viewErr
	}
	if runErr != nil {
		return runErr
	}
	ui.PrintSuccess("Left the call")
	return nil
}
