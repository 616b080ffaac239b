package commands

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BioHazard786/Warpmeet/internal/config"
	"github.com/BioHazard786/Warpmeet/internal/identity"
	"github.com/BioHazard786/Warpmeet/internal/metrics"
	"github.com/BioHazard786/Warpmeet/internal/relay"
	"github.com/BioHazard786/Warpmeet/internal/server"
	"github.com/BioHazard786/Warpmeet/internal/store"
)

type oneToken struct{}

func (oneToken) Resolve(_ context.Context, token string) (identity.Identity, error) {
	if token == "tok-ada" {
		return identity.Identity{ID: "u-ada", Name: "Ada"}, nil
	}
	return identity.Identity{}, identity.ErrUnauthenticated
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	flagServer, flagInsecure, flagName, flagToken = "", false, "", ""
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestHistoryCommand(t *testing.T) {
	gin.SetMode(gin.TestMode)
	st := store.NewMemory()
	m := metrics.New()
	hub := relay.NewHub(st, zap.NewNop(), m)
	srv := httptest.NewServer(server.New(&config.Server{SendBuffer: 8}, hub, st, oneToken{}, m, zap.NewNop()).Router())
	defer srv.Close()
	domain := strings.TrimPrefix(srv.URL, "http://")

	out, err := run(t, "history", "--insecure", "--server", domain, "--token", "tok-ada")
	require.NoError(t, err)
	assert.Contains(t, out, "No meetings yet")

	require.NoError(t, st.AppendMeeting(context.Background(), store.Meeting{ID: "1", User: "u-ada", MeetingCode: "standup"}))
	out, err = run(t, "history", "--insecure", "--server", domain, "--token", "tok-ada")
	require.NoError(t, err)
	assert.Contains(t, out, "standup")

	_, err = run(t, "history", "--insecure", "--server", domain, "--token", "wrong")
	assert.Error(t, err)
}

func TestHistoryNeedsToken(t *testing.T) {
	t.Setenv("WARPMEET_TOKEN", "")
	_, err := run(t, "history", "--server", "example.com")
	assert.ErrorIs(t, err, errNoToken)
}

func TestJoinTakesOneRoom(t *testing.T) {
	_, err := run(t, "join", "a", "b")
	assert.Error(t, err)
}
