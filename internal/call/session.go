// Package call runs one participant's side of a meeting: it keeps the
// signaling connection up, feeds relay events into the peer orchestrator and
// mirrors everything into the call view.
package call

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/BioHazard786/Warpmeet/internal/config"
	"github.com/BioHazard786/Warpmeet/internal/media"
	"github.com/BioHazard786/Warpmeet/internal/peer"
	"github.com/BioHazard786/Warpmeet/internal/protocol"
	"github.com/BioHazard786/Warpmeet/internal/reconnect"
	"github.com/BioHazard786/Warpmeet/internal/signaling"
	"github.com/BioHazard786/Warpmeet/internal/ui"
)

const recordTimeout = 10 * time.Second

// View receives the messages that drive the call screen.
type View interface {
	Send(msg tea.Msg)
}

// Options configures a Session.
type Options struct {
	Config *config.Client
	Room   string
	Media  media.Options
	Log    *zap.Logger

	// Factory opens peer connections; nil uses pion with Config's ICE servers.
	Factory peer.Factory
	// Reconnect overrides the default retry manager.
	Reconnect *reconnect.Manager
}

// Session is a joined (or joining) call. It implements ui.Controls.
type Session struct {
	cfg     *config.Client
	room    string
	log     *zap.Logger
	media   *media.Local
	orch    *peer.Orchestrator
	mgr     *reconnect.Manager
	history *History

	view View

	mu     sync.Mutex
	client *signaling.Client
	self   string

	recorded   bool
	hungUp     chan struct{}
	hangupOnce sync.Once
}

var _ ui.Controls = (*Session)(nil)

func New(opts Options) (*Session, error) {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	local, err := media.New(opts.Media, opts.Log.Named("media"))
	if err != nil {
		return nil, newError("prepare media", err, "")
	}
	factory := opts.Factory
	if factory == nil {
		factory = peer.NewPionFactory(peer.Configuration(opts.Config))
	}
	mgr := opts.Reconnect
	if mgr == nil {
		mgr = &reconnect.Manager{}
	}

	s := &Session{
		cfg:    opts.Config,
		room:   opts.Room,
		log:    opts.Log,
		media:  local,
		mgr:    mgr,
		hungUp: make(chan struct{}),
	}
	if opts.Config.Token != "" {
		s.history = &History{BaseURL: opts.Config.HTTPBase(), Token: opts.Config.Token}
	}
	s.orch = peer.New(factory, s, opts.Log.Named("peer"))
	return s, nil
}

// Run keeps the call going until the user hangs up, ctx is cancelled, or
// the server cannot be reached any more. The view is told why it ended.
func (s *Session) Run(ctx context.Context, view View) error {
	s.view = view
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	orchDone := make(chan struct{})
	go func() {
		defer close(orchDone)
		s.orch.Run(ctx)
	}()
	forwardDone := make(chan struct{})
	go func() {
		defer close(forwardDone)
		s.forward()
	}()

	go func() {
		select {
		case <-s.hungUp:
			cancel()
		case <-ctx.Done():
		}
	}()

	if s.mgr.OnRetry == nil {
		s.mgr.OnRetry = s.retrying
	}
	err := s.mgr.Run(ctx, s.dial, s.serve)
	if ctx.Err() != nil {
		err = nil
	}

	s.media.Stop()
	cancel()
	<-orchDone
	<-forwardDone
	s.closeClient()

	s.view.Send(ui.EndMsg{Err: err})
	return err
}

// Signal sends through whichever connection is current.
func (s *Session) Signal(target string, env peer.Envelope) error {
	c := s.current()
	if c == nil {
		return ErrNotConnected
	}
	return c.Signal(target, env)
}

func (s *Session) ToggleMic() (bool, error) {
	return s.toggled(s.media.ToggleMic())
}

func (s *Session) ToggleCamera() (bool, error) {
	return s.toggled(s.media.ToggleCamera())
}

func (s *Session) ToggleScreen() (bool, error) {
	return s.toggled(s.media.ToggleScreen())
}

func (s *Session) toggled(on bool, err error) (bool, error) {
	if err != nil {
		return on, err
	}
	if err := s.orch.SetTracks(s.media.Tracks()); err != nil {
		return on, err
	}
	return on, nil
}

func (s *Session) SendChat(body string) error {
	c := s.current()
	if c == nil {
		return ErrNotConnected
	}
	return c.Chat(body, s.cfg.Name)
}

// Hangup stops local media, closes every peer link and only then the
// signaling connection. It is safe to call more than once.
func (s *Session) Hangup() {
	s.hangupOnce.Do(func() {
		s.media.Stop()
		s.orch.Hangup()
		close(s.hungUp)
		s.closeClient()
	})
}

// Self is the identity assigned by the server for the current connection.
func (s *Session) Self() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.self
}

func (s *Session) dial(ctx context.Context) error {
	c, err := signaling.Dial(ctx, s.cfg.WebSocketURL(), s.cfg.Name, s.cfg.Token, s.log.Named("signaling"))
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.client = c
	s.mu.Unlock()
	return nil
}

// serve handles one connection. It returns nil when the call is over and
// ErrTransportLost when the connection should be redialled.
func (s *Session) serve(ctx context.Context) error {
	c := s.current()
	defer c.Close()

	h := signaling.NewHandler(c)
	go h.Start()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.hungUp:
			return nil
		case ev, ok := <-h.Events():
			if !ok {
				return s.lost()
			}
			if err := s.dispatch(c, ev); err != nil {
				return err
			}
		case <-c.Lost():
			return s.lost()
		}
	}
}

func (s *Session) dispatch(c *signaling.Client, ev any) error {
	switch ev := ev.(type) {
	case protocol.Connected:
		s.mu.Lock()
		s.self = ev.ID
		s.mu.Unlock()
		if err := s.orch.Reset(ev.ID); err != nil {
			return err
		}
		if err := c.JoinCall(s.room); err != nil {
			return s.lost()
		}
		s.view.Send(ui.SelfMsg{ID: ev.ID, Room: s.room})
		s.log.Info("connected", zap.String("session", ev.ID))

	case protocol.MemberJoined:
		if ev.Joiner == s.Self() {
			s.joined()
		}
		return s.orch.HandleMembers(ev.Members)

	case protocol.MemberLeft:
		return s.orch.HandleLeft(ev.Departed)

	case protocol.SignalIn:
		return s.orch.HandleSignal(ev.Source, ev.Data)

	case protocol.ChatMessage:
		s.view.Send(chatMsg(ev))

	case protocol.ChatHistory:
		msgs := make(ui.HistoryMsg, len(ev.Messages))
		for i, m := range ev.Messages {
			msgs[i] = chatMsg(m)
		}
		s.view.Send(msgs)

	case protocol.Error:
		if ev.Code == protocol.CodeInvalidRoom {
			return backoff.Permanent(newError("join call", ErrRoomRejected, ev.Message))
		}
		s.log.Warn("server error", zap.String("code", ev.Code), zap.String("message", ev.Message))
		s.view.Send(ui.StatusMsg(ev.Message))
	}
	return nil
}

// joined records the meeting once per session for signed-in users.
func (s *Session) joined() {
	if s.recorded || s.history == nil {
		return
	}
	s.recorded = true
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if _, err := s.history.Add(ctx, s.room); err != nil {
			s.log.Warn("meeting not recorded", zap.Error(err))
		}
	}()
}

// lost drops every link, since the server forgets this session, and asks
// for a redial unless the user is leaving.
func (s *Session) lost() error {
	select {
	case <-s.hungUp:
		return nil
	default:
	}
	s.orch.Reset("")
	s.view.Send(ui.StatusMsg("Connection lost, reconnecting..."))
	s.log.Warn("signaling connection lost")
	return ErrTransportLost
}

func (s *Session) retrying(err error, wait time.Duration) {
	s.log.Warn("reconnecting", zap.Error(err), zap.Duration("wait", wait))
	if wait > 0 {
		s.view.Send(ui.StatusMsg(fmt.Sprintf("Reconnecting in %s...", wait)))
	}
}

// forward mirrors orchestrator events into the view until Run stops it.
func (s *Session) forward() {
	for ev := range s.orch.Events() {
		msg := ui.PeerMsg{ID: ev.Peer}
		switch ev.Kind {
		case peer.PeerJoined, peer.PeerStateChanged:
			msg.State = ev.State.String()
		case peer.PeerLeft:
			msg.Left = true
		case peer.RemoteTrack:
			msg.Media = ev.Track.Kind
		}
		s.view.Send(msg)
	}
}

func (s *Session) current() *signaling.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client
}

func (s *Session) closeClient() {
	if c := s.current(); c != nil {
		c.Close()
	}
}

func chatMsg(m protocol.ChatMessage) ui.ChatMsg {
	return ui.ChatMsg{Session: m.Session, Sender: m.Sender, Body: m.Body, Time: m.Timestamp}
}
