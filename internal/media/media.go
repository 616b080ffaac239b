// Package media owns the local tracks of a call: microphone, camera and
// screen share. Sources are IVF (VP8) and Ogg (Opus) files; without a file a
// microphone sends Opus silence and a video source sends nothing.
package media

import (
	"context"
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/BioHazard786/Warpmeet/internal/peer"
)

const streamID = "warpmeet"

// Options selects the files fed into each source.
type Options struct {
	AudioFile  string
	CameraFile string
	ScreenFile string
}

// Local is the set of local media. Toggles are safe for concurrent use.
type Local struct {
	opts Options
	log  *zap.Logger

	audio  *webrtc.TrackLocalStaticSample
	camera *webrtc.TrackLocalStaticSample
	screen *webrtc.TrackLocalStaticSample

	mu      sync.Mutex
	running map[*webrtc.TrackLocalStaticSample]context.CancelFunc
	wg      sync.WaitGroup
	stopped bool
}

var ErrStopped = errors.New("media stopped")

// New creates the tracks. Nothing is sent until a source is switched on.
func New(opts Options, log *zap.Logger) (*Local, error) {
	if log == nil {
		log = zap.NewNop()
	}
	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio", streamID)
	if err != nil {
		return nil, err
	}
	camera, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
		"camera", streamID)
	if err != nil {
		return nil, err
	}
	screen, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
		"screen", streamID)
	if err != nil {
		return nil, err
	}
	return &Local{
		opts:    opts,
		log:     log,
		audio:   audio,
		camera:  camera,
		screen:  screen,
		running: make(map[*webrtc.TrackLocalStaticSample]context.CancelFunc),
	}, nil
}

// State reports which sources are on.
type State struct {
	Mic    bool
	Camera bool
	Screen bool
}

func (l *Local) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return State{
		Mic:    l.running[l.audio] != nil,
		Camera: l.running[l.camera] != nil,
		Screen: l.running[l.screen] != nil,
	}
}

// Tracks is the set to send: the screen replaces the camera while shared.
func (l *Local) Tracks() peer.Tracks {
	s := l.State()
	var t peer.Tracks
	if s.Mic {
		t.Audio = l.audio
	}
	switch {
	case s.Screen:
		t.Video = l.screen
	case s.Camera:
		t.Video = l.camera
	}
	return t
}

func (l *Local) ToggleMic() (bool, error) {
	return l.toggle(l.audio, func(ctx context.Context) error {
		if l.opts.AudioFile == "" {
			return silence(ctx, l.audio)
		}
		return playOgg(ctx, l.opts.AudioFile, l.audio)
	})
}

func (l *Local) ToggleCamera() (bool, error) {
	return l.toggle(l.camera, l.videoSource(l.opts.CameraFile, l.camera))
}

func (l *Local) ToggleScreen() (bool, error) {
	return l.toggle(l.screen, l.videoSource(l.opts.ScreenFile, l.screen))
}

func (l *Local) videoSource(path string, track *webrtc.TrackLocalStaticSample) func(context.Context) error {
	return func(ctx context.Context) error {
		if path == "" {
			<-ctx.Done()
			return nil
		}
		return playIVF(ctx, path, track)
	}
}

// toggle starts or stops the source feeding track and reports whether it is now on.
func (l *Local) toggle(track *webrtc.TrackLocalStaticSample, source func(context.Context) error) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return false, ErrStopped
	}
	if cancel, on := l.running[track]; on {
		cancel()
		delete(l.running, track)
		return false, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	l.running[track] = cancel
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		if err := source(ctx); err != nil && ctx.Err() == nil {
			l.log.Warn("media source stopped", zap.String("track", track.ID()), zap.Error(err))
		}
	}()
	return true, nil
}

// Stop switches every source off and waits for the feeders to exit.
func (l *Local) Stop() {
	l.mu.Lock()
	l.stopped = true
	for track, cancel := range l.running {
		cancel()
		delete(l.running, track)
	}
	l.mu.Unlock()
	l.wg.Wait()
}
