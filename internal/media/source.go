package media

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/ivfreader"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
)

const opusFrame = 20 * time.Millisecond

// opusSilence is a single 20 ms Opus frame of digital silence.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

func silence(ctx context.Context, track *webrtc.TrackLocalStaticSample) error {
	ticker := time.NewTicker(opusFrame)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := track.WriteSample(media.Sample{Data: opusSilence, Duration: opusFrame}); err != nil {
				return err
			}
		}
	}
}

// playIVF loops a VP8 IVF file into track at its native frame rate.
func playIVF(ctx context.Context, path string, track *webrtc.TrackLocalStaticSample) error {
	for {
		if err := playIVFOnce(ctx, path, track); err != nil || ctx.Err() != nil {
			return err
		}
	}
}

func playIVFOnce(ctx context.Context, path string, track *webrtc.TrackLocalStaticSample) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	reader, header, err := ivfreader.NewWith(f)
	if err != nil {
		return err
	}
	if header.TimebaseDenominator == 0 {
		return errors.New("ivf: zero timebase")
	}
	frame := time.Duration(float64(time.Second) * float64(header.TimebaseNumerator) / float64(header.TimebaseDenominator))
	if frame <= 0 {
		frame = time.Second / 30
	}

	ticker := time.NewTicker(frame)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		data, _, err := reader.ParseNextFrame()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := track.WriteSample(media.Sample{Data: data, Duration: frame}); err != nil {
			return err
		}
	}
}

// playOgg loops an Opus Ogg file into track, paced by granule positions.
func playOgg(ctx context.Context, path string, track *webrtc.TrackLocalStaticSample) error {
	for {
		if err := playOggOnce(ctx, path, track); err != nil || ctx.Err() != nil {
			return err
		}
	}
}

// sampleWriter is the part of a local track the Ogg player writes to.
type sampleWriter interface {
	WriteSample(media.Sample) error
}

func playOggOnce(ctx context.Context, path string, track sampleWriter) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	reader, _, err := oggreader.NewWith(f)
	if err != nil {
		return err
	}

	var lastGranule uint64
	ticker := time.NewTicker(opusFrame)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		page, header, err := reader.ParseNextPage()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if bytes.HasPrefix(page, opusTags) {
			continue
		}
		var duration time.Duration
		duration, lastGranule = pageDuration(header.GranulePosition, lastGranule)
		if duration <= 0 {
			duration = opusFrame
		}
		if err := track.WriteSample(media.Sample{Data: page, Duration: duration}); err != nil {
			return err
		}
	}
}

// opusTags starts the comment header page that follows OpusHead.
var opusTags = []byte("OpusTags")

// pageDuration turns an Ogg page's granule position, which counts 48 kHz
// samples, into the audio it adds after last. It returns the position to
// measure the next page from. A page that completes no packet carries -1
// and a position going backwards restarts the count; both add nothing.
func pageDuration(granule, last uint64) (time.Duration, uint64) {
	switch {
	case granule == ^uint64(0):
		return 0, last
	case granule < last:
		return 0, granule
	}
	samples := granule - last
	return time.Duration(float64(samples) / 48000 * float64(time.Second)), granule
}
