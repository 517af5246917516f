// Package media provides the audio/video composition capability used to
// render music videos. The Composer port treats the encoder as a black box:
// probe media for duration and dimensions, then render a composed file.
package media

import "context"

// Probe holds basic technical metadata for a media file.
type Probe struct {
	// DurationSec is the media duration in seconds, zero when unknown.
	DurationSec float64
	// Width is the frame width in pixels, zero for audio-only media.
	Width int
	// Height is the frame height in pixels, zero for audio-only media.
	Height int
}

// RenderSpec describes one composition: an audio track overlaid onto either
// a background clip or a generated solid-colour visual, encoded to a file.
type RenderSpec struct {
	// AudioPath is the required audio input.
	AudioPath string
	// BackgroundPath is the optional background clip. Empty selects the
	// solid-colour fallback visual.
	BackgroundPath string
	// Width and Height are the output dimensions for the fallback visual.
	// Ignored when BackgroundPath is set.
	Width  int
	Height int
	// Color is the fallback visual colour in ffmpeg notation, e.g. "black"
	// or "0x142850".
	Color string
	// DurationSec is the target output duration. Must be positive.
	DurationSec float64
	// FPS is the output frame rate.
	FPS int
	// OutputPath is where the rendered file is written.
	OutputPath string
}

// Composer defines the interface for probing and composing media.
type Composer interface {
	// Available reports whether the underlying encoder can be invoked.
	// A non-nil error means composition is unavailable on this host.
	Available(ctx context.Context) error

	// ProbeAudio returns the duration of an audio file in seconds.
	ProbeAudio(ctx context.Context, path string) (float64, error)

	// ProbeVideo returns duration and dimensions of a video file.
	ProbeVideo(ctx context.Context, path string) (Probe, error)

	// Render composes the spec's inputs into a video file at OutputPath,
	// trimming both streams to DurationSec and encoding with
	// libx264/aac. The output file exists only if Render returns nil.
	Render(ctx context.Context, spec RenderSpec) error
}
