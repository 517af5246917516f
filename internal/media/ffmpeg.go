package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Static errors for media operations.
var (
	// ErrInvalidDimensions is returned when the provided dimensions are not positive.
	ErrInvalidDimensions = errors.New("invalid dimensions: width and height must be positive")
	// ErrInvalidDuration is returned when duration is not positive.
	ErrInvalidDuration = errors.New("invalid duration: must be positive")
	// ErrAudioPathRequired is returned when a render spec has no audio input.
	ErrAudioPathRequired = errors.New("audio path is required")
	// ErrOutputPathRequired is returned when a render spec has no output path.
	ErrOutputPathRequired = errors.New("output path is required")
	// ErrFFprobeExecution is returned when the ffprobe command fails.
	ErrFFprobeExecution = errors.New("ffprobe execution failed")
	// ErrComposerUnavailable is returned when the encoder binary cannot be run.
	ErrComposerUnavailable = errors.New("encoder is not available")
)

// Compile-time check that FFmpegComposer implements Composer.
var _ Composer = (*FFmpegComposer)(nil)

// FFmpegComposer implements Composer using the ffmpeg and ffprobe CLIs.
type FFmpegComposer struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
	// ffprobePath is the path to the ffprobe binary. Defaults to "ffprobe".
	ffprobePath string
}

// NewFFmpegComposer creates a new FFmpegComposer.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH);
// ffprobe is resolved the same way.
func NewFFmpegComposer(ffmpegPath, ffprobePath string) *FFmpegComposer {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpegComposer{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}
}

// Available reports whether ffmpeg can be executed on this host.
func (c *FFmpegComposer) Available(ctx context.Context) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, c.ffmpegPath, "-version")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %w", ErrComposerUnavailable, err)
	}
	return nil
}

// ProbeAudio returns the duration in seconds of an audio file.
func (c *FFmpegComposer) ProbeAudio(ctx context.Context, path string) (float64, error) {
	out, err := c.runFFprobe(ctx,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, err
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		return 0, fmt.Errorf("parse audio duration %q: %w", out, err)
	}
	return duration, nil
}

// ProbeVideo returns duration and dimensions of a video file.
func (c *FFmpegComposer) ProbeVideo(ctx context.Context, path string) (Probe, error) {
	out, err := c.runFFprobe(ctx,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height:format=duration",
		"-of", "default=noprint_wrappers=1",
		path,
	)
	if err != nil {
		return Probe{}, err
	}

	var probe Probe
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		switch key {
		case "width":
			probe.Width, _ = strconv.Atoi(value)
		case "height":
			probe.Height, _ = strconv.Atoi(value)
		case "duration":
			probe.DurationSec, _ = strconv.ParseFloat(value, 64)
		}
	}
	return probe, nil
}

// Render composes the spec into a video file.
// With a background clip, the clip's visual stream is trimmed to the target
// duration and the audio track replaces its audio. Without one, a
// solid-colour source of the requested size is generated instead.
func (c *FFmpegComposer) Render(ctx context.Context, spec RenderSpec) error {
	if spec.AudioPath == "" {
		return ErrAudioPathRequired
	}
	if spec.OutputPath == "" {
		return ErrOutputPathRequired
	}
	if spec.DurationSec <= 0 {
		return fmt.Errorf("%w: %f", ErrInvalidDuration, spec.DurationSec)
	}

	fps := spec.FPS
	if fps <= 0 {
		fps = 24
	}

	var args []string
	if spec.BackgroundPath != "" {
		args = []string{
			"-y",
			"-i", spec.BackgroundPath,
			"-i", spec.AudioPath,
			"-map", "0:v:0",
			"-map", "1:a:0",
		}
	} else {
		if spec.Width <= 0 || spec.Height <= 0 {
			return fmt.Errorf("%w: width=%d, height=%d", ErrInvalidDimensions, spec.Width, spec.Height)
		}
		color := spec.Color
		if color == "" {
			color = "black"
		}
		source := fmt.Sprintf("color=c=%s:s=%dx%d:d=%.3f", color, spec.Width, spec.Height, spec.DurationSec)
		args = []string{
			"-y",
			"-f", "lavfi",
			"-i", source,
			"-i", spec.AudioPath,
		}
	}

	args = append(args,
		"-t", fmt.Sprintf("%.3f", spec.DurationSec),
		"-r", strconv.Itoa(fps),
		"-c:v", "libx264",
		"-preset", "fast",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "128k",
		"-shortest",
		spec.OutputPath,
	)

	return c.runFFmpeg(ctx, args)
}

// runFFmpeg executes ffmpeg with the given arguments and returns an error
// containing stderr output if the command fails.
func (c *FFmpegComposer) runFFmpeg(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, c.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}
	return nil
}

// runFFprobe executes ffprobe and returns its stdout.
func (c *FFmpegComposer) runFFprobe(ctx context.Context, args ...string) (string, error) {
	// #nosec G204 - ffprobePath is set by the application, not user input
	cmd := exec.CommandContext(ctx, c.ffprobePath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return "", fmt.Errorf("%w: %w, stderr: %s", ErrFFprobeExecution, err, stderr.String())
	}
	return stdout.String(), nil
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}
