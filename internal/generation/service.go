// Package generation provides the orchestrator that turns an audio track
// plus an optional background clip into a rendered music video, driving the
// record's status state machine through exactly one attempt per call.
package generation

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/avelarde/musicvideo-api/internal/media"
	"github.com/avelarde/musicvideo-api/internal/storage"
	"github.com/avelarde/musicvideo-api/internal/style"
	"github.com/avelarde/musicvideo-api/internal/video"
)

// BackgroundPolicy controls how a missing background clip is handled.
type BackgroundPolicy string

const (
	// BackgroundFallback substitutes a solid-colour visual of the default
	// size when no background clip is attached.
	BackgroundFallback BackgroundPolicy = "fallback"
	// BackgroundRequired fails the attempt when no background clip is
	// attached.
	BackgroundRequired BackgroundPolicy = "required"
)

// CompositionPolicy controls how an unavailable composition capability is
// handled.
type CompositionPolicy string

const (
	// CompositionStrict fails the attempt when the encoder is unavailable.
	CompositionStrict CompositionPolicy = "strict"
	// CompositionPermissive writes a deterministic placeholder artifact
	// and marks the record ready when the encoder is unavailable.
	CompositionPermissive CompositionPolicy = "permissive"
)

// placeholderOutput is the artifact written under the permissive
// composition policy when no encoder is available.
var placeholderOutput = []byte("DEMO_MP4_DATA")

// placeholderDurationSec is the duration recorded for placeholder output.
const placeholderDurationSec = 5

// Options configures orchestrator behaviour.
type Options struct {
	// DefaultWidth and DefaultHeight are the output dimensions when no
	// background clip constrains them.
	DefaultWidth  int
	DefaultHeight int
	// FPS is the output frame rate.
	FPS int
	// MinDurationSec is the floor applied when the audio duration is
	// zero or unknown and no background clip is present.
	MinDurationSec int
	// FallbackColor is the solid-colour visual used when no background
	// clip is attached, in ffmpeg notation.
	FallbackColor string
	// Background selects the missing-background policy.
	Background BackgroundPolicy
	// Composition selects the encoder-unavailable policy.
	Composition CompositionPolicy
	// UploadOutputs pushes rendered artifacts to S3 after a successful
	// attempt. Requires an S3-capable store.
	UploadOutputs bool
}

// DefaultOptions returns the orchestrator defaults: 1280x720 at 24 fps,
// solid-colour fallback background, strict composition handling.
func DefaultOptions() Options {
	return Options{
		DefaultWidth:   1280,
		DefaultHeight:  720,
		FPS:            24,
		MinDurationSec: 1,
		FallbackColor:  "black",
		Background:     BackgroundFallback,
		Composition:    CompositionStrict,
	}
}

// Service runs generation attempts. Safe for concurrent use across distinct
// video IDs; concurrent attempts on the same ID are rejected with
// ErrGenerationInProgress.
type Service struct {
	videos   video.Repository
	tracks   video.TrackRepository
	composer media.Composer
	store    storage.Store
	logger   *slog.Logger
	opts     Options

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// Option is a function that configures a Service.
type Option func(*Service)

// WithOptions replaces the orchestrator options.
func WithOptions(opts Options) Option {
	return func(s *Service) {
		s.opts = opts
	}
}

// NewService creates a generation Service.
func NewService(videos video.Repository, tracks video.TrackRepository, composer media.Composer, store storage.Store, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		videos:   videos,
		tracks:   tracks,
		composer: composer,
		store:    store,
		logger:   logger,
		opts:     DefaultOptions(),
		inFlight: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// renderResult carries the artifact metadata of a successful composition.
type renderResult struct {
	outputRel   string
	sizeBytes   int64
	durationSec int
	width       int
	height      int
}

// Generate runs exactly one generation attempt for the given video record,
// synchronously. The record always leaves in a terminal state (ready or
// failed); generation failures are recorded on it rather than returned.
// The returned error is non-nil only for caller mistakes: unknown ID, an
// attempt already in flight, a record that cannot enter processing, or a
// persistence failure.
func (s *Service) Generate(ctx context.Context, videoID string) (*video.Video, error) {
	if !s.acquire(videoID) {
		return nil, ErrGenerationInProgress
	}
	defer s.release(videoID)

	v, err := s.videos.FindByID(ctx, videoID)
	if err != nil {
		return nil, err
	}

	// The processing write must be durable before any media work, so a
	// crash mid-render leaves visible evidence of an in-flight attempt.
	if err := v.BeginProcessing(); err != nil {
		return nil, fmt.Errorf("video %s cannot start generation from %s: %w", v.ID, v.Status, err)
	}
	if err := s.videos.SaveFields(ctx, v,
		video.FieldStatus, video.FieldProgress,
		video.FieldErrorMessage, video.FieldErrorCode,
	); err != nil {
		return nil, fmt.Errorf("persist processing state: %w", err)
	}
	s.logStep(ctx, v, fmt.Sprintf("Starting video generation for video %s", v.ID))

	result, runErr := s.run(ctx, v)
	if runErr != nil {
		return s.fail(ctx, v, asError(runErr))
	}
	return s.succeed(ctx, v, result)
}

// CreateForTrack creates a new pending video record for the given audio
// track. Generation is a separate call.
func (s *Service) CreateForTrack(ctx context.Context, trackID, title string) (*video.Video, error) {
	track, err := s.tracks.FindByID(ctx, trackID)
	if err != nil {
		return nil, err
	}
	if title == "" {
		title = fmt.Sprintf("AI Video for %s", track.Title)
	}

	v := video.New(track.ID, title)
	v.Status = video.StatusPending
	if err := s.videos.Save(ctx, v); err != nil {
		return nil, fmt.Errorf("save video: %w", err)
	}

	s.logger.Info("created video for track",
		slog.String("video_id", v.ID),
		slog.String("track_id", track.ID),
	)
	return v, nil
}

// run performs validation, prompt resolution and composition for one
// attempt. All domain failures come back as *Error values.
func (s *Service) run(ctx context.Context, v *video.Video) (renderResult, error) {
	track, err := s.tracks.FindByID(ctx, v.TrackID)
	if err != nil {
		return renderResult{}, wrapError(CodeAudioMissing, "Audio track is missing for this video.", err)
	}
	if track.AudioPath == "" {
		return renderResult{}, newError(CodeAudioMissing, "Audio file is missing for this video.")
	}
	if !s.store.Exists(track.AudioPath) {
		return renderResult{}, newError(CodeAudioMissing, "Audio file not found on disk.")
	}

	// Record the prompt before composition so the audit trail survives a
	// failed render.
	if v.StylePrompt == "" {
		v.StylePrompt = style.DefaultPrompt(v.Style)
	}
	v.PromptUsed = style.BuildFinalPrompt(style.PromptInput{
		StyleKey:    v.Style,
		StylePrompt: v.StylePrompt,
		Lyrics:      track.Lyrics,
		Extra:       v.ExtraPrompt,
	})
	if err := s.videos.SaveFields(ctx, v, video.FieldStylePrompt, video.FieldPromptUsed); err != nil {
		return renderResult{}, fmt.Errorf("persist prompt: %w", err)
	}

	if v.BackgroundPath != "" {
		if !s.store.Exists(v.BackgroundPath) {
			return renderResult{}, newError(CodeBackgroundMissing, "Background video file not found on disk.")
		}
	} else if s.opts.Background == BackgroundRequired {
		return renderResult{}, newError(CodeBackgroundMissing, "Background video is missing for this video.")
	}

	audioPath := s.store.Abs(track.AudioPath)
	s.logStep(ctx, v, fmt.Sprintf("Loading audio from %s", audioPath))

	if err := s.composer.Available(ctx); err != nil {
		if s.opts.Composition == CompositionPermissive {
			s.logStep(ctx, v, "Composition capability unavailable, writing placeholder output")
			return s.writePlaceholder(ctx, v)
		}
		return renderResult{}, wrapError(CodeCompositionMissing,
			"Media composition capability is not available on this host.", err)
	}

	audioDur, err := s.composer.ProbeAudio(ctx, audioPath)
	if err != nil {
		return renderResult{}, wrapError(CodeAudioMissing, "Audio file could not be read.", err)
	}

	width, height := s.opts.DefaultWidth, s.opts.DefaultHeight
	duration := audioDur
	bgPath := ""
	if v.BackgroundPath != "" {
		bgPath = s.store.Abs(v.BackgroundPath)
		s.logStep(ctx, v, fmt.Sprintf("Loading background video from %s", bgPath))

		probe, err := s.composer.ProbeVideo(ctx, bgPath)
		if err != nil {
			return renderResult{}, wrapError(CodeBackgroundMissing, "Background video could not be read.", err)
		}
		if probe.Width > 0 && probe.Height > 0 {
			width, height = probe.Width, probe.Height
		}
		duration = min(audioDur, probe.DurationSec)
		if duration <= 0 {
			return renderResult{}, newError(CodeDurationInvalid, "Unable to determine duration for composition.")
		}
	} else if duration <= 0 {
		// Audio-only composition with unknown duration falls back to the
		// configured floor instead of failing.
		duration = float64(s.opts.MinDurationSec)
	}

	scratch := s.store.ScratchPath(outputName(v.ID))
	defer func() {
		if err := s.store.CleanupScratch(context.WithoutCancel(ctx), []string{scratch}); err != nil {
			s.logger.Warn("scratch cleanup failed",
				slog.String("video_id", v.ID),
				slog.String("error", err.Error()),
			)
		}
	}()

	s.logStep(ctx, v, fmt.Sprintf("Writing composed video to %s", scratch))
	err = s.composer.Render(ctx, media.RenderSpec{
		AudioPath:      audioPath,
		BackgroundPath: bgPath,
		Width:          width,
		Height:         height,
		Color:          s.opts.FallbackColor,
		DurationSec:    duration,
		FPS:            s.opts.FPS,
		OutputPath:     scratch,
	})
	if err != nil {
		return renderResult{}, wrapError(CodeGeneric, fmt.Sprintf("Composition failed: %v", err), err)
	}

	f, err := os.Open(scratch) // #nosec G304 - scratch path is generated internally
	if err != nil {
		return renderResult{}, wrapError(CodeOutputMissing, "Generated video file was not created.", err)
	}
	outputRel := outputRelPath(v.ID)
	saveErr := s.store.SaveNamed(ctx, outputRel, f)
	_ = f.Close()
	if saveErr != nil {
		return renderResult{}, fmt.Errorf("attach output: %w", saveErr)
	}

	size, err := s.store.SizeOf(outputRel)
	if err != nil {
		return renderResult{}, wrapError(CodeOutputMissing, "Generated video file was not created.", err)
	}

	return renderResult{
		outputRel:   outputRel,
		sizeBytes:   size,
		durationSec: int(duration),
		width:       width,
		height:      height,
	}, nil
}

// writePlaceholder attaches the deterministic placeholder artifact used by
// the permissive composition policy.
func (s *Service) writePlaceholder(ctx context.Context, v *video.Video) (renderResult, error) {
	outputRel := outputRelPath(v.ID)
	if err := s.store.SaveNamed(ctx, outputRel, bytes.NewReader(placeholderOutput)); err != nil {
		return renderResult{}, fmt.Errorf("attach placeholder output: %w", err)
	}
	return renderResult{
		outputRel:   outputRel,
		sizeBytes:   int64(len(placeholderOutput)),
		durationSec: placeholderDurationSec,
		width:       s.opts.DefaultWidth,
		height:      s.opts.DefaultHeight,
	}, nil
}

// succeed writes the terminal ready state as one atomic partial update.
func (s *Service) succeed(ctx context.Context, v *video.Video, r renderResult) (*video.Video, error) {
	if s.opts.UploadOutputs {
		v.OutputURL = s.uploadOutput(ctx, v.ID, r.outputRel)
	}

	resolution := fmt.Sprintf("%dx%d", r.width, r.height)
	if err := v.MarkReady(r.outputRel, r.sizeBytes, r.durationSec, resolution, aspectRatio(r.width, r.height)); err != nil {
		return nil, fmt.Errorf("mark video ready: %w", err)
	}
	if err := s.videos.SaveFields(ctx, v,
		video.FieldStatus, video.FieldProgress,
		video.FieldOutputPath, video.FieldOutputURL,
		video.FieldFileSizeBytes, video.FieldDurationSeconds,
		video.FieldResolution, video.FieldAspectRatio,
	); err != nil {
		return nil, fmt.Errorf("persist ready state: %w", err)
	}
	s.logStep(ctx, v, "Video generation completed")

	s.logger.Info("video generation succeeded",
		slog.String("video_id", v.ID),
		slog.String("output", v.OutputPath),
		slog.Int("duration_seconds", v.DurationSeconds),
		slog.String("resolution", v.Resolution),
	)
	return v, nil
}

// fail writes the terminal failed state. The generation error itself is
// recorded on the record, not returned.
func (s *Service) fail(ctx context.Context, v *video.Video, genErr *Error) (*video.Video, error) {
	s.logStep(ctx, v, fmt.Sprintf("Generation failed: %s", genErr.Message))

	if err := v.MarkFailed(genErr.Code, genErr.Message); err != nil {
		return nil, fmt.Errorf("mark video failed: %w", err)
	}
	if err := s.videos.SaveFields(ctx, v,
		video.FieldStatus, video.FieldProgress,
		video.FieldErrorMessage, video.FieldErrorCode,
	); err != nil {
		return nil, fmt.Errorf("persist failed state: %w", err)
	}

	s.logger.Warn("video generation failed",
		slog.String("video_id", v.ID),
		slog.String("error_code", genErr.Code),
		slog.String("error", genErr.Message),
	)
	return v, nil
}

// uploadOutput pushes the artifact to S3, best effort. Delivery problems
// never fail a finished render; the local artifact remains authoritative.
func (s *Service) uploadOutput(ctx context.Context, videoID, outputRel string) string {
	f, err := os.Open(s.store.Abs(outputRel)) // #nosec G304 - path is rooted under the media root
	if err != nil {
		s.logger.Warn("open output for upload failed",
			slog.String("video_id", videoID),
			slog.String("error", err.Error()),
		)
		return ""
	}
	defer func() { _ = f.Close() }()

	url, err := s.store.UploadToS3(ctx, outputName(videoID), f)
	if err != nil {
		s.logger.Warn("output upload failed",
			slog.String("video_id", videoID),
			slog.String("error", err.Error()),
		)
		return ""
	}
	return url
}

// logStep appends a timestamped line to the record's generation log and
// echoes it to the structured logger. Log persistence problems are
// reported but never interrupt the attempt.
func (s *Service) logStep(ctx context.Context, v *video.Video, message string) {
	line := timestampLine(message)
	if err := s.videos.AppendLog(ctx, v, line); err != nil {
		s.logger.Warn("append generation log failed",
			slog.String("video_id", v.ID),
			slog.String("error", err.Error()),
		)
	}
	s.logger.Info(message, slog.String("video_id", v.ID))
}

func (s *Service) acquire(videoID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.inFlight[videoID]; ok {
		return false
	}
	s.inFlight[videoID] = struct{}{}
	return true
}

func (s *Service) release(videoID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, videoID)
}

// timestampLine prefixes a generation log line with a UTC timestamp.
func timestampLine(message string) string {
	return fmt.Sprintf("[%s] %s", time.Now().UTC().Format(time.RFC3339), message)
}

func outputName(videoID string) string {
	return fmt.Sprintf("generated_%s.mp4", videoID)
}

func outputRelPath(videoID string) string {
	return "generated_videos/" + outputName(videoID)
}

// aspectRatio reduces width:height by their greatest common divisor,
// so 1280x720 reports as 16:9.
func aspectRatio(width, height int) string {
	d := gcd(width, height)
	if d == 0 {
		return fmt.Sprintf("%d:%d", width, height)
	}
	return fmt.Sprintf("%d:%d", width/d, height/d)
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
