package generation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/avelarde/musicvideo-api/internal/provider"
	"github.com/avelarde/musicvideo-api/internal/storage"
	"github.com/avelarde/musicvideo-api/internal/style"
	"github.com/avelarde/musicvideo-api/internal/video"
)

// AIService runs generation attempts through an external AI provider
// instead of the local composer. It drives the record through the same
// status state machine as Service.
type AIService struct {
	videos video.Repository
	tracks video.TrackRepository
	client provider.Client
	store  storage.Store
	logger *slog.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewAIService creates an AIService.
func NewAIService(videos video.Repository, tracks video.TrackRepository, client provider.Client, store storage.Store, logger *slog.Logger) *AIService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AIService{
		videos:   videos,
		tracks:   tracks,
		client:   client,
		store:    store,
		logger:   logger,
		inFlight: make(map[string]struct{}),
	}
}

// Generate submits the record to the AI provider and attaches the
// downloaded artifact, synchronously. The record always leaves in a
// terminal state; provider failures are recorded on it rather than
// returned, matching Service.Generate.
func (s *AIService) Generate(ctx context.Context, videoID string) (*video.Video, error) {
	if !s.acquire(videoID) {
		return nil, ErrGenerationInProgress
	}
	defer s.release(videoID)

	v, err := s.videos.FindByID(ctx, videoID)
	if err != nil {
		return nil, err
	}

	if err := v.BeginProcessing(); err != nil {
		return nil, fmt.Errorf("video %s cannot start generation from %s: %w", v.ID, v.Status, err)
	}
	if err := s.videos.SaveFields(ctx, v,
		video.FieldStatus, video.FieldProgress,
		video.FieldErrorMessage, video.FieldErrorCode,
	); err != nil {
		return nil, fmt.Errorf("persist processing state: %w", err)
	}
	s.logStep(ctx, v, fmt.Sprintf("Submitting video %s to AI provider", v.ID))

	result, runErr := s.run(ctx, v)
	if runErr != nil {
		return s.fail(ctx, v, asError(runErr))
	}
	return s.succeed(ctx, v, result)
}

func (s *AIService) run(ctx context.Context, v *video.Video) (renderResult, error) {
	track, err := s.tracks.FindByID(ctx, v.TrackID)
	if err != nil {
		return renderResult{}, wrapError(CodeAudioMissing, "Audio track is missing for this video.", err)
	}
	if track.AudioPath == "" || !s.store.Exists(track.AudioPath) {
		return renderResult{}, newError(CodeAudioMissing, "Audio file not found on disk.")
	}

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

	req := provider.GenerateRequest{
		Prompt:    v.PromptUsed,
		AudioPath: s.store.Abs(track.AudioPath),
	}
	if v.BackgroundPath != "" {
		if !s.store.Exists(v.BackgroundPath) {
			return renderResult{}, newError(CodeBackgroundMissing, "Background video file not found on disk.")
		}
		req.BackgroundVideoPath = s.store.Abs(v.BackgroundPath)
	}

	result, err := s.client.Generate(ctx, req)
	if err != nil {
		return renderResult{}, wrapError(CodeGeneric, fmt.Sprintf("AI provider request failed: %v", err), err)
	}
	s.logStep(ctx, v, fmt.Sprintf("Provider returned video at %s", result.VideoURL))

	body, err := s.client.Download(ctx, result.VideoURL)
	if err != nil {
		return renderResult{}, wrapError(CodeOutputMissing, "Generated video could not be downloaded.", err)
	}
	defer func() { _ = body.Close() }()

	outputRel := aiOutputRelPath(v.ID)
	if err := s.store.SaveNamed(ctx, outputRel, body); err != nil {
		return renderResult{}, fmt.Errorf("attach output: %w", err)
	}
	size, err := s.store.SizeOf(outputRel)
	if err != nil {
		return renderResult{}, wrapError(CodeOutputMissing, "Generated video file was not created.", err)
	}

	return renderResult{outputRel: outputRel, sizeBytes: size}, nil
}

func (s *AIService) succeed(ctx context.Context, v *video.Video, r renderResult) (*video.Video, error) {
	// Duration and dimensions are unknown for provider output; the
	// record carries only what the provider round-trip establishes.
	if err := v.MarkReady(r.outputRel, r.sizeBytes, r.durationSec, "", ""); err != nil {
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

	s.logger.Info("provider generation succeeded",
		slog.String("video_id", v.ID),
		slog.String("output", v.OutputPath),
	)
	return v, nil
}

func (s *AIService) fail(ctx context.Context, v *video.Video, genErr *Error) (*video.Video, error) {
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

	s.logger.Warn("provider generation failed",
		slog.String("video_id", v.ID),
		slog.String("error_code", genErr.Code),
		slog.String("error", genErr.Message),
	)
	return v, nil
}

func (s *AIService) logStep(ctx context.Context, v *video.Video, message string) {
	line := timestampLine(message)
	if err := s.videos.AppendLog(ctx, v, line); err != nil {
		s.logger.Warn("append generation log failed",
			slog.String("video_id", v.ID),
			slog.String("error", err.Error()),
		)
	}
	s.logger.Info(message, slog.String("video_id", v.ID))
}

func (s *AIService) acquire(videoID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.inFlight[videoID]; ok {
		return false
	}
	s.inFlight[videoID] = struct{}{}
	return true
}

func (s *AIService) release(videoID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, videoID)
}

func aiOutputRelPath(videoID string) string {
	return fmt.Sprintf("ai_videos/ai_video_%s.mp4", videoID)
}
