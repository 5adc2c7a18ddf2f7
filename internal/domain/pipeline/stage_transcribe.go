// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/ManuGH/sessionforge/internal/domain/model"
	"github.com/ManuGH/sessionforge/internal/log"
	"github.com/google/uuid"
)

// runTranscribeStage loads every committed audio media row for the
// session, normalizes each to a WAV container, and transcribes it. Per-file
// failures are logged and counted; the stage itself always succeeds so
// stages B and C still run.
func (o *Orchestrator) runTranscribeStage(ctx context.Context, taskCtx stageContext) error {
	logger := log.WithComponent("pipeline").With().Str("session_id", taskCtx.SessionID).Str("job_id", taskCtx.JobID).Logger()

	files, err := o.media.ListBySessionAndKind(ctx, taskCtx.SessionID, model.MediaAudio, model.MediaUploaded)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return nil
	}

	scratchDir, err := os.MkdirTemp("", "transcribe-"+taskCtx.SessionID)
	if err != nil {
		return err
	}
	defer os.RemoveAll(scratchDir)

	var newBlocks []model.Block
	var failures int

	for _, f := range files {
		block, err := o.transcribeOne(ctx, scratchDir, taskCtx, f)
		if err != nil {
			failures++
			logger.Warn().Err(err).Str("media_id", f.ID).Msg("transcription failed for file, skipping")
			continue
		}
		newBlocks = append(newBlocks, *block)
	}

	if failures > 0 {
		logger.Warn().Int("failures", failures).Int("total", len(files)).Msg("stage A completed with per-file failures")
	}

	if len(newBlocks) == 0 {
		return nil
	}
	return o.sessions.AppendBlocks(ctx, newBlocks)
}

func (o *Orchestrator) transcribeOne(ctx context.Context, scratchDir string, taskCtx stageContext, f model.MediaFile) (*model.Block, error) {
	rawPath := filepath.Join(scratchDir, f.ID+".raw")
	if err := o.gateway.DownloadTo(ctx, f.ObjectKey, rawPath); err != nil {
		return nil, err
	}

	wavPath := filepath.Join(scratchDir, f.ID+".wav")
	if err := ensureWAV(rawPath, wavPath); err != nil {
		return nil, err
	}

	language := sessionLanguage(taskCtx.Language)
	text, err := o.router.Transcribe(ctx, wavPath, language, "")
	if err != nil {
		return nil, err
	}

	objectKey := f.ObjectKey
	return &model.Block{
		ID:          uuid.NewString(),
		SessionID:   taskCtx.SessionID,
		Type:        model.BlockTranscriptionBackend,
		TextContent: &text,
		MediaRef:    &f.ID,
		Metadata:    map[string]any{"object_key": objectKey},
		CreatedAt:   time.Now(),
	}, nil
}

// sessionLanguage returns the two-letter language tag to pass providers,
// defaulting to "pt" when the session didn't capture one.
func sessionLanguage(lang *string) string {
	if lang == nil || *lang == "" {
		return "pt"
	}
	l := *lang
	if len(l) > 2 {
		l = l[:2]
	}
	return l
}
