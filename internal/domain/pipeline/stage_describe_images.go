// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pipeline

import (
	"context"
	"io"
	"time"

	"github.com/ManuGH/sessionforge/internal/domain/model"
	"github.com/ManuGH/sessionforge/internal/domain/provider"
	"github.com/ManuGH/sessionforge/internal/log"
	"github.com/google/uuid"
)

// runDescribeImagesStage describes every committed image media row,
// preferring a presigned GET URL and falling back to base64-inlined bytes
// when the URL-based call fails. Each description is committed as its own
// block immediately, bounding loss on partial failure.
func (o *Orchestrator) runDescribeImagesStage(ctx context.Context, taskCtx stageContext) error {
	logger := log.WithComponent("pipeline").With().Str("session_id", taskCtx.SessionID).Str("job_id", taskCtx.JobID).Logger()

	files, err := o.media.ListBySessionAndKind(ctx, taskCtx.SessionID, model.MediaImage, model.MediaUploaded)
	if err != nil {
		return err
	}

	language := sessionLanguage(taskCtx.Language)
	var failures int

	for _, f := range files {
		block, err := o.describeOne(ctx, taskCtx, f, language)
		if err != nil {
			failures++
			logger.Warn().Err(err).Str("media_id", f.ID).Msg("image description failed, skipping")
			continue
		}
		if err := o.sessions.AppendBlocks(ctx, []model.Block{*block}); err != nil {
			return err
		}
	}

	if failures > 0 {
		logger.Warn().Int("failures", failures).Int("total", len(files)).Msg("stage B completed with per-file failures")
	}
	return nil
}

func (o *Orchestrator) describeOne(ctx context.Context, taskCtx stageContext, f model.MediaFile, language string) (*model.Block, error) {
	url, err := o.gateway.PresignGet(ctx, f.ObjectKey)
	if err == nil {
		desc, err := o.router.DescribeImage(ctx, provider.ImageRef{URL: url}, language)
		if err == nil {
			return newImageDescriptionBlock(taskCtx.SessionID, f.ID, desc), nil
		}
	}

	reader, err := o.gateway.GetReader(ctx, f.ObjectKey)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	desc, err := o.router.DescribeImage(ctx, provider.ImageRef{Bytes: data}, language)
	if err != nil {
		return nil, err
	}
	return newImageDescriptionBlock(taskCtx.SessionID, f.ID, desc), nil
}

func newImageDescriptionBlock(sessionID, mediaID, description string) *model.Block {
	return &model.Block{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		Type:        model.BlockImageDescription,
		TextContent: &description,
		MediaRef:    &mediaID,
		CreatedAt:   time.Now(),
	}
}
