// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/ManuGH/sessionforge/internal/domain/model"
	"github.com/ManuGH/sessionforge/internal/domain/vectorindex"
	"github.com/ManuGH/sessionforge/internal/log"
	"github.com/ManuGH/sessionforge/internal/notify"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// logEntry is the logger type threaded through the stage C helpers.
type logEntry = zerolog.Logger

func newID() string { return uuid.NewString() }

// summaryFailureMarkers holds the localized text stored as the summary
// when provider-side summarization fails, keyed the same way the prompt
// tables are (pt/en/es, falling back to pt).
var summaryFailureMarkers = map[string]string{
	"pt": "Não foi possível gerar um resumo para esta sessão.",
	"en": "A summary could not be generated for this session.",
	"es": "No se pudo generar un resumen para esta sesión.",
}

func localizedSummaryFailure(language string) string {
	if m, ok := summaryFailureMarkers[language]; ok {
		return m
	}
	return summaryFailureMarkers["pt"]
}

// textBearingTypes are the block kinds contributing to the combined text
// collected for summarization, embedding and title generation.
var textBearingTypes = map[model.BlockType]bool{
	model.BlockText:                 true,
	model.BlockVoice:                true,
	model.BlockTranscriptionBackend: true,
	model.BlockImageDescription:     true,
}

const embedBatchSize = 10

// runSummarizeStage collects all text-bearing blocks, optionally chunks and
// embeds them, generates a summary and a title, and marks the job/session
// terminal. Its own DB-commit and provider-misconfiguration failures are
// fatal to the job; per-chunk/summary/title failures degrade gracefully
// instead.
func (o *Orchestrator) runSummarizeStage(ctx context.Context, taskCtx stageContext) error {
	logger := log.WithComponent("pipeline").With().Str("session_id", taskCtx.SessionID).Str("job_id", taskCtx.JobID).Logger()

	now := time.Now()
	if _, err := o.sessions.TransitionStatus(ctx, taskCtx.SessionID, model.SessionPendingProcessing, model.SessionProcessing, nil, nil); err != nil {
		return err
	}

	blocks, err := o.sessions.ListBlocks(ctx, taskCtx.SessionID)
	if err != nil {
		return err
	}
	combinedText := combineBlockText(blocks)
	language := sessionLanguage(taskCtx.Language)

	if o.embeddingsEnabled {
		o.embedText(ctx, taskCtx, combinedText, logger)
	}

	summary := o.generateSummary(ctx, combinedText, language, logger)
	title := o.generateTitle(ctx, combinedText, language, logger)

	if err := o.sessions.SetProcessedFields(ctx, taskCtx.SessionID, &summary, &title); err != nil {
		return err
	}
	if _, err := o.sessions.TransitionStatus(ctx, taskCtx.SessionID, model.SessionProcessing, model.SessionProcessed, nil, &now); err != nil {
		return err
	}
	if err := o.jobs.MarkCompleted(ctx, taskCtx.JobID); err != nil {
		return err
	}

	logger.Info().Str("event", "ai_job_completed").Msg("pipeline run completed")
	o.notifySessionReady(ctx, taskCtx.SessionID, title)
	return nil
}

func combineBlockText(blocks []model.Block) string {
	var parts []string
	for _, b := range blocks {
		if !textBearingTypes[b.Type] || b.TextContent == nil || *b.TextContent == "" {
			continue
		}
		parts = append(parts, *b.TextContent)
	}
	return strings.Join(parts, "\n\n")
}

func (o *Orchestrator) embedText(ctx context.Context, taskCtx stageContext, text string, logger logEntry) {
	chunks := vectorindex.Chunk(text)
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := o.embedBatch(ctx, taskCtx.SessionID, chunks[start:end], logger)
		if len(batch) == 0 {
			continue
		}
		if err := o.index.Upsert(ctx, batch); err != nil {
			logger.Warn().Err(err).Msg("embedding batch commit failed")
		}
	}
}

func (o *Orchestrator) embedBatch(ctx context.Context, sessionID string, chunks []string, logger logEntry) []model.Embedding {
	embeddings := make([]model.Embedding, 0, len(chunks))
	for _, chunk := range chunks {
		vec, err := o.router.Embed(ctx, chunk)
		if err != nil {
			logger.Warn().Err(err).Msg("chunk embedding failed, skipping")
			continue
		}
		embeddings = append(embeddings, model.Embedding{
			ID:         newID(),
			SessionID:  sessionID,
			Provider:   o.embeddingProviderName,
			Vector:     vec,
			SourceText: chunk,
			CreatedAt:  time.Now(),
		})
	}
	return embeddings
}

func (o *Orchestrator) generateSummary(ctx context.Context, text, language string, logger logEntry) string {
	summary, err := o.router.Summarize(ctx, text, language)
	if err != nil {
		logger.Warn().Err(err).Msg("summary generation failed, storing localized failure marker")
		return localizedSummaryFailure(language)
	}
	return summary
}

func (o *Orchestrator) generateTitle(ctx context.Context, text, language string, logger logEntry) string {
	title, err := o.router.Title(ctx, text, language)
	if err != nil {
		logger.Warn().Err(err).Msg("title generation failed, using fallback prefix")
		return fallbackTitle(text)
	}
	return title
}

func fallbackTitle(text string) string {
	r := []rune(strings.TrimSpace(text))
	if len(r) > 50 {
		r = r[:50]
	}
	return string(r)
}

func (o *Orchestrator) notifySessionReady(ctx context.Context, sessionID, title string) {
	sess, err := o.sessions.GetForWorker(ctx, sessionID)
	if err != nil {
		return
	}
	principal, err := o.principals.GetByID(ctx, sess.OwnerID)
	if err != nil || principal.PushToken == "" {
		return
	}
	notify.SendBestEffort(ctx, o.notifier, principal.PushToken, "session_ready", title, map[string]string{"session_id": sessionID})
}
