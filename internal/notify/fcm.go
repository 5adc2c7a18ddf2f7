// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ManuGH/sessionforge/internal/log"
	"github.com/ManuGH/sessionforge/internal/platform/httpx"
)

// fcmEndpointFmt is the FCM HTTP v1 send endpoint, parameterized by project.
const fcmEndpointFmt = "https://fcm.googleapis.com/v1/projects/%s/messages:send"

// TokenSource returns a fresh bearer token for the FCM HTTP v1 API (an
// OAuth2 access token derived from the identity service-account
// credentials). NewServiceAccountTokenSource builds one from those
// credentials.
type TokenSource func(ctx context.Context) (string, error)

// FCMSink delivers notifications through the FCM HTTP v1 API.
type FCMSink struct {
	projectID  string
	tokens     TokenSource
	httpClient *http.Client
}

// NewFCMSink constructs an FCMSink for projectID.
func NewFCMSink(projectID string, tokens TokenSource) *FCMSink {
	return &FCMSink{
		projectID:  projectID,
		tokens:     tokens,
		httpClient: httpx.NewClient(10 * time.Second),
	}
}

type fcmMessage struct {
	Message fcmMessageBody `json:"message"`
}

type fcmMessageBody struct {
	Token        string            `json:"token"`
	Notification fcmNotification   `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Send posts one message to FCM. Failures are returned to the caller, who
// is expected (per the pipeline's use of this sink) to log and discard them
// rather than fail a job.
func (s *FCMSink) Send(ctx context.Context, pushToken, title, body string, data map[string]string) error {
	if pushToken == "" {
		return nil
	}

	token, err := s.tokens(ctx)
	if err != nil {
		return fmt.Errorf("notify: mint fcm access token: %w", err)
	}

	payload, err := json.Marshal(fcmMessage{Message: fcmMessageBody{
		Token:        pushToken,
		Notification: fcmNotification{Title: title, Body: body},
		Data:         data,
	}})
	if err != nil {
		return fmt.Errorf("notify: marshal fcm payload: %w", err)
	}

	url := fmt.Sprintf(fcmEndpointFmt, s.projectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("notify: new fcm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notify: fcm request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("notify: fcm returned status %d", resp.StatusCode)
	}
	return nil
}

var _ Sink = (*FCMSink)(nil)

// SendBestEffort calls Send and logs, but never returns, any error. Used by
// callers (the pipeline's stage C) for whom notification delivery must
// never fail the surrounding operation.
func SendBestEffort(ctx context.Context, sink Sink, pushToken, title, body string, data map[string]string) {
	if err := sink.Send(ctx, pushToken, title, body, data); err != nil {
		_lg := log.WithComponent("notify")
		_lg.Warn().Err(err).Msg("best-effort push notification failed")
	}
}
