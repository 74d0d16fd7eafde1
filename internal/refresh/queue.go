// Undersounds Stats Service - Engagement Metrics and Recommendations
// Copyright 2026 Undersounds Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/undersounds/stats-service

// Package refresh implements the fire-and-forget snapshot refresh
// trigger. Accepting a refresh request only enqueues a job; a worker
// consumes the queue and recomputes per-artist KPI snapshots off the
// request path.
package refresh

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/undersounds/stats-service/internal/config"
	"github.com/undersounds/stats-service/internal/logging"
	"github.com/undersounds/stats-service/internal/metrics"
)

// Topic carries refresh jobs from the HTTP boundary to the worker.
const Topic = "stats.refresh"

// Job is one accepted refresh request.
type Job struct {
	ID          string    `json:"id"`
	RequestedAt time.Time `json:"requestedAt"`
}

// Queue is an in-process pub/sub channel for refresh jobs.
type Queue struct {
	pubsub *gochannel.GoChannel
}

// NewQueue creates the job queue with the configured buffer depth.
func NewQueue(cfg *config.RefreshConfig) *Queue {
	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: int64(cfg.Buffer),
	}, newWatermillLogger())
	return &Queue{pubsub: pubsub}
}

// Enqueue accepts a refresh request and returns the job id the caller
// can report back. The job itself runs asynchronously.
func (q *Queue) Enqueue(_ context.Context) (Job, error) {
	job := Job{
		ID:          uuid.NewString(),
		RequestedAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return Job{}, fmt.Errorf("encode refresh job: %w", err)
	}
	if err := q.pubsub.Publish(Topic, message.NewMessage(job.ID, payload)); err != nil {
		return Job{}, fmt.Errorf("enqueue refresh job: %w", err)
	}
	metrics.RefreshJobsAccepted.Inc()
	logging.Info().Str("job_id", job.ID).Msg("Refresh job accepted")
	return job, nil
}

// Subscribe returns the job message stream for the worker.
func (q *Queue) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	return q.pubsub.Subscribe(ctx, Topic)
}

// Close shuts the queue down; pending messages are dropped.
func (q *Queue) Close() error {
	return q.pubsub.Close()
}

// watermillLogger bridges watermill's logging onto the service logger.
type watermillLogger struct {
	fields watermill.LogFields
}

func newWatermillLogger() watermill.LoggerAdapter {
	return &watermillLogger{}
}

func (l *watermillLogger) event(fields watermill.LogFields, ev func() *zerolog.Event, msg string) {
	e := ev()
	for k, v := range l.fields {
		e = e.Interface(k, v)
	}
	for k, v := range fields {
		e = e.Interface(k, v)
	}
	e.Msg(msg)
}

func (l *watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	l.event(fields, func() *zerolog.Event { return logging.Error().Err(err) }, msg)
}

func (l *watermillLogger) Info(msg string, fields watermill.LogFields) {
	l.event(fields, logging.Debug, msg) // queue internals are debug noise
}

func (l *watermillLogger) Debug(msg string, fields watermill.LogFields) {
	l.event(fields, logging.Debug, msg)
}

func (l *watermillLogger) Trace(msg string, fields watermill.LogFields) {
	l.event(fields, logging.Debug, msg)
}

func (l *watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	merged := make(watermill.LogFields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &watermillLogger{fields: merged}
}
