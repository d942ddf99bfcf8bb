package main

import (
	"context"

	"github.com/google/uuid"

	"github.com/unicore-dev/uni-records-api/internal/models"
	"github.com/unicore-dev/uni-records-api/pkg/jobs"
)

// asyncAuditSink hands audit entries to the background queue so the request
// path never waits on the audit table.
type asyncAuditSink struct {
	queue *jobs.Queue
}

func (s *asyncAuditSink) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	return s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    "audit",
		Payload: log,
	})
}
