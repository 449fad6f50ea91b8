package repository

import (
	"context"

	"github.com/jwalitptl/labalert/internal/model"
)

// All repository interfaces in one file
type (
	// ResultRepository persists lab results. Reads return newest first
	// unless stated otherwise.
	ResultRepository interface {
		// Insert is idempotent on the record id.
		Insert(ctx context.Context, rec *model.ResultRecord) (bool, error)
		SelectRecent(ctx context.Context, limit int) ([]*model.ResultRecord, error)
		SelectByPatient(ctx context.Context, patientID string) ([]*model.ResultRecord, error)
		SelectByPatientName(ctx context.Context, patientName string) ([]*model.ResultRecord, error)
		SelectCritical(ctx context.Context) ([]*model.ResultRecord, error)
		Count(ctx context.Context) (int, error)
		CountCritical(ctx context.Context) (int, error)
		Stats(ctx context.Context) (model.StatisticsSnapshot, error)
		// DeleteOlderThan removes results created more than days ago.
		DeleteOlderThan(ctx context.Context, days int) (int64, error)
		Ping(ctx context.Context) error
	}
)
