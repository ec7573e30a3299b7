/*
Copyright 2025 Landed Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/landedhq/landed/internal/apierror"
	"github.com/landedhq/landed/model"
)

// AddQueueEntry creates a PENDING entry.
func (d Datasource) AddQueueEntry(ctx context.Context, entry *model.QueueEntry) (*model.QueueEntry, error) {
	entry.EntryID = model.GenerateUUIDWithSuffix("qe")
	entry.Status = model.StatusPending
	entry.Version = 0
	entry.RetryCount = 0
	entry.CreatedAt = time.Now()
	entry.UpdatedAt = entry.CreatedAt

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO landed.queue_entries
			(entry_id, queue_name, task_type, payload, priority, status, retry_count, version, note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, entry.EntryID, entry.QueueName, entry.TaskType, []byte(entry.Payload), entry.Priority,
		entry.Status, entry.RetryCount, entry.Version, entry.Note, entry.CreatedAt, entry.UpdatedAt)
	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok {
			switch pqErr.Code.Name() {
			case "unique_violation":
				return nil, apierror.NewAPIError(apierror.ErrConflict, "Queue entry already exists", err)
			default:
				return nil, apierror.NewAPIError(apierror.ErrTransient, "Database error occurred", err)
			}
		}
		return nil, apierror.NewAPIError(apierror.ErrTransient, "Failed to add queue entry", err)
	}

	return entry, nil
}

const queueEntryColumns = `
	entry_id, queue_name, task_type, payload, priority, status, retry_count, version, note, created_at, updated_at
`

func scanQueueEntry(row interface {
	Scan(dest ...interface{}) error
}) (*model.QueueEntry, error) {
	entry := model.QueueEntry{}
	var payload []byte
	err := row.Scan(&entry.EntryID, &entry.QueueName, &entry.TaskType, &payload, &entry.Priority,
		&entry.Status, &entry.RetryCount, &entry.Version, &entry.Note, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		return nil, err
	}
	entry.Payload = payload
	return &entry, nil
}

// ClaimNextEntry selects the claimable entry (priority desc, oldest first)
// and transitions it PENDING -> PROCESSING with a compare-and-set on the
// version column. A nil entry with nil error means either the queue is
// drained or a concurrent claimer won; callers treat both the same way.
func (d Datasource) ClaimNextEntry(ctx context.Context, queueName string) (*model.QueueEntry, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+queueEntryColumns+`
		FROM landed.queue_entries
		WHERE queue_name = $1 AND status = $2
		ORDER BY priority DESC, created_at ASC, id ASC
		LIMIT 1
	`, queueName, model.StatusPending)

	entry, err := scanQueueEntry(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, apierror.NewAPIError(apierror.ErrTransient, "Failed to select claimable entry", err)
	}

	res, err := d.Conn.ExecContext(ctx, `
		UPDATE landed.queue_entries
		SET status = $1, version = version + 1, updated_at = NOW()
		WHERE entry_id = $2 AND status = $3 AND version = $4
	`, model.StatusProcessing, entry.EntryID, model.StatusPending, entry.Version)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrTransient, "Failed to claim entry", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrTransient, "Failed to read claim result", err)
	}
	if affected == 0 {
		// Lost the race to another claimer.
		return nil, nil
	}

	entry.Status = model.StatusProcessing
	entry.Version++
	return entry, nil
}

// TransitionEntry applies a compare-and-set status change. retryDelta is 1
// for abandon-and-retry, 0 otherwise.
func (d Datasource) TransitionEntry(ctx context.Context, entryID string, expectedVersion int, to model.EntryStatus, note string, retryDelta int) error {
	res, err := d.Conn.ExecContext(ctx, `
		UPDATE landed.queue_entries
		SET status = $1, note = $2, retry_count = retry_count + $3, version = version + 1, updated_at = NOW()
		WHERE entry_id = $4 AND version = $5
	`, to, note, retryDelta, entryID, expectedVersion)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrTransient, "Failed to transition queue entry", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrTransient, "Failed to read transition result", err)
	}
	if affected == 0 {
		existing, getErr := d.GetQueueEntry(ctx, entryID)
		if getErr != nil {
			return getErr
		}
		return apierror.NewAPIError(apierror.ErrConflict, "Queue entry was modified concurrently",
			map[string]interface{}{"entry_id": entryID, "status": existing.Status, "version": existing.Version})
	}
	return nil
}

func (d Datasource) GetQueueEntry(ctx context.Context, entryID string) (*model.QueueEntry, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+queueEntryColumns+`
		FROM landed.queue_entries
		WHERE entry_id = $1
	`, entryID)

	entry, err := scanQueueEntry(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Queue entry not found", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve queue entry", err)
	}
	return entry, nil
}

// GetQueueEntries lists entries on a queue, optionally filtered by status.
// Dead-letter inspection passes StatusFailed here.
func (d Datasource) GetQueueEntries(ctx context.Context, queueName string, status model.EntryStatus, limit int) ([]model.QueueEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows *sql.Rows
	var err error
	if status == "" {
		rows, err = d.Conn.QueryContext(ctx, `
			SELECT `+queueEntryColumns+`
			FROM landed.queue_entries
			WHERE queue_name = $1
			ORDER BY created_at DESC
			LIMIT $2
		`, queueName, limit)
	} else {
		rows, err = d.Conn.QueryContext(ctx, `
			SELECT `+queueEntryColumns+`
			FROM landed.queue_entries
			WHERE queue_name = $1 AND status = $2
			ORDER BY created_at DESC
			LIMIT $3
		`, queueName, status, limit)
	}
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve queue entries", err)
	}
	defer rows.Close()

	entries := []model.QueueEntry{}
	for rows.Next() {
		entry, err := scanQueueEntry(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan queue entry", err)
		}
		entries = append(entries, *entry)
	}
	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over queue entries", err)
	}
	return entries, nil
}

// RecoverStuckEntries sweeps PROCESSING entries whose processor died between
// claim and mark back to PENDING. Entries past maxRecoveries stay put for
// manual inspection.
func (d Datasource) RecoverStuckEntries(ctx context.Context, queueName string, threshold time.Duration, maxRecoveries int) (int, error) {
	res, err := d.Conn.ExecContext(ctx, `
		UPDATE landed.queue_entries
		SET status = $1, note = 'recovered from stuck PROCESSING state', retry_count = retry_count + 1,
			version = version + 1, updated_at = NOW()
		WHERE queue_name = $2 AND status = $3
			AND updated_at < NOW() - ($4 * INTERVAL '1 second')
			AND retry_count < $5
	`, model.StatusPending, queueName, model.StatusProcessing, int(threshold.Seconds()), maxRecoveries)
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrTransient, "Failed to recover stuck entries", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrTransient, "Failed to read recovery result", err)
	}
	return int(affected), nil
}
