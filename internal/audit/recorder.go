package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"admin-service/internal/client"
	"admin-service/internal/model"
	"admin-service/internal/util"
)

// Mutation actions recorded against the administrator store.
const (
	ActionCreated              = "created"
	ActionUpdated              = "updated"
	ActionStatusChanged        = "status_changed"
	ActionSecondaryAuthRotated = "secondary_auth_rotated"
	ActionDeleted              = "deleted"
)

const insertEventQuery = `INSERT INTO admin_audit_events
	(event_id, action, admin_id, actor, note, occurred_at)
	VALUES (?, ?, ?, ?, ?, ?)`

const eventsTableDDL = `CREATE TABLE IF NOT EXISTS admin_audit_events (
	event_id    String,
	action      LowCardinality(String),
	admin_id    Int64,
	actor       String,
	note        String,
	occurred_at DateTime64(3, 'UTC')
) ENGINE = MergeTree()
ORDER BY (occurred_at, admin_id)`

// Recorder writes audit events to Kafka and ClickHouse in parallel. Both
// sinks are optional and best effort: a mutation is never failed because its
// audit trail could not be written.
type Recorder struct {
	producer   *client.KafkaProducer
	clickhouse *client.ClickHouseClient
	timeout    time.Duration
}

func NewRecorder(producer *client.KafkaProducer, clickhouse *client.ClickHouseClient) (*Recorder, error) {
	r := &Recorder{
		producer:   producer,
		clickhouse: clickhouse,
		timeout:    5 * time.Second,
	}

	if clickhouse != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := clickhouse.Exec(ctx, eventsTableDDL); err != nil {
			return nil, fmt.Errorf("failed to ensure audit table: %w", err)
		}
	}

	return r, nil
}

var _ model.AuditSink = (*Recorder)(nil)

// Event builds a populated audit event for an action.
func Event(action string, adminID int64, actor, note string) *model.AuditEvent {
	return &model.AuditEvent{
		EventID:    uuid.New().String(),
		Action:     action,
		AdminID:    adminID,
		Actor:      actor,
		Note:       note,
		OccurredAt: time.Now().UTC(),
	}
}

// Record fans the event out to the configured sinks. Failures are logged and
// swallowed.
func (r *Recorder) Record(ctx context.Context, event *model.AuditEvent) {
	if r.producer == nil && r.clickhouse == nil {
		return
	}

	// Audit delivery outlives the request context by design.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	g, gctx := errgroup.WithContext(recordCtx)

	if r.producer != nil {
		g.Go(func() error {
			payload, err := json.Marshal(event)
			if err != nil {
				return fmt.Errorf("encode event: %w", err)
			}
			key := []byte(strconv.FormatInt(event.AdminID, 10))
			if err := r.producer.Publish(gctx, key, payload); err != nil {
				return fmt.Errorf("kafka publish: %w", err)
			}
			return nil
		})
	}

	if r.clickhouse != nil {
		g.Go(func() error {
			if err := r.clickhouse.Exec(gctx, insertEventQuery,
				event.EventID, event.Action, event.AdminID,
				event.Actor, event.Note, event.OccurredAt,
			); err != nil {
				return fmt.Errorf("clickhouse insert: %w", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		util.Warn("audit event delivery incomplete",
			util.String("event_id", event.EventID),
			util.String("action", event.Action),
			util.Int64("admin_id", event.AdminID),
			util.ErrorField(err))
		return
	}

	util.Debug("audit event recorded",
		util.String("event_id", event.EventID),
		util.String("action", event.Action),
		util.Int64("admin_id", event.AdminID))
}
