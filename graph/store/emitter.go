package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/dshills/draftloop/graph/emit"
)

// DefaultWriteTimeout bounds a single audit write.
const DefaultWriteTimeout = 5 * time.Second

// Emitter writes every event to a Store. A failed write is logged and
// dropped; the audit trail never fails a run.
type Emitter struct {
	store   Store
	logger  *slog.Logger
	timeout time.Duration
}

// NewEmitter returns an Emitter over s. A nil logger discards failures.
func NewEmitter(s Store, logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Emitter{store: s, logger: logger, timeout: DefaultWriteTimeout}
}

// Emit implements emit.Emitter.
func (e *Emitter) Emit(event emit.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	if err := e.store.Append(ctx, event); err != nil {
		e.logger.Warn("audit write failed",
			"run_id", event.RunID, "step", event.Step, "msg", event.Msg, "error", err)
	}
}
