package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// linkStore is the slice of the repository the queue needs.
type linkStore interface {
	LinkComponentVariable(ctx context.Context, componentID, variableID int64) error
}

type componentVariableLink struct {
	componentID int64
	variableID  int64
}

// LinkQueue writes component-variable associations on a background worker so
// report transactions never wait on them. The link is best-effort: a full
// buffer or a failed insert is logged and dropped, never surfaced.
type LinkQueue struct {
	store   linkStore
	logger  *zap.Logger
	pending chan componentVariableLink
}

// NewLinkQueue returns a queue with the given buffer size.
func NewLinkQueue(store linkStore, bufferSize int, logger *zap.Logger) *LinkQueue {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &LinkQueue{
		store:   store,
		logger:  logger,
		pending: make(chan componentVariableLink, bufferSize),
	}
}

// EnqueueLink schedules one association write. Never blocks.
func (q *LinkQueue) EnqueueLink(componentID, variableID int64) {
	select {
	case q.pending <- componentVariableLink{componentID: componentID, variableID: variableID}:
	default:
		q.logger.Warn("dropping component-variable link, queue full",
			zap.Int64("component_id", componentID),
			zap.Int64("variable_id", variableID))
	}
}

// Start drains the queue until the context is cancelled.
func (q *LinkQueue) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case link := <-q.pending:
			writeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := q.store.LinkComponentVariable(writeCtx, link.componentID, link.variableID)
			cancel()
			if err != nil {
				q.logger.Warn("component-variable link failed",
					zap.Int64("component_id", link.componentID),
					zap.Int64("variable_id", link.variableID),
					zap.Error(err))
			}
		}
	}
}
