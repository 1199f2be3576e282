// Package sync reconciles the three message sources — the local archive,
// the HTTP history fetch, and the live channel — into the in-memory log,
// idempotently, and mirrors live messages back into the archive.
package sync

import (
	"context"
	"fmt"

	"github.com/matheus3301/tchat/internal/bus"
	"github.com/matheus3301/tchat/internal/store"
	"go.uber.org/zap"
)

// Engine subscribes to "chat." events on the bus and ingests them.
type Engine struct {
	log    *store.Log
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
}

// NewEngine creates an engine. The archive db may be nil, in which case
// messages are kept in memory only.
func NewEngine(log *store.Log, db *store.DB, b *bus.Bus, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		log:    log,
		db:     db,
		bus:    b,
		logger: logger,
	}
}

// Start subscribes to inbound channel events on the bus.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	ch, unsub := e.bus.Subscribe("chat.", 256)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				e.handleEvent(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}

func (e *Engine) handleEvent(evt bus.Event) {
	if evt.Kind != bus.KindChatMessage {
		return
	}
	msg, ok := evt.Payload.(*store.Message)
	if !ok {
		return
	}
	e.Ingest(msg)
}

// Ingest appends a live message to the log and mirrors it into the
// archive. Duplicate IDs are no-ops in both. An archive failure is logged
// and does not block the log: the conversation keeps flowing.
func (e *Engine) Ingest(msg *store.Message) {
	if e.db != nil {
		if err := e.db.UpsertMessage(msg); err != nil {
			e.logger.Error("failed to archive message",
				zap.Error(err), zap.Int64("id", msg.ID))
		}
	}
	if !e.log.Append(*msg) {
		// Duplicate delivery; already reconciled.
		return
	}
	e.bus.Publish(bus.New(bus.KindMessageAppended, msg.ID))
}

// SeedHistory merges the HTTP historical snapshot into the log and
// archives it in one transaction. Safe to call after live messages have
// already arrived: merge, never discard.
func (e *Engine) SeedHistory(msgs []store.Message) error {
	if e.db != nil {
		if err := e.db.InsertBatch(msgs); err != nil {
			return fmt.Errorf("archive history: %w", err)
		}
	}
	e.log.Seed(msgs)
	e.logger.Info("history seeded", zap.Int("messages", len(msgs)))
	e.bus.Publish(bus.New(bus.KindHistorySeeded, len(msgs)))
	return nil
}

// WarmSeed loads the newest archived messages into the log before the
// network is up, so a returning user sees the conversation immediately.
func (e *Engine) WarmSeed(limit int) error {
	if e.db == nil {
		return nil
	}
	msgs, err := e.db.RecentMessages(limit)
	if err != nil {
		return fmt.Errorf("warm seed: %w", err)
	}
	e.log.Seed(msgs)
	if len(msgs) > 0 {
		e.logger.Info("warm seed loaded", zap.Int("messages", len(msgs)))
	}
	return nil
}
