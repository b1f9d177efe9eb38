package service

import (
	"context"
	"time"

	"github.com/weiawesome/wes-io-live/live-room-service/internal/domain"
	"github.com/weiawesome/wes-io-live/live-room-service/internal/kafka"
	"github.com/weiawesome/wes-io-live/live-room-service/internal/snapshot"
	pkglog "github.com/weiawesome/wes-io-live/live-room-service/pkg/log"
)

const persistQueueSize = 1024

type persistOp struct {
	save     *domain.Snapshot
	deleteID string
	event    *kafka.LiveEvent
	barrier  chan struct{}
}

// persister applies snapshot writes and live events in order, off the executor.
type persister struct {
	store    snapshot.Store
	producer kafka.LiveEventProducer
	timeout  time.Duration
	ops      chan persistOp
	done     chan struct{}
}

func newPersister(store snapshot.Store, producer kafka.LiveEventProducer, timeout time.Duration) *persister {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &persister{
		store:    store,
		producer: producer,
		timeout:  timeout,
		ops:      make(chan persistOp, persistQueueSize),
		done:     make(chan struct{}),
	}
}

func (p *persister) run() {
	defer close(p.done)
	for op := range p.ops {
		p.apply(op)
	}
}

func (p *persister) apply(op persistOp) {
	l := pkglog.L()
	if op.barrier != nil {
		close(op.barrier)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	switch {
	case op.save != nil:
		if err := p.store.Save(ctx, op.save); err != nil {
			l.Error().Err(err).Str(pkglog.FieldRoomID, op.save.RoomID).Msg("failed to save snapshot")
		}
	case op.deleteID != "":
		if err := p.store.Delete(ctx, op.deleteID); err != nil {
			l.Error().Err(err).Str(pkglog.FieldRoomID, op.deleteID).Msg("failed to delete snapshot")
		}
	case op.event != nil:
		if p.producer == nil {
			return
		}
		if err := p.producer.Produce(ctx, op.event); err != nil {
			l.Error().Err(err).Str(pkglog.FieldRoomID, op.event.RoomID).Str("event", op.event.Type).Msg("failed to produce live event")
		}
	}
}

// enqueue never blocks the executor; a full queue drops the op.
func (p *persister) enqueue(op persistOp) {
	select {
	case p.ops <- op:
	default:
		l := pkglog.L()
		l.Warn().Msg("persist queue full, dropping operation")
	}
}

// sync waits until every op enqueued before it has been applied.
func (p *persister) sync() {
	b := make(chan struct{})
	p.ops <- persistOp{barrier: b}
	<-b
}

func (p *persister) close() {
	close(p.ops)
	<-p.done
}

func (s *LiveService) saveSnapshot(room *domain.Room) {
	if !room.IsLive() {
		return
	}
	s.persist.enqueue(persistOp{save: room.Snapshot(s.nowMs())})
}

func (s *LiveService) deleteSnapshot(roomID string) {
	s.persist.enqueue(persistOp{deleteID: roomID})
}

func (s *LiveService) produce(event *kafka.LiveEvent) {
	if s.persist.producer == nil {
		return
	}
	event.Timestamp = s.nowMs()
	s.persist.enqueue(persistOp{event: event})
}
