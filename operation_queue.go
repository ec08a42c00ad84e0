package depot

import (
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type operationType int

const (
	opCreate operationType = iota
	opDestroy
	opAddComponent
	opRemoveComponent
	opSetValues
)

// operation is one deferred structural mutation or value write, captured
// while the storage is locked and replayed on unlock.
type operation struct {
	typ    operationType
	amount int
	comps  []Component
	// vals carries decoded value sets: one per component for opCreate, a
	// single set for opAddComponent/opSetValues. nil means zero values.
	vals   [][]Value
	entity Entity
}

// opQueue buffers operations in request order. Component operations for
// entities already queued for destruction are dropped at enqueue time.
type opQueue struct {
	ops            []operation
	pendingDestroy map[Entity]struct{}
}

func newOpQueue() opQueue {
	return opQueue{
		pendingDestroy: make(map[Entity]struct{}),
	}
}

func (q *opQueue) enqueueCreate(amount int, comps []Component, vals [][]Value) {
	q.ops = append(q.ops, operation{
		typ:    opCreate,
		amount: amount,
		comps:  comps,
		vals:   vals,
	})
}

func (q *opQueue) enqueueDestroy(entities []Entity) {
	for _, e := range entities {
		if _, queued := q.pendingDestroy[e]; queued {
			continue
		}
		q.pendingDestroy[e] = struct{}{}
		q.ops = append(q.ops, operation{typ: opDestroy, entity: e})
	}
}

func (q *opQueue) enqueueComponentOp(typ operationType, e Entity, comp Component, vals []Value) {
	if _, destroyed := q.pendingDestroy[e]; destroyed {
		return
	}
	op := operation{typ: typ, entity: e, comps: []Component{comp}}
	if vals != nil {
		op.vals = [][]Value{vals}
	}
	q.ops = append(q.ops, op)
}

func (q *opQueue) clear() {
	q.ops = q.ops[:0]
	clear(q.pendingDestroy)
}

// processOperationQueue replays queued operations in request order.
// Operations whose entity went stale in the meantime (destroyed earlier in
// the queue, or during a previous drain) are skipped, not errors. A failing
// operation does not stop the drain: the rest of the queue still applies and
// the failures come back aggregated, so one bad request cannot discard
// unrelated queued work.
func (s *storage) processOperationQueue() error {
	if len(s.opQueue.ops) == 0 {
		return nil
	}
	defer s.opQueue.clear()

	var errs error
	for _, op := range s.opQueue.ops {
		switch op.typ {
		case opCreate:
			if op.vals == nil {
				if _, err := s.NewEntities(op.amount, op.comps...); err != nil {
					errs = multierr.Append(errs, fmt.Errorf("failed to process queued entity creation: %w", err))
				}
				continue
			}
			if err := s.newEntityWithValues(op.comps, op.vals); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("failed to process queued entity creation: %w", err))
			}

		case opDestroy:
			if !s.Alive(op.entity) {
				continue
			}
			if err := s.DestroyEntities(op.entity); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("failed to destroy queued entity: %w", err))
			}

		case opAddComponent:
			if !s.Alive(op.entity) {
				s.log.Debug("skipping queued add for stale entity", zap.Uint32("entity", op.entity.ID))
				continue
			}
			var vals []Value
			if op.vals != nil {
				vals = op.vals[0]
			}
			if err := s.addComponent(op.entity, op.comps[0], vals); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("failed to add queued component: %w", err))
			}

		case opRemoveComponent:
			if !s.Alive(op.entity) {
				s.log.Debug("skipping queued remove for stale entity", zap.Uint32("entity", op.entity.ID))
				continue
			}
			if err := s.RemoveComponent(op.entity, op.comps[0]); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("failed to remove queued component: %w", err))
			}

		case opSetValues:
			if !s.Alive(op.entity) {
				continue
			}
			if err := s.setComponentValues(op.entity, op.comps[0], op.vals[0]); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("failed to apply queued value write: %w", err))
			}
		}
	}
	return errs
}
