package clustermgr

import "github.com/google/uuid"

// fanoutItem is one node's outcome from a typed fan-out call.
type fanoutItem[T any] struct {
	Value T
	Err   error
}

// fanOut invokes fn concurrently for every id in ids and collects each
// result keyed by node id, generalizing pkg/watcher's arrival-counting
// fanout primitive to a typed fan-in channel since reconciliation phases
// need the actual per-node return value, not just completion.
func fanOut[T any](ids []uuid.UUID, fn func(uuid.UUID) (T, error)) map[uuid.UUID]fanoutItem[T] {
	type keyed struct {
		id   uuid.UUID
		item fanoutItem[T]
	}

	ch := make(chan keyed, len(ids))
	for _, id := range ids {
		go func(id uuid.UUID) {
			v, err := fn(id)
			ch <- keyed{id: id, item: fanoutItem[T]{Value: v, Err: err}}
		}(id)
	}

	out := make(map[uuid.UUID]fanoutItem[T], len(ids))
	for range ids {
		k := <-ch
		out[k.id] = k.item
	}
	return out
}
