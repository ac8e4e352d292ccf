package kernel

import (
	"errors"
	"fmt"

	"oks/internal/objstore"
	"oks/internal/query"
)

// Query runs a predicate query against the kernel's object
// store and schema graph, bumping the profiling "queries run" counter when
// profiling is enabled. Callers must hold at least RLock.
func (k *Kernel) Query(q query.Query) ([]*objstore.Object, error) {
	k.profile.QueryRun()
	objs, err := query.Run(k.store, k.schema, q)
	if err != nil {
		if errors.Is(err, query.ErrUnresolvedDuringQuery) {
			return nil, fmt.Errorf("%w: %w", ErrUnresolvedDuringQuery, err)
		}
		return nil, err
	}
	return objs, nil
}

// FindPath runs a path query between start
// and goal over the given nested relationship-name levels. Callers must
// hold at least RLock.
func (k *Kernel) FindPath(start, goal *objstore.Object, levels []query.PathLevel) ([]*objstore.Object, error) {
	k.profile.QueryRun()
	return query.FindPath(start, goal, levels)
}
