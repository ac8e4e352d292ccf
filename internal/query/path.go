package query

import "oks/internal/objstore"

// PathLevel is one level of a path query's nested relationship-name groups
// : a set of relationship names usable at
// this level, and whether traversal through them is Direct (exactly one
// hop) or Nested (arbitrary depth before the next level is tried).
type PathLevel struct {
	RelNames []string
	Nested   bool
}

// FindPath computes the first path from start to goal walking only the
// relationships named in levels, in level order. A
// Direct level consumes exactly one hop through one of its relationship
// names; a Nested level may consume zero or more hops through any of its
// relationship names before control passes to the next level. The search
// tracks every object already on the current path and never revisits one.
func FindPath(start, goal *objstore.Object, levels []PathLevel) ([]*objstore.Object, error) {
	visited := map[*objstore.Object]bool{start: true}
	path := []*objstore.Object{start}

	found, err := search(start, goal, levels, 0, visited, &path)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrPathNotFound
	}
	return append([]*objstore.Object(nil), path...), nil
}

func search(cur, goal *objstore.Object, levels []PathLevel, levelIdx int, visited map[*objstore.Object]bool, path *[]*objstore.Object) (bool, error) {
	if levelIdx == len(levels) {
		return cur == goal, nil
	}

	level := levels[levelIdx]

	if level.Nested {
		// Stop hopping at this level and let the next level take over
		// (zero-hop case: "arbitrary depth" includes depth zero).
		if ok, err := search(cur, goal, levels, levelIdx+1, visited, path); err != nil || ok {
			return ok, err
		}
	}

	nextLevelIdx := levelIdx + 1
	if level.Nested {
		nextLevelIdx = levelIdx // a nested level may hop again before advancing
	}

	for _, relName := range level.RelNames {
		targets, err := relationshipTargetsOf(cur, relName)
		if err != nil {
			return false, err
		}
		for _, t := range targets {
			if visited[t] {
				continue
			}
			visited[t] = true
			*path = append(*path, t)

			ok, err := search(t, goal, levels, nextLevelIdx, visited, path)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}

			*path = (*path)[:len(*path)-1]
			delete(visited, t)
		}
	}
	return false, nil
}

// relationshipTargetsOf reads relName off cur and normalizes it to its
// resolved targets. A class that does not declare relName simply
// contributes no hops at this step, since a path level's relationship
// names are shared across every class the path might pass through.
func relationshipTargetsOf(cur *objstore.Object, relName string) ([]*objstore.Object, error) {
	v, err := cur.Get(relName)
	if err != nil {
		return nil, nil
	}
	return relationshipTargets(v)
}
