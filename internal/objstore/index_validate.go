package objstore

import (
	"fmt"

	"oks/internal/value"
)

// ValidateIndices checks that every declared index entry still reflects its
// object's current attribute value and that no index references a stale
// object — the object-store analog of the structural consistency checks the
// parallel validation pipeline runs between classes.
func (s *Store) ValidateIndices() error {
	for key, idx := range s.indices {
		for _, e := range idx.entries {
			live, ok := s.FindObject(e.obj.ClassName(), e.obj.ObjectID())
			if !ok || live != e.obj {
				return fmt.Errorf("objstore: index %s.%s references a destroyed object %s#%s",
					key.className, key.attrName, e.obj.ClassName(), e.obj.ObjectID())
			}
			cur, err := e.obj.Get(key.attrName)
			if err != nil {
				return fmt.Errorf("objstore: index %s.%s: %w", key.className, key.attrName, err)
			}
			if cmp, err := value.TryCompare(cur, e.val); err != nil || cmp != 0 {
				return fmt.Errorf("objstore: index %s.%s is stale for object %s#%s",
					key.className, key.attrName, e.obj.ClassName(), e.obj.ObjectID())
			}
		}
	}
	return nil
}
