package kernel

import (
	"fmt"
	"path/filepath"

	"oks/internal/xmlio"
)

// CreateFile registers a brand-new file in Created-unsaved state, ready to
// receive class or object declarations and be saved. The path does not need
// to exist on disk yet.
func (k *Kernel) CreateFile(path string, kind FileKind) (*File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("kernel: %w", err)
	}
	if _, exists := k.files[abs]; exists {
		return nil, fmt.Errorf("kernel: %s is already tracked", abs)
	}
	f := NewFile(abs, kind)
	k.files[abs] = f
	return f, nil
}

// Close removes a file from the kernel together with the classes and
// objects it declared. Files the closed file included stay loaded while any
// surviving file still includes them; includes with no remaining includer
// are closed recursively. Explicitly loaded roots are never closed this
// way, only through their own Close call.
func (k *Kernel) Close(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("kernel: %w", err)
	}
	file, ok := k.files[abs]
	if !ok {
		return fmt.Errorf("%w: %s", ErrFileNotFound, abs)
	}
	k.closeFile(file)
	k.closeOrphanedIncludes()
	return nil
}

func (k *Kernel) closeFile(file *File) {
	for _, key := range file.DeclaredObjects {
		if o, ok := k.store.FindObject(key.ClassName, key.ID); ok {
			_ = k.store.DestroyObject(o, false)
		}
	}
	for _, name := range file.DeclaredClasses {
		c, ok := k.schema.FindClass(name)
		if !ok {
			continue
		}
		if len(k.store.Objects(name)) > 0 {
			k.logger.Warnf(file.Path(), xmlio.Position{}, "close: class %s keeps objects declared elsewhere", name)
			continue
		}
		if err := k.schema.DeleteClass(c.Name); err != nil {
			k.logger.Warnf(file.Path(), xmlio.Position{}, "close: %v", err)
		}
	}
	delete(k.files, file.Path())
	file.MarkRemoved()
}

// closeOrphanedIncludes closes every include-loaded file that no surviving
// file includes anymore, repeating until the file table stops shrinking (a
// closed include can orphan its own includes in turn).
func (k *Kernel) closeOrphanedIncludes() {
	for {
		var orphan *File
		for _, f := range k.files {
			if f.ParentInclude == "" {
				continue
			}
			included := false
			for _, other := range k.files {
				for _, inc := range other.resolvedIncludes {
					if inc == f.Path() {
						included = true
						break
					}
				}
				if included {
					break
				}
			}
			if !included {
				orphan = f
				break
			}
		}
		if orphan == nil {
			return
		}
		k.closeFile(orphan)
	}
}
