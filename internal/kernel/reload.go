package kernel

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"oks/internal/schema"
	"oks/internal/value"
	"oks/internal/xmlio"
)

// ClassReloadReport summarizes one class's object-level changes from a
// single Reload call: objects that kept their identity and
// whose values changed are reported separately from objects created or
// destroyed by the re-read.
type ClassReloadReport struct {
	ClassName string
	Created   []string
	Modified  []string
	Removed   []string
}

// IsEmpty reports whether this class saw no change at all.
func (r ClassReloadReport) IsEmpty() bool {
	return len(r.Created) == 0 && len(r.Modified) == 0 && len(r.Removed) == 0
}

// ReloadResult is everything one Reload call changed.
type ReloadResult struct {
	File           *File
	Objects        []ClassReloadReport
	ClassesAdded   []string
	ClassesRemoved []string
	Bind           BindStatus
}

// Reload re-reads an already-loaded file from disk and applies the
// difference to the live schema/object store in place, rather than
// discarding and rebuilding it: unchanged objects keep
// their pointer identity, objects no longer present are destroyed (running
// the same unbind scan DestroyObject does for any explicit delete), new
// objects are created, and objects whose attribute or relationship values
// changed are mutated and reported per class. A final bind pass resolves any
// deferred relationship references the re-read introduced.
func (k *Kernel) Reload(path string) (*ReloadResult, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("kernel: %w", err)
	}
	file, ok := k.files[abs]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, abs)
	}

	r, err := os.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFileNotFound, abs, err)
	}
	defer r.Close()
	info, _ := os.Stat(abs)

	rd := xmlio.NewReader(r, abs)
	if _, _, err := parseHeader(rd); err != nil {
		return nil, err
	}

	result := &ReloadResult{File: file}
	switch file.Kind() {
	case KindSchema:
		added, removed, err := k.reloadSchema(rd, file)
		if err != nil {
			return nil, err
		}
		result.ClassesAdded = added
		result.ClassesRemoved = removed
	case KindData:
		k.aliasTable.reset()
		reports, err := k.reloadData(rd, file)
		if err != nil {
			return nil, err
		}
		result.Objects = reports
	}

	if info != nil {
		file.MarkSaved(info.ModTime())
	}
	result.Bind = k.BindObjects()
	k.profile.FileReloaded()
	return result, nil
}

// reloadData diffs a data file's re-read object set against what it last
// declared (file.DeclaredObjects).
func (k *Kernel) reloadData(rd *xmlio.Reader, file *File) ([]ClassReloadReport, error) {
	old := make(map[ObjectKey]bool, len(file.DeclaredObjects))
	for _, key := range file.DeclaredObjects {
		old[key] = true
	}
	seen := make(map[ObjectKey]bool, len(old))
	reports := make(map[string]*ClassReloadReport)
	reportFor := func(className string) *ClassReloadReport {
		rep, ok := reports[className]
		if !ok {
			rep = &ClassReloadReport{ClassName: className}
			reports[className] = rep
		}
		return rep
	}

	for {
		tok, err := rd.NextStructuralTag()
		if err != nil {
			return nil, err
		}
		if tok.Kind == xmlio.TokenEOF {
			break
		}
		if tok.Kind != xmlio.TokenStart || tok.Name != "obj" {
			continue
		}
		className, id, changed, created, err := k.reloadObject(rd, tok, file)
		if err != nil {
			return nil, err
		}
		key := ObjectKey{ClassName: className, ID: id}
		seen[key] = true
		switch {
		case created:
			reportFor(className).Created = append(reportFor(className).Created, id)
		case changed:
			reportFor(className).Modified = append(reportFor(className).Modified, id)
		}
	}

	for key := range old {
		if seen[key] {
			continue
		}
		if o, ok := k.store.FindObject(key.ClassName, key.ID); ok {
			if err := k.store.DestroyObject(o, false); err != nil {
				return nil, err
			}
		}
		reportFor(key.ClassName).Removed = append(reportFor(key.ClassName).Removed, key.ID)
	}

	file.DeclaredObjects = file.DeclaredObjects[:0]
	for key := range seen {
		file.DeclaredObjects = append(file.DeclaredObjects, key)
	}

	out := make([]ClassReloadReport, 0, len(reports))
	for _, rep := range reports {
		if !rep.IsEmpty() {
			out = append(out, *rep)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClassName < out[j].ClassName })
	return out, nil
}

// reloadObject upserts one <obj>: reuses the existing store object (same
// pointer identity) when its (class, id) is already known, otherwise creates
// it. changed reports whether any attribute/relationship value actually
// differs from before the re-read, via a textual comparison of the old and
// new value; an object is reported as modified only when the rendered text
// actually differs.
func (k *Kernel) reloadObject(rd *xmlio.Reader, start xmlio.Token, file *File) (className, id string, changed, created bool, err error) {
	classToken, _ := start.Attr("class")
	id, _ = start.Attr("id")
	rd.Release(start)

	className, err = k.aliasTable.decode(classToken)
	if err != nil {
		return classToken, id, false, false, fmt.Errorf("kernel: %s: %w", file.Path(), err)
	}

	c, ok := k.schema.FindClass(className)
	if !ok {
		return className, id, false, false, fmt.Errorf("kernel: %s: %w: %s", file.Path(), ErrReferenceError, className)
	}

	o, existed := k.store.FindObject(className, id)
	created = !existed
	if !existed {
		o, err = k.store.CreateObject(className, id, file)
		if err != nil {
			return className, id, false, false, fmt.Errorf("kernel: %s: %w", file.Path(), err)
		}
	}

	// A relationship re-read replaces the slot wholesale; clear it the
	// first time this reload touches it so SetDeferred does not append to
	// the surviving values.
	clearedRels := map[string]bool{}

	for {
		tok, err := rd.NextStructuralTag()
		if err != nil {
			return className, id, changed, created, err
		}
		switch {
		case tok.Kind == xmlio.TokenEnd && tok.Name == "obj":
			return className, id, changed, created, nil
		case tok.Kind == xmlio.TokenEOF:
			return className, id, changed, created, fmt.Errorf("kernel: %s: unterminated <obj %s#%s>", file.Path(), className, id)
		case tok.Kind == xmlio.TokenStart && tok.Name == "attr":
			name, _ := tok.Attr("name")
			before, _, _ := o.GetAttribute(name)
			if err := k.loadAttr(rd, tok, o, c); err != nil {
				return className, id, changed, created, err
			}
			after, _, _ := o.GetAttribute(name)
			if !changed && !valuesEqualText(before, after) {
				changed = true
			}
		case tok.Kind == xmlio.TokenStart && tok.Name == "rel":
			name, _ := tok.Attr("name")
			before, _, _ := o.GetRelationship(name)
			if existed && !clearedRels[name] {
				clearedRels[name] = true
				if err := k.store.ClearRelationship(o, name); err != nil {
					return className, id, changed, created, err
				}
			}
			if err := k.loadRel(rd, tok, o, c); err != nil {
				return className, id, changed, created, err
			}
			after, _, _ := o.GetRelationship(name)
			if !changed && !valuesEqualText(before, after) {
				changed = true
			}
		default:
			rd.Release(tok)
		}
	}
}

// valuesEqualText compares two values by their wire text rendering, cheap
// to compute from the existing Format path. It deliberately ignores the
// kind tag: a resolved reference and a deferred uid naming the same target
// both render "class#id" and must compare equal, or every re-read
// relationship would be misreported as modified.
func valuesEqualText(a, b value.Value) bool {
	if a.IsNull() != b.IsNull() {
		return false
	}
	as, aerr := value.Format(a, value.DisplayDecimal)
	bs, berr := value.Format(b, value.DisplayDecimal)
	if aerr != nil || berr != nil {
		return false
	}
	return as == bs
}

// reloadSchema diffs a schema file's re-read class set against what it last
// declared (file.DeclaredClasses): classes that disappeared are deleted,
// new ones are created and parsed as on first load, and re-declared classes
// are reconciled member-by-member (reloadClassBody), so a member that
// survives the re-read keeps its layout slot and resident objects keep its
// value.
func (k *Kernel) reloadSchema(rd *xmlio.Reader, file *File) (added, removed []string, err error) {
	old := make(map[string]bool, len(file.DeclaredClasses))
	for _, name := range file.DeclaredClasses {
		old[name] = true
	}
	seen := make(map[string]bool, len(old))

	for {
		tok, terr := rd.NextStructuralTag()
		if terr != nil {
			return nil, nil, terr
		}
		if tok.Kind == xmlio.TokenEOF {
			break
		}
		if tok.Kind != xmlio.TokenStart || tok.Name != "class" {
			continue
		}

		name, _ := tok.Attr("name")
		abstractStr, _ := tok.Attr("abstract")
		desc, _ := tok.Attr("description")
		c, exists := k.schema.FindClass(name)
		if !exists && !k.reloadExtendSchema {
			rd.Release(tok)
			if err := skipToEnd(rd, "class"); err != nil {
				return nil, nil, err
			}
			k.logger.Warnf(file.Path(), xmlio.Position{}, "reload: new class %s rejected (schema extension disabled)", name)
			continue
		}
		rd.Release(tok)
		if !exists {
			var cerr error
			c, cerr = k.schema.CreateClass(name, abstractStr == "yes", desc)
			if cerr != nil {
				return nil, nil, fmt.Errorf("kernel: %s: %w", file.Path(), cerr)
			}
			added = append(added, name)
			c.Owner = file
			seen[name] = true
			if err := k.loadClassBody(rd, c, file); err != nil {
				return nil, nil, err
			}
			continue
		}

		c.Owner = file
		c.Description = desc
		k.schema.SetAbstract(c, abstractStr == "yes")
		seen[name] = true
		if err := k.reloadClassBody(rd, c, file); err != nil {
			return nil, nil, err
		}
	}

	for name := range old {
		if seen[name] {
			continue
		}
		if c, ok := k.schema.FindClass(name); ok {
			if err := k.schema.DeleteClass(c.Name); err != nil {
				k.logger.Warnf(file.Path(), xmlio.Position{}, "reload: %v", err)
				seen[name] = true // keep it declared; it could not be removed
				continue
			}
			removed = append(removed, name)
		}
	}

	file.DeclaredClasses = file.DeclaredClasses[:0]
	for name := range seen {
		file.DeclaredClasses = append(file.DeclaredClasses, name)
	}
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed, nil
}

// reloadClassBody re-reads a <class> element against an already-declared
// class. The members are parsed into a staging set first and then
// reconciled with applyClassDiff, so a member that survives the re-read
// keeps its identity — and its layout slot, and therefore every resident
// object's value for it — instead of being removed and re-added.
func (k *Kernel) reloadClassBody(rd *xmlio.Reader, c *schema.Class, file *File) error {
	var supers []string
	var attrs []*schema.Attribute
	var rels []*schema.Relationship
	var methods []*schema.Method

	for {
		tok, err := rd.NextStructuralTag()
		if err != nil {
			return err
		}
		switch {
		case tok.Kind == xmlio.TokenEnd && tok.Name == "class":
			return k.applyClassDiff(c, file, supers, attrs, rels, methods)
		case tok.Kind == xmlio.TokenEOF:
			return fmt.Errorf("kernel: %s: unterminated <class %s>", file.Path(), c.Name)
		case tok.Kind == xmlio.TokenStart && tok.Name == "superclass":
			super, _ := tok.Attr("name")
			rd.Release(tok)
			supers = append(supers, super)
		case tok.Kind == xmlio.TokenStart && tok.Name == "attribute":
			a, err := parseAttributeDecl(tok)
			rd.Release(tok)
			if err != nil {
				return fmt.Errorf("kernel: class %s: %w", c.Name, err)
			}
			attrs = append(attrs, a)
		case tok.Kind == xmlio.TokenStart && tok.Name == "relationship":
			r := parseRelationshipDecl(tok)
			rd.Release(tok)
			rels = append(rels, r)
		case tok.Kind == xmlio.TokenStart && tok.Name == "method":
			m, err := parseMethodDecl(rd, tok)
			if err != nil {
				return fmt.Errorf("kernel: class %s: %w", c.Name, err)
			}
			methods = append(methods, m)
		default:
			rd.Release(tok)
		}
	}
}

// applyClassDiff reconciles c's direct members with what a reload re-read
// declared: members that disappeared are removed (the store's remap drops
// their resident values), new members are added, and members present in
// both keep their identity with shape changes applied in place. Methods
// carry no layout and are replaced wholesale.
func (k *Kernel) applyClassDiff(c *schema.Class, file *File, supers []string, attrs []*schema.Attribute, rels []*schema.Relationship, methods []*schema.Method) error {
	wrap := func(err error) error {
		if err != nil {
			return fmt.Errorf("kernel: %s: %w", file.Path(), err)
		}
		return nil
	}

	wantSuper := make(map[string]bool, len(supers))
	for _, super := range supers {
		wantSuper[super] = true
	}
	for _, super := range append([]string(nil), c.SuperclassNames...) {
		if !wantSuper[super] {
			if err := wrap(k.schema.RemoveSuperclass(c, super)); err != nil {
				return err
			}
		}
	}
	for _, super := range supers {
		if err := wrap(k.schema.AddSuperclass(c, super)); err != nil {
			return err
		}
	}

	wantAttr := make(map[string]bool, len(attrs))
	for _, a := range attrs {
		wantAttr[a.Name] = true
	}
	for _, a := range append([]*schema.Attribute(nil), c.DirectAttributes...) {
		if !wantAttr[a.Name] {
			if err := wrap(k.schema.RemoveAttribute(c, a.Name)); err != nil {
				return err
			}
		}
	}
	for _, a := range attrs {
		if hasDirectAttr(c, a.Name) {
			if err := wrap(k.schema.ReplaceAttribute(c, a)); err != nil {
				return err
			}
			continue
		}
		if err := wrap(k.schema.AddAttribute(c, a)); err != nil {
			return err
		}
	}

	wantRel := make(map[string]bool, len(rels))
	for _, r := range rels {
		wantRel[r.Name] = true
	}
	for _, r := range append([]*schema.Relationship(nil), c.DirectRelationships...) {
		if !wantRel[r.Name] {
			if err := wrap(k.schema.RemoveRelationship(c, r.Name)); err != nil {
				return err
			}
		}
	}
	for _, r := range rels {
		if hasDirectRel(c, r.Name) {
			if err := wrap(k.schema.ReplaceRelationship(c, r)); err != nil {
				return err
			}
			continue
		}
		if err := wrap(k.schema.AddRelationship(c, r)); err != nil {
			return err
		}
	}

	for _, m := range append([]*schema.Method(nil), c.DirectMethods...) {
		if err := wrap(k.schema.RemoveMethod(c, m.Name)); err != nil {
			return err
		}
	}
	for _, m := range methods {
		if err := wrap(k.schema.AddMethod(c, m)); err != nil {
			return err
		}
	}
	return nil
}

func hasDirectAttr(c *schema.Class, name string) bool {
	for _, a := range c.DirectAttributes {
		if a.Name == name {
			return true
		}
	}
	return false
}

func hasDirectRel(c *schema.Class, name string) bool {
	for _, r := range c.DirectRelationships {
		if r.Name == name {
			return true
		}
	}
	return false
}
