package kernel

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"oks/internal/objstore"
	"oks/internal/schema"
	"oks/internal/value"
	"oks/internal/xmlio"
)

// schemaDTD and dataDTD are the DOCTYPE system identifiers written on a
// saved file's preamble.
const (
	schemaDTD = "oks.dtd"
	dataDTD   = "oks-data.dtd"
)

// Save writes one tracked file back to disk in place, using the compact
// wire form (inline val= attributes, aliased class-name references) unless
// extended is set, in which case every value is written as an explicit
// <data>/<ref> tuple, the form backups and data-inspection tools prefer. A successful save acquires the file's advisory write lock for
// the duration of the write and transitions the file to loaded-clean.
func (k *Kernel) Save(path string, extended bool) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("kernel: %w", err)
	}
	file, ok := k.files[abs]
	if !ok {
		return fmt.Errorf("%w: %s", ErrFileNotFound, abs)
	}
	return k.saveFile(file, extended)
}

// SaveAll saves every loaded-dirty or created-unsaved file, in no
// particular order, stopping at the first error.
func (k *Kernel) SaveAll(extended bool) error {
	for _, f := range k.files {
		if f.State() != StateLoadedDirty && f.State() != StateCreatedUnsaved {
			continue
		}
		if err := k.saveFile(f, extended); err != nil {
			return err
		}
	}
	return nil
}

func (k *Kernel) saveFile(file *File, extended bool) error {
	if file.ReadOnly() {
		return fmt.Errorf("%w: %s", ErrFileReadOnly, file.Path())
	}
	lock, err := AcquireLock(file.Path())
	if err != nil {
		return err
	}
	defer lock.Release()

	f, err := os.Create(file.Path())
	if err != nil {
		return fmt.Errorf("kernel: save %s: %w", file.Path(), err)
	}

	wr := xmlio.NewWriter(f)
	if err := k.writeFile(wr, file, extended); err != nil {
		f.Close()
		return err
	}
	if err := wr.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("kernel: save %s: %w", file.Path(), err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("kernel: save %s: %w", file.Path(), err)
	}

	info, err := os.Stat(file.Path())
	if err != nil {
		return fmt.Errorf("kernel: save %s: %w", file.Path(), err)
	}
	file.MarkSaved(info.ModTime())
	k.profile.FileSaved()
	return nil
}

func (k *Kernel) writeFile(wr *xmlio.Writer, file *File, extended bool) error {
	root := "oks-data"
	dtd := dataDTD
	if file.Kind() == KindSchema {
		root = "oks-schema"
		dtd = schemaDTD
	}
	wr.Preamble(root, dtd)
	wr.StartTag(root, nil, false)

	numItems := len(file.DeclaredClasses)
	if file.Kind() == KindData {
		numItems = len(file.DeclaredObjects)
	}
	writeInfo(wr, file, k.cfg.Version, numItems)
	writeIncludes(wr, file.Includes)
	writeComments(wr, file.Comments)

	switch file.Kind() {
	case KindSchema:
		names := append([]string(nil), file.DeclaredClasses...)
		sort.Strings(names)
		for _, name := range names {
			c, ok := k.schema.FindClass(name)
			if !ok {
				continue
			}
			writeClass(wr, c)
		}
	case KindData:
		k.aliasTable.reset()
		keys := append([]ObjectKey(nil), file.DeclaredObjects...)
		sort.Slice(keys, func(i, j int) bool {
			if keys[i].ClassName != keys[j].ClassName {
				return keys[i].ClassName < keys[j].ClassName
			}
			return keys[i].ID < keys[j].ID
		})
		for _, key := range keys {
			o, ok := k.store.FindObject(key.ClassName, key.ID)
			if !ok {
				continue
			}
			if err := k.writeObject(wr, o, extended); err != nil {
				return err
			}
		}
	}

	wr.EndTag(root)
	return nil
}

func writeInfo(wr *xmlio.Writer, file *File, version string, numItems int) {
	now := time.Now().UTC().Format("20060102T150405")
	who := "unknown"
	if u, err := user.Current(); err == nil {
		who = u.Username
	}
	format := "data"
	if file.Kind() == KindSchema {
		format = "schema"
	}
	name := file.LogicalName
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(file.Path()), filepath.Ext(file.Path()))
	}
	typeTag := file.TypeTag
	if typeTag == "" {
		typeTag = format
	}
	wr.StartTag("info", []xmlio.Attr{
		{Name: "name", Value: name},
		{Name: "type", Value: typeTag},
		{Name: "num-of-items", Value: fmt.Sprintf("%d", numItems)},
		{Name: "oks-format", Value: format},
		{Name: "oks-version", Value: version},
		{Name: "created-by", Value: who},
		{Name: "created-on", Value: now},
		{Name: "creation-time", Value: now},
		{Name: "last-modified-by", Value: who},
		{Name: "last-modified-on", Value: now},
		{Name: "last-modification-time", Value: now},
	}, true)
}

func writeIncludes(wr *xmlio.Writer, includes []string) {
	if len(includes) == 0 {
		return
	}
	wr.StartTag("include", nil, false)
	for _, inc := range includes {
		wr.StartTag("file", []xmlio.Attr{{Name: "path", Value: inc}}, true)
	}
	wr.EndTag("include")
}

func writeComments(wr *xmlio.Writer, comments []string) {
	if len(comments) == 0 {
		return
	}
	wr.StartTag("comments", nil, false)
	for _, c := range comments {
		wr.Comment(c)
	}
	wr.EndTag("comments")
}

func writeClass(wr *xmlio.Writer, c *schema.Class) {
	attrs := []xmlio.Attr{{Name: "name", Value: c.Name}}
	if c.Description != "" {
		attrs = append(attrs, xmlio.Attr{Name: "description", Value: c.Description})
	}
	if c.Abstract {
		attrs = append(attrs, xmlio.Attr{Name: "abstract", Value: "yes"})
	}
	wr.StartTag("class", attrs, false)

	for _, super := range c.SuperclassNames {
		wr.StartTag("superclass", []xmlio.Attr{{Name: "name", Value: super}}, true)
	}
	for _, a := range c.DirectAttributes {
		writeAttributeDecl(wr, a)
	}
	for _, r := range c.DirectRelationships {
		writeRelationshipDecl(wr, r)
	}
	for _, m := range c.DirectMethods {
		writeMethodDecl(wr, m)
	}

	wr.EndTag("class")
}

func writeAttributeDecl(wr *xmlio.Writer, a *schema.Attribute) {
	attrs := []xmlio.Attr{
		{Name: "name", Value: a.Name},
		{Name: "type", Value: a.Kind.String()},
	}
	if a.Multi {
		attrs = append(attrs, xmlio.Attr{Name: "multivalue", Value: "yes"})
	}
	if a.NonNull {
		attrs = append(attrs, xmlio.Attr{Name: "is-not-null", Value: "yes"})
	}
	if a.DefaultText != "" {
		attrs = append(attrs, xmlio.Attr{Name: "init-value", Value: a.DefaultText})
	}
	if a.Description != "" {
		attrs = append(attrs, xmlio.Attr{Name: "description", Value: a.Description})
	}
	if rangeText := rangeToText(a.Kind, a.Range); rangeText != "" {
		attrs = append(attrs, xmlio.Attr{Name: "range", Value: rangeText})
	}
	wr.StartTag("attribute", attrs, true)
}

func rangeToText(kind value.Kind, r *value.Range) string {
	if r == nil {
		return ""
	}
	if kind == value.KindEnum {
		return strings.Join(r.Labels, ",")
	}
	return r.Source
}

func writeRelationshipDecl(wr *xmlio.Writer, r *schema.Relationship) {
	low := "zero"
	if r.Low == schema.LowOne {
		low = "one"
	}
	high := "one"
	if r.High == schema.HighMany {
		high = "many"
	}
	attrs := []xmlio.Attr{
		{Name: "name", Value: r.Name},
		{Name: "class-type", Value: r.TargetClassName},
		{Name: "low-cc", Value: low},
		{Name: "high-cc", Value: high},
	}
	if r.Composite {
		attrs = append(attrs, xmlio.Attr{Name: "is-composite", Value: "yes"})
	}
	if r.Exclusive {
		attrs = append(attrs, xmlio.Attr{Name: "is-exclusive", Value: "yes"})
	}
	if r.Dependent {
		attrs = append(attrs, xmlio.Attr{Name: "is-dependent", Value: "yes"})
	}
	if r.Description != "" {
		attrs = append(attrs, xmlio.Attr{Name: "description", Value: r.Description})
	}
	wr.StartTag("relationship", attrs, true)
}

func writeMethodDecl(wr *xmlio.Writer, m *schema.Method) {
	attrs := []xmlio.Attr{{Name: "name", Value: m.Name}}
	if m.Description != "" {
		attrs = append(attrs, xmlio.Attr{Name: "description", Value: m.Description})
	}
	wr.StartTag("method", attrs, len(m.Implementations) == 0)
	for _, impl := range m.Implementations {
		wr.StartTag("method-implementation", []xmlio.Attr{
			{Name: "language", Value: impl.Language},
			{Name: "prototype", Value: impl.Prototype},
			{Name: "body", Value: impl.Body},
		}, true)
	}
	if len(m.Implementations) > 0 {
		wr.EndTag("method")
	}
}

func (k *Kernel) writeObject(wr *xmlio.Writer, o *objstore.Object, extended bool) error {
	wr.StartTag("obj", []xmlio.Attr{
		{Name: "class", Value: k.aliasTable.encode(o.ClassName())},
		{Name: "id", Value: o.ObjectID()},
	}, false)

	c := o.Class()
	for _, a := range c.AttributeTable() {
		v, _, err := o.GetAttribute(a.Name)
		if err != nil || v.IsNull() {
			continue
		}
		if err := writeAttrValue(wr, a, v, extended); err != nil {
			return err
		}
	}
	for _, r := range c.RelationshipTable() {
		v, _, err := o.GetRelationship(r.Name)
		if err != nil || v.IsNull() {
			continue
		}
		if err := k.writeRelValue(wr, r, v, extended); err != nil {
			return err
		}
	}

	wr.EndTag("obj")
	return nil
}

func writeAttrValue(wr *xmlio.Writer, a *schema.Attribute, v value.Value, extended bool) error {
	if !extended {
		text, err := value.Format(v, a.IntFormat)
		if err != nil {
			return fmt.Errorf("kernel: attribute %s: %w", a.Name, err)
		}
		wr.StartTag("attr", []xmlio.Attr{
			{Name: "name", Value: a.Name},
			{Name: "type", Value: a.Kind.String()},
			{Name: "val", Value: text},
		}, true)
		return nil
	}

	wr.StartTag("attr", []xmlio.Attr{{Name: "name", Value: a.Name}, {Name: "type", Value: a.Kind.String()}}, false)
	elems := []value.Value{v}
	if v.Kind == value.KindList {
		elems = v.List
	}
	for _, elem := range elems {
		text, err := value.Format(elem, a.IntFormat)
		if err != nil {
			return fmt.Errorf("kernel: attribute %s: %w", a.Name, err)
		}
		wr.StartTag("data", []xmlio.Attr{{Name: "val", Value: text}}, true)
	}
	wr.EndTag("attr")
	return nil
}

func (k *Kernel) writeRelValue(wr *xmlio.Writer, r *schema.Relationship, v value.Value, extended bool) error {
	elems := []value.Value{v}
	if v.Kind == value.KindList {
		elems = v.List
	}

	if !extended && len(elems) == 1 {
		className, id, err := refParts(elems[0])
		if err != nil {
			return fmt.Errorf("kernel: relationship %s: %w", r.Name, err)
		}
		wr.StartTag("rel", []xmlio.Attr{
			{Name: "name", Value: r.Name},
			{Name: "class", Value: k.aliasTable.encode(className)},
			{Name: "id", Value: id},
		}, true)
		return nil
	}

	wr.StartTag("rel", []xmlio.Attr{{Name: "name", Value: r.Name}}, false)
	for _, elem := range elems {
		className, id, err := refParts(elem)
		if err != nil {
			return fmt.Errorf("kernel: relationship %s: %w", r.Name, err)
		}
		wr.StartTag("ref", []xmlio.Attr{
			{Name: "class", Value: k.aliasTable.encode(className)},
			{Name: "id", Value: id},
		}, true)
	}
	wr.EndTag("rel")
	return nil
}

func refParts(v value.Value) (className, id string, err error) {
	switch v.Kind {
	case value.KindObject:
		return v.Object.ClassName(), v.Object.ObjectID(), nil
	case value.KindUID:
		return v.UID.ClassName, v.UID.ID, nil
	default:
		return "", "", fmt.Errorf("%w: relationship value has unexpected kind %s", ErrReferenceError, v.Kind)
	}
}
