package kernel

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"oks/internal/objstore"
	"oks/internal/schema"
	"oks/internal/value"
	"oks/internal/xmlio"
)

// LoadResult summarizes one top-level Load call: the file actually opened
// plus every file transitively pulled in through includes, in load order.
type LoadResult struct {
	Root    *File
	Visited []*File
}

// Load opens one file and everything it includes: parse the header of path to decide schema
// vs data, recursively load its includes (bounded by a visited set), parse
// its class or object entries, and — unless skipBind is set, for callers
// loading many files that want to bind once at the end — run a bind pass
// over every object in the store.
func (k *Kernel) Load(path string, skipBind bool) (*LoadResult, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("kernel: %w", err)
	}
	visited := make(map[string]*File)
	root, err := k.loadOne(abs, "", visited)
	if err != nil {
		return nil, err
	}
	result := &LoadResult{Root: root}
	for _, f := range visited {
		result.Visited = append(result.Visited, f)
	}
	if !skipBind {
		k.BindObjects()
	}
	return result, nil
}

func (k *Kernel) loadOne(path, parentInclude string, visited map[string]*File) (*File, error) {
	if f, ok := visited[path]; ok {
		return f, nil
	}
	if f, ok := k.files[path]; ok {
		visited[path] = f
		return f, nil
	}

	r, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFileNotFound, path, err)
	}
	defer r.Close()
	info, _ := os.Stat(path)

	rd := xmlio.NewReader(r, path)
	header, root, err := parseHeader(rd)
	if err != nil {
		return nil, err
	}

	var kind FileKind
	switch root {
	case "oks-schema":
		kind = KindSchema
	case "oks-data":
		kind = KindData
	default:
		return nil, fmt.Errorf("kernel: %s: unrecognized root element %q", path, root)
	}

	file := NewFile(path, kind)
	file.LogicalName = header.Info["name"]
	file.TypeTag = header.Info["type"]
	file.ParentInclude = parentInclude
	file.Includes = header.Includes
	file.Comments = header.Comments
	if info != nil {
		file.SetRepository(k.isRepositoryPath(path), info.ModTime())
	}
	k.files[path] = file
	visited[path] = file

	for _, inc := range header.Includes {
		resolved, err := k.resolveInclude(path, inc)
		if err != nil {
			return nil, err
		}
		file.resolvedIncludes = append(file.resolvedIncludes, resolved)
		if _, err := k.loadOne(resolved, path, visited); err != nil {
			return nil, err
		}
	}
	cycles, err := k.checkIncludeCycles(path)
	if err != nil {
		return nil, err
	}
	for _, cyc := range cycles {
		k.logger.Warnf(path, xmlio.Position{}, "circular include: %v", cyc)
	}

	switch kind {
	case KindSchema:
		if err := k.loadClasses(rd, file); err != nil {
			return nil, err
		}
		k.bindClassesStatus = k.schema.BindClasses()
		if k.bindClassesStatus != "" {
			k.logger.Warnf(path, xmlio.Position{}, "%s", k.bindClassesStatus)
		}
	case KindData:
		k.aliasTable.reset()
		if err := k.loadObjects(rd, file); err != nil {
			return nil, err
		}
	}

	file.MarkSaved(fileModTime(info))
	k.profile.FileLoaded()
	return file, nil
}

func (k *Kernel) isRepositoryPath(path string) bool {
	for _, root := range []string{k.cfg.UserRepository, k.cfg.Repository} {
		if root == "" {
			continue
		}
		if rel, err := filepath.Rel(root, path); err == nil && rel != ".." && len(rel) > 0 && rel[0] != '.' {
			return true
		}
	}
	return false
}

func fileModTime(info os.FileInfo) time.Time {
	if info == nil {
		return time.Time{}
	}
	return info.ModTime()
}

// header is the parsed content common to both file dialects' root element
// : <info>, <include>, <comments>.
type header struct {
	Info     map[string]string
	Includes []string
	Comments []string
}

// parseHeader reads the root start tag and the header children (<info>,
// <include>, <comments>) up to the first non-header child, which is left for
// the caller to read next via rd.NextStructuralTag.
func parseHeader(rd *xmlio.Reader) (header, string, error) {
	var h header
	h.Info = map[string]string{}

	tok, err := rd.NextStructuralTag()
	if err != nil {
		return h, "", err
	}
	if tok.Kind != xmlio.TokenStart {
		return h, "", fmt.Errorf("kernel: %s: expected root element", rd.Path())
	}
	root := tok.Name
	rd.Release(tok)

	for {
		rd.StorePosition()
		tok, err := rd.NextStructuralTag()
		if err != nil {
			return h, "", err
		}
		switch {
		case tok.Kind == xmlio.TokenEnd && tok.Name == root:
			rd.DiscardPosition()
			return h, root, nil
		case tok.Kind == xmlio.TokenStart && tok.Name == "info":
			for _, a := range tok.Attrs {
				h.Info[a.Name] = a.Value
			}
			rd.Release(tok)
			if err := skipToEnd(rd, "info"); err != nil {
				return h, "", err
			}
		case tok.Kind == xmlio.TokenStart && tok.Name == "include":
			rd.Release(tok)
			if err := parseInclude(rd, &h); err != nil {
				return h, "", err
			}
		case tok.Kind == xmlio.TokenStart && tok.Name == "comments":
			rd.Release(tok)
			comments, err := parseComments(rd)
			if err != nil {
				return h, "", err
			}
			h.Comments = comments
		default:
			// First non-header child: rewind so the caller sees it.
			rd.RestorePosition()
			return h, root, nil
		}
	}
}

func parseInclude(rd *xmlio.Reader, h *header) error {
	for {
		tok, err := rd.NextStructuralTag()
		if err != nil {
			return err
		}
		switch {
		case tok.Kind == xmlio.TokenEnd && tok.Name == "include":
			return nil
		case tok.Kind == xmlio.TokenStart && tok.Name == "file":
			path, _ := tok.Attr("path")
			h.Includes = append(h.Includes, path)
			rd.Release(tok)
		case tok.Kind == xmlio.TokenEOF:
			return fmt.Errorf("kernel: %s: unterminated <include>", rd.Path())
		}
	}
}

func parseComments(rd *xmlio.Reader) ([]string, error) {
	var out []string
	for {
		tok, err := rd.NextTag()
		if err != nil {
			return nil, err
		}
		switch {
		case tok.Kind == xmlio.TokenEnd && tok.Name == "comments":
			return out, nil
		case tok.Kind == xmlio.TokenComment:
			out = append(out, tok.Comment)
		case tok.Kind == xmlio.TokenEOF:
			return nil, fmt.Errorf("kernel: %s: unterminated <comments>", rd.Path())
		}
	}
}

// skipToEnd consumes tokens until the matching end tag of an already-opened
// element that this loader does not otherwise interpret. The reader reports
// an end tag for a self-closing element too (e.g. the usual self-closed
// <info>), so this works the same for self-closed and non-empty elements.
func skipToEnd(rd *xmlio.Reader, name string) error {
	depth := 1
	for depth > 0 {
		tok, err := rd.NextStructuralTag()
		if err != nil {
			return err
		}
		switch {
		case tok.Kind == xmlio.TokenEOF:
			return fmt.Errorf("kernel: %s: unterminated <%s>", rd.Path(), name)
		case tok.Kind == xmlio.TokenStart && tok.Name == name:
			depth++
		case tok.Kind == xmlio.TokenEnd && tok.Name == name:
			depth--
		}
	}
	return nil
}

// loadClasses parses zero or more <class> elements from a schema file
// already positioned just past the header.
func (k *Kernel) loadClasses(rd *xmlio.Reader, file *File) error {
	for {
		tok, err := rd.NextStructuralTag()
		if err != nil {
			return err
		}
		if tok.Kind == xmlio.TokenEOF {
			return nil
		}
		if tok.Kind != xmlio.TokenStart || tok.Name != "class" {
			continue
		}
		if err := k.loadClass(rd, tok, file); err != nil {
			return err
		}
	}
}

func (k *Kernel) loadClass(rd *xmlio.Reader, start xmlio.Token, file *File) error {
	name, _ := start.Attr("name")
	desc, _ := start.Attr("description")
	abstractStr, _ := start.Attr("abstract")
	abstract := abstractStr == "yes"
	rd.Release(start)

	c, exists := k.schema.FindClass(name)
	if !exists {
		var err error
		c, err = k.schema.CreateClass(name, abstract, desc)
		if err != nil {
			return fmt.Errorf("kernel: %s: %w", file.Path(), err)
		}
	}
	c.Owner = file
	file.DeclaredClasses = append(file.DeclaredClasses, name)

	return k.loadClassBody(rd, c, file)
}

// loadClassBody parses a <class> element's children (everything after the
// opening tag has already been consumed by the caller) and applies them to
// c. Shared between the initial Load pass and Reload's re-parse of an
// already-declared class.
func (k *Kernel) loadClassBody(rd *xmlio.Reader, c *schema.Class, file *File) error {
	for {
		tok, err := rd.NextStructuralTag()
		if err != nil {
			return err
		}
		switch {
		case tok.Kind == xmlio.TokenEnd && tok.Name == "class":
			return nil
		case tok.Kind == xmlio.TokenEOF:
			return fmt.Errorf("kernel: %s: unterminated <class %s>", file.Path(), c.Name)
		case tok.Kind == xmlio.TokenStart && tok.Name == "superclass":
			super, _ := tok.Attr("name")
			rd.Release(tok)
			if err := k.schema.AddSuperclass(c, super); err != nil {
				return fmt.Errorf("kernel: %s: %w", file.Path(), err)
			}
		case tok.Kind == xmlio.TokenStart && tok.Name == "attribute":
			if err := k.loadAttribute(rd, tok, c); err != nil {
				return err
			}
		case tok.Kind == xmlio.TokenStart && tok.Name == "relationship":
			if err := k.loadRelationship(rd, tok, c); err != nil {
				return err
			}
		case tok.Kind == xmlio.TokenStart && tok.Name == "method":
			if err := k.loadMethod(rd, tok, c); err != nil {
				return err
			}
		default:
			rd.Release(tok)
		}
	}
}

func (k *Kernel) loadAttribute(rd *xmlio.Reader, start xmlio.Token, c *schema.Class) error {
	attr, err := parseAttributeDecl(start)
	rd.Release(start)
	if err != nil {
		return fmt.Errorf("kernel: class %s: %w", c.Name, err)
	}
	return k.schema.AddAttribute(c, attr)
}

// parseAttributeDecl builds an Attribute from an <attribute .../> start tag
// without touching the schema graph: Load adds the result directly, Reload
// first diffs it against the class's existing members.
func parseAttributeDecl(start xmlio.Token) (*schema.Attribute, error) {
	name, _ := start.Attr("name")
	typeStr, _ := start.Attr("type")
	multi, _ := start.Attr("multivalue")
	nonNull, _ := start.Attr("is-not-null")
	desc, _ := start.Attr("description")
	rangeStr, hasRange := start.Attr("range")
	defText, _ := start.Attr("init-value")

	kind, err := value.ParseAttrTypeKeyword(typeStr)
	if err != nil {
		return nil, err
	}

	var rng *value.Range
	if kind == value.KindEnum {
		rng, err = value.NewEnumRange(splitEnumLabels(rangeStr))
	} else if hasRange {
		rng, err = value.ParseRange(kind, rangeStr)
	}
	if err != nil {
		return nil, fmt.Errorf("attribute %s: %w", name, err)
	}

	return &schema.Attribute{
		Name:        name,
		Kind:        kind,
		Range:       rng,
		Multi:       multi == "yes",
		NonNull:     nonNull == "yes",
		DefaultText: defText,
		Description: desc,
	}, nil
}

func splitEnumLabels(s string) []string {
	var out []string
	cur := ""
	for _, r := range s {
		if r == ',' {
			out = append(out, cur)
			cur = ""
			continue
		}
		cur += string(r)
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}

func (k *Kernel) loadRelationship(rd *xmlio.Reader, start xmlio.Token, c *schema.Class) error {
	rel := parseRelationshipDecl(start)
	rd.Release(start)
	return k.schema.AddRelationship(c, rel)
}

// parseRelationshipDecl builds a Relationship from a <relationship .../>
// start tag without touching the schema graph.
func parseRelationshipDecl(start xmlio.Token) *schema.Relationship {
	name, _ := start.Attr("name")
	target, _ := start.Attr("class-type")
	lowStr, _ := start.Attr("low-cc")
	highStr, _ := start.Attr("high-cc")
	composite, _ := start.Attr("is-composite")
	exclusive, _ := start.Attr("is-exclusive")
	dependent, _ := start.Attr("is-dependent")
	desc, _ := start.Attr("description")

	rel := &schema.Relationship{
		Name:            name,
		TargetClassName: target,
		Low:             schema.LowZero,
		High:            schema.HighOne,
		Composite:       composite == "yes",
		Exclusive:       exclusive == "yes",
		Dependent:       dependent == "yes",
		Description:     desc,
	}
	if lowStr == "one" {
		rel.Low = schema.LowOne
	}
	if highStr == "many" {
		rel.High = schema.HighMany
	}
	return rel
}

func (k *Kernel) loadMethod(rd *xmlio.Reader, start xmlio.Token, c *schema.Class) error {
	m, err := parseMethodDecl(rd, start)
	if err != nil {
		return fmt.Errorf("kernel: class %s: %w", c.Name, err)
	}
	return k.schema.AddMethod(c, m)
}

// parseMethodDecl consumes a <method> element, including its
// <method-implementation> children, into a Method.
func parseMethodDecl(rd *xmlio.Reader, start xmlio.Token) (*schema.Method, error) {
	name, _ := start.Attr("name")
	desc, _ := start.Attr("description")
	rd.Release(start)

	m := &schema.Method{Name: name, Description: desc}
	for {
		tok, err := rd.NextStructuralTag()
		if err != nil {
			return nil, err
		}
		switch {
		case tok.Kind == xmlio.TokenEnd && tok.Name == "method":
			return m, nil
		case tok.Kind == xmlio.TokenEOF:
			return nil, fmt.Errorf("unterminated <method %s>", name)
		case tok.Kind == xmlio.TokenStart && tok.Name == "method-implementation":
			lang, _ := tok.Attr("language")
			proto, _ := tok.Attr("prototype")
			body, _ := tok.Attr("body")
			rd.Release(tok)
			m.Implementations = append(m.Implementations, schema.MethodImplementation{
				Language: lang, Prototype: proto, Body: body,
			})
		default:
			rd.Release(tok)
		}
	}
}

// loadObjects parses zero or more <obj> elements from a data file already
// positioned just past the header.
func (k *Kernel) loadObjects(rd *xmlio.Reader, file *File) error {
	for {
		tok, err := rd.NextStructuralTag()
		if err != nil {
			return err
		}
		if tok.Kind == xmlio.TokenEOF {
			return nil
		}
		if tok.Kind != xmlio.TokenStart || tok.Name != "obj" {
			continue
		}
		if err := k.loadObject(rd, tok, file); err != nil {
			return err
		}
	}
}

func (k *Kernel) loadObject(rd *xmlio.Reader, start xmlio.Token, file *File) error {
	classToken, _ := start.Attr("class")
	id, _ := start.Attr("id")
	rd.Release(start)

	className, err := k.aliasTable.decode(classToken)
	if err != nil {
		return fmt.Errorf("kernel: %s: %w", file.Path(), err)
	}

	o, err := k.store.CreateObject(className, id, file)
	if err != nil {
		if !errors.Is(err, objstore.ErrDuplicateObject) {
			// Inheritance-cone collisions and unknown classes are not
			// subject to the duplicated-objects policy.
			return fmt.Errorf("kernel: %s: %w", file.Path(), err)
		}
		switch k.duplicatedObjects {
		case DuplicatesReject:
			return fmt.Errorf("%w: %s: %w", ErrDuplicatedObject, file.Path(), err)
		case DuplicatesAutoRename:
			renamed := k.nextFreeID(className, id)
			o, err = k.store.CreateObject(className, renamed, file)
			if err != nil {
				return fmt.Errorf("kernel: %s: %w", file.Path(), err)
			}
			k.logger.Warnf(file.Path(), xmlio.Position{}, "duplicate object %s#%s renamed to %s", className, id, renamed)
		default: // DuplicatesKeepFirstWarn
			k.logger.Warnf(file.Path(), xmlio.Position{}, "duplicate object %s#%s skipped", className, id)
			return skipToEnd(rd, "obj")
		}
	}

	c, ok := k.schema.FindClass(className)
	if !ok {
		return fmt.Errorf("kernel: %s: %w: %s", file.Path(), ErrReferenceError, className)
	}
	file.DeclaredObjects = append(file.DeclaredObjects, ObjectKey{ClassName: className, ID: o.ObjectID()})

	for {
		tok, err := rd.NextStructuralTag()
		if err != nil {
			return err
		}
		switch {
		case tok.Kind == xmlio.TokenEnd && tok.Name == "obj":
			return nil
		case tok.Kind == xmlio.TokenEOF:
			return fmt.Errorf("kernel: %s: unterminated <obj %s#%s>", file.Path(), className, id)
		case tok.Kind == xmlio.TokenStart && tok.Name == "attr":
			if err := k.loadAttr(rd, tok, o, c); err != nil {
				return err
			}
		case tok.Kind == xmlio.TokenStart && tok.Name == "rel":
			if err := k.loadRel(rd, tok, o, c); err != nil {
				return err
			}
		default:
			rd.Release(tok)
		}
	}
}

func (k *Kernel) nextFreeID(className, id string) string {
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s-%d", id, i)
		if _, exists := k.store.FindObject(className, candidate); !exists {
			return candidate
		}
	}
}

func (k *Kernel) loadAttr(rd *xmlio.Reader, start xmlio.Token, o *objstore.Object, c *schema.Class) error {
	name, _ := start.Attr("name")
	valAttr, hasVal := start.Attr("val")
	attr, found := c.FindAttribute(name)
	rd.Release(start)
	if !found {
		return skipToEnd(rd, "attr")
	}

	if hasVal {
		v, err := parseAttrValue(attr, valAttr)
		if err != nil {
			return fmt.Errorf("kernel: object %s#%s: %w", c.Name, o.ObjectID(), err)
		}
		_, err = k.store.SetAttribute(o, name, v)
		if err != nil {
			return fmt.Errorf("kernel: object %s#%s: %w", c.Name, o.ObjectID(), err)
		}
		return skipToEnd(rd, "attr")
	}

	// Extended form: explicit <data val=.../> children.
	list := value.NewList()
	for {
		tok, err := rd.NextStructuralTag()
		if err != nil {
			return err
		}
		switch {
		case tok.Kind == xmlio.TokenEnd && tok.Name == "attr":
			_, err = k.store.SetAttribute(o, name, list)
			return err
		case tok.Kind == xmlio.TokenEOF:
			return fmt.Errorf("kernel: object %s#%s: unterminated <attr %s>", c.Name, o.ObjectID(), name)
		case tok.Kind == xmlio.TokenStart && tok.Name == "data":
			dv, _ := tok.Attr("val")
			rd.Release(tok)
			elem, err := value.Parse(attr.Kind, dv, attr.Range)
			if err != nil {
				return fmt.Errorf("kernel: object %s#%s: %w", c.Name, o.ObjectID(), err)
			}
			if err := list.Append(elem); err != nil {
				return fmt.Errorf("kernel: object %s#%s: %w", c.Name, o.ObjectID(), err)
			}
		default:
			rd.Release(tok)
		}
	}
}

func parseAttrValue(attr *schema.Attribute, text string) (value.Value, error) {
	if attr.Multi {
		return value.ParseList(attr.Kind, text, attr.Range)
	}
	return value.Parse(attr.Kind, text, attr.Range)
}

func (k *Kernel) loadRel(rd *xmlio.Reader, start xmlio.Token, o *objstore.Object, c *schema.Class) error {
	name, _ := start.Attr("name")
	targetClassToken, hasClass := start.Attr("class")
	targetID, hasID := start.Attr("id")
	_, found := c.FindRelationship(name)
	rd.Release(start)
	if !found {
		return skipToEnd(rd, "rel")
	}

	if hasClass && hasID {
		targetClass, err := k.aliasTable.decode(targetClassToken)
		if err != nil {
			return fmt.Errorf("kernel: object %s#%s: %w", c.Name, o.ObjectID(), err)
		}
		if err := k.store.SetDeferred(o, name, value.UID{ClassName: targetClass, ID: targetID}); err != nil {
			return fmt.Errorf("kernel: object %s#%s: %w", c.Name, o.ObjectID(), err)
		}
		return skipToEnd(rd, "rel")
	}

	// Extended multi-valued form: explicit <ref class= id=/> children.
	for {
		tok, err := rd.NextStructuralTag()
		if err != nil {
			return err
		}
		switch {
		case tok.Kind == xmlio.TokenEnd && tok.Name == "rel":
			return nil
		case tok.Kind == xmlio.TokenEOF:
			return fmt.Errorf("kernel: object %s#%s: unterminated <rel %s>", c.Name, o.ObjectID(), name)
		case tok.Kind == xmlio.TokenStart && tok.Name == "ref":
			rcToken, _ := tok.Attr("class")
			rid, _ := tok.Attr("id")
			rd.Release(tok)
			rc, err := k.aliasTable.decode(rcToken)
			if err != nil {
				return fmt.Errorf("kernel: object %s#%s: %w", c.Name, o.ObjectID(), err)
			}
			if err := k.store.SetDeferred(o, name, value.UID{ClassName: rc, ID: rid}); err != nil {
				return fmt.Errorf("kernel: object %s#%s: %w", c.Name, o.ObjectID(), err)
			}
		default:
			rd.Release(tok)
		}
	}
}
