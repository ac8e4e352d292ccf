package xmlio

import "sync"

// attrSlicePool recycles the []Attr backing arrays NextTag hands out, so a
// long load does not reallocate a fresh attribute slice per start tag.
var attrSlicePool = sync.Pool{
	New: func() any {
		s := make([]Attr, 0, 8)
		return &s
	},
}

func getAttrSlice() *[]Attr {
	return attrSlicePool.Get().(*[]Attr)
}

func putAttrSlice(s *[]Attr) {
	*s = (*s)[:0]
	attrSlicePool.Put(s)
}

// builderPool recycles charBuf byte buffers used to accumulate
// character data between start and end tags.
var builderPool = sync.Pool{
	New: func() any { return new(charBuf) },
}

type charBuf struct {
	buf []byte
}

func (c *charBuf) reset() { c.buf = c.buf[:0] }

func getCharBuf() *charBuf {
	return builderPool.Get().(*charBuf)
}

func putCharBuf(c *charBuf) {
	c.reset()
	builderPool.Put(c)
}
