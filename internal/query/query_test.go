package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oks/internal/objstore"
	"oks/internal/schema"
	"oks/internal/value"
)

func newHostGraph(t *testing.T) *schema.Graph {
	t.Helper()
	g := schema.NewGraph()

	host, err := g.CreateClass("Host", false, "")
	require.NoError(t, err)
	require.NoError(t, g.AddAttribute(host, &schema.Attribute{Name: "cpus", Kind: value.KindS32}))
	require.NoError(t, g.AddAttribute(host, &schema.Attribute{Name: "kind", Kind: value.KindString}))

	rack, err := g.CreateClass("Rack", false, "")
	require.NoError(t, err)
	require.NoError(t, g.AddRelationship(rack, &schema.Relationship{
		Name: "contains", TargetClassName: "Host", High: schema.HighMany,
	}))

	room, err := g.CreateClass("Room", false, "")
	require.NoError(t, err)
	require.NoError(t, g.AddRelationship(room, &schema.Relationship{
		Name: "contains", TargetClassName: "Rack", High: schema.HighMany,
	}))

	require.Empty(t, g.BindClasses())
	return g
}

func TestRunAttributeComparator(t *testing.T) {
	g := newHostGraph(t)
	s := objstore.NewStore(g)

	h1, err := s.CreateObject("Host", "h1", nil)
	require.NoError(t, err)
	_, err = s.SetAttribute(h1, "cpus", value.Int(value.KindS32, 16))
	require.NoError(t, err)

	h2, err := s.CreateObject("Host", "h2", nil)
	require.NoError(t, err)
	_, err = s.SetAttribute(h2, "cpus", value.Int(value.KindS32, 4))
	require.NoError(t, err)

	results, err := Run(s, g, Query{
		ClassName: "Host",
		Root:      Attr("cpus", OpGreaterEqual, value.Int(value.KindS32, 8)),
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "h1", results[0].ObjectID())
}

func TestRunUsesIndexWhenAvailable(t *testing.T) {
	g := newHostGraph(t)
	s := objstore.NewStore(g)
	require.NoError(t, s.CreateIndex("Host", "cpus"))

	h1, err := s.CreateObject("Host", "h1", nil)
	require.NoError(t, err)
	_, err = s.SetAttribute(h1, "cpus", value.Int(value.KindS32, 16))
	require.NoError(t, err)

	h2, err := s.CreateObject("Host", "h2", nil)
	require.NoError(t, err)
	_, err = s.SetAttribute(h2, "cpus", value.Int(value.KindS32, 32))
	require.NoError(t, err)

	results, err := Run(s, g, Query{
		ClassName: "Host",
		Root:      Attr("cpus", OpEqual, value.Int(value.KindS32, 32)),
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "h2", results[0].ObjectID())
}

func TestRunTwoComparatorConjunctionOnSameIndexedAttribute(t *testing.T) {
	g := newHostGraph(t)
	s := objstore.NewStore(g)
	require.NoError(t, s.CreateIndex("Host", "cpus"))

	for id, cpus := range map[string]int64{"h1": 4, "h2": 8, "h3": 16, "h4": 32} {
		o, err := s.CreateObject("Host", id, nil)
		require.NoError(t, err)
		_, err = s.SetAttribute(o, "cpus", value.Int(value.KindS32, cpus))
		require.NoError(t, err)
	}

	results, err := Run(s, g, Query{
		ClassName: "Host",
		Root: And(
			Attr("cpus", OpGreaterEqual, value.Int(value.KindS32, 8)),
			Attr("cpus", OpLess, value.Int(value.KindS32, 32)),
		),
	})
	require.NoError(t, err)
	ids := objIDs(results)
	assert.ElementsMatch(t, []string{"h2", "h3"}, ids)
}

func TestRunRelationshipSomeAndAllQuantifiers(t *testing.T) {
	g := newHostGraph(t)
	s := objstore.NewStore(g)

	h1, err := s.CreateObject("Host", "h1", nil)
	require.NoError(t, err)
	_, err = s.SetAttribute(h1, "kind", value.String("gpu"))
	require.NoError(t, err)

	h2, err := s.CreateObject("Host", "h2", nil)
	require.NoError(t, err)
	_, err = s.SetAttribute(h2, "kind", value.String("cpu"))
	require.NoError(t, err)

	rackAll, err := s.CreateObject("Rack", "rAll", nil)
	require.NoError(t, err)
	require.NoError(t, s.AddRelationshipValue(rackAll, "contains", h1))

	rackMixed, err := s.CreateObject("Rack", "rMixed", nil)
	require.NoError(t, err)
	require.NoError(t, s.AddRelationshipValue(rackMixed, "contains", h1))
	require.NoError(t, s.AddRelationshipValue(rackMixed, "contains", h2))

	isGPU := Attr("kind", OpEqual, value.String("gpu"))

	some, err := Run(s, g, Query{
		ClassName: "Rack",
		Root:      Relationship("contains", QuantifierSome, isGPU),
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"rAll", "rMixed"}, objIDs(some))

	all, err := Run(s, g, Query{
		ClassName: "Rack",
		Root:      Relationship("contains", QuantifierAll, isGPU),
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"rAll"}, objIDs(all))
}

func TestRunUnresolvedDuringQuery(t *testing.T) {
	g := newHostGraph(t)
	s := objstore.NewStore(g)

	rack, err := s.CreateObject("Rack", "r1", nil)
	require.NoError(t, err)
	require.NoError(t, s.SetDeferred(rack, "contains", value.UID{ClassName: "Host", ID: "ghost"}))

	_, err = Run(s, g, Query{
		ClassName: "Rack",
		Root:      Relationship("contains", QuantifierSome, Attr("kind", OpEqual, value.String("gpu"))),
	})
	assert.ErrorIs(t, err, ErrUnresolvedDuringQuery)
}

func TestRunRegexComparator(t *testing.T) {
	g := newHostGraph(t)
	s := objstore.NewStore(g)

	h1, err := s.CreateObject("Host", "h1", nil)
	require.NoError(t, err)
	_, err = s.SetAttribute(h1, "kind", value.String("host-042"))
	require.NoError(t, err)

	h2, err := s.CreateObject("Host", "h2", nil)
	require.NoError(t, err)
	_, err = s.SetAttribute(h2, "kind", value.String("host-42"))
	require.NoError(t, err)

	rng, err := value.ParseRange(value.KindString, `^host-[0-9]{3}$`)
	require.NoError(t, err)

	results, err := Run(s, g, Query{
		ClassName: "Host",
		Root:      AttrRegex("kind", rng),
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "h1", results[0].ObjectID())
}

func objIDs(objs []*objstore.Object) []string {
	out := make([]string, len(objs))
	for i, o := range objs {
		out[i] = o.ObjectID()
	}
	return out
}
