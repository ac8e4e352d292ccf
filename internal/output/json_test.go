package output

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJSONFormatterFormatQuery(t *testing.T) {
	f := jsonFormatter{}
	out, err := f.FormatQuery(QueryResult{
		ClassName:       "Host",
		IncludeSubclass: true,
		Matches:         []ObjectRef{{ClassName: "Host", ID: "h1"}},
	})
	require.NoError(t, err)

	var payload queryPayload
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	require.Equal(t, "json", payload.Format)
	require.Equal(t, "Host", payload.ClassName)
	require.True(t, payload.IncludeSubclass)
	require.Equal(t, 1, payload.Count)
	require.Equal(t, []ObjectRef{{ClassName: "Host", ID: "h1"}}, payload.Matches)
}

func TestJSONFormatterFormatPath(t *testing.T) {
	f := jsonFormatter{}
	start := ObjectRef{ClassName: "Room", ID: "R1"}
	goal := ObjectRef{ClassName: "Host", ID: "h1"}
	out, err := f.FormatPath(PathResult{
		Start: start,
		Goal:  goal,
		Found: true,
		Path:  []ObjectRef{start, goal},
	})
	require.NoError(t, err)

	var payload pathPayload
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	require.Equal(t, "json", payload.Format)
	require.True(t, payload.Found)
	require.Equal(t, 2, payload.Length)
	require.Equal(t, []ObjectRef{start, goal}, payload.Path)
}
