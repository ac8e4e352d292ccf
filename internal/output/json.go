package output

import "encoding/json"

type jsonFormatter struct{}

type queryPayload struct {
	Format          string      `json:"format"`
	ClassName       string      `json:"class"`
	IncludeSubclass bool        `json:"includeSubclass"`
	Count           int         `json:"count"`
	Matches         []ObjectRef `json:"matches,omitempty"`
}

type pathPayload struct {
	Format string      `json:"format"`
	Start  ObjectRef   `json:"start"`
	Goal   ObjectRef   `json:"goal"`
	Found  bool        `json:"found"`
	Length int         `json:"length"`
	Path   []ObjectRef `json:"path,omitempty"`
}

func (jsonFormatter) FormatQuery(r QueryResult) (string, error) {
	payload := queryPayload{
		Format:          string(FormatJSON),
		ClassName:       r.ClassName,
		IncludeSubclass: r.IncludeSubclass,
		Count:           len(r.Matches),
		Matches:         r.Matches,
	}
	return marshalJSON(payload)
}

func (jsonFormatter) FormatPath(r PathResult) (string, error) {
	payload := pathPayload{
		Format: string(FormatJSON),
		Start:  r.Start,
		Goal:   r.Goal,
		Found:  r.Found,
		Length: len(r.Path),
		Path:   r.Path,
	}
	return marshalJSON(payload)
}

func marshalJSON(payload interface{}) (string, error) {
	b, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}
