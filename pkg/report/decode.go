package report

import "encoding/json"

// remarshal re-encodes a generic decoded map back through encoding/json
// into a typed struct. Ingest adapters hand Parse whatever
// map[string]any json.Unmarshal produced for one line/message; this
// keeps the tolerant-field rawPoint shape in one place instead of having
// every adapter hand-pick map keys.
func remarshal(raw map[string]any, out any) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
