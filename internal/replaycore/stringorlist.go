package replaycore

import "encoding/json"

// StringOrList decodes a JSON value that may be either a single string or
// an array of strings, per spec.md §6 ("from (string or list), to (string
// or list)").
type StringOrList []string

// UnmarshalJSON accepts either a JSON string or a JSON array of strings.
func (s *StringOrList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = []string{single}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*s = list
	return nil
}

// MarshalJSON renders a single-element list as a bare string and anything
// else as a JSON array, mirroring how such fields are typically authored
// by hand in a playlist.
func (s StringOrList) MarshalJSON() ([]byte, error) {
	if len(s) == 1 {
		return json.Marshal(s[0])
	}
	return json.Marshal([]string(s))
}
