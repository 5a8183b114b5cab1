package core

import "encoding/json"

// UnmarshalJSON accepts both adjacency entry formats: the current object form
// and the legacy bare id string.
func (e *FollowEntry) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*e = FollowEntry{ID: id}
		return nil
	}

	type entry FollowEntry
	var decoded entry
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*e = FollowEntry(decoded)
	return nil
}
