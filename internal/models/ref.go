package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Ref is a soft reference to another record by identifier.
// It decodes from a JSON string or number and always encodes as a string.
type Ref string

// UnmarshalJSON accepts "abc", 42 and null
func (r *Ref) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = Ref(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("reference must be a string or a number, got %s", string(data))
	}
	*r = Ref(n.String())
	return nil
}

func (r Ref) String() string {
	return string(r)
}
