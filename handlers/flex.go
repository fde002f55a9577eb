package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// jsonText accepts string, number, or null JSON values and normalizes to string.
// Checkpoint devices send tag numbers and epoch timestamps either way.
type jsonText string

func (t *jsonText) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = jsonText(s)
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var n json.Number
	if err := dec.Decode(&n); err == nil {
		*t = jsonText(n.String())
		return nil
	}

	return fmt.Errorf("expected string, number, or null")
}
