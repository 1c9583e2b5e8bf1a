package mcpserver

import (
	"encoding/json"
	"fmt"

	"blocknotes/internal/domain"
)

// parseJSON decodes a JSON tool argument. name is the argument reported in
// the validation error.
func parseJSON(name, data string, target any) error {
	if err := json.Unmarshal([]byte(data), target); err != nil {
		return fmt.Errorf("%w: invalid %s JSON: %v", domain.ErrValidation, name, err)
	}
	return nil
}

// rawJSON returns data as a raw message after checking that it parses.
func rawJSON(name, data string) (json.RawMessage, error) {
	if !json.Valid([]byte(data)) {
		return nil, fmt.Errorf("%w: %s is not valid JSON", domain.ErrValidation, name)
	}
	return json.RawMessage(data), nil
}

func boolPtr(v bool) *bool { return &v }
