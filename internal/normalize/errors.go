package normalize

import (
	"fmt"
	"strings"

	"taiwan-calendar/internal/model"
)

// SchemaResolutionError reports a header that no registered schema can map.
type SchemaResolutionError struct {
	Signature string
	Header    []string
	Missing   []model.Role
	Schema    string
}

func (e *SchemaResolutionError) Error() string {
	missing := make([]string, len(e.Missing))
	for i, r := range e.Missing {
		missing[i] = string(r)
	}
	if len(e.Header) == 0 {
		return "schema resolution: source has no header row"
	}
	msg := fmt.Sprintf("schema resolution: no alias for required role(s) %s in header %q",
		strings.Join(missing, ", "), e.Signature)
	if e.Schema != "" {
		msg += " (schema " + e.Schema + ")"
	}
	return msg
}

// EncodingError reports bytes that none of the candidate encodings could decode cleanly.
type EncodingError struct {
	Tried []string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("no candidate encoding decoded the source cleanly (tried %s)", strings.Join(e.Tried, ", "))
}
