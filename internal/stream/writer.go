package stream

import (
	"encoding/json"
	"fmt"
	"io"
)

// WriteMeta writes the completion marker carrying m to w.
func WriteMeta(w io.Writer, m Meta) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal stream metadata: %w", err)
	}
	if _, err := fmt.Fprintf(w, "%s%s%s", metaOpen, payload, metaClose); err != nil {
		return fmt.Errorf("failed to write completion marker: %w", err)
	}
	return nil
}

// WriteError writes the error marker carrying msg to w.
func WriteError(w io.Writer, msg string) error {
	if _, err := fmt.Fprintf(w, "%s%s%s", errOpen, msg, errClose); err != nil {
		return fmt.Errorf("failed to write error marker: %w", err)
	}
	return nil
}
