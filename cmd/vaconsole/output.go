package main

import (
	"encoding/json"
	"fmt"
	"io"
)

// writeJSON 以缩进 JSON 输出
func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
