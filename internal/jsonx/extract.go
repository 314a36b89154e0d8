// Package jsonx extracts structured payloads from free-form model output.
package jsonx

import (
	"encoding/json"
	"log/slog"
	"strings"
)

// EmptyObject is returned when no decodable object is present.
const EmptyObject = "{}"

// ExtractObject returns the substring spanning the first valid JSON object in
// text, starting at the first opening brace. Leading and trailing commentary is
// tolerated; only the minimal valid prefix is returned. It never fails: if
// nothing decodes, it logs a warning and returns EmptyObject.
func ExtractObject(logger *slog.Logger, text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return EmptyObject
	}

	candidate := text[start:]
	decoder := json.NewDecoder(strings.NewReader(candidate))
	var raw json.RawMessage
	if err := decoder.Decode(&raw); err != nil {
		if logger != nil {
			logger.Warn("no valid JSON object found in model output",
				slog.String("text", truncate(text, 200)),
			)
		}
		return EmptyObject
	}
	return candidate[:decoder.InputOffset()]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
