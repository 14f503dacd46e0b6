package serialmux

import "encoding/json"

// Line types emitted by the tracking service.
const (
	LineTypeFrame   = "frame"
	LineTypeLog     = "log"
	LineTypeStatus  = "status"
	LineTypeUnknown = "unknown"
)

type envelope struct {
	Type string `json:"type"`
}

// ClassifyLine inspects a line from the tracking service and returns its
// type token. Anything that is not a JSON object with a known "type" is
// LineTypeUnknown.
func ClassifyLine(line string) string {
	if len(line) == 0 || line[0] != '{' {
		return LineTypeUnknown
	}
	var env envelope
	if err := json.Unmarshal([]byte(line), &env); err != nil {
		return LineTypeUnknown
	}
	switch env.Type {
	case LineTypeFrame, LineTypeLog, LineTypeStatus:
		return env.Type
	default:
		return LineTypeUnknown
	}
}
