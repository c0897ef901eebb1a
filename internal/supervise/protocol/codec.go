// Package protocol implements the newline-delimited wire protocol
// spoken by the helper processes on stdin/stdout.
//
// Requests are either a single JSON object or a sanitized text line,
// both terminated by a newline. Responses are JSON objects carrying a
// boolean "success" field. Anything else on stdout is incidental log
// output and must not be mistaken for a response.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyUtterance is returned when a speech request sanitizes down
// to nothing. An empty line is not a valid request: the helpers never
// reply to it, which would leave the worker occupied forever.
var ErrEmptyUtterance = errors.New("empty utterance")

// Reply is a decoded response line from a helper process.
type Reply struct {
	Success bool   `json:"success"`
	Text    string `json:"text,omitempty"`
	File    string `json:"file,omitempty"`
	Error   string `json:"error,omitempty"`
}

// EncodeAudioPath encodes a transcription request for the STT helper,
// a JSON object with the path to the audio file, newline-terminated.
func EncodeAudioPath(path string) ([]byte, error) {
	data, err := json.Marshal(struct {
		AudioPath string `json:"audio_path"`
	}{
		AudioPath: path,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	return append(data, '\n'), nil
}

// EncodeSpeechText encodes an utterance for the TTS helpers. The
// protocol has no structured envelope: the text itself is the request,
// so embedded newlines are collapsed into spaces to keep it a single
// line. Text that sanitizes down to nothing is rejected with
// ErrEmptyUtterance.
func EncodeSpeechText(text string) ([]byte, error) {
	sanitized := strings.ReplaceAll(text, "\r\n", " ")
	sanitized = strings.ReplaceAll(sanitized, "\n", " ")
	sanitized = strings.ReplaceAll(sanitized, "\r", " ")
	sanitized = strings.TrimSpace(sanitized)

	if sanitized == "" {
		return nil, ErrEmptyUtterance
	}

	return append([]byte(sanitized), '\n'), nil
}

// DecodeReply decodes a stdout line into a Reply. The second return
// value reports whether the line was part of the response grammar at
// all: lines that are not JSON objects, or that lack a boolean
// "success" field, are log noise and must be ignored by the caller.
func DecodeReply(line string) (Reply, bool) {
	trimmed := strings.TrimSpace(line)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Reply{}, false
	}

	// peek at the success discriminator before committing
	// to the full decode
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &fields); err != nil {
		return Reply{}, false
	}

	raw, ok := fields["success"]
	if !ok {
		return Reply{}, false
	}

	var success bool
	if err := json.Unmarshal(raw, &success); err != nil {
		return Reply{}, false
	}

	var reply Reply
	if err := json.Unmarshal([]byte(trimmed), &reply); err != nil {
		return Reply{}, false
	}

	return reply, true
}
