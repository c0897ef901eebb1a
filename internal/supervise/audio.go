package supervise

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var audioMimeTypes = map[string]string{
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
}

// audioFileToDataURL reads a generated audio file, wraps it as a data
// URL and deletes the file. The helpers write each utterance to a
// fresh temp file, so cleanup failures are swallowed: a leaked temp
// file is preferable to failing an otherwise successful request.
func audioFileToDataURL(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read audio file: %w", err)
	}

	// best effort
	os.Remove(path)

	mime, ok := audioMimeTypes[strings.ToLower(filepath.Ext(path))]
	if !ok {
		mime = "audio/wav"
	}

	encoded := base64.StdEncoding.EncodeToString(data)

	return fmt.Sprintf("data:%s;base64,%s", mime, encoded), nil
}
