package models

import (
	"strings"
)

// Command is a logical helper operation.
type Command string

const (
	CommandTranscribe Command = "transcribe"
	CommandSpeak      Command = "speak"
	CommandTrackFace  Command = "track/face"
	CommandTrackObj   Command = "track/object"
	CommandTrackAuto  Command = "track/auto"
	CommandTrackSet   Command = "track/set"
	CommandTrackClear Command = "track/clear"
	CommandDetect     Command = "detect"
	CommandClasses    Command = "classes"
)

var commands = map[string]Command{
	"transcribe":   CommandTranscribe,
	"speak":        CommandSpeak,
	"track/face":   CommandTrackFace,
	"track/object": CommandTrackObj,
	"track/auto":   CommandTrackAuto,
	"track/set":    CommandTrackSet,
	"track/clear":  CommandTrackClear,
	"detect":       CommandDetect,
	"classes":      CommandClasses,
}

// ParseCommand parses a command from a request path.
func ParseCommand(path string) (Command, bool) {
	normalized := strings.ToLower(strings.Trim(path, "/"))

	command, ok := commands[normalized]

	return command, ok
}
