package schema

import (
	_ "embed"
	"encoding/json"
	"errors"

	"github.com/faceplate/helperd/models"
	"github.com/xeipuuv/gojsonschema"
)

// Schema validates request bodies against the JSON schema of their
// command.
type Schema struct {
	schemas map[models.Command]*gojsonschema.Schema
}

func (s *Schema) Get(command models.Command) (*gojsonschema.Schema, error) {
	schema, ok := s.schemas[command]
	if !ok {
		return nil, errors.New("schema not found")
	}

	return schema, nil
}

func (s *Schema) Validate(command models.Command, data []byte) (*gojsonschema.Result, error) {
	schema, err := s.Get(command)
	if err != nil {
		return nil, err
	}

	if len(data) == 0 {
		data = []byte("{}")
	}

	return schema.Validate(gojsonschema.NewBytesLoader(data))
}

//go:embed request-transcribe.json
var transcribeRequest json.RawMessage

//go:embed request-speak.json
var speakRequest json.RawMessage

//go:embed request-frame.json
var frameRequest json.RawMessage

//go:embed request-target.json
var targetRequest json.RawMessage

//go:embed request-empty.json
var emptyRequest json.RawMessage

// NewRequestSchema builds the command-to-schema mapping for incoming
// requests. Frame-carrying tracking commands share one schema.
func NewRequestSchema() (*Schema, error) {
	transcribe, err := compile(transcribeRequest)
	if err != nil {
		return nil, err
	}

	speak, err := compile(speakRequest)
	if err != nil {
		return nil, err
	}

	frame, err := compile(frameRequest)
	if err != nil {
		return nil, err
	}

	target, err := compile(targetRequest)
	if err != nil {
		return nil, err
	}

	empty, err := compile(emptyRequest)
	if err != nil {
		return nil, err
	}

	return &Schema{
		schemas: map[models.Command]*gojsonschema.Schema{
			models.CommandTranscribe: transcribe,
			models.CommandSpeak:      speak,
			models.CommandTrackFace:  frame,
			models.CommandTrackObj:   frame,
			models.CommandTrackAuto:  frame,
			models.CommandDetect:     frame,
			models.CommandTrackSet:   target,
			models.CommandTrackClear: empty,
			models.CommandClasses:    empty,
		},
	}, nil
}

func compile(raw json.RawMessage) (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
}
