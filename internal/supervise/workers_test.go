package supervise

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestParseEngine(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Engine
		wantErr bool
	}{
		{name: "piper", input: "piper", want: EnginePiper},
		{name: "kokoro", input: "kokoro", want: EngineKokoro},
		{name: "empty defaults to piper", input: "", want: EnginePiper},
		{name: "case insensitive", input: "Kokoro", want: EngineKokoro},
		{name: "whitespace is trimmed", input: " piper ", want: EnginePiper},
		{name: "unknown engine", input: "espeak", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			engine, err := ParseEngine(tc.input)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrUnknownEngine)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, tc.want, engine)
		})
	}
}

func TestWorkerEnv(t *testing.T) {
	s := New(Params{
		Config: Config{ModelsPath: "/models"},
		Log:    zap.NewNop(),
	})

	env := s.workerEnv(WorkerConfig{ModelPath: "/models/voice.onnx"})
	assert.Equal(t, map[string]string{
		"MODELS_PATH": "/models",
		"MODEL_PATH":  "/models/voice.onnx",
	}, env)
}

func TestWorkerEnv_EmptyIsNil(t *testing.T) {
	s := New(Params{
		Config: Config{},
		Log:    zap.NewNop(),
	})

	assert.Nil(t, s.workerEnv(WorkerConfig{}))
}
