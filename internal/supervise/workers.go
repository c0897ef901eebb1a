package supervise

import (
	"errors"
	"strings"

	"github.com/faceplate/helperd/internal/supervise/pool"
	"github.com/faceplate/helperd/internal/supervise/protocol"
	"github.com/faceplate/helperd/internal/supervise/worker"
)

// Engine selects one of the text-to-speech helpers.
type Engine string

const (
	EnginePiper  Engine = "piper"
	EngineKokoro Engine = "kokoro"
)

var ErrUnknownEngine = errors.New("unknown tts engine")

// ParseEngine parses a tts engine name. An empty name selects Piper.
func ParseEngine(s string) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "piper":
		return EnginePiper, nil
	case "kokoro":
		return EngineKokoro, nil
	}

	return "", ErrUnknownEngine
}

// Worker identifiers, also used as registry keys.
const (
	workerStt       = "stt"
	workerPiperTts  = "piper-tts"
	workerKokoroTts = "kokoro-tts"
)

// sttSpec builds the speech-to-text worker spec. The payload is the
// path to a temp audio file; the result is the transcript.
func (s *Supervisor) sttSpec() pool.Spec {
	return pool.Spec{
		ID: workerStt,
		Start: worker.StartConfig{
			Cmd:  s.config.Stt.Cmd,
			Args: s.config.Stt.Args,
			Env:  s.workerEnv(s.config.Stt),
		},
		Encode:      protocol.EncodeAudioPath,
		Decode:      protocol.DecodeReply,
		SendTimeout: s.config.SendTimeout,
	}
}

// ttsSpec builds a text-to-speech worker spec. The payload is the
// utterance text; the helper replies with a path to a generated audio
// file, which is read back, wrapped as a data URL and deleted.
func (s *Supervisor) ttsSpec(id string, cfg WorkerConfig) pool.Spec {
	return pool.Spec{
		ID: id,
		Start: worker.StartConfig{
			Cmd:  cfg.Cmd,
			Args: cfg.Args,
			Env:  s.workerEnv(cfg),
		},
		Encode: protocol.EncodeSpeechText,
		Decode: protocol.DecodeReply,
		Post: func(reply protocol.Reply) (string, error) {
			return audioFileToDataURL(reply.File)
		},
		SendTimeout: s.config.SendTimeout,
	}
}

// workerEnv builds the model-path environment overlay for a helper.
func (s *Supervisor) workerEnv(cfg WorkerConfig) map[string]string {
	env := map[string]string{}

	if s.config.ModelsPath != "" {
		env["MODELS_PATH"] = s.config.ModelsPath
	}

	if cfg.ModelPath != "" {
		env["MODEL_PATH"] = cfg.ModelPath
	}

	if len(env) == 0 {
		return nil
	}

	return env
}
