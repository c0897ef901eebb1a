package standalone

import (
	"io"
	"net/http"

	"github.com/faceplate/helperd/runtime"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type CommandHandlerParams struct {
	fx.In

	Handler runtime.Handler
	Logger  *zap.Logger
}

// NewCommandHandler exposes the runtime handler on the root path.
// The command is derived from the request path ("/speak",
// "/track/auto", ...), mirroring the IPC surface of the host app.
func NewCommandHandler(params CommandHandlerParams) *ServerHandler {
	handler := &CommandHandler{
		handler: params.Handler,
		log:     params.Logger,
	}

	return NewServerHandler("/", handler)
}

type CommandHandler struct {
	handler runtime.Handler
	log     *zap.Logger
}

func (h *CommandHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.log.Debug("failed to read body", zap.Error(err))
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	res := h.handler.Handle(r.Context(), runtime.Request{
		Path:   r.URL.Path,
		Method: r.Method,
		Body:   body,
		Header: r.Header,
	})

	for key, values := range res.Header {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}

	w.WriteHeader(res.StatusCode)

	if _, err := w.Write(res.Body); err != nil {
		h.log.Error("failed to write response", zap.Error(err))
	}
}
