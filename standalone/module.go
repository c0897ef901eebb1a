package standalone

import (
	"github.com/faceplate/helperd/util/logging"
	"go.uber.org/fx"
)

// HandlerResult wraps a server handler into the fx handler group.
type HandlerResult struct {
	fx.Out

	Handler *ServerHandler `group:"handlers"`
}

func AsHandlerResult(handler *ServerHandler) HandlerResult {
	return HandlerResult{Handler: handler}
}

func Module(config HttpConfig) fx.Option {
	return fx.Module(
		"standalone",
		logging.DecorateLogger("serve"),
		// provide config
		fx.Supply(config),
		// provide command handler
		fx.Provide(func(params CommandHandlerParams) HandlerResult {
			return AsHandlerResult(NewCommandHandler(params))
		}),
		// provide server
		fx.Provide(NewLifecycleServer),
		// invoke server
		fx.Invoke(func(*HttpServer) {}),
	)
}
