package runtime

import (
	"fmt"

	"github.com/faceplate/helperd/models"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
)

// validationError is an error that occurs during validation.
type validationError struct {
	Result *gojsonschema.Result
}

func newValidationError(result *gojsonschema.Result) *validationError {
	return &validationError{
		Result: result,
	}
}

func (e *validationError) Error() string {
	if e.Result == nil || len(e.Result.Errors()) == 0 {
		return "validation failed"
	}

	return fmt.Sprintf("validation failed: %s", e.Result.Errors()[0])
}

// validate validates the request data against the schema for the
// given command.
func (h *RuntimeHandler) validate(
	command models.Command,
	data []byte,
) error {
	log := h.log.With(zap.String("command", string(command)))

	res, err := h.requestSchema.Validate(command, data)
	if err != nil {
		log.Debug("validation failed", zap.Error(err))
		return ErrValidationFailed
	}

	if res.Valid() {
		return nil
	}

	log.Debug("invalid data", zap.Any("errors", res.Errors()))

	return newValidationError(res)
}
