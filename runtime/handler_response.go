package runtime

import (
	"encoding/json"
	"net/http"
)

// getErrorStatusCode returns the status code for the given error.
func getErrorStatusCode(err error) int {
	if status, ok := wellKnownErrors[err]; ok {
		return status
	}

	if _, ok := err.(*validationError); ok {
		return http.StatusUnprocessableEntity
	}

	return http.StatusInternalServerError
}

// newErrorResponse creates a new error response.
func newErrorResponse(err error) Response {
	statusCode := getErrorStatusCode(err)

	type responseError struct {
		Message string `json:"message"`
	}

	body, marshalErr := json.Marshal(struct {
		Error responseError `json:"error"`
	}{
		Error: responseError{
			Message: err.Error(),
		},
	})
	if marshalErr != nil {
		return newResponse(http.StatusInternalServerError, nil)
	}

	return newResponse(statusCode, body)
}

// newResponse creates a new response.
func newResponse(statusCode int, body []byte) Response {
	header := http.Header{}
	header.Set("Content-Type", "application/json")

	return Response{
		StatusCode: statusCode,
		Body:       body,
		Header:     header,
	}
}
