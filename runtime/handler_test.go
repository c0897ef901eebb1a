package runtime_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/faceplate/helperd/runtime"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// mockRuntime implements the runtime.Runtime interface.
type mockRuntime struct {
	mock.Mock
}

func (m *mockRuntime) Handle(ctx context.Context, message runtime.Message) (runtime.Message, error) {
	args := m.Called(ctx, message)

	return args.Get(0).(runtime.Message), args.Error(1)
}

func (m *mockRuntime) Start(ctx context.Context) error {
	// Not required for tests
	panic("Not required")
}

func (m *mockRuntime) Shutdown(ctx context.Context) error {
	// Not required for tests
	panic("Not required")
}

func setupLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

func setupHandler(t *testing.T, response runtime.Message) runtime.Handler {
	mockRT := new(mockRuntime)
	mockRT.On("Handle", mock.Anything, mock.Anything).Return(response, nil)

	handler, err := runtime.NewRuntimeHandler(runtime.HandlerParams{
		Runtime: mockRT,
		Log:     setupLogger(t),
	})
	require.NoError(t, err)

	return handler
}

func createRequestBody(t *testing.T, body map[string]any) []byte {
	bodyBytes, err := json.Marshal(body)
	require.NoError(t, err)
	return bodyBytes
}

func parseResponseBody(t *testing.T, resp runtime.Response) map[string]any {
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var respBody map[string]any
	err := json.Unmarshal(resp.Body, &respBody)
	require.NoError(t, err)

	return respBody
}

func TestRuntimeHandler_Handle_Transcribe(t *testing.T) {
	response := runtime.NewMessage(
		"transcribe",
		[]byte(`{"success":true,"text":"hello world"}`),
	)

	handler := setupHandler(t, response)

	body := createRequestBody(t, map[string]any{
		"audio_path": "/tmp/clip.wav",
	})

	resp := handler.Handle(context.Background(), runtime.Request{
		Method: http.MethodPost,
		Path:   "/transcribe",
		Body:   body,
		Header: http.Header{},
	})

	respBody := parseResponseBody(t, resp)
	require.Equal(t, true, respBody["success"])
	require.Equal(t, "hello world", respBody["text"])
}

func TestRuntimeHandler_Handle_CommandHeader(t *testing.T) {
	response := runtime.NewMessage(
		"classes",
		[]byte(`{"success":true,"classes":[]}`),
	)

	handler := setupHandler(t, response)

	resp := handler.Handle(context.Background(), runtime.Request{
		Method: http.MethodGet,
		Path:   "/",
		Body:   nil,
		Header: http.Header{"Command": []string{"classes"}},
	})

	respBody := parseResponseBody(t, resp)
	require.Equal(t, true, respBody["success"])
}

func TestRuntimeHandler_Handle_MissingCommand(t *testing.T) {
	handler := setupHandler(t, runtime.Message{})

	resp := handler.Handle(context.Background(), runtime.Request{
		Method: http.MethodPost,
		Path:   "/",
		Header: http.Header{},
	})

	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRuntimeHandler_Handle_InvalidCommand(t *testing.T) {
	handler := setupHandler(t, runtime.Message{})

	resp := handler.Handle(context.Background(), runtime.Request{
		Method: http.MethodPost,
		Path:   "/reboot",
		Header: http.Header{},
	})

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRuntimeHandler_Handle_InvalidMethod(t *testing.T) {
	handler := setupHandler(t, runtime.Message{})

	resp := handler.Handle(context.Background(), runtime.Request{
		Method: http.MethodGet,
		Path:   "/transcribe",
		Header: http.Header{},
	})

	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestRuntimeHandler_Handle_ClassesIsGet(t *testing.T) {
	handler := setupHandler(t, runtime.Message{})

	resp := handler.Handle(context.Background(), runtime.Request{
		Method: http.MethodPost,
		Path:   "/classes",
		Header: http.Header{},
	})

	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestRuntimeHandler_Handle_ValidationFailure(t *testing.T) {
	handler := setupHandler(t, runtime.Message{})

	// transcribe requires audio_path
	resp := handler.Handle(context.Background(), runtime.Request{
		Method: http.MethodPost,
		Path:   "/transcribe",
		Body:   createRequestBody(t, map[string]any{}),
		Header: http.Header{},
	})

	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestRuntimeHandler_Handle_InvalidEngine(t *testing.T) {
	handler := setupHandler(t, runtime.Message{})

	resp := handler.Handle(context.Background(), runtime.Request{
		Method: http.MethodPost,
		Path:   "/speak",
		Body: createRequestBody(t, map[string]any{
			"engine": "espeak",
			"text":   "hello",
		}),
		Header: http.Header{},
	})

	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}
