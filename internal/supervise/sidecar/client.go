package sidecar

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Reply is the tracker's response body. Transport failures are
// mapped into a reply with success=false instead of an error, so
// callers always receive a tagged outcome to branch on.
type Reply map[string]any

func failure(err error) Reply {
	return Reply{"success": false, "error": err.Error()}
}

// Health performs a health check against the running tracker.
func (s *Service) Health(ctx context.Context) Reply {
	return s.get(ctx, "/health")
}

// Classes returns the set of object classes the tracker can detect.
func (s *Service) Classes(ctx context.Context) Reply {
	return s.get(ctx, "/classes")
}

// TrackFace locates the most prominent face in the frame.
func (s *Service) TrackFace(ctx context.Context, image string) Reply {
	return s.post(ctx, "/track/face", map[string]any{"image": image})
}

// TrackObject locates a named object in the frame.
func (s *Service) TrackObject(ctx context.Context, image, object string) Reply {
	return s.post(ctx, "/track/object", map[string]any{"image": image, "object": object})
}

// TrackAuto tracks the configured target, falling back to face
// tracking when no target is set.
func (s *Service) TrackAuto(ctx context.Context, image string) Reply {
	return s.post(ctx, "/track/auto", map[string]any{"image": image})
}

// SetTarget sets the object the tracker should follow.
func (s *Service) SetTarget(ctx context.Context, object string) Reply {
	return s.post(ctx, "/track/set", map[string]any{"object": object})
}

// ClearTarget reverts the tracker to face tracking.
func (s *Service) ClearTarget(ctx context.Context) Reply {
	return s.post(ctx, "/track/clear", map[string]any{})
}

// Detect runs full object detection on the frame.
func (s *Service) Detect(ctx context.Context, image string) Reply {
	return s.post(ctx, "/detect", map[string]any{"image": image})
}

func (s *Service) get(ctx context.Context, path string) Reply {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL()+path, nil)
	if err != nil {
		return failure(err)
	}

	return s.do(req)
}

func (s *Service) post(ctx context.Context, path string, body map[string]any) Reply {
	data, err := json.Marshal(body)
	if err != nil {
		return failure(err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		s.BaseURL()+path,
		bytes.NewReader(data),
	)
	if err != nil {
		return failure(err)
	}

	req.Header.Set("Content-Type", "application/json")

	return s.do(req)
}

func (s *Service) do(req *http.Request) Reply {
	res, err := s.client.Do(req)
	if err != nil {
		s.log.Debug("tracker request failed",
			zap.String("path", req.URL.Path),
			zap.Error(err),
		)
		return failure(err)
	}
	defer res.Body.Close()

	// the tracker reports errors in the body, status codes
	// included; pass the body through either way
	var reply Reply
	if err := json.NewDecoder(res.Body).Decode(&reply); err != nil {
		return failure(err)
	}

	// a bare "null" body decodes into a nil map
	if reply == nil {
		reply = Reply{}
	}

	if _, ok := reply["success"]; !ok {
		reply["success"] = res.StatusCode == http.StatusOK
	}

	return reply
}
