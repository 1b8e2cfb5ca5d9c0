package server

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/driftcode/fimproxy/internal/config"
	"github.com/driftcode/fimproxy/internal/stream"
	"github.com/driftcode/fimproxy/web"
)

// requestIDHeader is the header a request's unique ID is echoed back on,
// so a client can correlate a failed call with server-side logs.
const requestIDHeader = "X-Request-Id"

// apiHandler holds the dependencies shared by every route.
type apiHandler struct {
	predictor *Predictor
	cfg       *config.Config
	logger    zerolog.Logger
}

// predictRequest is the JSON body accepted by /predict and /predict/stream.
type predictRequest struct {
	Prefix string `json:"prefix"`
	Suffix string `json:"suffix"`
}

// predictResponse is the JSON body returned by /predict. An empty
// completion with no error means a short-circuit or guardrail rejection.
type predictResponse struct {
	Completion string `json:"completion"`
}

func (h *apiHandler) handlePredict(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	w.Header().Set(requestIDHeader, requestID)

	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID := resolveIdentity(r)
	completion, err := h.predictor.Predict(r.Context(), userID, req.Prefix, req.Suffix)
	if err != nil {
		logPipelineError(h.logger, requestID, userID, err)
		completion = ""
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(predictResponse{Completion: completion})
}

func (h *apiHandler) handlePredictStream(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	w.Header().Set(requestIDHeader, requestID)

	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	userID := resolveIdentity(r)
	chunks, errs := h.predictor.PredictStream(r.Context(), userID, req.Prefix, req.Suffix)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sw := stream.NewWriter(w)
	for chunks != nil || errs != nil {
		select {
		case chunk, open := <-chunks:
			if !open {
				chunks = nil
				continue
			}
			if err := sw.WriteEvent(&stream.Event{Event: "completion", Data: chunk}); err != nil {
				return
			}
		case err, open := <-errs:
			if !open {
				errs = nil
				continue
			}
			if err != nil {
				logPipelineError(h.logger, requestID, userID, err)
				_ = sw.WriteEvent(&stream.Event{Event: "error", Data: err.Error()})
				return
			}
		}
	}
}

func (h *apiHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// handleConfig returns the whole loaded Config as JSON. Every key_ref is a
// reference, never a resolved secret, so the Provider section is returned
// verbatim.
func (h *apiHandler) handleConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(h.cfg)
}

func (h *apiHandler) handleUI() http.Handler {
	fileServer := http.FileServer(http.FS(web.StaticFS()))
	return http.StripPrefix("/ui/", fileServer)
}

// writeJSONError writes a JSON error response with the given status code
// and message.
func writeJSONError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	resp := map[string]any{
		"error": map[string]any{
			"message": message,
		},
	}
	data, _ := json.Marshal(resp)
	_, _ = w.Write(data)
}
