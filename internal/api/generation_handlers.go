package api

import (
	"encoding/json"
	"net/http"

	"github.com/abaykopenov/llm-scorm/internal/generation"
	"github.com/abaykopenov/llm-scorm/internal/llm"
	"github.com/abaykopenov/llm-scorm/pkg/handlers"
)

// statusResponse mirrors what the polling frontend consumes. Course and
// Error are omitted until they carry a value.
type statusResponse struct {
	Generating bool   `json:"generating"`
	Percent    int    `json:"pct"`
	Message    string `json:"msg"`
	Course     any    `json:"course,omitempty"`
	Error      string `json:"error,omitempty"`
}

// StartGeneration handles POST /api/generate. The request is validated and
// accepted synchronously; the LLM work runs detached and is observed through
// GenerationStatus.
func (rt *Runtime) StartGeneration(w http.ResponseWriter, r *http.Request) {
	var req llm.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.RespondFail(w, rt.logger, http.StatusBadRequest, err)
		return
	}

	if req.Language == "" {
		if snap, err := rt.settings.Get(r.Context()); err == nil {
			req.Language = snap.CourseLanguage
		}
	}

	if err := rt.orch.Start(req); err != nil {
		handlers.RespondFail(w, rt.logger, mapStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// GenerationStatus handles GET /api/generate/status.
func (rt *Runtime) GenerationStatus(w http.ResponseWriter, r *http.Request) {
	snap := rt.orch.Status()

	resp := statusResponse{
		Generating: snap.Generating(),
		Percent:    snap.Percent,
		Message:    snap.Message,
		Error:      snap.Error,
	}
	if snap.Phase == generation.PhaseSucceeded && snap.Course != nil {
		resp.Course = snap.Course
	}

	handlers.RespondJSON(w, http.StatusOK, resp)
}
