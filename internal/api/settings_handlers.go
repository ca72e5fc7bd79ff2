package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/abaykopenov/llm-scorm/internal/settings"
	"github.com/abaykopenov/llm-scorm/pkg/handlers"
)

// GetSettings handles GET /api/settings. Secrets are masked; the real
// values never leave the server.
func (rt *Runtime) GetSettings(w http.ResponseWriter, r *http.Request) {
	snap, err := rt.settings.Get(r.Context())
	if err != nil {
		handlers.RespondError(w, rt.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, snap.Masked())
}

// SaveSettings handles POST /api/settings. Posting the mask placeholder for
// a secret keeps the stored value.
func (rt *Runtime) SaveSettings(w http.ResponseWriter, r *http.Request) {
	var incoming settings.Settings
	if err := json.NewDecoder(r.Body).Decode(&incoming); err != nil {
		handlers.RespondError(w, rt.logger, http.StatusBadRequest, err)
		return
	}

	saved, err := rt.settings.Save(r.Context(), incoming)
	if err != nil {
		handlers.RespondError(w, rt.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, saved.Masked())
}

type testConnectionRequest struct {
	Kind string `json:"kind"`
}

// TestConnection handles POST /api/test-connection for both external
// dependencies. The kind selects which adapter to probe.
func (rt *Runtime) TestConnection(w http.ResponseWriter, r *http.Request) {
	var req testConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.RespondFail(w, rt.logger, http.StatusBadRequest, err)
		return
	}

	switch req.Kind {
	case "llm":
		client, err := rt.llmClient(r.Context())
		if err != nil {
			handlers.RespondFail(w, rt.logger, mapStatus(err), err)
			return
		}
		models, err := client.ListModels(r.Context())
		if err != nil {
			handlers.RespondFail(w, rt.logger, mapStatus(err), err)
			return
		}
		handlers.RespondJSON(w, http.StatusOK, map[string]any{
			"ok":      true,
			"message": llmProbeMessage(client.Model(), models),
			"models":  models,
		})

	case "lms":
		client, _, err := rt.lmsClient(r.Context())
		if err == nil {
			err = client.TestConnection(r.Context())
		}
		if err != nil {
			handlers.RespondFail(w, rt.logger, mapStatus(err), err)
			return
		}
		handlers.RespondJSON(w, http.StatusOK, map[string]any{
			"ok":      true,
			"message": "LMS login succeeded",
		})

	default:
		handlers.RespondFail(w, rt.logger, http.StatusBadRequest,
			fmt.Errorf("unknown connection kind %q", req.Kind))
	}
}

// llmProbeMessage summarizes a successful provider probe, including whether
// the configured model appears in the listing. Local servers report short
// names ("llama3:8b") so the match is a substring check.
func llmProbeMessage(model string, models []string) string {
	msg := "LLM provider reachable"
	if len(models) > 0 {
		msg = fmt.Sprintf("LLM provider reachable, %d models", len(models))
	}
	if model == "" || len(models) == 0 {
		return msg
	}
	for _, m := range models {
		if strings.Contains(m, model) {
			return msg + ", model " + model + " found"
		}
	}
	return msg + ", model " + model + " not listed"
}
