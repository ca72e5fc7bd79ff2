package api

import (
	"encoding/json"
	"net/http"

	"github.com/abaykopenov/llm-scorm/internal/course"
	"github.com/abaykopenov/llm-scorm/pkg/handlers"
)

// LoadCourse handles POST /api/course/load. The body is a complete course
// document; it replaces the working document only if it validates.
func (rt *Runtime) LoadCourse(w http.ResponseWriter, r *http.Request) {
	var doc course.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		handlers.RespondFail(w, rt.logger, http.StatusBadRequest, err)
		return
	}

	loaded, err := rt.orch.LoadDocument(&doc)
	if err != nil {
		handlers.RespondFail(w, rt.logger, mapStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"course": loaded,
	})
}

// UpdateCourse handles POST /api/course. A successful update immediately
// rebuilds the package so the downloadable artifact matches the edit.
func (rt *Runtime) UpdateCourse(w http.ResponseWriter, r *http.Request) {
	var doc course.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		handlers.RespondFail(w, rt.logger, http.StatusBadRequest, err)
		return
	}

	updated, artifact, err := rt.orch.UpdateDocument(r.Context(), &doc)
	if err != nil {
		handlers.RespondFail(w, rt.logger, mapStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"course":   updated,
		"filename": artifact.Filename,
	})
}

// BuildPackage handles POST /api/build. It packages the current working
// document into a fresh artifact.
func (rt *Runtime) BuildPackage(w http.ResponseWriter, r *http.Request) {
	artifact, err := rt.orch.BuildCurrent(r.Context())
	if err != nil {
		handlers.RespondFail(w, rt.logger, mapStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"filename": artifact.Filename,
		"size":     artifact.Size,
	})
}
