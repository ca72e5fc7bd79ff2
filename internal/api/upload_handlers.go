package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/abaykopenov/llm-scorm/internal/history"
	"github.com/abaykopenov/llm-scorm/pkg/handlers"
)

// ListRemoteCourses handles POST /api/lms/courses. It logs into the LMS with
// the saved credentials and returns the course codes visible to that account.
func (rt *Runtime) ListRemoteCourses(w http.ResponseWriter, r *http.Request) {
	client, _, err := rt.lmsClient(r.Context())
	if err != nil {
		handlers.RespondFail(w, rt.logger, mapStatus(err), err)
		return
	}

	codes, err := client.ListCourses(r.Context())
	if err != nil {
		handlers.RespondFail(w, rt.logger, mapStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"courses": codes,
	})
}

type uploadRequest struct {
	Filename   string `json:"filename"`
	CourseCode string `json:"course_code"`
}

// Upload handles POST /api/upload. With no filename the newest package from
// history is uploaded. Configuration problems are reported without touching
// the network.
func (rt *Runtime) Upload(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		handlers.RespondFail(w, rt.logger, http.StatusBadRequest, err)
		return
	}

	client, defaultCode, err := rt.lmsClient(r.Context())
	if err != nil {
		handlers.RespondFail(w, rt.logger, mapStatus(err), err)
		return
	}

	filename := req.Filename
	if filename == "" {
		entries, err := rt.history.List(r.Context(), 1)
		if err != nil {
			handlers.RespondFail(w, rt.logger, http.StatusInternalServerError, err)
			return
		}
		if len(entries) == 0 {
			handlers.RespondFail(w, rt.logger, http.StatusNotFound,
				fmt.Errorf("%w: no packages have been built", history.ErrNotFound))
			return
		}
		filename = entries[0].Filename
	} else {
		// Only recorded builds may leave the server.
		if _, err := rt.history.GetByFilename(r.Context(), filename); err != nil {
			handlers.RespondFail(w, rt.logger, mapArtifactStatus(err), err)
			return
		}
	}

	data, err := rt.store.Retrieve(r.Context(), filename)
	if err != nil {
		handlers.RespondFail(w, rt.logger, mapArtifactStatus(err), err)
		return
	}

	courseCode := req.CourseCode
	if courseCode == "" {
		courseCode = defaultCode
	}

	uploadedTo, err := client.Upload(r.Context(), filename, data, courseCode)
	if err != nil {
		handlers.RespondFail(w, rt.logger, mapStatus(err), err)
		return
	}

	rt.logger.Info("package uploaded", "filename", filename, "course", uploadedTo)
	handlers.RespondJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"filename": filename,
		"course":   uploadedTo,
	})
}
