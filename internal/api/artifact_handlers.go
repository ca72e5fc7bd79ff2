package api

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"

	"github.com/abaykopenov/llm-scorm/pkg/handlers"
	"github.com/abaykopenov/llm-scorm/pkg/storage"
)

const defaultHistoryLimit = 50

// Download handles GET /api/download/{filename} and streams the stored
// package as an attachment.
func (rt *Runtime) Download(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("filename")

	filePath, err := rt.store.Path(r.Context(), filename)
	if err != nil {
		handlers.RespondError(w, rt.logger, mapArtifactStatus(err), err)
		return
	}
	if _, err := rt.store.Size(r.Context(), filename); err != nil {
		handlers.RespondError(w, rt.logger, mapArtifactStatus(err), err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	http.ServeFile(w, r, filePath)
}

// Preview handles GET /api/preview/{filename}/{path...}. It serves files
// straight out of the stored zip so the package can be previewed in an
// iframe without unpacking it on disk.
func (rt *Runtime) Preview(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("filename")
	inner := r.PathValue("path")
	if inner == "" {
		inner = "index.html"
	}

	data, err := rt.store.Retrieve(r.Context(), filename)
	if err != nil {
		handlers.RespondError(w, rt.logger, mapArtifactStatus(err), err)
		return
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		handlers.RespondError(w, rt.logger, http.StatusInternalServerError, err)
		return
	}

	f, err := zr.Open(inner)
	if err != nil {
		handlers.RespondError(w, rt.logger, http.StatusNotFound,
			fmt.Errorf("%w: %s in %s", storage.ErrNotFound, inner, filename))
		return
	}
	defer f.Close()

	contentType := mime.TypeByExtension(path.Ext(inner))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-store")
	io.Copy(w, f)
}

// History handles GET /api/history. Entries are newest first; an optional
// limit query parameter caps the result.
func (rt *Runtime) History(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			handlers.RespondError(w, rt.logger, http.StatusBadRequest,
				fmt.Errorf("invalid limit %q", v))
			return
		}
		limit = n
	}

	entries, err := rt.history.List(r.Context(), limit)
	if err != nil {
		handlers.RespondError(w, rt.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, map[string]any{
		"ok":    true,
		"items": entries,
	})
}
