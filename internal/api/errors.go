package api

import (
	"errors"
	"net/http"

	"github.com/abaykopenov/llm-scorm/internal/history"
	"github.com/abaykopenov/llm-scorm/internal/lms"
	"github.com/abaykopenov/llm-scorm/pkg/storage"
)

func isLMSError(err error) bool {
	for _, sentinel := range []error{
		lms.ErrInvalidConfig,
		lms.ErrAuthFailed,
		lms.ErrNoCourses,
		lms.ErrUnavailable,
		lms.ErrUploadFailed,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

func mapLMSStatus(err error) int {
	switch {
	case errors.Is(err, lms.ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, lms.ErrAuthFailed):
		return http.StatusUnauthorized
	case errors.Is(err, lms.ErrNoCourses):
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func mapArtifactStatus(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, history.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrInvalidKey):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
