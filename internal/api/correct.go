package api

import (
	"net/http"
	"strings"
)

type correctRequest struct {
	Text           string `json:"text"`
	TargetLanguage string `json:"target_language"`
}

func handleCorrect(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req correctRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Text) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "text is required")
			return
		}
		if req.TargetLanguage == "" {
			req.TargetLanguage = defaultLanguage
		}

		correction, err := deps.Tutor.Correct(r.Context(), req.Text, req.TargetLanguage)
		observeGeneration("correct", err)
		if err != nil {
			tutorError(w, err)
			return
		}

		writeJSON(w, correction)
	}
}
