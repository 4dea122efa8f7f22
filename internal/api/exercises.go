package api

import (
	"net/http"
	"strings"

	"github.com/kalambet/lingo/internal/tutor"
)

type generateExercisesRequest struct {
	Topic          string `json:"topic"`
	TargetLanguage string `json:"target_language"`
	ExerciseType   string `json:"exercise_type"`
	Difficulty     string `json:"difficulty"`
	Count          int    `json:"count"`
}

func handleGenerateExercises(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req generateExercisesRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Topic) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "topic is required")
			return
		}
		if req.TargetLanguage == "" {
			req.TargetLanguage = defaultLanguage
		}
		if req.ExerciseType == "" {
			req.ExerciseType = tutor.TypeMultipleChoice
		}
		if req.Difficulty == "" {
			req.Difficulty = defaultLevel
		}
		req.ExerciseType = strings.ToLower(req.ExerciseType)
		req.Difficulty = strings.ToLower(req.Difficulty)

		if !tutor.ValidExerciseType(req.ExerciseType) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown exercise type %q", req.ExerciseType)
			return
		}
		if !tutor.ValidLevel(req.Difficulty) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown difficulty %q", req.Difficulty)
			return
		}
		if req.Count < 1 {
			req.Count = 5
		}
		if req.Count > 10 {
			req.Count = 10
		}

		exercises, err := deps.Tutor.GenerateExercises(r.Context(), req.Topic, req.TargetLanguage, req.ExerciseType, req.Difficulty, req.Count)
		observeGeneration("exercises", err)
		if err != nil {
			tutorError(w, err)
			return
		}

		writeJSON(w, exercises)
	}
}

type checkAnswerRequest struct {
	UserAnswer    string `json:"user_answer"`
	CorrectAnswer string `json:"correct_answer"`
}

func handleCheckAnswer(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req checkAnswerRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.CorrectAnswer == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "correct_answer is required")
			return
		}

		language := r.URL.Query().Get("target_language")
		if language == "" {
			language = defaultLanguage
		}

		result := deps.Tutor.CheckAnswer(r.Context(), req.UserAnswer, req.CorrectAnswer, language)
		writeJSON(w, result)
	}
}

func handleTopics(w http.ResponseWriter, r *http.Request) {
	language := r.URL.Query().Get("target_language")
	if language == "" {
		language = defaultLanguage
	}
	writeJSON(w, map[string]any{
		"language": language,
		"topics":   tutor.TopicsFor(language),
	})
}

func handleExerciseTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"types": tutor.ExerciseTypes()})
}

func handleLevels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"levels": tutor.Levels()})
}
