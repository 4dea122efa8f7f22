package api

import (
	"context"
	"net/http"
	"time"
)

type healthResponse struct {
	Status      string `json:"status"`
	LLMProvider string `json:"llm_provider"`
	LLMStatus   string `json:"llm_status"`
	RAGStatus   string `json:"rag_status"`
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok", LLMStatus: "unavailable", RAGStatus: "unavailable"}

		if deps.Provider != nil {
			resp.LLMProvider = deps.Provider.Name()
			ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
			defer cancel()
			if deps.Provider.Healthy(ctx) {
				resp.LLMStatus = "ok"
			}
		}

		if deps.Vectors != nil {
			if _, err := deps.Vectors.Count(); err == nil {
				resp.RAGStatus = "ok"
			}
		}

		if resp.LLMStatus != "ok" {
			resp.Status = "degraded"
		}

		writeJSON(w, resp)
	}
}
