package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/lingo/internal/storage"
	"github.com/kalambet/lingo/internal/training"
)

// mountTraining registers the dataset, example, export, job and model
// endpoints. The caller wraps the router in bearer auth.
func mountTraining(r chi.Router, deps Deps) {
	r.Get("/datasets", handleListDatasets(deps))
	r.Post("/datasets", handleCreateDataset(deps))
	r.Get("/datasets/{id}", handleGetDataset(deps))
	r.Delete("/datasets/{id}", handleDeleteDataset(deps))
	r.Post("/datasets/export", handleExportDataset(deps))

	r.Get("/datasets/{id}/examples", handleListExamples(deps))
	r.Post("/datasets/{id}/examples", handleAddExample(deps))
	r.Put("/datasets/{id}/examples/{exampleID}", handleUpdateExample(deps))
	r.Delete("/datasets/{id}/examples/{exampleID}", handleDeleteExample(deps))
	r.Post("/datasets/{id}/examples/{exampleID}/approve", handleApproveExample(deps))
	r.Post("/datasets/{id}/examples/{exampleID}/rate", handleRateExample(deps))

	r.Get("/jobs", handleListJobs(deps))
	r.Post("/jobs", handleCreateJob(deps))
	r.Get("/jobs/{id}", handleGetJob(deps))
	r.Post("/jobs/{id}/start", handleStartJob(deps))
	r.Post("/jobs/{id}/cancel", handleCancelJob(deps))
	r.Delete("/jobs/{id}", handleDeleteJob(deps))

	r.Get("/models", handleListModels(deps))
	r.Get("/base-models", handleBaseModels)
}

type createDatasetRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Language    string `json:"language"`
}

func handleListDatasets(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		datasets, err := deps.Data.ListDatasets()
		if err != nil {
			trainingError(w, err)
			return
		}
		if datasets == nil {
			datasets = []storage.Dataset{}
		}
		writeJSON(w, datasets)
	}
}

func handleCreateDataset(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createDatasetRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Name == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "name is required")
			return
		}
		if req.Language == "" {
			req.Language = defaultLanguage
		}

		ds, err := deps.Data.CreateDataset(req.Name, req.Description, req.Language)
		if err != nil {
			trainingError(w, err)
			return
		}
		w.WriteHeader(http.StatusCreated)
		writeJSON(w, ds)
	}
}

func handleGetDataset(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ds, err := deps.Data.GetDataset(chi.URLParam(r, "id"))
		if err != nil {
			trainingError(w, err)
			return
		}
		writeJSON(w, ds)
	}
}

func handleDeleteDataset(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Data.DeleteDataset(chi.URLParam(r, "id")); err != nil {
			trainingError(w, err)
			return
		}
		writeJSON(w, map[string]string{"status": "deleted"})
	}
}

func handleListExamples(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		datasetID := chi.URLParam(r, "id")
		approvedOnly := r.URL.Query().Get("approved_only") == "true"

		// Listing a missing dataset should 404, not return an empty list.
		if _, err := deps.Data.GetDataset(datasetID); err != nil {
			trainingError(w, err)
			return
		}

		examples, err := deps.Data.ListExamples(datasetID, approvedOnly)
		if err != nil {
			trainingError(w, err)
			return
		}
		if examples == nil {
			examples = []storage.TrainingExample{}
		}
		writeJSON(w, examples)
	}
}

type exampleRequest struct {
	Instruction string `json:"instruction"`
	Input       string `json:"input"`
	Output      string `json:"output"`
	Source      string `json:"source"`
	Approved    bool   `json:"approved"`
}

func handleAddExample(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req exampleRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Input == "" || req.Output == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "input and output are required")
			return
		}
		if req.Source == "" {
			req.Source = "manual"
		}

		ex, err := deps.Data.AddExample(chi.URLParam(r, "id"), req.Instruction, req.Input, req.Output, req.Source, req.Approved)
		if err != nil {
			trainingError(w, err)
			return
		}
		w.WriteHeader(http.StatusCreated)
		writeJSON(w, ex)
	}
}

func handleUpdateExample(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req exampleRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Input == "" || req.Output == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "input and output are required")
			return
		}
		ex, err := deps.Data.UpdateExample(chi.URLParam(r, "exampleID"), req.Instruction, req.Input, req.Output)
		if err != nil {
			trainingError(w, err)
			return
		}
		writeJSON(w, ex)
	}
}

func handleDeleteExample(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Data.DeleteExample(chi.URLParam(r, "exampleID")); err != nil {
			trainingError(w, err)
			return
		}
		writeJSON(w, map[string]string{"status": "deleted"})
	}
}

func handleApproveExample(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		approved := r.URL.Query().Get("approved") != "false"
		if err := deps.Data.ApproveExample(chi.URLParam(r, "exampleID"), approved); err != nil {
			trainingError(w, err)
			return
		}
		writeJSON(w, map[string]bool{"approved": approved})
	}
}

func handleRateExample(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rating, err := strconv.Atoi(r.URL.Query().Get("rating"))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "rating must be an integer 1-5")
			return
		}
		if err := deps.Data.RateExample(chi.URLParam(r, "exampleID"), rating); err != nil {
			trainingError(w, err)
			return
		}
		writeJSON(w, map[string]string{"status": "rated"})
	}
}

func handleExportDataset(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		format := q.Get("format")
		if format == "" {
			format = training.FormatJSONL
		}
		if !training.ValidFormat(format) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown export format %q", format)
			return
		}
		onlyApproved := q.Get("only_approved") != "false"

		path, count, err := deps.Data.Export(q.Get("dataset_id"), format, deps.ExportDir, onlyApproved)
		if err != nil {
			trainingError(w, err)
			return
		}
		writeJSON(w, map[string]any{
			"path":     path,
			"examples": count,
			"format":   format,
		})
	}
}

type createJobRequest struct {
	DatasetID string `json:"dataset_id"`
	Name      string `json:"name"`
	BaseModel string `json:"base_model"`
}

func handleListJobs(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobs, err := deps.Jobs.List()
		if err != nil {
			trainingError(w, err)
			return
		}
		if jobs == nil {
			jobs = []storage.TrainingJob{}
		}
		writeJSON(w, jobs)
	}
}

func handleCreateJob(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createJobRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.DatasetID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "dataset_id is required")
			return
		}

		job, err := deps.Jobs.Create(req.DatasetID, req.Name, req.BaseModel)
		if err != nil {
			trainingError(w, err)
			return
		}
		w.WriteHeader(http.StatusCreated)
		writeJSON(w, job)
	}
}

func handleGetJob(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := deps.Jobs.Get(chi.URLParam(r, "id"))
		if err != nil {
			trainingError(w, err)
			return
		}
		writeJSON(w, job)
	}
}

func handleStartJob(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := deps.Jobs.Start(id); err != nil {
			trainingError(w, err)
			return
		}
		job, err := deps.Jobs.Get(id)
		if err != nil {
			trainingError(w, err)
			return
		}
		writeJSON(w, job)
	}
}

func handleCancelJob(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := deps.Jobs.Cancel(id); err != nil {
			trainingError(w, err)
			return
		}
		job, err := deps.Jobs.Get(id)
		if err != nil {
			trainingError(w, err)
			return
		}
		writeJSON(w, job)
	}
}

func handleDeleteJob(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Jobs.Delete(chi.URLParam(r, "id")); err != nil {
			trainingError(w, err)
			return
		}
		writeJSON(w, map[string]string{"status": "deleted"})
	}
}

func handleListModels(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		models, err := training.ListTrainedModels(deps.ModelsDir)
		if err != nil {
			trainingError(w, err)
			return
		}
		if models == nil {
			models = []training.TrainedModel{}
		}
		writeJSON(w, map[string]any{"models": models})
	}
}

func handleBaseModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"base_models": training.BaseModels()})
}
