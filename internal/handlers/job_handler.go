package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/seligo/internal/interfaces"
	"github.com/ternarybob/seligo/internal/orchestrator"
)

// maxUploadBytes caps one uploaded PDF at 25 MB.
const maxUploadBytes = 25 << 20

// JobHandler handles job-related API requests.
type JobHandler struct {
	orchestrator *orchestrator.Orchestrator
	storage      interfaces.StorageManager
	logger       arbor.ILogger
}

func NewJobHandler(orch *orchestrator.Orchestrator, storage interfaces.StorageManager, logger arbor.ILogger) *JobHandler {
	return &JobHandler{
		orchestrator: orch,
		storage:      storage,
		logger:       logger,
	}
}

type createJobRequest struct {
	Title           string `json:"title"`
	JDText          string `json:"jd_text"`
	MandatoryPrompt string `json:"mandatory_prompt"`
	SoftPrompt      string `json:"soft_prompt"`
}

// CreateJobHandler creates a draft job
// POST /api/jobs
func (h *JobHandler) CreateJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		WriteError(w, http.StatusBadRequest, "Title is required")
		return
	}

	job, err := h.orchestrator.CreateJob(r.Context(), req.Title, req.JDText, req.MandatoryPrompt, req.SoftPrompt)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to create job")
		WriteError(w, http.StatusInternalServerError, "Failed to create job")
		return
	}

	WriteJSON(w, http.StatusCreated, job)
}

// ListJobsHandler returns a paginated list of jobs
// GET /api/jobs?limit=50&offset=0
func (h *JobHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	limit := 50
	offset := 0
	if parsed, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && parsed > 0 {
		limit = parsed
	}
	if parsed, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && parsed > 0 {
		offset = parsed
	}

	jobs, err := h.storage.JobStorage().ListJobs(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list jobs")
		WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":   jobs,
		"count":  len(jobs),
		"limit":  limit,
		"offset": offset,
	})
}

// GetJobHandler returns a single job by ID
// GET /api/jobs/{id}
func (h *JobHandler) GetJobHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.storage.JobStorage().GetJob(r.Context(), jobID)
	if err != nil {
		WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// DeleteJobHandler removes a job with its resumes and scores
// DELETE /api/jobs/{id}
func (h *JobHandler) DeleteJobHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	ctx := r.Context()

	resumes, err := h.storage.ResumeStorage().ListResumesByJob(ctx, jobID)
	if err != nil {
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to list resumes for delete")
		WriteError(w, http.StatusInternalServerError, "Failed to delete job")
		return
	}
	for _, resume := range resumes {
		if err := h.storage.ResumeStorage().DeleteResume(ctx, resume.ID); err != nil {
			h.logger.Warn().Err(err).Str("resume_id", resume.ID).Msg("Failed to delete resume")
		}
	}
	if err := h.storage.ScoreStorage().DeleteScoresByJob(ctx, jobID); err != nil {
		h.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to delete scores")
	}
	if err := h.storage.JobStorage().DeleteJob(ctx, jobID); err != nil {
		WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	WriteSuccess(w, "Job deleted")
}

// SubmitJobHandler queues a job for processing
// POST /api/jobs/{id}/submit
func (h *JobHandler) SubmitJobHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	if err := h.orchestrator.SubmitJob(r.Context(), jobID); err != nil {
		h.logger.Warn().Err(err).Str("job_id", jobID).Msg("Job submit rejected")
		WriteError(w, http.StatusConflict, err.Error())
		return
	}
	WriteStarted(w, "Job queued for processing")
}

// CancelJobHandler requests cancellation of a running job
// POST /api/jobs/{id}/cancel
func (h *JobHandler) CancelJobHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	if err := h.orchestrator.CancelJob(r.Context(), jobID); err != nil {
		WriteError(w, http.StatusConflict, err.Error())
		return
	}
	WriteSuccess(w, "Cancellation requested")
}

// UploadJDHandler attaches a JD PDF to a draft job
// POST /api/jobs/{id}/jd (multipart, field "file")
func (h *JobHandler) UploadJDHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	filename, content, ok := readUpload(w, r)
	if !ok {
		return
	}

	if err := h.orchestrator.AttachJDPDF(r.Context(), jobID, filename, content); err != nil {
		h.logger.Warn().Err(err).Str("job_id", jobID).Msg("JD upload rejected")
		WriteError(w, http.StatusConflict, err.Error())
		return
	}
	WriteSuccess(w, "JD PDF attached")
}

// UploadResumeHandler stores one resume PDF against a job
// POST /api/jobs/{id}/resumes (multipart, field "file")
func (h *JobHandler) UploadResumeHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	filename, content, ok := readUpload(w, r)
	if !ok {
		return
	}

	resume, err := h.orchestrator.UploadResume(r.Context(), jobID, filename, content)
	if err != nil {
		h.logger.Warn().Err(err).Str("job_id", jobID).Msg("Resume upload rejected")
		WriteError(w, http.StatusConflict, err.Error())
		return
	}
	WriteJSON(w, http.StatusCreated, resume)
}

// ListResumesHandler lists a job's resumes with their stage statuses
// GET /api/jobs/{id}/resumes
func (h *JobHandler) ListResumesHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	resumes, err := h.storage.ResumeStorage().ListResumesByJob(r.Context(), jobID)
	if err != nil {
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to list resumes")
		WriteError(w, http.StatusInternalServerError, "Failed to list resumes")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"resumes": resumes,
		"count":   len(resumes),
	})
}

// ResultsHandler returns the score results for a job, best first
// GET /api/jobs/{id}/results
func (h *JobHandler) ResultsHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	results, err := h.orchestrator.Results(r.Context(), jobID)
	if err != nil {
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to load results")
		WriteError(w, http.StatusInternalServerError, "Failed to load results")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"count":   len(results),
	})
}

// readUpload extracts the "file" part from a multipart upload.
func readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, bool) {
	if !RequireMethod(w, r, http.MethodPost) {
		return "", nil, false
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid multipart upload")
		return "", nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Missing file field")
		return "", nil, false
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Failed to read upload")
		return "", nil, false
	}
	if len(content) == 0 {
		WriteError(w, http.StatusBadRequest, "Empty file")
		return "", nil, false
	}

	return header.Filename, content, true
}
