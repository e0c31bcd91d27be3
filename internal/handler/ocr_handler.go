// Package handler provides HTTP handlers for the API.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"pdf-ocr-server/internal/domain"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// multipart overhead allowed on top of the file size limit
const formOverhead = 1 << 20

// OCRHandler handles document upload, job control and result requests
type OCRHandler struct {
	jobs        domain.JobService
	results     domain.ResultService
	highlighter domain.HighlightService
	config      domain.Config
	logger      domain.Logger
}

// NewOCRHandler creates a new OCR handler
func NewOCRHandler(jobs domain.JobService, results domain.ResultService, highlighter domain.HighlightService, config domain.Config, logger domain.Logger) *OCRHandler {
	return &OCRHandler{
		jobs:        jobs,
		results:     results,
		highlighter: highlighter,
		config:      config,
		logger:      logger,
	}
}

type uploadResponse struct {
	JobID            string                 `json:"job_id"`
	OriginalFilename string                 `json:"original_filename"`
	ProgressURL      string                 `json:"progress_url"`
	ResultURL        string                 `json:"result_url"`
	Status           string                 `json:"status"`
	Result           *domain.ResultDocument `json:"result,omitempty"`
}

// UploadDocument stores an uploaded PDF and launches an extraction job.
// With sync=true the response waits for the job to finish.
func (h *OCRHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	maxSize := h.config.GetMaxFileSize()
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+formOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("pdfFile")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file part")
		return
	}
	defer file.Close()

	originalName := strings.TrimSpace(filepath.Base(header.Filename))
	if originalName == "" || originalName == "." || originalName == string(filepath.Separator) {
		writeError(w, http.StatusBadRequest, "No file selected")
		return
	}
	if strings.ToLower(filepath.Ext(originalName)) != ".pdf" {
		writeError(w, http.StatusBadRequest, "Invalid file type. Please upload a PDF file.")
		return
	}
	if header.Size > maxSize {
		writeError(w, http.StatusRequestEntityTooLarge, "File too large")
		return
	}

	startPage, err := optionalInt(r.FormValue("startPage"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "startPage must be a number")
		return
	}
	endPage, err := optionalInt(r.FormValue("endPage"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "endPage must be a number")
		return
	}
	if maxPages := h.config.GetMaxPages(); domain.RangeLength(startPage, endPage) > maxPages {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Too many pages requested (max %d)", maxPages))
		return
	}
	dpi, err := optionalInt(r.FormValue("dpi"))
	if err != nil || dpi < 0 {
		writeError(w, http.StatusBadRequest, "dpi must be a positive number")
		return
	}
	if dpi == 0 {
		dpi = h.config.GetDPI()
	}

	jobID := uuid.New().String()
	base := strings.TrimSuffix(originalName, filepath.Ext(originalName))
	pdfPath := filepath.Join(h.config.GetUploadPath(), fmt.Sprintf("%s_%s", jobID, originalName))
	if err := saveUpload(file, pdfPath); err != nil {
		h.logger.Error("Failed to save upload", err, "path", pdfPath)
		writeError(w, http.StatusInternalServerError, "Failed to save upload")
		return
	}

	job, err := h.jobs.Launch(r.Context(), domain.LaunchRequest{
		JobID:            jobID,
		OriginalFilename: originalName,
		PDFPath:          pdfPath,
		Pages:            domain.PageRange(startPage, endPage),
		ResultPath:       filepath.Join(h.config.GetResultsPath(), fmt.Sprintf("%s_%s_ocr_results.json", jobID, base)),
		ImageDir:         filepath.Join(h.config.GetImagesPath(), jobID),
		DPI:              dpi,
	})
	if err != nil {
		os.Remove(pdfPath)
		writeServiceError(w, h.logger, err, "Failed to start processing")
		return
	}

	resp := uploadResponse{
		JobID:            job.ID,
		OriginalFilename: originalName,
		ProgressURL:      "/api/v1/progress/" + job.ID,
		ResultURL:        "/api/v1/results/" + job.ID,
		Status:           "processing",
	}

	if sync, _ := strconv.ParseBool(r.FormValue("sync")); !sync {
		writeJSON(w, http.StatusAccepted, resp)
		return
	}

	select {
	case res := <-job.Done():
		if res.Err != nil {
			h.logger.Error("Synchronous job failed", res.Err, "job_id", job.ID)
			writeError(w, http.StatusInternalServerError, "Failed to process PDF")
			return
		}
		resp.Status = "completed"
		resp.Result = res.Document
		writeJSON(w, http.StatusOK, resp)
	case <-r.Context().Done():
		h.logger.Warn("Client left before synchronous job finished", "job_id", job.ID)
	}
}

// CancelJob cancels a running job
func (h *OCRHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobId"]
	if !h.jobs.Cancel(jobID) {
		if _, err := h.jobs.Lookup(r.Context(), jobID); err != nil {
			writeServiceError(w, h.logger, err, "Failed to cancel job")
			return
		}
		writeError(w, http.StatusConflict, "Job is not running")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID, "status": "cancelling"})
}

const (
	defaultJobListLimit = 50
	maxJobListLimit     = 500
)

type jobSummary struct {
	JobID            string           `json:"job_id"`
	OriginalFilename string           `json:"original_filename"`
	Status           domain.JobStatus `json:"status"`
	Pages            int              `json:"pages,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	FinishedAt       *time.Time       `json:"finished_at,omitempty"`
	ProgressURL      string           `json:"progress_url"`
	ResultURL        string           `json:"result_url"`
}

// ListJobs returns the most recent jobs, newest first. Server-side paths are
// not exposed.
func (h *OCRHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit, err := optionalInt(r.URL.Query().Get("limit"))
	if err != nil || limit < 0 {
		writeError(w, http.StatusBadRequest, "limit must be a positive number")
		return
	}
	if limit == 0 {
		limit = defaultJobListLimit
	}
	if limit > maxJobListLimit {
		limit = maxJobListLimit
	}

	records, err := h.jobs.List(r.Context(), limit)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to list jobs")
		return
	}

	jobs := make([]jobSummary, 0, len(records))
	for _, rec := range records {
		jobs = append(jobs, jobSummary{
			JobID:            rec.ID,
			OriginalFilename: rec.OriginalFilename,
			Status:           rec.Status,
			Pages:            len(rec.Pages),
			CreatedAt:        rec.CreatedAt,
			FinishedAt:       rec.FinishedAt,
			ProgressURL:      "/api/v1/progress/" + rec.ID,
			ResultURL:        "/api/v1/results/" + rec.ID,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": jobs, "count": len(jobs)})
}

// GetResult returns the result document with image URLs attached to pages
// that have a rendered image.
func (h *OCRHandler) GetResult(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobId"]
	doc, _, err := h.results.Result(r.Context(), jobID)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to load results")
		return
	}

	for i := range doc.Pages {
		if doc.Pages[i].ImagePath != "" {
			doc.Pages[i].ImageURL = fmt.Sprintf("/api/v1/results/%s/pages/%d/image", jobID, doc.Pages[i].PageNumber)
		}
	}
	writeJSON(w, http.StatusOK, doc)
}

// DownloadResult serves the result JSON as an attachment
func (h *OCRHandler) DownloadResult(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobId"]
	_, record, err := h.results.Result(r.Context(), jobID)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to load results")
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(record.ResultPath)))
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	http.ServeFile(w, r, record.ResultPath)
}

type searchRequest struct {
	SearchWords []string `json:"searchWords"`
	FilterType  string   `json:"filterType"`
}

// SearchResults filters a result document by annotations and/or words
func (h *OCRHandler) SearchResults(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobId"]

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Missing required parameters")
		return
	}
	if req.FilterType == "" {
		req.FilterType = domain.FilterBoth
	}

	doc, err := h.results.Search(r.Context(), jobID, req.SearchWords, req.FilterType)
	if err != nil {
		writeServiceError(w, h.logger, err, "Error processing search")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// GetPageImage serves the rendered image of a page
func (h *OCRHandler) GetPageImage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	page, err := strconv.Atoi(vars["page"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid page number")
		return
	}

	imagePath, err := h.results.PageImage(r.Context(), vars["jobId"], page)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to load image")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	http.ServeFile(w, r, imagePath)
}

type highlightRequest struct {
	SearchWords []string `json:"searchWords"`
}

type highlightResponse struct {
	Success         bool   `json:"success"`
	ImageURL        string `json:"image_url"`
	HighlightsCount int    `json:"highlights_count"`
	Cached          bool   `json:"cached"`
}

// HighlightPage marks the search words on a page image and returns its URL
func (h *OCRHandler) HighlightPage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	jobID := vars["jobId"]
	page, err := strconv.Atoi(vars["page"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid page number")
		return
	}

	var req highlightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.SearchWords) == 0 {
		writeError(w, http.StatusBadRequest, "Missing required parameters")
		return
	}

	imagePath, count, err := h.highlighter.HighlightPage(r.Context(), jobID, page, req.SearchWords)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to create highlighted image")
		return
	}

	resp := highlightResponse{
		Success:         true,
		ImageURL:        "/api/v1/results/" + jobID + "/highlighted/" + filepath.Base(imagePath),
		HighlightsCount: count,
		Cached:          count < 0,
	}
	if resp.Cached {
		resp.HighlightsCount = 0
	}
	writeJSON(w, http.StatusOK, resp)
}

func optionalInt(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	return strconv.Atoi(value)
}

func saveUpload(src io.Reader, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return err
	}
	return dst.Close()
}

// GetHighlightedImage serves an image produced by HighlightPage
func (h *OCRHandler) GetHighlightedImage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name := filepath.Base(vars["name"])
	if !strings.HasSuffix(name, ".png") {
		writeError(w, http.StatusBadRequest, "Invalid image name")
		return
	}

	record, err := h.jobs.Lookup(r.Context(), vars["jobId"])
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to load image")
		return
	}

	imagePath := filepath.Join(record.ImageDir, domain.HighlightedImagesDir, name)
	if _, err := os.Stat(imagePath); err != nil {
		writeError(w, http.StatusNotFound, "Image not found")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	http.ServeFile(w, r, imagePath)
}
