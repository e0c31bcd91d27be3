package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(ocrHandler *OCRHandler, progressHandler *ProgressHandler, allowedOrigins []string, middleware ...mux.MiddlewareFunc) http.Handler {
	router := mux.NewRouter()
	for _, mw := range middleware {
		router.Use(mw)
	}

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","service":"pdf-ocr-server"}`))
	}).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()

	// Jobs
	api.HandleFunc("/documents", ocrHandler.UploadDocument).Methods("POST")
	api.HandleFunc("/jobs", ocrHandler.ListJobs).Methods("GET")
	api.HandleFunc("/jobs/{jobId}", ocrHandler.CancelJob).Methods("DELETE")

	// Progress
	api.HandleFunc("/progress/{jobId}", progressHandler.GetProgress).Methods("GET")
	api.HandleFunc("/progress/{jobId}/events", progressHandler.StreamProgress).Methods("GET")

	// Results
	api.HandleFunc("/results/{jobId}", ocrHandler.GetResult).Methods("GET")
	api.HandleFunc("/results/{jobId}/download", ocrHandler.DownloadResult).Methods("GET")
	api.HandleFunc("/results/{jobId}/search", ocrHandler.SearchResults).Methods("POST")
	api.HandleFunc("/results/{jobId}/pages/{page:[0-9]+}/image", ocrHandler.GetPageImage).Methods("GET")
	api.HandleFunc("/results/{jobId}/pages/{page:[0-9]+}/highlight", ocrHandler.HighlightPage).Methods("POST")
	api.HandleFunc("/results/{jobId}/highlighted/{name}", ocrHandler.GetHighlightedImage).Methods("GET")

	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"Cache-Control",
		},
		ExposedHeaders: []string{
			"Content-Disposition",
		},
		AllowCredentials: false,
		MaxAge:           300,
	})

	return c.Handler(router)
}
