package server

import (
	"encoding/json"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	"gighub/internal/blob"
	"gighub/internal/engine"
)

// maxSubmissionBytes bounds one multipart submission in memory and on
// temp disk.
const maxSubmissionBytes = 64 << 20

// submitWorkHandler accepts the freelancer's deliverables. This route is
// multipart, so it sits on the router directly instead of going through
// the JSON API layer. Fields: files (repeated), note, revisionId.
func submitWorkHandler(e engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		actor, ok := requireActor(w, req)
		if !ok {
			return
		}
		jobID := chi.URLParam(req, "jobID")

		if err := req.ParseMultipartForm(maxSubmissionBytes); err != nil {
			respondStatusError(w, http.StatusBadRequest, "invalid multipart request")
			return
		}
		defer func() {
			_ = req.MultipartForm.RemoveAll()
		}()

		headers := req.MultipartForm.File["files"]
		files := make([]blob.Staged, 0, len(headers))
		for _, fh := range headers {
			f, err := fh.Open()
			if err != nil {
				respondStatusError(w, http.StatusBadRequest, "unreadable file "+fh.Filename)
				return
			}
			defer f.Close()
			files = append(files, blob.Staged{
				Name:        fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Size:        fh.Size,
				Reader:      f,
			})
		}

		j, err := e.SubmitWork(req.Context(), actor, jobID, engine.SubmissionInput{
			Files:      files,
			Note:       req.FormValue("note"),
			RevisionID: req.FormValue("revisionId"),
		})
		if err != nil {
			respondEngineError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jobBody{Success: true, Data: jobResponse(j)})
	}
}

// respondEngineError reuses the API error mapping for raw routes.
func respondEngineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal error"
	if se, ok := handleError(err).(huma.StatusError); ok {
		status = se.GetStatus()
		message = se.Error()
	}
	respondStatusError(w, status, message)
}
