package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ParsaBazrpash/MirrorAPI/internal/models"
	"github.com/ParsaBazrpash/MirrorAPI/internal/retrieval"
	"github.com/ParsaBazrpash/MirrorAPI/internal/schemadiff"
	"github.com/ParsaBazrpash/MirrorAPI/internal/storage"
)

// maxUploadMemory is how much of a multipart ingest is buffered in memory before spilling to
// temp files.
const maxUploadMemory = 32 << 20

// okResponse is the body shape clients check first: ok plus an optional message.
type okResponse struct {
	OK  bool   `json:"ok"`
	Msg string `json:"msg,omitempty"`
}

type diffRequest struct {
	Old json.RawMessage `json:"old"`
	New json.RawMessage `json:"new"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	var (
		result models.IngestResult
		err    error
	)
	if files := uploadedFiles(r); len(files) > 0 {
		uploads, readErr := readUploads(files)
		if readErr != nil {
			s.respondError(w, http.StatusBadRequest, readErr.Error())
			return
		}
		s.logger.Debug("ingest uploads request", zap.Int("files", len(uploads)))
		result, err = s.service.IngestUploads(r.Context(), uploads)
	} else {
		folder := strings.TrimSpace(r.FormValue("folder"))
		if folder == "" {
			folder = s.config.Ingest.Folder
		}
		s.logger.Debug("ingest folder request", zap.String("folder", folder))
		result, err = s.service.IngestFolder(r.Context(), folder)
	}
	if err != nil {
		s.logger.Error("ingest failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func uploadedFiles(r *http.Request) []*multipart.FileHeader {
	if r.MultipartForm == nil {
		return nil
	}
	return r.MultipartForm.File["files"]
}

func readUploads(files []*multipart.FileHeader) ([]retrieval.Upload, error) {
	uploads := make([]retrieval.Upload, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		content, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, retrieval.Upload{Name: fh.Filename, Content: content})
	}
	return uploads, nil
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("chat request", zap.String("query", req.Query), zap.Int("top_k", req.TopK))
	resp, err := s.service.Chat(r.Context(), req)
	switch {
	case err == nil:
		s.respondJSON(w, http.StatusOK, resp)
	case errors.Is(err, models.ErrEmptyQuery):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, retrieval.ErrIndexNotFound):
		s.respondError(w, http.StatusOK, retrieval.IndexNotFoundMessage)
	case errors.Is(err, retrieval.ErrNoGenerator):
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("chat failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("generate request", zap.Int("changes", len(req.Changes)))
	resp, err := s.service.Explain(r.Context(), req)
	switch {
	case err == nil:
		s.respondJSON(w, http.StatusOK, resp)
	case errors.Is(err, retrieval.ErrGenerationFailed):
		detail := strings.TrimPrefix(err.Error(), retrieval.ErrGenerationFailed.Error()+": ")
		s.respondError(w, http.StatusOK, "Generation failed: "+detail)
	case errors.Is(err, retrieval.ErrNoGenerator):
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("generate failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	var req diffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Old) == 0 || len(req.New) == 0 {
		s.respondError(w, http.StatusBadRequest, "old and new are required")
		return
	}
	report, err := schemadiff.DiffJSON(req.Old, req.New)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.service.Status(r.Context())
	resp := map[string]interface{}{
		"ok":     true,
		"index":  st.Index,
		"config": s.configInfo(),
	}
	if st.Strategy != "" {
		resp["embedding_strategy"] = st.Strategy
	}
	if st.LastIngest != nil {
		resp["last_ingest"] = st.LastIngest
	}

	usage, err := storage.DiskUsage(s.config.Storage.DataDir, s.config.Storage.DatabasePath)
	if err == nil {
		resp["disk_usage_bytes"] = usage.Total
		resp["disk_usage"] = usage.Paths
	} else {
		s.logger.Warn("status: disk usage failed", zap.Error(err))
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) configInfo() map[string]interface{} {
	d := s.service.Defaults()
	return map[string]interface{}{
		"ingest_folder":   s.config.Ingest.Folder,
		"chunk_size":      s.config.Chunking.ChunkSize,
		"chunk_overlap":   s.config.Chunking.Overlap(),
		"top_k":           d.TopK,
		"max_new_tokens":  d.MaxNewTokens,
		"temperature":     d.Temperature,
		"embedding_model": s.config.Embedding.Model,
		"data_dir":        s.config.Storage.DataDir,
		"database_path":   s.config.Storage.DatabasePath,
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, okResponse{OK: false, Msg: message})
}
