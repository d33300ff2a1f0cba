package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strconv"
	"strings"

	"gemini-batch-ocr/internal/domain"
	"gemini-batch-ocr/internal/domain/model"
	"gemini-batch-ocr/internal/infra/imagecheck"

	"github.com/go-chi/chi/v5"
)

// ===== Auth =====

type loginRequest struct {
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.limiter != nil {
		ok, err := s.limiter.Allow(r.Context(), clientIP(r), s.opts.LoginLimit, s.opts.LoginWindow)
		if err != nil {
			s.logFor(r).Warn().Err(err).Msg("login limiter unavailable")
		} else if !ok {
			writeError(w, http.StatusTooManyRequests, "too many login attempts")
			return
		}
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !checkPassword(s.opts.AdminPassword, req.Password) {
		s.logFor(r).Warn().Str("ip", clientIP(r)).Msg("login failed")
		writeError(w, http.StatusUnauthorized, "invalid password")
		return
	}
	token, err := s.auth.Mint(w)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	s.auth.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

// ===== Credentials =====

type credentialRequest struct {
	Value string `json:"value"`
}

func (s *Server) handleListCredentials(w http.ResponseWriter, r *http.Request) {
	items, err := s.creds.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleAddCredential(w http.ResponseWriter, r *http.Request) {
	var req credentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	idx, err := s.creds.Add(r.Context(), req.Value)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"index": idx})
}

func (s *Server) handleUpdateCredential(w http.ResponseWriter, r *http.Request) {
	idx, ok := indexParam(w, r)
	if !ok {
		return
	}
	var req credentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.creds.Update(r.Context(), idx, req.Value); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteCredential(w http.ResponseWriter, r *http.Request) {
	idx, ok := indexParam(w, r)
	if !ok {
		return
	}
	if err := s.creds.Delete(r.Context(), idx); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRevealCredential(w http.ResponseWriter, r *http.Request) {
	idx, ok := indexParam(w, r)
	if !ok {
		return
	}
	cred, err := s.creds.Reveal(r.Context(), idx)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"value": cred.String()})
}

func indexParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "index must be a number")
		return 0, false
	}
	return idx, true
}

// ===== Models =====

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.models.ListModels(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":   models,
		"default": s.models.DefaultModel(),
	})
}

// ===== Batches =====

type batchJSONRequest struct {
	Model  string   `json:"model"`
	Images []string `json:"images"` // data URLs
}

func (s *Server) handleSubmitBatch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)

	modelName, uploads, err := s.readUploads(r)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		s.fail(w, r, err)
		return
	}

	run, err := s.batches.Submit(r.Context(), modelName, uploads)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/batches/"+run.ID)
	writeJSON(w, http.StatusAccepted, run)
}

// readUploads accepts a multipart form (images[] + model) or a JSON body with
// data URLs.
func (s *Server) readUploads(r *http.Request) (string, []model.Upload, error) {
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/") {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			return "", nil, fmt.Errorf("parse form: %w: %w", err, domain.ErrInvalidArgument)
		}
		var files []*multipart.FileHeader
		files = append(files, r.MultipartForm.File["images[]"]...)
		files = append(files, r.MultipartForm.File["images"]...)
		uploads := make([]model.Upload, 0, len(files))
		for _, fh := range files {
			up, err := readPart(fh)
			if err != nil {
				return "", nil, err
			}
			uploads = append(uploads, up)
		}
		return r.FormValue("model"), uploads, nil
	}

	var req batchJSONRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return "", nil, err
		}
		return "", nil, fmt.Errorf("invalid request body: %w", domain.ErrInvalidArgument)
	}
	uploads := make([]model.Upload, 0, len(req.Images))
	for i, raw := range req.Images {
		up, err := imagecheck.DecodeDataURL(raw)
		if err != nil {
			return "", nil, fmt.Errorf("image %d: %w", i+1, err)
		}
		up.Name = fmt.Sprintf("image-%d", i+1)
		uploads = append(uploads, up)
	}
	return req.Model, uploads, nil
}

func readPart(fh *multipart.FileHeader) (model.Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return model.Upload{}, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return model.Upload{}, fmt.Errorf("read %s: %w", fh.Filename, err)
	}
	return model.Upload{
		Name:     fh.Filename,
		MIMEType: fh.Header.Get("Content-Type"),
		Data:     data,
	}, nil
}

func (s *Server) handleListBatches(w http.ResponseWriter, r *http.Request) {
	items, err := s.batches.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	run, err := s.batches.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleBatchText(w http.ResponseWriter, r *http.Request) {
	text, err := s.batches.CombinedText(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, text)
}

func (s *Server) handleCancelBatch(w http.ResponseWriter, r *http.Request) {
	if err := s.batches.Cancel(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
