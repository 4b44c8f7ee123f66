package handlers

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nikhilbhutani/docchat/internal/auth"
	"github.com/nikhilbhutani/docchat/internal/document"
	"github.com/nikhilbhutani/docchat/pkg/textextract"
)

const maxUploadSize = 32 << 20

type DocumentHandler struct {
	svc *document.Service
}

func NewDocumentHandler(svc *document.Service) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		badRequest(w, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		badRequest(w, "file required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		badRequest(w, "could not read upload")
		return
	}

	res, err := h.svc.Process(r.Context(), document.Upload{
		UserID:      auth.UserIDFromContext(r.Context()),
		SessionID:   chi.URLParam(r, "session_id"),
		FileName:    header.Filename,
		ContentType: contentType(header.Header.Get("Content-Type"), header.Filename),
		Data:        data,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// contentType trusts the declared type when it is one we parse, and falls
// back to the file extension otherwise.
func contentType(declared, filename string) string {
	declared = strings.TrimSpace(strings.SplitN(declared, ";", 2)[0])
	if textextract.Supported(declared) {
		return declared
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return textextract.MimePDF
	case ".docx":
		return textextract.MimeDOCX
	}
	return declared
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "doc_id")
	n, err := h.svc.Delete(r.Context(), auth.UserIDFromContext(r.Context()), docID, chi.URLParam(r, "session_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Deleted document and %d chunks", n),
		"doc_id":  docID,
	})
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	docs, err := h.svc.List(r.Context(), auth.UserIDFromContext(r.Context()), chi.URLParam(r, "session_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

type debugChunk struct {
	ChunkID  string         `json:"chunk_id"`
	Document string         `json:"document"`
	Metadata map[string]any `json:"metadata"`
}

func (h *DocumentHandler) DebugChunks(w http.ResponseWriter, r *http.Request) {
	recs, err := h.svc.DebugChunks(r.Context(), auth.UserIDFromContext(r.Context()), chi.URLParam(r, "doc_id"), chi.URLParam(r, "session_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	chunks := make([]debugChunk, len(recs))
	for i, rec := range recs {
		chunks[i] = debugChunk{ChunkID: rec.ID, Document: rec.Document, Metadata: rec.Metadata}
	}
	writeJSON(w, http.StatusOK, map[string]any{"chunk_count": len(chunks), "chunks": chunks})
}
