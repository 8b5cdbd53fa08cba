// Package httpapi is the HTTP surface collaborator (§6): it maps the
// library/document/search operations of pkg/library, pkg/document, and
// pkg/registry 1:1 onto JSON routes. The core never imports this package.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ragcore/ragcore/internal/apierr"
	"github.com/ragcore/ragcore/internal/config"
	"github.com/ragcore/ragcore/internal/obslog"
	"github.com/ragcore/ragcore/pkg/document"
	"github.com/ragcore/ragcore/pkg/index"
	"github.com/ragcore/ragcore/pkg/library"
	"github.com/ragcore/ragcore/pkg/registry"
)

// Server wires HTTP handlers to the registry.
type Server struct {
	router             chi.Router
	reg                *registry.Registry
	embedder           document.Embedder
	log                obslog.Logger
	defaultIndexType   index.Type
	defaultIndexParams index.Params
}

// New constructs a Server. cfg.CORSOrigins == nil means all origins are
// permitted (§6 default); cfg.Index supplies the index type/params used
// when a create-library request omits them.
func New(reg *registry.Registry, embedder document.Embedder, cfg config.Config, log obslog.Logger) *Server {
	if log == nil {
		log = obslog.Nop()
	}

	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(middleware.Recoverer)

	allowedOrigins := cfg.CORSOrigins
	if allowedOrigins == nil {
		allowedOrigins = []string{"*"}
	}
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	s := &Server{
		router:             mux,
		reg:                reg,
		embedder:           embedder,
		log:                log,
		defaultIndexType:   cfg.Index.DefaultType,
		defaultIndexParams: cfg.Params(),
	}

	mux.Post("/libraries", s.handleCreateLibrary)
	mux.Get("/libraries", s.handleListLibraries)
	mux.Get("/libraries/{id}", s.handleGetLibrary)
	mux.Patch("/libraries/{id}", s.handleUpdateLibraryMetadata)
	mux.Delete("/libraries/{id}", s.handleDeleteLibrary)
	mux.Post("/libraries/{id}/documents", s.handleAddDocument)
	mux.Put("/libraries/{id}/documents/{docID}", s.handleUpdateDocument)
	mux.Delete("/libraries/{id}/documents/{docID}", s.handleDeleteDocument)
	mux.Post("/libraries/{id}/search", s.handleSearch)

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type createLibraryRequest struct {
	Name        string   `json:"name"`
	IndexType   string   `json:"index_type"`
	IndexParams struct {
		NumTables      int   `json:"num_tables"`
		NumHyperplanes int   `json:"num_hyperplanes"`
		Probes         int   `json:"probes"`
		LeafSize       int   `json:"leaf_size"`
		Seed           int64 `json:"seed"`
	} `json:"index_params"`
	Username string   `json:"username"`
	Tags     []string `json:"tags"`
}

func (s *Server) handleCreateLibrary(w http.ResponseWriter, r *http.Request) {
	var req createLibraryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	indexType := s.defaultIndexType
	if req.IndexType != "" {
		indexType = index.Type(strings.ToUpper(req.IndexType))
	}

	params := s.defaultIndexParams
	if req.IndexParams.NumTables != 0 || req.IndexParams.NumHyperplanes != 0 ||
		req.IndexParams.Probes != 0 || req.IndexParams.LeafSize != 0 || req.IndexParams.Seed != 0 {
		params = index.Params{
			NumTables:      req.IndexParams.NumTables,
			NumHyperplanes: req.IndexParams.NumHyperplanes,
			Probes:         req.IndexParams.Probes,
			LeafSize:       req.IndexParams.LeafSize,
			Seed:           req.IndexParams.Seed,
		}
	}

	lib, err := s.reg.Create(req.Name, indexType, params, library.Metadata{
		Username: req.Username,
		Tags:     req.Tags,
	})
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, libraryView(lib))
}

func (s *Server) handleListLibraries(w http.ResponseWriter, r *http.Request) {
	libs := s.reg.List()
	views := make([]map[string]any, 0, len(libs))
	for _, lib := range libs {
		views = append(views, libraryView(lib))
	}
	writeJSON(w, http.StatusOK, map[string]any{"libraries": views})
}

func (s *Server) handleGetLibrary(w http.ResponseWriter, r *http.Request) {
	lib, err := s.reg.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, libraryView(lib))
}

type updateMetadataRequest struct {
	Username string   `json:"username"`
	Tags     []string `json:"tags"`
}

func (s *Server) handleUpdateLibraryMetadata(w http.ResponseWriter, r *http.Request) {
	var req updateMetadataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if err := s.reg.UpdateMetadata(chi.URLParam(r, "id"), req.Username, req.Tags); err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDeleteLibrary(w http.ResponseWriter, r *http.Request) {
	if err := s.reg.Delete(chi.URLParam(r, "id")); err != nil {
		writeAPIError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type documentRequest struct {
	DocumentID string            `json:"document_id"`
	Text       string            `json:"text"`
	ChunkSize  int               `json:"chunk_size"`
	Metadata   map[string]string `json:"metadata"`
}

func (s *Server) handleAddDocument(w http.ResponseWriter, r *http.Request) {
	s.processDocument(w, r, chi.URLParam(r, "id"), false)
}

func (s *Server) handleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	s.processDocument(w, r, chi.URLParam(r, "id"), true)
}

func (s *Server) processDocument(w http.ResponseWriter, r *http.Request, libID string, isUpdate bool) {
	var req documentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if isUpdate {
		req.DocumentID = chi.URLParam(r, "docID")
	}
	if req.DocumentID == "" {
		req.DocumentID = newDocumentID()
	}

	lib, err := s.reg.Get(libID)
	if err != nil {
		writeAPIError(w, err)
		return
	}

	installed, err := document.Process(r.Context(), lib, s.embedder, document.Request{
		DocumentID: req.DocumentID,
		Text:       req.Text,
		ChunkSize:  req.ChunkSize,
		Metadata:   req.Metadata,
		IsUpdate:   isUpdate,
	})
	if err != nil {
		writeAPIError(w, err)
		return
	}

	status := http.StatusCreated
	if isUpdate {
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]any{
		"document_id": req.DocumentID,
		"chunk_count": len(installed),
	})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	lib, err := s.reg.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeAPIError(w, err)
		return
	}
	lib.RemoveDocument(chi.URLParam(r, "docID"))
	w.WriteHeader(http.StatusNoContent)
}

type searchRequest struct {
	QueryText     string  `json:"query_text"`
	K             int     `json:"k"`
	MinSimilarity float64 `json:"min_similarity"`
}

type searchResultView struct {
	Chunk struct {
		ID         string            `json:"id"`
		DocumentID string            `json:"document_id"`
		Text       string            `json:"text"`
		Metadata   map[string]string `json:"metadata"`
	} `json:"chunk"`
	SimilarityScore float64 `json:"similarity_score"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if req.K < 1 {
		req.K = 1
	}

	lib, err := s.reg.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeAPIError(w, err)
		return
	}

	queryVector, err := s.embedder.Embed(r.Context(), req.QueryText)
	if err != nil {
		writeAPIError(w, apierr.Wrap("httpapi.search", fmt.Errorf("%w: %v", apierr.ErrEmbeddingProvider, err)))
		return
	}

	start := time.Now()
	matches, total, _, err := lib.Search(queryVector, req.K, req.MinSimilarity)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	elapsed := time.Since(start)

	views := make([]searchResultView, 0, len(matches))
	for _, m := range matches {
		var v searchResultView
		v.Chunk.ID = m.Chunk.ID
		v.Chunk.DocumentID = m.Chunk.DocumentID
		v.Chunk.Text = m.Chunk.Text
		v.Chunk.Metadata = m.Chunk.Metadata
		v.SimilarityScore = m.Similarity
		views = append(views, v)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"results":               views,
		"total_chunks_searched": total,
		"query_time_ms":         float64(elapsed.Microseconds()) / 1000.0,
	})
}

func libraryView(lib *library.Library) map[string]any {
	meta := lib.MetadataSnapshot()
	return map[string]any{
		"id":         lib.ID,
		"name":       lib.Name,
		"index_type": lib.IndexType,
		"metadata": map[string]any{
			"creation_time": meta.CreationTime,
			"last_update":   meta.LastUpdate,
			"username":      meta.Username,
			"tags":          meta.Tags,
		},
		"chunk_count": lib.Size(),
	}
}

func newDocumentID() string {
	return fmt.Sprintf("doc-%d", time.Now().UnixNano())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

// writeAPIError maps an apierr sentinel to an HTTP status code.
func writeAPIError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apierr.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, apierr.ErrAlreadyExists):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, apierr.ErrDimensionMismatch),
		errors.Is(err, apierr.ErrDegenerateVector),
		errors.Is(err, apierr.ErrInvalidParameter):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, apierr.ErrEmbeddingProvider):
		writeError(w, http.StatusBadGateway, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}
