// Package api exposes the model catalog over HTTP.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/loupe/internal/catalog"
	"github.com/samcharles93/loupe/internal/gguf"
	"github.com/samcharles93/loupe/internal/logger"
)

type Server struct {
	store *catalog.Store
	log   logger.Logger
	clock func() time.Time
}

func NewServer(store *catalog.Store, log logger.Logger) *Server {
	if log == nil {
		log = logger.Default()
	}
	return &Server{
		store: store,
		log:   log,
		clock: time.Now,
	}
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/v1/models", s.handleListModels)
	e.POST("/v1/models", s.handleCreateModel)
	e.GET("/v1/models/:id", s.handleGetModel)
	e.PATCH("/v1/models/:id", s.handleUpdateModel)
	e.DELETE("/v1/models/:id", s.handleDeleteModel)
	e.GET("/v1/models/:id/metadata", s.handleModelMetadata)
}

func (s *Server) handleListModels(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"object": "list",
		"data":   s.store.List(),
	})
}

// CreateModelRequest is the POST /v1/models body. Path may be absolute or
// relative to the configured models directory.
type CreateModelRequest struct {
	Name         string `json:"name"`
	Title        string `json:"title,omitempty"`
	Description  string `json:"description,omitempty"`
	Author       string `json:"author,omitempty"`
	License      string `json:"license,omitempty"`
	Quantization string `json:"quantization,omitempty"`
	Path         string `json:"path,omitempty"`
	FileName     string `json:"file_name"`
}

func (s *Server) handleCreateModel(c *echo.Context) error {
	req, err := decodeJSON[CreateModelRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if req.Name == "" {
		return writeError(c, http.StatusBadRequest, "invalid_request_error", "name is required", "name", "")
	}
	if req.FileName == "" {
		return writeError(c, http.StatusBadRequest, "invalid_request_error", "file_name is required", "file_name", "")
	}

	m := s.store.Create(catalog.Model{
		Name:         req.Name,
		Title:        req.Title,
		Description:  req.Description,
		Author:       req.Author,
		License:      req.License,
		Quantization: req.Quantization,
		Path:         req.Path,
		FileName:     req.FileName,
		State:        catalog.StateInstalled,
	})
	if err := s.store.Save(); err != nil {
		s.log.Error("persist catalog", "error", err)
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "", "")
	}
	s.log.Info("model added", "id", m.ID, "name", m.Name)
	return c.JSON(http.StatusCreated, m)
}

func (s *Server) handleGetModel(c *echo.Context) error {
	id := c.Param("id")
	m, ok := s.store.Get(id)
	if !ok {
		return writeNotFound(c, "model not found: "+id)
	}
	return c.JSON(http.StatusOK, m)
}

// UpdateModelRequest carries the mutable fields of a record. Pointer fields
// distinguish "leave alone" from "set to empty".
type UpdateModelRequest struct {
	Name         *string `json:"name,omitempty"`
	Title        *string `json:"title,omitempty"`
	Description  *string `json:"description,omitempty"`
	Author       *string `json:"author,omitempty"`
	License      *string `json:"license,omitempty"`
	Quantization *string `json:"quantization,omitempty"`
	State        *string `json:"state,omitempty"`
}

func (s *Server) handleUpdateModel(c *echo.Context) error {
	id := c.Param("id")
	req, err := decodeJSON[UpdateModelRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}

	var newState catalog.State
	if req.State != nil {
		st, ok := parseState(*req.State)
		if !ok {
			return writeError(c, http.StatusBadRequest, "invalid_request_error", "unknown state: "+*req.State, "state", "")
		}
		newState = st
	}

	m, ok := s.store.Get(id)
	if !ok {
		return writeNotFound(c, "model not found: "+id)
	}
	if req.Name != nil {
		m.Name = *req.Name
	}
	if req.Title != nil {
		m.Title = *req.Title
	}
	if req.Description != nil {
		m.Description = *req.Description
	}
	if req.Author != nil {
		m.Author = *req.Author
	}
	if req.License != nil {
		m.License = *req.License
	}
	if req.Quantization != nil {
		m.Quantization = *req.Quantization
	}
	if err := s.store.Update(m); err != nil {
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "", "")
	}
	if req.State != nil {
		if err := s.store.SetState(m.ID, newState); err != nil {
			return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "", "")
		}
	}
	if err := s.store.Save(); err != nil {
		s.log.Error("persist catalog", "error", err)
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "", "")
	}

	updated, _ := s.store.Get(m.ID)
	s.log.Info("model updated", "id", m.ID, "name", updated.Name)
	return c.JSON(http.StatusOK, updated)
}

func parseState(s string) (catalog.State, bool) {
	switch st := catalog.State(s); st {
	case catalog.StatePending, catalog.StateDownloading, catalog.StateInstalled,
		catalog.StateError, catalog.StateRemoved:
		return st, true
	default:
		return "", false
	}
}

// handleDeleteModel soft-removes by default: the record stays with state
// "removed" so references keep resolving. ?purge=true drops it outright.
func (s *Server) handleDeleteModel(c *echo.Context) error {
	id := c.Param("id")
	purge := c.QueryParam("purge") == "true"
	m, err := s.store.Remove(id, !purge)
	if err != nil {
		if errors.Is(err, catalog.ErrModelNotFound) {
			return writeNotFound(c, "model not found: "+id)
		}
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "", "")
	}
	if err := s.store.Save(); err != nil {
		s.log.Error("persist catalog", "error", err)
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "", "")
	}
	s.log.Info("model removed", "id", m.ID, "name", m.Name, "purge", purge)
	return c.JSON(http.StatusOK, map[string]any{
		"id":      m.ID,
		"object":  "model",
		"deleted": purge,
		"state":   m.State,
	})
}

func (s *Server) handleModelMetadata(c *echo.Context) error {
	id := c.Param("id")
	path, err := s.store.ModelPath(id)
	if err != nil {
		if errors.Is(err, catalog.ErrModelNotFound) {
			return writeNotFound(c, "model not found: "+id)
		}
		if isStructural(err) {
			return writeError(c, http.StatusUnprocessableEntity, "invalid_model_error", err.Error(), "", "")
		}
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "", "")
	}

	f, err := gguf.Open(path)
	if err != nil {
		if isStructural(err) {
			return writeError(c, http.StatusUnprocessableEntity, "invalid_model_error", err.Error(), "", "")
		}
		s.log.Error("read model file", "id", id, "path", path, "error", err)
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "", "")
	}

	return c.JSON(http.StatusOK, MetadataResponse{
		Object:       "model.metadata",
		ID:           id,
		FileSize:     f.Size,
		Version:      f.Header.Version,
		TensorCount:  f.Header.TensorCount,
		MetadataSize: f.Header.KVCount,
		Entries:      entriesJSON(f.Entries),
	})
}

func isStructural(err error) bool {
	var unknown *gguf.UnknownValueTypeError
	return errors.Is(err, gguf.ErrBadMagic) ||
		errors.Is(err, gguf.ErrTruncated) ||
		errors.Is(err, gguf.ErrInvalidUTF8) ||
		errors.As(err, &unknown)
}
