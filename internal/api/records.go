package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/nerrad567/greenhouse-catalog/internal/catalog"
)

// handleListRecords returns every record of c.
func (s *Server) handleListRecords(c catalog.Collection) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, s.store.List(c))
	}
}

// handleFindRecord looks up one record of c by the single query parameter,
// e.g. GET /device?id=7.
func (s *Server) handleFindRecord(c catalog.Collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if len(query) != 1 {
			writeBadRequest(w, fmt.Sprintf("expected exactly one lookup parameter, e.g. /%s?id=1", c.Item()))
			return
		}

		var key, value string
		for k, v := range query {
			key, value = k, v[0]
		}

		field, err := catalog.ParseField(c, key)
		if err != nil {
			writeBadRequest(w, err.Error())
			return
		}

		rec, ok, err := s.store.Find(c, field, value)
		if err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		if !ok {
			writeNotFound(w, fmt.Sprintf("%s not found", c.Item()))
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

// handleCreateRecord registers a new record of c.
func (s *Server) handleCreateRecord(c catalog.Collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, ok := s.readDocument(w, r)
		if !ok {
			return
		}

		id, err := s.store.Create(c, doc)
		if err != nil {
			s.rejectWrite(w, r, "create", string(c), err)
			return
		}

		s.logger.Info("record created", "collection", c, "id", id, "request_id", requestID(r))
		writeSuccess(w, http.StatusCreated, fmt.Sprintf("%s %d was added", c.Item(), id))
	}
}

// handleUpdateRecord replaces an existing record of c and refreshes its last_update.
func (s *Server) handleUpdateRecord(c catalog.Collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, ok := s.readDocument(w, r)
		if !ok {
			return
		}

		id, err := s.store.Update(c, doc)
		if err != nil {
			s.rejectWrite(w, r, "update", string(c), err)
			return
		}

		s.logger.Debug("record updated", "collection", c, "id", id, "request_id", requestID(r))
		writeSuccess(w, http.StatusOK, fmt.Sprintf("%s %d was updated", c.Item(), id))
	}
}

// handleAllocateID hands out a fresh identifier in the namespace of c.
func (s *Server) handleAllocateID(c catalog.Collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := s.store.AllocateID(c)
		s.logger.Info("id allocated", "collection", c, "id", id, "request_id", requestID(r))
		writeJSON(w, http.StatusOK, map[string]int64{"id": id})
	}
}

// readDocument decodes the request body into a document. On failure it has
// already written the response.
func (s *Server) readDocument(w http.ResponseWriter, r *http.Request) (catalog.Document, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeFailure(w, http.StatusRequestEntityTooLarge, "request body too large")
			return nil, false
		}
		writeBadRequest(w, "reading request body failed")
		return nil, false
	}

	doc, err := catalog.DecodeDocument(body)
	if err != nil {
		s.logger.Warn("malformed request body", "path", r.URL.Path, "error", err, "request_id", requestID(r))
		writeBadRequest(w, "invalid JSON: "+err.Error())
		return nil, false
	}
	return doc, true
}

// rejectWrite logs a rejected mutation and answers 400. Every store
// rejection (validation, conflict, not found) is a 400 at this boundary.
func (s *Server) rejectWrite(w http.ResponseWriter, r *http.Request, op, target string, err error) {
	kind := "validation"
	switch {
	case catalog.IsConflict(err):
		kind = "conflict"
	case catalog.IsNotFound(err):
		kind = "not_found"
	}
	s.logger.Warn("write rejected",
		"op", op,
		"target", target,
		"kind", kind,
		"error", err,
		"request_id", requestID(r),
	)
	writeBadRequest(w, fmt.Sprintf("unable to %s %s: %v", op, target, err))
}
