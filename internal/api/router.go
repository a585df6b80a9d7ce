package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/greenhouse-catalog/internal/catalog"
)

// serviceIDAlias is the short identifier route peers use for services.
const serviceIDAlias = "/new_serv_id"

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)
	r.Get("/metrics", s.handleMetrics)

	for _, c := range catalog.AllCollections() {
		r.Get("/"+string(c), s.handleListRecords(c))

		item := "/" + c.Item()
		r.Get(item, s.handleFindRecord(c))
		r.Post(item, s.handleCreateRecord(c))
		r.Put(item, s.handleUpdateRecord(c))

		r.Get("/new_"+c.Item()+"_id", s.handleAllocateID(c))
	}
	r.Get(serviceIDAlias, s.handleAllocateID(catalog.Services))

	for _, slot := range catalog.AllSlots() {
		path := "/" + string(slot)
		r.Get(path, s.handleReadSingleton(slot))
		r.Post(path, s.handleWriteSingleton(slot, catalog.ModeCreate))
		r.Put(path, s.handleWriteSingleton(slot, catalog.ModeUpdate))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeFailure(w, http.StatusNotFound, "unknown resource "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeFailure(w, http.StatusMethodNotAllowed, r.Method+" not allowed on "+r.URL.Path)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}

// Command describes one registry operation in the index listing.
type Command struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Description string `json:"description"`
}

// handleIndex lists the operations the registry understands.
func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service":  "greenhouse catalog",
		"version":  s.version,
		"commands": commandList(),
	})
}

func commandList() []Command {
	var cmds []Command
	for _, c := range catalog.AllCollections() {
		item := c.Item()
		cmds = append(cmds,
			Command{http.MethodGet, "/" + string(c), "list all " + string(c)},
			Command{http.MethodGet, "/" + item + "?<field>=<value>", "find one " + item + " by a searchable field"},
			Command{http.MethodPost, "/" + item, "register a new " + item},
			Command{http.MethodPut, "/" + item, "refresh an existing " + item},
			Command{http.MethodGet, "/new_" + item + "_id", "allocate a fresh " + item + " id"},
		)
	}
	for _, slot := range catalog.AllSlots() {
		name := string(slot)
		cmds = append(cmds,
			Command{http.MethodGet, "/" + name, "read the " + name + " pointer"},
			Command{http.MethodPost, "/" + name, "set the " + name + " pointer when empty"},
			Command{http.MethodPut, "/" + name, "refresh the " + name + " pointer"},
		)
	}
	return cmds
}
