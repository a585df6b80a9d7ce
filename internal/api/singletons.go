package api

import (
	"net/http"

	"github.com/nerrad567/greenhouse-catalog/internal/catalog"
)

// handleReadSingleton returns the slot content, or {} when it is empty.
func (s *Server) handleReadSingleton(slot catalog.Slot) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, s.store.ReadSingleton(slot))
	}
}

// handleWriteSingleton sets (ModeCreate) or refreshes (ModeUpdate) a slot.
func (s *Server) handleWriteSingleton(slot catalog.Slot, mode catalog.Mode) http.HandlerFunc {
	op, status, verb := "update", http.StatusOK, "updated"
	if mode == catalog.ModeCreate {
		op, status, verb = "create", http.StatusCreated, "set"
	}

	return func(w http.ResponseWriter, r *http.Request) {
		doc, ok := s.readDocument(w, r)
		if !ok {
			return
		}

		if err := s.store.WriteSingleton(slot, doc, mode); err != nil {
			s.rejectWrite(w, r, op, string(slot), err)
			return
		}

		s.logger.Info("singleton written", "slot", slot, "op", op, "request_id", requestID(r))
		writeSuccess(w, status, string(slot)+" was "+verb)
	}
}
