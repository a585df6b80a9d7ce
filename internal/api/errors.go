package api

import (
	"encoding/json"
	"net/http"
)

// Envelope status values.
const (
	StatusSuccess = "SUCCESS"
	StatusFailure = "FAILURE"
)

// Envelope is the body of every write response and of every failure.
type Envelope struct {
	Status string `json:"status"`
	Msg    string `json:"msg"`
}

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeSuccess writes a SUCCESS envelope.
func writeSuccess(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Envelope{Status: StatusSuccess, Msg: msg})
}

// writeFailure writes a FAILURE envelope.
func writeFailure(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Envelope{Status: StatusFailure, Msg: msg})
}

// writeBadRequest writes a 400 FAILURE envelope.
func writeBadRequest(w http.ResponseWriter, msg string) {
	writeFailure(w, http.StatusBadRequest, msg)
}

// writeNotFound writes a 404 FAILURE envelope.
func writeNotFound(w http.ResponseWriter, msg string) {
	writeFailure(w, http.StatusNotFound, msg)
}

// writeInternalError writes a 500 FAILURE envelope.
func writeInternalError(w http.ResponseWriter, msg string) {
	writeFailure(w, http.StatusInternalServerError, msg)
}
