// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package handlers contains the HTTP handlers for the inkpost JSON API.
// Handlers are grouped by resource and receive their dependencies through
// the handler struct.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// maxJSONBody caps request bodies decoded by decodeJSON.
const maxJSONBody = 1 << 20

// errorBody is the error envelope every failed request answers with.
// Errors is only present on 422.
type errorBody struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

// dataBody wraps a single resource.
type dataBody struct {
	Data any `json:"data"`
}

// writeJSON serialises v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write response failed", "error", err)
	}
}

// writeData wraps v in {"data": v}.
func writeData(w http.ResponseWriter, status int, v any) {
	writeJSON(w, status, dataBody{Data: v})
}

// writeError writes the error envelope without field errors.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Message: message})
}

// writeValidation answers 422 with field-keyed messages.
func writeValidation(w http.ResponseWriter, fields fieldErrors) {
	writeJSON(w, http.StatusUnprocessableEntity, errorBody{
		Message: fields.summary(),
		Errors:  fields,
	})
}

// serverError logs err and answers with a generic 500.
func serverError(w http.ResponseWriter, msg string, err error, args ...any) {
	slog.Error(msg, append([]any{"error", err}, args...)...)
	writeError(w, http.StatusInternalServerError, "Server error.")
}

func notFound(w http.ResponseWriter, what string) {
	writeError(w, http.StatusNotFound, what+" not found.")
}

func forbidden(w http.ResponseWriter) {
	writeError(w, http.StatusForbidden, "This action is unauthorized.")
}

// decodeJSON reads a JSON object from the request body into dst. It
// writes the error response itself and returns false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			writeError(w, http.StatusBadRequest, "Request body is empty.")
		case errors.As(err, &maxErr):
			writeError(w, http.StatusRequestEntityTooLarge, "Request body is too large.")
		default:
			writeError(w, http.StatusBadRequest, "Request body is not valid JSON.")
		}
		return false
	}
	return true
}

// uuidParam parses a chi URL parameter as a UUID. It answers 404 itself
// when the value is not a UUID.
func uuidParam(w http.ResponseWriter, r *http.Request, name, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		notFound(w, what)
		return uuid.Nil, false
	}
	return id, true
}
