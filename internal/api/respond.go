package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"get5-api/internal/service"
)

const maxBodyBytes = 1 << 20

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

type messageResponse struct {
	Message string `json:"message"`
	ID      int64  `json:"id,omitempty"`
	Result  string `json:"result,omitempty"`
}

// writeMessage writes a {"message": ...} body.
func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, messageResponse{Message: message})
}

// writeError maps a workflow error to its status. Internal causes are
// logged and never sent to the client.
func writeError(w http.ResponseWriter, req *http.Request, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		writeMessage(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, service.ErrValidation):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUnauthorized):
		writeMessage(w, http.StatusUnauthorized, "User is not authorized to perform action.")
	case errors.Is(err, service.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "Resource not found.")
	case errors.Is(err, service.ErrNotImplemented):
		writeMessage(w, http.StatusNotImplemented, "Not implemented.")
	default:
		logFor(req).Error().Err(err).Msg("Request failed")
		writeMessage(w, http.StatusInternalServerError, "Internal server error.")
	}
}

func logFor(req *http.Request) *zerolog.Logger {
	return zerolog.Ctx(req.Context())
}

// decodePayload reads a JSON object, or a one-element array holding one,
// into a new T. get5 clients send the latter.
func decodePayload[T any](req *http.Request) (*T, error) {
	body, err := io.ReadAll(io.LimitReader(req.Body, maxBodyBytes+1))
	if err != nil {
		return nil, &service.ValidationError{Field: "body", Reason: "could not be read"}
	}
	if len(body) > maxBodyBytes {
		return nil, &service.ValidationError{Field: "body", Reason: "is too large"}
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, &service.ValidationError{Field: "body", Reason: "is empty"}
	}

	if body[0] == '[' {
		var items []T
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, &service.ValidationError{Field: "body", Reason: jsonReason(err)}
		}
		if len(items) != 1 {
			return nil, &service.ValidationError{Field: "body", Reason: fmt.Sprintf("expected one record, got %d", len(items))}
		}
		return &items[0], nil
	}

	var item T
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, &service.ValidationError{Field: "body", Reason: jsonReason(err)}
	}
	return &item, nil
}

func jsonReason(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return fmt.Sprintf("field %s has the wrong type", typeErr.Field)
	}
	return "is not valid JSON"
}

// parseID parses a positive id from a URL parameter.
func parseID(req *http.Request, param string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(req, param), 10, 64)
	if err != nil || id <= 0 {
		return 0, &service.ValidationError{Field: param, Reason: "must be a positive integer"}
	}
	return id, nil
}
