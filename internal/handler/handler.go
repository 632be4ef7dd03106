package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"storefront/internal/middleware"
	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// maxBodyBytes bounds request payloads.
const maxBodyBytes = 1 << 20

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already sent; nothing useful left to tell the client.
		return
	}
}

// writeError writes an error response with the given status code.
func writeError(w http.ResponseWriter, status int, resp model.ErrorResponse, logger zerolog.Logger) {
	event := logger.Warn()
	if status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Str("error", resp.Error).Str("message", resp.Message).Int("status", status).Msg("handler error")
	writeJSON(w, status, resp)
}

// respondError maps err onto a status code. Domain errors keep their code and
// message; anything else is reported as an internal error.
func respondError(w http.ResponseWriter, err error, logger zerolog.Logger) {
	var de *model.DomainError
	if !errors.As(err, &de) {
		logger.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, model.ErrorResponse{
			Error:   model.ErrCodeInternalError,
			Message: "internal server error",
		}, logger)
		return
	}

	writeError(w, statusForKind(de.Kind), model.ErrorResponse{
		Error:   de.Code,
		Message: de.Message,
		Details: de.Details,
	}, logger)
}

func statusForKind(kind model.ErrorKind) int {
	switch kind {
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindForbidden:
		return http.StatusForbidden
	case model.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func badRequest(w http.ResponseWriter, code, message string, logger zerolog.Logger) {
	writeError(w, http.StatusBadRequest, model.ErrorResponse{Error: code, Message: message}, logger)
}

// decodeJSON reads a bounded JSON body into dst and reports a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, logger zerolog.Logger) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		badRequest(w, model.ErrCodeInvalidJSON, "invalid request body", logger)
		return false
	}
	return true
}

// pathUUID parses a UUID route variable.
func pathUUID(w http.ResponseWriter, r *http.Request, name string, logger zerolog.Logger) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		badRequest(w, model.ErrCodeInvalidID, "invalid "+name+" format", logger)
		return uuid.Nil, false
	}
	return id, true
}

// pathInt64 parses a positive integer route variable.
func pathInt64(w http.ResponseWriter, r *http.Request, name string, logger zerolog.Logger) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		badRequest(w, model.ErrCodeInvalidID, "invalid "+name+" format", logger)
		return 0, false
	}
	return id, true
}

// queryInt parses an optional integer query parameter. Absent parameters
// yield zero.
func queryInt(w http.ResponseWriter, r *http.Request, name string, logger zerolog.Logger) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		badRequest(w, model.ErrCodeInvalidQuery, "invalid "+name+" parameter", logger)
		return 0, false
	}
	return n, true
}

const dateLayout = "2006-01-02"

// queryDateRange reads startDate and endDate as RFC 3339 timestamps or plain
// dates. A plain endDate covers that whole day.
func queryDateRange(w http.ResponseWriter, r *http.Request, logger zerolog.Logger) (model.DateRange, bool) {
	var rng model.DateRange
	for _, p := range []struct {
		name     string
		dst      **time.Time
		wholeDay bool
	}{
		{"startDate", &rng.From, false},
		{"endDate", &rng.To, true},
	} {
		raw := r.URL.Query().Get(p.name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			day, dayErr := time.Parse(dateLayout, raw)
			if dayErr != nil {
				badRequest(w, model.ErrCodeInvalidQuery, "invalid "+p.name+" parameter", logger)
				return model.DateRange{}, false
			}
			t = day
			if p.wholeDay {
				t = day.AddDate(0, 0, 1)
			}
		}
		*p.dst = &t
	}
	return rng, true
}

// principal returns the caller resolved by the identity middleware.
func principal(r *http.Request) middleware.Principal {
	p, _ := middleware.FromContext(r.Context())
	return p
}
