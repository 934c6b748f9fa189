package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"chat-relay-backend/internal/models"
	"chat-relay-backend/internal/ratelimit"
	"chat-relay-backend/internal/services"
)

const maxBodyBytes = 1 << 20

var (
	errBodyTooLarge = errors.New("request body too large")
	errTrailingData = errors.New("unexpected data after JSON body")
)

// Shared helpers

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func detailResp(message string) models.ErrorResponse {
	return models.ErrorResponse{Detail: message}
}

func validationResp(e *services.ValidationError) models.ValidationErrorResponse {
	details := make([]models.FieldError, 0, len(e.Fields))
	for _, f := range e.Fields {
		loc := []string{"body"}
		if f.Field != "" {
			loc = append(loc, strings.Split(f.Field, ".")...)
		}
		details = append(details, models.FieldError{Loc: loc, Msg: f.Message, Type: f.Reason})
	}
	return models.ValidationErrorResponse{Detail: details}
}

// decodeJSON reads a single JSON document into dst. Malformed bodies come back
// as *services.ValidationError so they share the 422 path with field errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return decodeError(err)
	}

	// Anything after the document, even whitespace-separated, is rejected.
	var extra json.RawMessage
	switch err := dec.Decode(&extra); {
	case errors.Is(err, io.EOF):
		return nil
	case err == nil:
		return decodeError(errTrailingData)
	default:
		return decodeError(err)
	}
}

func decodeError(err error) error {
	var maxErr *http.MaxBytesError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &maxErr):
		return errBodyTooLarge
	case errors.As(err, &typeErr):
		return &services.ValidationError{Fields: []services.FieldViolation{{
			Field:   typeErr.Field,
			Reason:  services.ReasonType,
			Message: fmt.Sprintf("Input should be a valid %s", typeErr.Type),
		}}}
	default:
		return &services.ValidationError{Fields: []services.FieldViolation{{
			Reason:  services.ReasonJSONInvalid,
			Message: "JSON decode error",
		}}}
	}
}

// handleServiceError maps every error kind of the chat path to its status and
// returns the status written.
func handleServiceError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) int {
	requestID := chimiddleware.GetReqID(r.Context())

	var (
		validationErr *services.ValidationError
		exceededErr   *ratelimit.ExceededError
		upstreamErr   *services.UpstreamError
	)

	switch {
	case errors.As(err, &validationErr):
		logger.Warn("request validation failed", zap.String("request-id", requestID), zap.Int("fields", len(validationErr.Fields)))
		writeJSON(w, http.StatusUnprocessableEntity, validationResp(validationErr))
		return http.StatusUnprocessableEntity

	case errors.Is(err, errBodyTooLarge):
		logger.Warn("request body too large", zap.String("request-id", requestID))
		writeJSON(w, http.StatusRequestEntityTooLarge, detailResp("Request body too large"))
		return http.StatusRequestEntityTooLarge

	case errors.As(err, &exceededErr):
		logger.Warn("rate limit exceeded",
			zap.String("request-id", requestID),
			zap.String("client", exceededErr.ClientID),
			zap.Duration("retry_after", exceededErr.RetryAfter),
		)
		w.Header().Set("Retry-After", strconv.Itoa(int(exceededErr.RetryAfter.Seconds())))
		writeJSON(w, http.StatusTooManyRequests, detailResp("Too many requests"))
		return http.StatusTooManyRequests

	case errors.As(err, &upstreamErr):
		logger.Error("upstream failure", zap.String("request-id", requestID), zap.Error(upstreamErr.Err))
		writeJSON(w, http.StatusInternalServerError, detailResp(upstreamErr.Message))
		return http.StatusInternalServerError

	default:
		logger.Error("unexpected error", zap.String("request-id", requestID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, detailResp("Internal server error"))
		return http.StatusInternalServerError
	}
}
