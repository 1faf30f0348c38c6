package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/Dosada05/trust-tournament/repositories"
	"github.com/Dosada05/trust-tournament/services"
)

type jsonResponse map[string]interface{}

func readJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	maxBytes := 1_048_576 // 1MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var maxBytesError *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxError):
			return fmt.Errorf("body contains badly-formed JSON (at character %d)", syntaxError.Offset)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("body contains badly-formed JSON")
		case errors.As(err, &unmarshalTypeError):
			if unmarshalTypeError.Field != "" {
				return fmt.Errorf("body contains incorrect JSON type for field %q", unmarshalTypeError.Field)
			}
			return fmt.Errorf("body contains incorrect JSON type (at character %d)", unmarshalTypeError.Offset)
		case errors.Is(err, io.EOF):
			return errors.New("body must not be empty")
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
			return fmt.Errorf("body contains unknown key %s", fieldName)
		case errors.As(err, &maxBytesError):
			return fmt.Errorf("body must not be larger than %d bytes", maxBytes)
		default:
			return err
		}
	}

	err = dec.Decode(&struct{}{})
	if !errors.Is(err, io.EOF) {
		return errors.New("body must only contain a single JSON value")
	}

	return nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}, headers http.Header) error {
	js, err := json.MarshalIndent(data, "", "\t")
	if err != nil {
		return err
	}
	js = append(js, '\n')

	for key, value := range headers {
		w.Header()[key] = value
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(js)
	return err
}

// queryInt returns def when the parameter is absent.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("query parameter %q must be a non-negative integer", name)
	}
	return v, nil
}

// responder пишет ошибки через общий логгер обработчиков.
type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (re responder) errorResponse(w http.ResponseWriter, r *http.Request, status int, message interface{}) {
	env := jsonResponse{"error": message}
	if err := writeJSON(w, status, env, nil); err != nil {
		re.logger.Error("failed to write error response",
			slog.String("path", r.URL.Path), slog.Any("error", err))
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func (re responder) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	re.logger.Error("internal server error",
		slog.String("method", r.Method), slog.String("path", r.URL.Path), slog.Any("error", err))
	message := "the server encountered a problem and could not process your request"
	re.errorResponse(w, r, http.StatusInternalServerError, message)
}

func (re responder) badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	re.errorResponse(w, r, http.StatusBadRequest, err.Error())
}

func (re responder) notFoundResponse(w http.ResponseWriter, r *http.Request, err error) {
	re.errorResponse(w, r, http.StatusNotFound, err.Error())
}

func (re responder) unauthorizedResponse(w http.ResponseWriter, r *http.Request, message string) {
	re.errorResponse(w, r, http.StatusUnauthorized, message)
}

func (re responder) writeOK(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if err := writeJSON(w, status, data, nil); err != nil {
		re.serverErrorResponse(w, r, err)
	}
}

// mapServiceErrorToHTTP преобразует ошибки сервисного слоя в HTTP-ответы
func (re responder) mapServiceErrorToHTTP(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound),
		errors.Is(err, repositories.ErrTournamentNotFound),
		errors.Is(err, repositories.ErrMatchNotFound),
		errors.Is(err, repositories.ErrPlayerNotFound):
		re.notFoundResponse(w, r, err)

	case errors.Is(err, services.ErrConcurrentUpdate):
		re.errorResponse(w, r, http.StatusConflict, err.Error())

	case errors.Is(err, services.ErrValidationFailed):
		re.errorResponse(w, r, http.StatusUnprocessableEntity, err.Error())

	default:
		re.serverErrorResponse(w, r, err)
	}
}
