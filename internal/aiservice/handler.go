package aiservice

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MaxRequestBytes caps the size of a request body.
const MaxRequestBytes = 64 << 20

// NewHandler exposes svc over HTTP: POST /v1/process and GET /healthz.
// logger may be nil.
func NewHandler(svc Service, logger *log.Logger) http.Handler {
	if logger == nil {
		logger = log.Default()
	}
	h := &handler{svc: svc, logger: logger}
	r := chi.NewRouter()
	r.Post(ProcessPath, h.process)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return r
}

type handler struct {
	svc    Service
	logger *log.Logger
}

func (h *handler) process(w http.ResponseWriter, r *http.Request) {
	var req Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxRequestBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errorBody{Reason: ReasonInvalidRequest, Message: "invalid request body"})
		return
	}
	if err := Validate(req); err != nil {
		writeError(w, http.StatusBadRequest, errorBody{Reason: ReasonInvalidRequest, Message: err.Error()})
		return
	}
	resp, err := h.svc.Process(r.Context(), req)
	if err != nil {
		status, body := errorStatus(err)
		h.logger.Printf("ai %s: %v", req.Model, err)
		writeError(w, status, body)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func errorStatus(err error) (int, errorBody) {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError, errorBody{Reason: ReasonRejected, Message: "internal error"}
	}
	body := errorBody{Reason: e.Reason, Message: e.Error()}
	switch e.Reason {
	case ReasonTimeout:
		return http.StatusGatewayTimeout, body
	case ReasonUnreachable:
		return http.StatusBadGateway, body
	case ReasonInvalidRequest:
		return http.StatusBadRequest, body
	case ReasonCanceled:
		return 499, body
	}
	return http.StatusUnprocessableEntity, body
}

func writeError(w http.ResponseWriter, status int, body errorBody) {
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
