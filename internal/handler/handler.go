package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Dan9191/card-service/internal/middleware"
	"github.com/Dan9191/card-service/internal/models"
	"github.com/Dan9191/card-service/internal/service"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	svc *service.Service
	log *logrus.Logger
}

func NewHandler(svc *service.Service, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

type createCardRequest struct {
	EmployeeID int64           `json:"employeeId"`
	Type       models.CardType `json:"type"`
}

type cardPasswordRequest struct {
	CardID   int64  `json:"cardId"`
	Password string `json:"password"`
}

type activateCardRequest struct {
	CardID       int64  `json:"cardId"`
	Password     string `json:"password"`
	SecurityCode string `json:"securityCode"`
}

type createdResponse struct {
	ID int64 `json:"id"`
}

// errBadRequest marks malformed input rejected before reaching the service
var errBadRequest = errors.New("bad request")

// RegisterCardRoutes mounts the card lifecycle endpoints
func (h *Handler) RegisterCardRoutes(r *mux.Router) {
	r.HandleFunc("/employees/{employeeId}/cards", h.CreateCard).Methods(http.MethodPost)
	r.HandleFunc("/cards/{cardId}/activate", h.ActivateCard).Methods(http.MethodPost)
	r.HandleFunc("/cards/{cardId}/block", h.BlockCard).Methods(http.MethodPost)
	r.HandleFunc("/cards/{cardId}/unlock", h.UnlockCard).Methods(http.MethodPost)
	r.HandleFunc("/cards/{cardId}/virtual", h.CreateVirtualCard).Methods(http.MethodPost)
	r.HandleFunc("/cards/{cardId}/virtual", h.DeleteVirtualCard).Methods(http.MethodDelete)
	r.HandleFunc("/cards/{cardId}/balance", h.GetBalance).Methods(http.MethodGet)
	r.HandleFunc("/cards/{cardId}", h.GetCard).Methods(http.MethodGet)
}

// Health reports liveness
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CreateCard handles physical card creation
func (h *Handler) CreateCard(w http.ResponseWriter, r *http.Request) {
	employeeID, err := pathID(r, "employeeId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req createCardRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	id, err := h.svc.CreatePhysicalCard(r.Context(), employeeID, req.Type, req.EmployeeID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{ID: id})
}

// ActivateCard handles card activation
func (h *Handler) ActivateCard(w http.ResponseWriter, r *http.Request) {
	cardID, err := pathID(r, "cardId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req activateCardRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.svc.Activate(r.Context(), cardID, req.Password, req.SecurityCode, req.CardID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// BlockCard handles card blocking
func (h *Handler) BlockCard(w http.ResponseWriter, r *http.Request) {
	h.withCardPassword(w, r, http.StatusOK, func(cardID int64, req cardPasswordRequest) (any, error) {
		return nil, h.svc.Block(r.Context(), cardID, req.Password, req.CardID)
	})
}

// UnlockCard handles card unblocking
func (h *Handler) UnlockCard(w http.ResponseWriter, r *http.Request) {
	h.withCardPassword(w, r, http.StatusOK, func(cardID int64, req cardPasswordRequest) (any, error) {
		return nil, h.svc.Unlock(r.Context(), cardID, req.Password, req.CardID)
	})
}

// CreateVirtualCard handles virtual card creation
func (h *Handler) CreateVirtualCard(w http.ResponseWriter, r *http.Request) {
	h.withCardPassword(w, r, http.StatusCreated, func(cardID int64, req cardPasswordRequest) (any, error) {
		id, err := h.svc.CreateVirtualCard(r.Context(), cardID, req.Password, req.CardID)
		if err != nil {
			return nil, err
		}
		return createdResponse{ID: id}, nil
	})
}

// DeleteVirtualCard handles virtual card removal
func (h *Handler) DeleteVirtualCard(w http.ResponseWriter, r *http.Request) {
	h.withCardPassword(w, r, http.StatusOK, func(cardID int64, req cardPasswordRequest) (any, error) {
		return nil, h.svc.DeleteVirtualCard(r.Context(), cardID, req.Password, req.CardID)
	})
}

// GetBalance handles card balance queries
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	cardID, err := pathID(r, "cardId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	balance, err := h.svc.ComputeBalance(r.Context(), cardID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

// GetCard handles card lookups
func (h *Handler) GetCard(w http.ResponseWriter, r *http.Request) {
	cardID, err := pathID(r, "cardId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	card, err := h.svc.GetCard(r.Context(), cardID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (h *Handler) withCardPassword(w http.ResponseWriter, r *http.Request, status int, op func(cardID int64, req cardPasswordRequest) (any, error)) {
	cardID, err := pathID(r, "cardId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req cardPasswordRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	body, err := op(cardID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if body == nil {
		w.WriteHeader(status)
		return
	}
	writeJSON(w, status, body)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		fields := logrus.Fields{
			"request_id": middleware.RequestIDFromContext(r.Context()),
			"path":       r.URL.Path,
		}
		if subject, ok := middleware.SubjectFromContext(r.Context()); ok {
			fields["subject"] = subject
		}
		h.log.WithFields(fields).Errorf("Request failed: %v", err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, service.ErrUnprocessable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", errBadRequest, name)
	}
	return id, nil
}

func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", errBadRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
