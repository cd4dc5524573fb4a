package rides

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"carpool-service/pkg/jwt"
)

// RideService is the part of Service the HTTP layer needs.
type RideService interface {
	Create(ctx context.Context, driverID string, req CreateRequest) (*Ride, error)
	GetByID(ctx context.Context, id string) (*Ride, error)
	Join(ctx context.Context, rideID, userID string) (*Ride, error)
	Delete(ctx context.Context, rideID, callerID string) error
}

// Handler exposes ride HTTP endpoints.
type Handler struct{ svc RideService }

// NewHandler wires a handler to the ride service.
func NewHandler(svc RideService) *Handler { return &Handler{svc: svc} }

// Routes returns a chi.Router with all ride routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(jwt.RequireAuth)

	r.Post("/", h.Create)
	r.Get("/{id}", h.GetByID)
	r.Post("/{id}/join", h.Join)
	r.Delete("/{id}", h.Delete)

	return r
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	claims := jwt.GetClaims(r.Context())

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid body"})
		return
	}

	ride, err := h.svc.Create(r.Context(), claims.UserID, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ride)
}

func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	ride, err := h.svc.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ride)
}

func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	claims := jwt.GetClaims(r.Context())

	ride, err := h.svc.Join(r.Context(), chi.URLParam(r, "id"), claims.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ride)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := jwt.GetClaims(r.Context())

	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id"), claims.UserID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "ride deleted"})
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"message": err.Error()})
	case errors.Is(err, ErrForbidden):
		writeJSON(w, http.StatusForbidden, map[string]string{"message": err.Error()})
	case errors.Is(err, ErrInvalid):
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
	case errors.Is(err, ErrRideFull), errors.Is(err, ErrAlreadyJoined), errors.Is(err, ErrOwnRide):
		writeJSON(w, http.StatusConflict, map[string]string{"message": err.Error()})
	default:
		logrus.WithError(err).Error("ride request failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
