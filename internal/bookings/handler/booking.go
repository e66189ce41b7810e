package handler

import (
	"net/http"

	"huddle/internal/bookings/service"
	httputil "huddle/pkg/http"
	"huddle/pkg/logger"
	"huddle/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type BookingHandler struct {
	service service.BookingService
	log     *logger.Logger
}

func NewBookingHandler(service service.BookingService, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log,
	}
}

type countResponse struct {
	RoomID string `json:"room_id"`
	Count  int64  `json:"count"`
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.CreateBookingRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, r, "Create", err)
		return
	}

	booking, err := h.service.Create(r.Context(), &req)
	if err != nil {
		h.writeError(w, r, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, booking); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, r, "GetByID", err)
		return
	}

	h.writeSuccess(w, "GetByID", booking)
}

func (h *BookingHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var update model.BookingUpdate
	if err := httputil.DecodeJSON(r, &update); err != nil {
		h.writeError(w, r, "Update", err)
		return
	}

	booking, err := h.service.Update(r.Context(), ps.ByName("id"), &update)
	if err != nil {
		h.writeError(w, r, "Update", err)
		return
	}

	h.writeSuccess(w, "Update", booking)
}

func (h *BookingHandler) Confirm(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, err := h.service.Confirm(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, r, "Confirm", err)
		return
	}

	h.writeSuccess(w, "Confirm", booking)
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, err := h.service.Cancel(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, r, "Cancel", err)
		return
	}

	h.writeSuccess(w, "Cancel", booking)
}

// GetByRoom serves GET /api/v1/bookings/room/:room_id?from=&to= and returns
// every booking of the room intersecting the range, whatever its status.
func (h *BookingHandler) GetByRoom(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	from, err := httputil.QueryTime(r, "from", true)
	if err != nil {
		h.writeError(w, r, "GetByRoom", err)
		return
	}
	to, err := httputil.QueryTime(r, "to", true)
	if err != nil {
		h.writeError(w, r, "GetByRoom", err)
		return
	}

	bookings, err := h.service.FindByRoomAndRange(r.Context(), ps.ByName("room_id"), from, to)
	if err != nil {
		h.writeError(w, r, "GetByRoom", err)
		return
	}

	h.writeSuccess(w, "GetByRoom", bookings)
}

func (h *BookingHandler) GetActiveByRoom(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	bookings, err := h.service.FindActiveByRoom(r.Context(), ps.ByName("room_id"))
	if err != nil {
		h.writeError(w, r, "GetActiveByRoom", err)
		return
	}

	h.writeSuccess(w, "GetActiveByRoom", bookings)
}

func (h *BookingHandler) CountActive(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	roomID := ps.ByName("room_id")
	count, err := h.service.CountActive(r.Context(), roomID)
	if err != nil {
		h.writeError(w, r, "CountActive", err)
		return
	}

	h.writeSuccess(w, "CountActive", countResponse{RoomID: roomID, Count: count})
}

// Availability answers whether the slot is free and lists what blocks it.
func (h *BookingHandler) Availability(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	roomID, err := httputil.QueryString(r, "room_id", true)
	if err != nil {
		h.writeError(w, r, "Availability", err)
		return
	}
	start, err := httputil.QueryTime(r, "start_time", true)
	if err != nil {
		h.writeError(w, r, "Availability", err)
		return
	}
	end, err := httputil.QueryTime(r, "end_time", true)
	if err != nil {
		h.writeError(w, r, "Availability", err)
		return
	}

	conflicts, err := h.service.FindConflicts(r.Context(), roomID, start, end)
	if err != nil {
		h.writeError(w, r, "Availability", err)
		return
	}

	h.writeSuccess(w, "Availability", model.Availability{Available: len(conflicts) == 0, Conflicts: conflicts})
}

func (h *BookingHandler) GetByOrganizer(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	email, err := httputil.QueryString(r, "email", true)
	if err != nil {
		h.writeError(w, r, "GetByOrganizer", err)
		return
	}

	bookings, err := h.service.FindByOrganizer(r.Context(), email)
	if err != nil {
		h.writeError(w, r, "GetByOrganizer", err)
		return
	}

	h.writeSuccess(w, "GetByOrganizer", bookings)
}

func (h *BookingHandler) GetByStatus(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	status, err := httputil.QueryString(r, "status", true)
	if err != nil {
		h.writeError(w, r, "GetByStatus", err)
		return
	}

	bookings, err := h.service.FindByStatus(r.Context(), status)
	if err != nil {
		h.writeError(w, r, "GetByStatus", err)
		return
	}

	h.writeSuccess(w, "GetByStatus", bookings)
}

func (h *BookingHandler) writeError(w http.ResponseWriter, r *http.Request, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.WithContext(r.Context()).Error("failed to write error response",
			"handler", handler,
			"operation", "WriteError",
			"error", writeErr,
		)
	}
}

func (h *BookingHandler) writeSuccess(w http.ResponseWriter, handler string, data any) {
	if err := httputil.WriteSuccess(w, data); err != nil {
		h.log.Error("failed to write success response", "handler", handler, "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings", h.Create)
	router.GET("/api/v1/bookings/id/:id", h.GetByID)
	router.PATCH("/api/v1/bookings/id/:id", h.Update)
	router.POST("/api/v1/bookings/id/:id/confirm", h.Confirm)
	router.POST("/api/v1/bookings/id/:id/cancel", h.Cancel)
	router.GET("/api/v1/bookings/room/:room_id", h.GetByRoom)
	router.GET("/api/v1/bookings/room/:room_id/active", h.GetActiveByRoom)
	router.GET("/api/v1/bookings/room/:room_id/count", h.CountActive)
	router.GET("/api/v1/bookings/availability", h.Availability)
	router.GET("/api/v1/bookings/organizer", h.GetByOrganizer)
	router.GET("/api/v1/bookings/status", h.GetByStatus)
}
