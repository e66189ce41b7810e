package handler

import (
	"net/http"

	"huddle/internal/rooms/service"
	httputil "huddle/pkg/http"
	"huddle/pkg/logger"
	"huddle/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type RoomHandler struct {
	service service.RoomService
	log     *logger.Logger
}

func NewRoomHandler(service service.RoomService, log *logger.Logger) *RoomHandler {
	return &RoomHandler{
		service: service,
		log:     log,
	}
}

func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.CreateRoomRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, r, "Create", err)
		return
	}

	room, err := h.service.Create(r.Context(), &req)
	if err != nil {
		h.writeError(w, r, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, room); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

// List serves GET /api/v1/rooms. With min_capacity it returns the active
// rooms that seat at least that many people, smallest first.
func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	minCapacity, hasMin, err := httputil.QueryInt(r, "min_capacity")
	if err != nil {
		h.writeError(w, r, "List", err)
		return
	}

	var rooms []*model.Room
	if hasMin {
		rooms, err = h.service.ListAvailable(r.Context(), minCapacity)
	} else {
		var activeOnly bool
		activeOnly, err = httputil.QueryBool(r, "active_only")
		if err == nil {
			rooms, err = h.service.List(r.Context(), activeOnly)
		}
	}
	if err != nil {
		h.writeError(w, r, "List", err)
		return
	}

	h.writeSuccess(w, "List", rooms)
}

func (h *RoomHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	room, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, r, "GetByID", err)
		return
	}

	h.writeSuccess(w, "GetByID", room)
}

func (h *RoomHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var update model.RoomUpdate
	if err := httputil.DecodeJSON(r, &update); err != nil {
		h.writeError(w, r, "Update", err)
		return
	}

	room, err := h.service.Update(r.Context(), ps.ByName("id"), &update)
	if err != nil {
		h.writeError(w, r, "Update", err)
		return
	}

	h.writeSuccess(w, "Update", room)
}

func (h *RoomHandler) Deactivate(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	room, err := h.service.Deactivate(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, r, "Deactivate", err)
		return
	}

	h.writeSuccess(w, "Deactivate", room)
}

func (h *RoomHandler) Activate(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	room, err := h.service.Activate(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, r, "Activate", err)
		return
	}

	h.writeSuccess(w, "Activate", room)
}

func (h *RoomHandler) writeError(w http.ResponseWriter, r *http.Request, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.WithContext(r.Context()).Error("failed to write error response",
			"handler", handler,
			"operation", "WriteError",
			"error", writeErr,
		)
	}
}

func (h *RoomHandler) writeSuccess(w http.ResponseWriter, handler string, data any) {
	if err := httputil.WriteSuccess(w, data); err != nil {
		h.log.Error("failed to write success response", "handler", handler, "operation", "WriteSuccess", "error", err)
	}
}

func (h *RoomHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/rooms", h.Create)
	router.GET("/api/v1/rooms", h.List)
	router.GET("/api/v1/rooms/id/:id", h.GetByID)
	router.PATCH("/api/v1/rooms/id/:id", h.Update)
	router.POST("/api/v1/rooms/id/:id/deactivate", h.Deactivate)
	router.POST("/api/v1/rooms/id/:id/activate", h.Activate)
}
