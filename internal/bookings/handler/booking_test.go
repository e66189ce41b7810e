package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "huddle/pkg/errors"
	"huddle/pkg/logger"
	"huddle/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type mockBookingService struct {
	createFunc              func(ctx context.Context, req *model.CreateBookingRequest) (*model.Booking, error)
	getByIDFunc             func(ctx context.Context, id string) (*model.Booking, error)
	updateFunc              func(ctx context.Context, id string, update *model.BookingUpdate) (*model.Booking, error)
	confirmFunc             func(ctx context.Context, id string) (*model.Booking, error)
	cancelFunc              func(ctx context.Context, id string) (*model.Booking, error)
	isTimeSlotAvailableFunc func(ctx context.Context, roomID string, start, end time.Time) (bool, error)
	findConflictsFunc       func(ctx context.Context, roomID string, start, end time.Time) ([]*model.Booking, error)
	findByRoomAndRangeFunc  func(ctx context.Context, roomID string, from, to time.Time) ([]*model.Booking, error)
	findActiveByRoomFunc    func(ctx context.Context, roomID string) ([]*model.Booking, error)
	findByOrganizerFunc     func(ctx context.Context, email string) ([]*model.Booking, error)
	findByStatusFunc        func(ctx context.Context, status string) ([]*model.Booking, error)
	countActiveFunc         func(ctx context.Context, roomID string) (int64, error)
}

func (m *mockBookingService) Create(ctx context.Context, req *model.CreateBookingRequest) (*model.Booking, error) {
	return m.createFunc(ctx, req)
}

func (m *mockBookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockBookingService) Update(ctx context.Context, id string, update *model.BookingUpdate) (*model.Booking, error) {
	return m.updateFunc(ctx, id, update)
}

func (m *mockBookingService) Confirm(ctx context.Context, id string) (*model.Booking, error) {
	return m.confirmFunc(ctx, id)
}

func (m *mockBookingService) Cancel(ctx context.Context, id string) (*model.Booking, error) {
	return m.cancelFunc(ctx, id)
}

func (m *mockBookingService) IsTimeSlotAvailable(ctx context.Context, roomID string, start, end time.Time) (bool, error) {
	return m.isTimeSlotAvailableFunc(ctx, roomID, start, end)
}

func (m *mockBookingService) FindConflicts(ctx context.Context, roomID string, start, end time.Time) ([]*model.Booking, error) {
	return m.findConflictsFunc(ctx, roomID, start, end)
}

func (m *mockBookingService) FindByRoomAndRange(ctx context.Context, roomID string, from, to time.Time) ([]*model.Booking, error) {
	return m.findByRoomAndRangeFunc(ctx, roomID, from, to)
}

func (m *mockBookingService) FindActiveByRoom(ctx context.Context, roomID string) ([]*model.Booking, error) {
	return m.findActiveByRoomFunc(ctx, roomID)
}

func (m *mockBookingService) FindByOrganizer(ctx context.Context, email string) ([]*model.Booking, error) {
	return m.findByOrganizerFunc(ctx, email)
}

func (m *mockBookingService) FindByStatus(ctx context.Context, status string) ([]*model.Booking, error) {
	return m.findByStatusFunc(ctx, status)
}

func (m *mockBookingService) CountActive(ctx context.Context, roomID string) (int64, error) {
	return m.countActiveFunc(ctx, roomID)
}

var nine = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newRouter(svc *mockBookingService) *httprouter.Router {
	router := httprouter.New()
	NewBookingHandler(svc, logger.Discard()).RegisterRoutes(router)
	return router
}

func serve(router http.Handler, method, url, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, url, nil)
	} else {
		req = httptest.NewRequest(method, url, bytes.NewBufferString(body))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %s", rec.Body.String())
	}
	code, _ := body["code"].(string)
	return code
}

func TestBookingHandler_Create(t *testing.T) {
	valid := `{"room_id":"7b0f2a4e-0c55-4f7e-9d61-3f1f0a7c2b11","title":"Retro","organizer_email":"a@example.com","start_time":"2026-03-02T09:00:00Z","end_time":"2026-03-02T10:00:00Z"}`

	tests := []struct {
		name       string
		body       string
		createErr  error
		wantStatus int
		wantCode   string
	}{
		{name: "created", body: valid, wantStatus: http.StatusCreated},
		{name: "empty body", body: "", wantStatus: http.StatusBadRequest, wantCode: apperrors.CodeInvalidInput},
		{name: "bad timestamp", body: `{"start_time":"tomorrow"}`, wantStatus: http.StatusBadRequest, wantCode: apperrors.CodeInvalidInput},
		{
			name:       "overlap",
			body:       valid,
			createErr:  apperrors.BookingConflict("r-1", nine, nine.Add(time.Hour), nil),
			wantStatus: http.StatusConflict,
			wantCode:   apperrors.CodeBookingConflict,
		},
		{
			name:       "too short",
			body:       valid,
			createErr:  apperrors.InvalidInterval("Booking duration must be at least 15 minutes, got 10"),
			wantStatus: http.StatusBadRequest,
			wantCode:   apperrors.CodeInvalidInterval,
		},
		{
			name:       "room locked",
			body:       valid,
			createErr:  apperrors.Busy("Room is busy, retry the request"),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   apperrors.CodeBusy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *model.CreateBookingRequest
			svc := &mockBookingService{
				createFunc: func(ctx context.Context, req *model.CreateBookingRequest) (*model.Booking, error) {
					got = req
					if tt.createErr != nil {
						return nil, tt.createErr
					}
					return &model.Booking{ID: "b-1", RoomID: req.RoomID, Status: model.StatusPending}, nil
				},
			}

			rec := serve(newRouter(svc), http.MethodPost, "/api/v1/bookings", tt.body)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantCode != "" {
				if code := errorCode(t, rec); code != tt.wantCode {
					t.Errorf("code = %s, want %s", code, tt.wantCode)
				}
			}
			if tt.wantStatus == http.StatusCreated && !got.StartTime.Equal(nine) {
				t.Errorf("start_time decoded as %v", got.StartTime)
			}
		})
	}
}

func TestBookingHandler_Transitions(t *testing.T) {
	svc := &mockBookingService{
		confirmFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return &model.Booking{ID: id, Status: model.StatusConfirmed}, nil
		},
		cancelFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return nil, apperrors.InvalidBookingState("Cannot cancel booking in status CANCELLED", id, "CANCELLED")
		},
	}
	router := newRouter(svc)

	rec := serve(router, http.MethodPost, "/api/v1/bookings/id/b-1/confirm", "")
	if rec.Code != http.StatusOK {
		t.Errorf("confirm status = %d", rec.Code)
	}

	rec = serve(router, http.MethodPost, "/api/v1/bookings/id/b-1/cancel", "")
	if rec.Code != http.StatusConflict || errorCode(t, rec) != apperrors.CodeInvalidBookingState {
		t.Errorf("cancel status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestBookingHandler_UpdateDecodesPartialBody(t *testing.T) {
	var got *model.BookingUpdate
	svc := &mockBookingService{
		updateFunc: func(ctx context.Context, id string, update *model.BookingUpdate) (*model.Booking, error) {
			got = update
			return &model.Booking{ID: id}, nil
		},
	}

	rec := serve(newRouter(svc), http.MethodPatch, "/api/v1/bookings/id/b-1", `{"end_time":"2026-03-02T11:00:00Z","title":null}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if end, ok := got.EndTime.Get(); !ok || !end.Equal(nine.Add(2*time.Hour)) {
		t.Errorf("end_time not decoded: %+v", got.EndTime)
	}
	if !got.Title.IsNull() {
		t.Errorf("title should be an explicit null")
	}
	if got.StartTime.Set || got.RoomID.Set {
		t.Errorf("absent fields must stay unset")
	}
}

func TestBookingHandler_Availability(t *testing.T) {
	conflict := &model.Booking{ID: "b-1", StartTime: nine, EndTime: nine.Add(time.Hour), Status: model.StatusPending}

	tests := []struct {
		name          string
		url           string
		conflicts     []*model.Booking
		wantStatus    int
		wantAvailable bool
	}{
		{
			name:          "free",
			url:           "/api/v1/bookings/availability?room_id=r-1&start_time=2026-03-02T10:00:00Z&end_time=2026-03-02T11:00:00Z",
			wantStatus:    http.StatusOK,
			wantAvailable: true,
		},
		{
			name:       "taken",
			url:        "/api/v1/bookings/availability?room_id=r-1&start_time=2026-03-02T09:30:00Z&end_time=2026-03-02T10:30:00Z",
			conflicts:  []*model.Booking{conflict},
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing end",
			url:        "/api/v1/bookings/availability?room_id=r-1&start_time=2026-03-02T09:30:00Z",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing room",
			url:        "/api/v1/bookings/availability?start_time=2026-03-02T09:30:00Z&end_time=2026-03-02T10:30:00Z",
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockBookingService{
				findConflictsFunc: func(ctx context.Context, roomID string, start, end time.Time) ([]*model.Booking, error) {
					return tt.conflicts, nil
				},
			}

			rec := serve(newRouter(svc), http.MethodGet, tt.url, "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}

			var body struct {
				Data model.Availability `json:"data"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Data.Available != tt.wantAvailable {
				t.Errorf("available = %v, want %v", body.Data.Available, tt.wantAvailable)
			}
			if len(body.Data.Conflicts) != len(tt.conflicts) {
				t.Errorf("conflicts = %d, want %d", len(body.Data.Conflicts), len(tt.conflicts))
			}
		})
	}
}

func TestBookingHandler_RoomQueries(t *testing.T) {
	var gotFrom, gotTo time.Time
	svc := &mockBookingService{
		findByRoomAndRangeFunc: func(ctx context.Context, roomID string, from, to time.Time) ([]*model.Booking, error) {
			gotFrom, gotTo = from, to
			return []*model.Booking{}, nil
		},
		findActiveByRoomFunc: func(ctx context.Context, roomID string) ([]*model.Booking, error) {
			return []*model.Booking{}, nil
		},
		countActiveFunc: func(ctx context.Context, roomID string) (int64, error) {
			return 3, nil
		},
	}
	router := newRouter(svc)

	rec := serve(router, http.MethodGet, "/api/v1/bookings/room/r-1?from=2026-03-02T00:00:00Z&to=2026-03-03T00:00:00Z", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("range status = %d", rec.Code)
	}
	if gotTo.Sub(gotFrom) != 24*time.Hour {
		t.Errorf("range decoded as %v - %v", gotFrom, gotTo)
	}

	rec = serve(router, http.MethodGet, "/api/v1/bookings/room/r-1?from=2026-03-02T00:00:00Z", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing 'to' status = %d", rec.Code)
	}

	rec = serve(router, http.MethodGet, "/api/v1/bookings/room/r-1/active", "")
	if rec.Code != http.StatusOK {
		t.Errorf("active status = %d", rec.Code)
	}

	rec = serve(router, http.MethodGet, "/api/v1/bookings/room/r-1/count", "")
	var body struct {
		Data countResponse `json:"data"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if rec.Code != http.StatusOK || body.Data.Count != 3 || body.Data.RoomID != "r-1" {
		t.Errorf("count = %d %+v", rec.Code, body.Data)
	}

	missing := apperrors.NotFoundWithID("Room", "r-404")
	unknownRoom := newRouter(&mockBookingService{
		findByRoomAndRangeFunc: func(ctx context.Context, roomID string, from, to time.Time) ([]*model.Booking, error) {
			return nil, missing
		},
		findActiveByRoomFunc: func(ctx context.Context, roomID string) ([]*model.Booking, error) {
			return nil, missing
		},
		countActiveFunc: func(ctx context.Context, roomID string) (int64, error) {
			return 0, missing
		},
	})
	for _, path := range []string{
		"/api/v1/bookings/room/r-404?from=2026-03-02T00:00:00Z&to=2026-03-03T00:00:00Z",
		"/api/v1/bookings/room/r-404/active",
		"/api/v1/bookings/room/r-404/count",
	} {
		rec := serve(unknownRoom, http.MethodGet, path, "")
		if rec.Code != http.StatusNotFound || errorCode(t, rec) != apperrors.CodeNotFound {
			t.Errorf("%s: status = %d", path, rec.Code)
		}
	}
}

func TestBookingHandler_LookupQueries(t *testing.T) {
	var gotEmail, gotStatus string
	svc := &mockBookingService{
		findByOrganizerFunc: func(ctx context.Context, email string) ([]*model.Booking, error) {
			gotEmail = email
			return []*model.Booking{}, nil
		},
		findByStatusFunc: func(ctx context.Context, status string) ([]*model.Booking, error) {
			gotStatus = status
			if status == "archived" {
				return nil, apperrors.InvalidArgument("Unknown booking status 'archived'")
			}
			return []*model.Booking{}, nil
		},
	}
	router := newRouter(svc)

	if rec := serve(router, http.MethodGet, "/api/v1/bookings/organizer?email=a%40example.com", ""); rec.Code != http.StatusOK {
		t.Errorf("organizer status = %d", rec.Code)
	}
	if gotEmail != "a@example.com" {
		t.Errorf("email = %q", gotEmail)
	}

	if rec := serve(router, http.MethodGet, "/api/v1/bookings/organizer", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("missing email status = %d", rec.Code)
	}

	if rec := serve(router, http.MethodGet, "/api/v1/bookings/status?status=pending", ""); rec.Code != http.StatusOK {
		t.Errorf("status query = %d", rec.Code)
	}
	if gotStatus != "pending" {
		t.Errorf("status = %q", gotStatus)
	}

	rec := serve(router, http.MethodGet, "/api/v1/bookings/status?status=archived", "")
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != apperrors.CodeInvalidArgument {
		t.Errorf("unknown status = %d %s", rec.Code, rec.Body.String())
	}
}

func TestBookingHandler_GetByIDNotFound(t *testing.T) {
	svc := &mockBookingService{
		getByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		},
	}

	rec := serve(newRouter(svc), http.MethodGet, "/api/v1/bookings/id/b-9", "")
	if rec.Code != http.StatusNotFound || errorCode(t, rec) != apperrors.CodeNotFound {
		t.Errorf("status = %d, body %s", rec.Code, rec.Body.String())
	}
}
