package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"

	"parkshare/internal/spots/service"
	"parkshare/pkg/credits"
	apperrors "parkshare/pkg/errors"
	"parkshare/pkg/logger"
	"parkshare/pkg/middleware"
	"parkshare/pkg/model"
	"parkshare/pkg/rating"
)

type mockSpotService struct {
	createFunc             func(ctx context.Context, ownerID, parkingID, name string) (*model.ParkingSpot, error)
	listFunc               func(ctx context.Context, userID, parkingID string, limit int, offset int64) ([]*model.ParkingSpot, int64, error)
	deleteFunc             func(ctx context.Context, userID, id string) error
	makeAvailableFunc      func(ctx context.Context, userID, id string, from, to time.Time) (model.ParkingSpotAvailability, error)
	cancelAvailabilityFunc func(ctx context.Context, userID, id, availabilityID string) (model.CancelledAvailability, error)
	bookFunc               func(ctx context.Context, userID, id string, from time.Time, duration time.Duration) (model.BookingResult, error)
	cancelBookingFunc      func(ctx context.Context, userID, id, bookingID string) (model.CancelledBooking, error)
	rateBookingFunc        func(ctx context.Context, userID, id, bookingID string, outcome rating.Outcome) (model.ParkingSpotBooking, error)
	myBookingsFunc         func(ctx context.Context, userID string) ([]service.BookingView, error)
}

func (m *mockSpotService) Create(ctx context.Context, ownerID, parkingID, name string) (*model.ParkingSpot, error) {
	return m.createFunc(ctx, ownerID, parkingID, name)
}

func (m *mockSpotService) Get(ctx context.Context, userID, id string) (*model.ParkingSpot, error) {
	return &model.ParkingSpot{ID: id}, nil
}

func (m *mockSpotService) List(ctx context.Context, userID, parkingID string, limit int, offset int64) ([]*model.ParkingSpot, int64, error) {
	return m.listFunc(ctx, userID, parkingID, limit, offset)
}

func (m *mockSpotService) Rename(ctx context.Context, userID, id, name string) (*model.ParkingSpot, error) {
	return &model.ParkingSpot{ID: id, SpotName: name}, nil
}

func (m *mockSpotService) Disable(ctx context.Context, userID, id string) (*model.ParkingSpot, error) {
	return &model.ParkingSpot{ID: id, Disabled: true}, nil
}

func (m *mockSpotService) Enable(ctx context.Context, userID, id string) (*model.ParkingSpot, error) {
	return &model.ParkingSpot{ID: id}, nil
}

func (m *mockSpotService) Delete(ctx context.Context, userID, id string) error {
	return m.deleteFunc(ctx, userID, id)
}

func (m *mockSpotService) MakeAvailable(ctx context.Context, userID, id string, from, to time.Time) (model.ParkingSpotAvailability, error) {
	return m.makeAvailableFunc(ctx, userID, id, from, to)
}

func (m *mockSpotService) CancelAvailability(ctx context.Context, userID, id, availabilityID string) (model.CancelledAvailability, error) {
	return m.cancelAvailabilityFunc(ctx, userID, id, availabilityID)
}

func (m *mockSpotService) FreeWindows(ctx context.Context, userID, id string) ([]model.TimeRange, error) {
	return []model.TimeRange{}, nil
}

func (m *mockSpotService) Book(ctx context.Context, userID, id string, from time.Time, duration time.Duration) (model.BookingResult, error) {
	return m.bookFunc(ctx, userID, id, from, duration)
}

func (m *mockSpotService) CancelBooking(ctx context.Context, userID, id, bookingID string) (model.CancelledBooking, error) {
	return m.cancelBookingFunc(ctx, userID, id, bookingID)
}

func (m *mockSpotService) RateBooking(ctx context.Context, userID, id, bookingID string, outcome rating.Outcome) (model.ParkingSpotBooking, error) {
	return m.rateBookingFunc(ctx, userID, id, bookingID, outcome)
}

func (m *mockSpotService) MyBookings(ctx context.Context, userID string) ([]service.BookingView, error) {
	return m.myBookingsFunc(ctx, userID)
}

func (m *mockSpotService) CompleteDue(ctx context.Context, limit int) (int, error) {
	return 0, nil
}

func serve(h *SpotHandler, method, path, body, userID string) *httptest.ResponseRecorder {
	router := httprouter.New()
	h.RegisterRoutes(router)

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(middleware.WithUserID(req.Context(), userID))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateSpot(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"valid", `{"parking_id":"p-1","name":"A12"}`, http.StatusCreated},
		{"missing parking", `{"name":"A12"}`, http.StatusUnprocessableEntity},
		{"name too long", `{"parking_id":"p-1","name":"` + strings.Repeat("x", 51) + `"}`, http.StatusUnprocessableEntity},
		{"malformed", `{"parking_id":`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewSpotHandler(&mockSpotService{createFunc: func(ctx context.Context, ownerID, parkingID, name string) (*model.ParkingSpot, error) {
				return &model.ParkingSpot{ID: "s-1", OwnerID: ownerID, ParkingID: parkingID, SpotName: name}, nil
			}}, logger.Nop())

			rec := serve(h, http.MethodPost, "/api/v1/spots", tt.body, "owner")
			if rec.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestListByParking_Pagination(t *testing.T) {
	var gotLimit int
	var gotOffset int64
	h := NewSpotHandler(&mockSpotService{listFunc: func(ctx context.Context, userID, parkingID string, limit int, offset int64) ([]*model.ParkingSpot, int64, error) {
		gotLimit, gotOffset = limit, offset
		if parkingID != "p-1" {
			t.Errorf("expected parking p-1, got %s", parkingID)
		}
		return []*model.ParkingSpot{{ID: "s-1"}}, 7, nil
	}}, logger.Nop())

	rec := serve(h, http.MethodGet, "/api/v1/parkings/p-1/spots?limit=5&offset=5", "", "alice")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if gotLimit != 5 || gotOffset != 5 {
		t.Errorf("List() got limit=%d offset=%d, want 5 and 5", gotLimit, gotOffset)
	}
}

func TestBook(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
	}{
		{"booked", `{"from":"2025-03-10T10:00:00Z","duration_minutes":90}`, nil, http.StatusCreated},
		{"zero duration", `{"from":"2025-03-10T10:00:00Z","duration_minutes":0}`, nil, http.StatusUnprocessableEntity},
		{"no availability", `{"from":"2025-03-10T10:00:00Z","duration_minutes":30}`,
			apperrors.Business(apperrors.CodeSpotNoAvailability, "spot is not available for the requested time"), http.StatusConflict},
		{"own spot", `{"from":"2025-03-10T10:00:00Z","duration_minutes":30}`,
			apperrors.Business(apperrors.CodeSpotInvalidBooking, "owners cannot book their own spot"), http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewSpotHandler(&mockSpotService{bookFunc: func(ctx context.Context, userID, id string, from time.Time, duration time.Duration) (model.BookingResult, error) {
				if tt.err != nil {
					return model.BookingResult{}, tt.err
				}
				if duration != 90*time.Minute || id != "s-1" {
					t.Errorf("unexpected booking %s for %s", duration, id)
				}
				return model.BookingResult{
					Booking: model.ParkingSpotBooking{ID: "b-1", BookedByUserID: userID, From: from, To: from.Add(duration)},
					Cost:    credits.FromFloat(1.5),
				}, nil
			}}, logger.Nop())

			rec := serve(h, http.MethodPost, "/api/v1/spots/s-1/bookings", tt.body, "alice")
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if tt.wantStatus != http.StatusCreated {
				return
			}
			var body struct {
				Data struct {
					Cost json.RawMessage `json:"cost"`
				} `json:"data"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if string(body.Data.Cost) != "1.50" {
				t.Errorf("expected cost 1.50, got %s", body.Data.Cost)
			}
		})
	}
}

func TestAvailabilityRoutes(t *testing.T) {
	h := NewSpotHandler(&mockSpotService{
		makeAvailableFunc: func(ctx context.Context, userID, id string, from, to time.Time) (model.ParkingSpotAvailability, error) {
			return model.ParkingSpotAvailability{ID: "a-1", From: from, To: to}, nil
		},
		cancelAvailabilityFunc: func(ctx context.Context, userID, id, availabilityID string) (model.CancelledAvailability, error) {
			if availabilityID != "a-1" {
				t.Errorf("expected availability a-1, got %s", availabilityID)
			}
			return model.CancelledAvailability{}, apperrors.Business(apperrors.CodeSpotInvalidCancelling, "booking starts too soon")
		},
	}, logger.Nop())

	rec := serve(h, http.MethodPost, "/api/v1/spots/s-1/availabilities", `{"from":"2025-03-10T10:00:00Z","to":"2025-03-10T18:00:00Z"}`, "owner")
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = serve(h, http.MethodDelete, "/api/v1/spots/s-1/availabilities/a-1", "", "owner")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rec.Code)
	}
}

func TestCancelBooking(t *testing.T) {
	h := NewSpotHandler(&mockSpotService{cancelBookingFunc: func(ctx context.Context, userID, id, bookingID string) (model.CancelledBooking, error) {
		return model.CancelledBooking{Booking: model.ParkingSpotBooking{ID: bookingID}, By: model.CancelledByBooker}, nil
	}}, logger.Nop())

	rec := serve(h, http.MethodDelete, "/api/v1/spots/s-1/bookings/b-1", "", "alice")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"cancelled_by":"booker"`) {
		t.Errorf("expected canceller in body, got %s", rec.Body.String())
	}
}

func TestRateBooking(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		want       rating.Outcome
	}{
		{"good", `{"rating":"good"}`, http.StatusOK, rating.Good},
		{"neutral", `{"rating":"neutral"}`, http.StatusOK, rating.Neutral},
		{"unknown", `{"rating":"great"}`, http.StatusUnprocessableEntity, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got rating.Outcome
			h := NewSpotHandler(&mockSpotService{rateBookingFunc: func(ctx context.Context, userID, id, bookingID string, outcome rating.Outcome) (model.ParkingSpotBooking, error) {
				got = outcome
				return model.ParkingSpotBooking{ID: bookingID, Rating: &outcome}, nil
			}}, logger.Nop())

			rec := serve(h, http.MethodPost, "/api/v1/spots/s-1/bookings/b-1/rating", tt.body, "alice")
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
			if got != tt.want {
				t.Errorf("RateBooking() outcome = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDeleteAndMyBookings(t *testing.T) {
	h := NewSpotHandler(&mockSpotService{
		deleteFunc: func(ctx context.Context, userID, id string) error {
			if userID != "owner" {
				return apperrors.Business(apperrors.CodeSpotInvalidDeletion, "only the spot owner can delete this spot")
			}
			return nil
		},
		myBookingsFunc: func(ctx context.Context, userID string) ([]service.BookingView, error) {
			return []service.BookingView{{SpotID: "s-1", Booking: model.ParkingSpotBooking{ID: "b-1"}}}, nil
		},
	}, logger.Nop())

	if rec := serve(h, http.MethodDelete, "/api/v1/spots/s-1", "", "owner"); rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if rec := serve(h, http.MethodDelete, "/api/v1/spots/s-1", "", "alice"); rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
	if rec := serve(h, http.MethodGet, "/api/v1/bookings/me", "", "alice"); rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
