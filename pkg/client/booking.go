package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"huddle/pkg/model"
)

type BookingClient struct {
	httpClient *HttpClient
}

func NewBookingClient(baseUrl string) *BookingClient {
	return &BookingClient{
		httpClient: NewHttpClient(baseUrl),
	}
}

func (c *BookingClient) Create(body any) (*Response, error) {
	return c.httpClient.POST("/api/v1/bookings", body)
}

// CreateIdempotent sends the request with an Idempotency-Key so a retried
// create returns the first response.
func (c *BookingClient) CreateIdempotent(body any, key string) (*Response, error) {
	return c.httpClient.POSTWithHeaders("/api/v1/bookings", body, map[string]string{"Idempotency-Key": key})
}

func (c *BookingClient) GetByID(id string) (*Response, error) {
	return c.httpClient.GET("/api/v1/bookings/id/" + url.PathEscape(id))
}

func (c *BookingClient) Update(id string, body any) (*Response, error) {
	return c.httpClient.PATCH("/api/v1/bookings/id/"+url.PathEscape(id), body)
}

func (c *BookingClient) UpdateRaw(id string, rawBody []byte) (*Response, error) {
	return c.httpClient.PATCHRaw("/api/v1/bookings/id/"+url.PathEscape(id), rawBody)
}

func (c *BookingClient) Confirm(id string) (*Response, error) {
	return c.httpClient.POST("/api/v1/bookings/id/"+url.PathEscape(id)+"/confirm", nil)
}

func (c *BookingClient) Cancel(id string) (*Response, error) {
	return c.httpClient.POST("/api/v1/bookings/id/"+url.PathEscape(id)+"/cancel", nil)
}

func (c *BookingClient) ByRoom(roomID string, from, to time.Time) (*Response, error) {
	q := url.Values{}
	q.Set("from", from.UTC().Format(time.RFC3339))
	q.Set("to", to.UTC().Format(time.RFC3339))
	return c.httpClient.GET("/api/v1/bookings/room/" + url.PathEscape(roomID) + "?" + q.Encode())
}

func (c *BookingClient) Availability(roomID string, start, end time.Time) (*Response, error) {
	q := url.Values{}
	q.Set("room_id", roomID)
	q.Set("start_time", start.UTC().Format(time.RFC3339))
	q.Set("end_time", end.UTC().Format(time.RFC3339))
	return c.httpClient.GET("/api/v1/bookings/availability?" + q.Encode())
}

func (c *BookingClient) DecodeBooking(resp *Response) (*model.Booking, error) {
	var booking model.Booking
	if err := decodeData(resp, &booking); err != nil {
		return nil, fmt.Errorf("could not decode booking: %w", err)
	}
	return &booking, nil
}

func (c *BookingClient) DecodeBookings(resp *Response) ([]*model.Booking, error) {
	var bookings []*model.Booking
	if err := decodeData(resp, &bookings); err != nil {
		return nil, fmt.Errorf("could not decode booking list: %w", err)
	}
	return bookings, nil
}

func (c *BookingClient) DecodeAvailability(resp *Response) (*model.Availability, error) {
	var availability model.Availability
	if err := decodeData(resp, &availability); err != nil {
		return nil, fmt.Errorf("could not decode availability: %w", err)
	}
	return &availability, nil
}

func decodeData(resp *Response, target any) error {
	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &wrapper); err != nil {
		return fmt.Errorf("%s: %w", resp.ToString(), err)
	}
	if err := json.Unmarshal(wrapper.Data, target); err != nil {
		return fmt.Errorf("%s: %w", resp.ToString(), err)
	}
	return nil
}
