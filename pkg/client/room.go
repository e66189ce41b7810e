package client

import (
	"fmt"
	"net/url"
	"strconv"

	"huddle/pkg/model"
)

type RoomClient struct {
	httpClient *HttpClient
}

func NewRoomClient(baseUrl string) *RoomClient {
	return &RoomClient{
		httpClient: NewHttpClient(baseUrl),
	}
}

func (c *RoomClient) Create(body any) (*Response, error) {
	return c.httpClient.POST("/api/v1/rooms", body)
}

func (c *RoomClient) List(activeOnly bool, minCapacity int) (*Response, error) {
	q := url.Values{}
	if activeOnly {
		q.Set("active_only", "true")
	}
	if minCapacity > 0 {
		q.Set("min_capacity", strconv.Itoa(minCapacity))
	}
	path := "/api/v1/rooms"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	return c.httpClient.GET(path)
}

func (c *RoomClient) GetByID(id string) (*Response, error) {
	return c.httpClient.GET("/api/v1/rooms/id/" + url.PathEscape(id))
}

func (c *RoomClient) Update(id string, body any) (*Response, error) {
	return c.httpClient.PATCH("/api/v1/rooms/id/"+url.PathEscape(id), body)
}

func (c *RoomClient) Deactivate(id string) (*Response, error) {
	return c.httpClient.POST("/api/v1/rooms/id/"+url.PathEscape(id)+"/deactivate", nil)
}

func (c *RoomClient) Activate(id string) (*Response, error) {
	return c.httpClient.POST("/api/v1/rooms/id/"+url.PathEscape(id)+"/activate", nil)
}

func (c *RoomClient) DecodeRoom(resp *Response) (*model.Room, error) {
	var room model.Room
	if err := decodeData(resp, &room); err != nil {
		return nil, fmt.Errorf("could not decode room: %w", err)
	}
	return &room, nil
}

func (c *RoomClient) DecodeRooms(resp *Response) ([]*model.Room, error) {
	var rooms []*model.Room
	if err := decodeData(resp, &rooms); err != nil {
		return nil, fmt.Errorf("could not decode room list: %w", err)
	}
	return rooms, nil
}
