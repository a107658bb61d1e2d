package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"docslot/pkg/model"
)

// APIError is a non-2xx answer from the scheduler API.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Code, e.Message)
}

// SchedulerClient is a typed client for the docslot HTTP API.
type SchedulerClient struct {
	http *HttpClient
}

func NewSchedulerClient(baseURL, signingSecret, clientID string) *SchedulerClient {
	hc := NewHttpClient(baseURL)
	hc.SigningSecret = signingSecret
	hc.ClientID = clientID
	return &SchedulerClient{http: hc}
}

func (c *SchedulerClient) HTTP() *HttpClient {
	return c.http
}

func (c *SchedulerClient) CreateDoctor(ctx context.Context, doctor *model.Doctor) (*model.Doctor, error) {
	var out model.Doctor
	if err := c.do(ctx, http.MethodPost, "/api/v1/doctors", doctor, nil, http.StatusCreated, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *SchedulerClient) RequestBooking(ctx context.Context, req *model.BookingRequest, idempotencyKey string) (*model.Booking, error) {
	var headers map[string]string
	if idempotencyKey != "" {
		headers = map[string]string{"Idempotency-Key": idempotencyKey}
	}
	var out model.Booking
	if err := c.do(ctx, http.MethodPost, "/api/v1/bookings", req, headers, http.StatusCreated, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *SchedulerClient) TransitionBooking(ctx context.Context, id string, req *model.TransitionRequest) (*model.Booking, error) {
	var out model.Booking
	path := "/api/v1/bookings/id/" + url.PathEscape(id) + "/transitions"
	if err := c.do(ctx, http.MethodPost, path, req, nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *SchedulerClient) Availability(ctx context.Context, doctorID, from, to string, service model.ServiceKind) ([]model.DayAvailability, error) {
	q := url.Values{}
	q.Set("from", from)
	q.Set("to", to)
	if service != "" {
		q.Set("service", string(service))
	}
	var out []model.DayAvailability
	path := "/api/v1/doctors/" + url.PathEscape(doctorID) + "/availability?" + q.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SchedulerClient) do(ctx context.Context, method, path string, body any, headers map[string]string, want int, target any) error {
	var (
		resp *Response
		err  error
	)
	if method == http.MethodGet {
		resp, err = c.http.GET(ctx, path)
	} else {
		resp, err = c.http.request(ctx, method, path, body, headers)
	}
	if err != nil {
		return err
	}

	if resp.StatusCode != want {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if decodeErr := resp.DecodeJSON(apiErr); decodeErr != nil {
			apiErr.Message = string(resp.Body)
		}
		return apiErr
	}

	envelope := struct {
		Data any `json:"data"`
	}{Data: target}
	if err := resp.DecodeJSON(&envelope); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}
