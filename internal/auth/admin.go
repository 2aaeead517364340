package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spice-admin/customer-app-sub000/internal/breaker"
	"github.com/spice-admin/customer-app-sub000/internal/domain"
)

// AdminClient talks to the auth provider's admin REST API with the service key.
type AdminClient struct {
	client  *resty.Client
	breaker *breaker.Breaker
}

type adminError struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
	Error   string `json:"error_description"`
}

func NewAdminClient(baseURL, serviceKey string, timeout time.Duration, b *breaker.Breaker) *AdminClient {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("apikey", serviceKey).
		SetAuthToken(serviceKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)
	return &AdminClient{client: c, breaker: b}
}

func (a *AdminClient) UpdatePassword(ctx context.Context, userID, password string) error {
	_, err := breaker.Do(a.breaker, func() (*resty.Response, error) {
		var apiErr adminError
		resp, err := a.client.R().
			SetContext(ctx).
			SetPathParam("id", userID).
			SetBody(map[string]string{"password": password}).
			SetError(&apiErr).
			Put("/auth/v1/admin/users/{id}")
		if err != nil {
			return nil, fmt.Errorf("%w: update password: %w", domain.ErrRemoteService, err)
		}
		if resp.IsError() {
			msg := apiErr.Message
			if msg == "" {
				msg = apiErr.Error
			}
			switch {
			case resp.StatusCode() == http.StatusNotFound:
				return nil, fmt.Errorf("%w: user %s", domain.ErrNotFound, userID)
			case resp.StatusCode() == http.StatusBadRequest || resp.StatusCode() == http.StatusUnprocessableEntity:
				return nil, fmt.Errorf("%w: %s", domain.ErrValidation, msg)
			}
			return nil, fmt.Errorf("%w: update password: status %d", domain.ErrRemoteService, resp.StatusCode())
		}
		return resp, nil
	})
	return err
}
