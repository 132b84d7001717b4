package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/fruitsalade/docdesk/pkg/protocol"
)

// Login authenticates with username/password. On success the returned
// access token is also installed on the client.
func (c *Client) Login(ctx context.Context, username, password string) (*protocol.LoginResponse, error) {
	body, err := json.Marshal(protocol.LoginRequest{Username: username, Password: password})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/user/Login", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.send("login", req)
	if err != nil {
		return nil, err
	}

	var result protocol.LoginResponse
	if err := decodeJSON("login", resp, &result); err != nil {
		return nil, err
	}
	if result.AccessToken == "" || result.ID == 0 {
		return nil, fmt.Errorf("login: response is missing the user id or access token")
	}

	c.SetAuthToken(result.AccessToken)
	return &result, nil
}

// GetUser fetches the user record, including the nested student profile.
func (c *Client) GetUser(ctx context.Context, userID int64) (*protocol.UserResponse, error) {
	path := fmt.Sprintf("/api/user/%d", userID)
	resp, err := c.sendRead(ctx, "get user", func() (*http.Request, error) {
		return c.newRequest(ctx, http.MethodGet, path, nil)
	})
	if err != nil {
		return nil, err
	}

	var user protocol.UserResponse
	if err := decodeJSON("get user", resp, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUser applies a partial update and returns the updated record.
func (c *Client) UpdateUser(ctx context.Context, userID int64, patch protocol.UserPatch) (*protocol.UserResponse, error) {
	body, err := json.Marshal(patch)
	if err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPatch, fmt.Sprintf("/api/user/%d", userID), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.send("update user", req)
	if err != nil {
		return nil, err
	}

	var user protocol.UserResponse
	if resp.ContentLength == 0 {
		resp.Body.Close()
		return &user, nil
	}
	if err := decodeJSON("update user", resp, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
