package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"ride-console/internal/model"
)

func (c *Client) CurrentUser(ctx context.Context) (model.User, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "current_user", http.MethodGet, "/user", nil, &raw); err != nil {
		return model.User{}, err
	}

	return decodeUser(raw)
}

func (c *Client) Login(ctx context.Context, email string, password string) (model.AuthResponse, error) {
	var out model.AuthResponse
	err := c.do(ctx, "login", http.MethodPost, "/login", model.LoginRequest{Email: email, Password: password}, &out)
	if err != nil {
		return model.AuthResponse{}, err
	}
	if out.Token == "" {
		return model.AuthResponse{}, fmt.Errorf("login: %w", model.ErrMissingToken)
	}
	return out, nil
}

func (c *Client) Register(ctx context.Context, req model.RegisterRequest) (model.AuthResponse, error) {
	var out model.AuthResponse
	if err := c.do(ctx, "register", http.MethodPost, "/register", req, &out); err != nil {
		return model.AuthResponse{}, err
	}
	if out.Token == "" {
		return model.AuthResponse{}, fmt.Errorf("register: %w", model.ErrMissingToken)
	}
	return out, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, "logout", http.MethodPost, "/logout", nil, nil)
}

func (c *Client) ChangeUserStatus(ctx context.Context, userID int64, change model.StatusChange) error {
	return c.do(ctx, "change_user_status", http.MethodPost, "/admin/users/"+id(userID)+"/status", change, nil)
}

func (c *Client) DeleteUser(ctx context.Context, userID int64) error {
	return c.do(ctx, "delete_user", http.MethodDelete, "/admin/users/"+id(userID)+"/force-delete", nil, nil)
}

func (c *Client) WarnUser(ctx context.Context, userID int64) error {
	return c.do(ctx, "warn_user", http.MethodPost, "/admin/users/"+id(userID)+"/warn", nil, nil)
}

func (c *Client) ResolveReport(ctx context.Context, reportID int64) error {
	return c.do(ctx, "resolve_report", http.MethodPost, "/reports/"+id(reportID)+"/status", model.NewStatusChange(model.StatusResolved), nil)
}

func id(v int64) string {
	return strconv.FormatInt(v, 10)
}

// decodeUser accepts the bare user object and the {data: user} wrapper.
func decodeUser(raw json.RawMessage) (model.User, error) {
	var wrapped struct {
		Data *model.User `json:"data"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Data != nil {
		return *wrapped.Data, nil
	}

	var user model.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return model.User{}, fmt.Errorf("current_user: %w", model.ErrInvalidResponse)
	}
	if user.ID == 0 && user.Email == "" {
		return model.User{}, fmt.Errorf("current_user: %w", model.ErrInvalidResponse)
	}
	return user, nil
}
