package supabase

import "time"

// User is the subset of the GoTrue user object returned by GET /auth/v1/user.
type User struct {
	ID           string         `json:"id"`
	Aud          string         `json:"aud"`
	Role         string         `json:"role"`
	Email        string         `json:"email"`
	Phone        string         `json:"phone"`
	AppMetadata  map[string]any `json:"app_metadata"`
	UserMetadata map[string]any `json:"user_metadata"`
	CreatedAt    time.Time      `json:"created_at"`
	LastSignInAt *time.Time     `json:"last_sign_in_at"`
}

// apiError is the body GoTrue sends with 4xx responses.
type apiError struct {
	Code      int    `json:"code"`
	ErrorCode string `json:"error_code"`
	Msg       string `json:"msg"`
	Message   string `json:"message"`
}

func (e apiError) text() string {
	if e.Msg != "" {
		return e.Msg
	}
	return e.Message
}
