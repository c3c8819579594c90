package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/patric-chuzhbe/interioai/internal/user"
)

const (
	StorageTypeUnknown = iota
	StorageTypePostgresql
	StorageTypeFile
	StorageTypeMemory
)

// ErrInvalidDimension is returned when a dimension is neither a JSON string nor a number.
var ErrInvalidDimension = errors.New("dimension must be a string or a number")

// Dimension is a room measurement kept as opaque text.
// Numbers sent by clients are stored as their literal JSON text.
type Dimension string

func (d *Dimension) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*d = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*d = Dimension(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return ErrInvalidDimension
	}
	*d = Dimension(n.String())

	return nil
}

// Design is a saved room design owned by a user.
type Design struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	RoomType  string    `json:"room_type"`
	Style     string    `json:"style"`
	Palette   string    `json:"palette"`
	Furniture string    `json:"furniture"`
	Width     Dimension `json:"width"`
	Length    Dimension `json:"length"`
	CreatedAt time.Time `json:"created_at"`
}

type SignupRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// UpdateUserRequest carries a partial update: nil fields are left untouched.
type UpdateUserRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

// SaveDesignRequest fields are declared in the order missing ones are reported.
type SaveDesignRequest struct {
	UserID    int64     `json:"user_id"`
	RoomType  string    `json:"room_type" validate:"required"`
	Style     string    `json:"style" validate:"required"`
	Palette   string    `json:"palette" validate:"required"`
	Width     Dimension `json:"width" validate:"required"`
	Length    Dimension `json:"length" validate:"required"`
	Furniture string    `json:"furniture"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type UserResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	User    *user.Response `json:"user"`
}

type LoginResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	User    *user.Response `json:"user"`
	UserID  int64          `json:"user_id"`
}

type DesignResponse struct {
	Success bool    `json:"success"`
	Message string  `json:"message,omitempty"`
	Design  *Design `json:"design"`
}

type DesignsResponse struct {
	Success bool     `json:"success"`
	Designs []Design `json:"designs"`
	Total   int      `json:"total"`
}

type HealthResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// InternalStatsResponse reports counts; the keys are suffixed so they never
// collide with the design list returned under "designs".
type InternalStatsResponse struct {
	Success bool  `json:"success"`
	Users   int64 `json:"users_count"`
	Designs int64 `json:"designs_count"`
}
