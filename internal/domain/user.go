package domain

import (
	"strings"
	"time"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(s)) {
	case RoleUser:
		return RoleUser, true
	case RoleAdmin:
		return RoleAdmin, true
	}
	return "", false
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Requester is the identity behind a request. The zero value is an anonymous caller.
type Requester struct {
	UserID string
	Email  string
	Role   Role
}

func (r Requester) IsAdmin() bool {
	return r.Role == RoleAdmin
}

func (r Requester) Anonymous() bool {
	return r.UserID == "" && r.Email == ""
}

// CanAccess is the single ownership predicate for bookings: admins see
// everything, other callers see bookings they own by user id or by contact
// email, which lets guest bookings be claimed after registration.
func CanAccess(r Requester, b *Booking) bool {
	if r.IsAdmin() {
		return true
	}
	if r.UserID != "" && b.UserID == r.UserID {
		return true
	}
	return r.Email != "" && b.CustomerEmail != "" && strings.EqualFold(b.CustomerEmail, r.Email)
}

// VisibleFilter builds the listing filter for the requester.
func VisibleFilter(r Requester) BookingFilter {
	if r.IsAdmin() {
		return BookingFilter{All: true}
	}
	return BookingFilter{UserID: r.UserID, Email: r.Email}
}
