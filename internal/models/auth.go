package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse returns the issued token and user info.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	User        UserInfo  `json:"user"`
	IssuedAt    time.Time `json:"issued_at"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID              string   `json:"id"`
	Email           string   `json:"email"`
	Name            string   `json:"name"`
	DashboardAccess []string `json:"dashboard_access"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID          string   `json:"user_id"`
	Email           string   `json:"email"`
	Name            string   `json:"name"`
	DashboardAccess []string `json:"dashboard_access"`
	jwt.RegisteredClaims
}

// HasAccess reports whether the token carries the dashboard access tag.
func (c *JWTClaims) HasAccess(tag string) bool {
	return c != nil && HasAccessTag(c.DashboardAccess, tag)
}

// Actor is the resolved current user the workflow authorises against.
type Actor struct {
	UserID          string
	DashboardAccess []string
}

// Actor converts token claims into the workflow actor.
func (c *JWTClaims) Actor() Actor {
	if c == nil {
		return Actor{}
	}
	return Actor{UserID: c.UserID, DashboardAccess: c.DashboardAccess}
}

// HasAccess reports whether the actor holds the dashboard access tag.
func (a Actor) HasAccess(tag string) bool {
	return HasAccessTag(a.DashboardAccess, tag)
}
