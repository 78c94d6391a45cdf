// Package httpkit provides HTTP utilities including identity abstraction.
package httpkit

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Identity represents the authenticated user's identity.
// This interface abstracts identity extraction from the web framework,
// allowing handlers to access user information without depending on Gin.
type Identity interface {
	// UserID returns the authenticated user's ID.
	UserID() uuid.UUID
	// Role returns the user's role ("admin" or "operational").
	Role() string
	// IsAdmin reports whether the user carries the admin role.
	IsAdmin() bool
	// IsAuthenticated returns true if the user is authenticated.
	IsAuthenticated() bool
}

// RoleAdmin and RoleOperational are the two account roles the board knows.
const (
	RoleAdmin       = "admin"
	RoleOperational = "operational"
)

type identity struct {
	userID        uuid.UUID
	role          string
	authenticated bool
}

func (i *identity) UserID() uuid.UUID { return i.userID }

func (i *identity) Role() string { return i.role }

func (i *identity) IsAdmin() bool { return i.role == RoleAdmin }

func (i *identity) IsAuthenticated() bool { return i.authenticated }

// GetIdentity extracts the Identity from a Gin context.
// Returns an unauthenticated identity if user info is not present.
func GetIdentity(c *gin.Context) Identity {
	userID, userOK := c.Get(ContextUserIDKey)
	if !userOK {
		return &identity{authenticated: false}
	}

	uid, ok := userID.(uuid.UUID)
	if !ok {
		return &identity{authenticated: false}
	}

	role := ""
	if value, ok := c.Get(ContextRoleKey); ok {
		role, _ = value.(string)
	}

	return &identity{
		userID:        uid,
		role:          role,
		authenticated: true,
	}
}

// MustGetIdentity extracts the Identity and aborts with 401 when absent.
// Returns nil after aborting; callers must check for nil and return.
func MustGetIdentity(c *gin.Context) Identity {
	id := GetIdentity(c)
	if !id.IsAuthenticated() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return nil
	}
	return id
}
