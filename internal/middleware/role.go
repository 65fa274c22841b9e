package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/myfevent/backend/internal/models"
	"github.com/myfevent/backend/pkg/response"
)

// ContextEventMember is the key for the caller's membership in the event named
// by the :eventId path parameter.
const ContextEventMember = "event_member"

// MsgRoleLookupFailed is returned when the caller's membership cannot be loaded.
const MsgRoleLookupFailed = "Failed to resolve event role"

// MembershipResolver finds a user's membership in an event. It returns nil, nil
// when the user does not participate.
type MembershipResolver interface {
	EventMembership(ctx context.Context, eventID, userID uuid.UUID) (*models.EventMember, error)
}

// ResolveEventRole loads the caller's membership for :eventId and stores it in
// context. A caller without a membership reaches the handler with none, and the
// handler decides in which order to reject the request. A failed lookup aborts
// with 500 so a store outage is never answered as a permission denial.
func ResolveEventRole(resolver MembershipResolver, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := UserID(c)
		if !ok {
			c.Next()
			return
		}
		eventID, err := uuid.Parse(c.Param("eventId"))
		if err != nil {
			c.Next()
			return
		}
		m, err := resolver.EventMembership(c.Request.Context(), eventID, userID)
		if err != nil {
			_ = c.Error(err)
			logger.Error("resolve event role failed",
				zap.String("event_id", eventID.String()),
				zap.String("user_id", userID.String()),
				zap.Error(err),
			)
			response.Internal(c, MsgRoleLookupFailed)
			c.Abort()
			return
		}
		if m != nil {
			c.Set(ContextEventMember, m)
		}
		c.Next()
	}
}

// EventMember returns the membership stored by ResolveEventRole, or nil.
func EventMember(c *gin.Context) *models.EventMember {
	v, ok := c.Get(ContextEventMember)
	if !ok {
		return nil
	}
	m, _ := v.(*models.EventMember)
	return m
}
