package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	HeaderMemberID = "Ax-Member-Id"
	HeaderRole     = "Ax-Role"

	actorKey = "ledger.actor"
)

type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// Actor is the caller as asserted by the upstream auth layer.
type Actor struct {
	MemberID string
	Role     Role
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// CanAccess: admins see everything, members only their own records.
func (a Actor) CanAccess(ownerID string) bool {
	return a.IsAdmin() || a.MemberID == ownerID
}

// RequireActor rejects requests without a well-formed Ax-Member-Id / Ax-Role pair with 401.
func RequireActor() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Request().Header
			memberID := strings.TrimSpace(h.Get(HeaderMemberID))
			if memberID == "" || !reHex32.MatchString(memberID) {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing or invalid " + HeaderMemberID})
			}
			role := Role(strings.ToLower(strings.TrimSpace(h.Get(HeaderRole))))
			if role != RoleMember && role != RoleAdmin {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing or invalid " + HeaderRole})
			}
			c.Set(actorKey, Actor{MemberID: memberID, Role: role})
			return next(c)
		}
	}
}

// ActorFrom returns the caller stored by RequireActor.
func ActorFrom(c echo.Context) (Actor, bool) {
	a, ok := c.Get(actorKey).(Actor)
	return a, ok
}
