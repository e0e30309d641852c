// Roster HTTP handlers.
//
//   - GET    /groups/{id}/members             (stored roster)
//   - PUT    /groups/{id}/members             (replace the roster)
//   - GET    /groups/{id}/members/{user_id}   (one member)
//   - PUT    /groups/{id}/members/{user_id}   (member joined or renamed)
//   - DELETE /groups/{id}/members/{user_id}   (member left)
//
// The lottery draws from the roster, so gateways push a group's member list
// whenever it changes, either whole or one join/leave at a time.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-group-bot/internal/domain"
)

// MemberPayload is one roster entry in a PUT body.
type MemberPayload struct {
	UserID   int64  `json:"user_id"  binding:"required,gt=0"`
	Nickname string `json:"nickname" binding:"max=128"`
	Card     string `json:"card"     binding:"max=128"`
	Role     string `json:"role"     binding:"omitempty,oneof=owner admin member"`
}

// ReplaceMembersRequest is the JSON payload for replacing a roster.
type ReplaceMembersRequest struct {
	Members []MemberPayload `json:"members" binding:"dive"`
}

// UpsertMemberRequest is the JSON payload for a member who joined or changed
// their names. The ids come from the path.
type UpsertMemberRequest struct {
	Nickname string `json:"nickname" binding:"max=128"`
	Card     string `json:"card"     binding:"max=128"`
	Role     string `json:"role"     binding:"omitempty,oneof=owner admin member"`
}

// ListMembersResponse wraps a group's roster.
type ListMembersResponse struct {
	GroupID int64           `json:"group_id"`
	Members []domain.Member `json:"members"`
}

// ListMembers returns the stored roster of a group.
func (h *Handlers) ListMembers(c *gin.Context) {
	gid, valid := groupID(c)
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "group id must be a positive integer")
		return
	}
	ms, err := h.roster.ListMembers(c.Request.Context(), gid)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	if ms == nil {
		ms = []domain.Member{}
	}
	ok(c, http.StatusOK, ListMembersResponse{GroupID: gid, Members: ms})
}

// ReplaceMembers swaps the roster of a group. Duplicate user ids keep the
// last entry; an empty list clears the roster.
func (h *Handlers) ReplaceMembers(c *gin.Context) {
	gid, valid := groupID(c)
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "group id must be a positive integer")
		return
	}
	var req ReplaceMembersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid members body")
		return
	}

	idx := make(map[int64]int, len(req.Members))
	members := make([]domain.Member, 0, len(req.Members))
	for _, p := range req.Members {
		m := domain.Member{
			GroupID:  gid,
			UserID:   p.UserID,
			Nickname: strings.TrimSpace(p.Nickname),
			Card:     strings.TrimSpace(p.Card),
			Role:     p.Role,
		}
		if m.Role == "" {
			m.Role = "member"
		}
		if i, dup := idx[m.UserID]; dup {
			members[i] = m
			continue
		}
		idx[m.UserID] = len(members)
		members = append(members, m)
	}

	if err := h.roster.ReplaceMembers(c.Request.Context(), gid, members); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeUpdateFailed, err.Error())
		return
	}
	noContent(c)
}

// memberPath parses the group and user ids of a single-member route.
func memberPath(c *gin.Context) (gid, uid int64, valid bool) {
	if gid, valid = groupID(c); !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "group id must be a positive integer")
		return 0, 0, false
	}
	if uid, valid = positiveParam(c, "user_id"); !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user id must be a positive integer")
		return 0, 0, false
	}
	return gid, uid, true
}

// GetMember returns one roster entry.
func (h *Handlers) GetMember(c *gin.Context) {
	gid, uid, valid := memberPath(c)
	if !valid {
		return
	}
	m, err := h.roster.GetMember(c.Request.Context(), gid, uid)
	switch {
	case err == nil:
		ok(c, http.StatusOK, m)
	case h.roster.IsNotFound(err):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "member not found")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
	}
}

// UpsertMember adds a member to the roster or refreshes their names.
func (h *Handlers) UpsertMember(c *gin.Context) {
	gid, uid, valid := memberPath(c)
	if !valid {
		return
	}
	var req UpsertMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid member body")
		return
	}
	m := domain.Member{
		GroupID:  gid,
		UserID:   uid,
		Nickname: strings.TrimSpace(req.Nickname),
		Card:     strings.TrimSpace(req.Card),
		Role:     req.Role,
	}
	if err := h.roster.UpsertMember(c.Request.Context(), m); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeUpdateFailed, err.Error())
		return
	}
	noContent(c)
}

// RemoveMember drops a member from the roster.
func (h *Handlers) RemoveMember(c *gin.Context) {
	gid, uid, valid := memberPath(c)
	if !valid {
		return
	}
	err := h.roster.RemoveMember(c.Request.Context(), gid, uid)
	switch {
	case err == nil:
		noContent(c)
	case h.roster.IsNotFound(err):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "member not found")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeUpdateFailed, err.Error())
	}
}
