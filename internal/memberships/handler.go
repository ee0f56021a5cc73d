package memberships

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BIS-KIT/BISKIT-Backend-sub000/internal/apperr"
	"github.com/BIS-KIT/BISKIT-Backend-sub000/pkg/response"
)

// Handler serves the join-request lifecycle endpoints.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a memberships handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

type joinRequestBody struct {
	MeetingID uuid.UUID `json:"meeting_id" binding:"required"`
	UserID    uuid.UUID `json:"user_id" binding:"required"`
}

// Request handles POST /meeting/join/request.
func (h *Handler) Request(c *gin.Context) {
	var body joinRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	req, err := h.service.Request(c.Request.Context(), body.MeetingID, body.UserID)
	if err != nil {
		h.respondError(c, err, "join request failed")
		return
	}
	response.Created(c, req)
}

// Approve handles POST /meeting/join/approve?obj_id=.
func (h *Handler) Approve(c *gin.Context) {
	id, ok := objID(c)
	if !ok {
		return
	}
	req, err := h.service.Approve(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, "approve failed")
		return
	}
	response.OK(c, req)
}

// Reject handles POST /meeting/join/reject?obj_id=.
func (h *Handler) Reject(c *gin.Context) {
	id, ok := objID(c)
	if !ok {
		return
	}
	if err := h.service.Reject(c.Request.Context(), id); err != nil {
		h.respondError(c, err, "reject failed")
		return
	}
	response.NoContent(c)
}

// Exit handles POST /meeting/:id/user/:userID/exit?is_fire=.
func (h *Handler) Exit(c *gin.Context) {
	meetingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid meeting id")
		return
	}
	userID, err := uuid.Parse(c.Param("userID"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	isFire := false
	if raw := c.Query("is_fire"); raw != "" {
		isFire, err = strconv.ParseBool(raw)
		if err != nil {
			response.BadRequest(c, "invalid is_fire")
			return
		}
	}
	if err := h.service.Exit(c.Request.Context(), meetingID, userID, isFire); err != nil {
		h.respondError(c, err, "exit failed")
		return
	}
	response.NoContent(c)
}

func objID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Query("obj_id"))
	if err != nil {
		response.BadRequest(c, "invalid obj_id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) respondError(c *gin.Context, err error, logMsg string) {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		response.NotFound(c, err.Error())
	case apperr.KindConflict:
		response.Conflict(c, err.Error())
	case apperr.KindInvalid:
		response.BadRequest(c, err.Error())
	case apperr.KindUnavailable:
		response.ServiceUnavailable(c, err.Error())
	default:
		h.logger.Error(logMsg, zap.Error(err))
		response.Internal(c, logMsg)
	}
}
