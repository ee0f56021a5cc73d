package taxonomy

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/BIS-KIT/BISKIT-Backend-sub000/pkg/response"
)

// Handler serves the curated taxonomy lists.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a taxonomy handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// ListTags handles GET /tags.
func (h *Handler) ListTags(c *gin.Context) {
	tags, err := h.repo.ListTags(c.Request.Context())
	if err != nil {
		h.logger.Error("list tags failed", zap.Error(err))
		response.Internal(c, "failed to list tags")
		return
	}
	response.OK(c, tags)
}

// ListTopics handles GET /topics.
func (h *Handler) ListTopics(c *gin.Context) {
	topics, err := h.repo.ListTopics(c.Request.Context())
	if err != nil {
		h.logger.Error("list topics failed", zap.Error(err))
		response.Internal(c, "failed to list topics")
		return
	}
	response.OK(c, topics)
}
