package analyses

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"speech-backend/internal/shared/server/middleware"
	"speech-backend/internal/shared/server/respond"
)

// Lister is the read side of Store used by the query surface.
type Lister interface {
	ListByUser(ctx context.Context, userID string) ([]Record, error)
}

// Handler serves the caller's analysis records.
type Handler struct {
	Records Lister
}

// NewHandler constructs a Handler.
func NewHandler(records Lister) *Handler {
	return &Handler{Records: records}
}

// RegisterRoutes attaches analysis routes to the (authenticated) router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/speech/analysis", h.listAnalyses)
}

// listAnalyses returns every record owned by the token identity as a JSON array. No pagination.
func (h *Handler) listAnalyses(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		respond.Error(c, http.StatusUnauthorized, ErrorCodeUnauthorized, "missing or invalid token", nil)
		return
	}

	records, err := h.Records.ListByUser(c.Request.Context(), userID)
	if err != nil {
		respond.Internal(c, err)
		return
	}
	if records == nil {
		records = []Record{}
	}
	c.Set("recordCount", len(records))
	respond.OK(c, records)
}
