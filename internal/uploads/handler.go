package uploads

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"speech-backend/internal/analyses"
	"speech-backend/internal/shared/server/middleware"
	"speech-backend/internal/shared/server/respond"
	"speech-backend/internal/shared/storage/object"
	"speech-backend/internal/shared/telemetry"
)

const audioExtension = ".mp3"

var fileNamePattern = regexp.MustCompile(`^\w+$`)

// Handler issues presigned upload URLs. The object metadata it signs is what
// the analysis workflow later reads back to attribute the upload.
type Handler struct {
	presigner object.UploadPresigner
	newID     func() string
}

// NewHandler constructs a Handler.
func NewHandler(presigner object.UploadPresigner) *Handler {
	return &Handler{presigner: presigner, newID: uuid.NewString}
}

type uploadURLResponse struct {
	URL              string            `json:"url"`
	Method           string            `json:"method"`
	Key              string            `json:"key"`
	Headers          map[string]string `json:"headers"`
	ExpiresInSeconds int64             `json:"expiresInSeconds"`
}

// RegisterRoutes attaches upload routes to the (authenticated) router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, handlers ...gin.HandlerFunc) {
	rg.GET("/speech/uploadurl", append(handlers, h.uploadURL)...)
}

func (h *Handler) uploadURL(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
		return
	}
	if h.presigner == nil {
		respond.Error(c, http.StatusServiceUnavailable, "uploads_unavailable", "uploads not configured", nil)
		return
	}

	fileName := strings.TrimSpace(c.Query("file_name"))
	if !fileNamePattern.MatchString(fileName) {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file_name must contain only letters, digits and underscores", nil)
		return
	}

	key := fileName + "_" + h.newID() + audioExtension
	out, err := h.presigner.PresignUpload(c.Request.Context(), key, "", map[string]string{
		analyses.MetadataUser:     userID,
		analyses.MetadataFileName: fileName,
	})
	if err != nil {
		telemetry.Error("uploads.presign.failed", map[string]any{
			"error":      err.Error(),
			"key":        key,
			"user_id":    userID,
			"request_id": c.GetString("requestId"),
		})
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to generate upload url", nil)
		return
	}

	headers := make(map[string]string, len(out.Headers))
	for name := range out.Headers {
		headers[strings.ToLower(name)] = out.Headers.Get(name)
	}

	c.Set("objectKey", out.Key)
	respond.OK(c, uploadURLResponse{
		URL:              out.URL,
		Method:           out.Method,
		Key:              out.Key,
		Headers:          headers,
		ExpiresInSeconds: int64(out.Expires.Seconds()),
	})
}
