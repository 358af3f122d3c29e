package imports

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"nonprofit-records/auth"
	"nonprofit-records/common"
)

// MaxUploadBytes caps the CSV body accepted by CreateImport.
const MaxUploadBytes = 16 << 20

// CreateImportRequest is the JSON form of an import upload
type CreateImportRequest struct {
	CSV string `json:"csv"`
}

// GetImportResponse represents the response for import run status
type GetImportResponse struct {
	RunID       string             `json:"run_id"`
	Collection  string             `json:"collection"`
	Status      string             `json:"status"`
	TotalRows   int                `json:"total_rows"`
	Imported    int                `json:"imported"`
	Skipped     int                `json:"skipped"`
	Message     string             `json:"message,omitempty"`
	Rows        []common.RowReport `json:"rows,omitempty"`
	CreatedAt   string             `json:"created_at"`
	CompletedAt *string            `json:"completed_at,omitempty"`
}

// Handler serves the import endpoints.
type Handler struct {
	svc *Service
	log *zap.Logger
}

func NewHandler(svc *Service, log *zap.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Register mounts the import routes on rg.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/imports/:collection", h.CreateImport)
	rg.GET("/imports/:id", h.GetImport)
}

// CreateImport godoc
// @Summary Import a CSV file into a collection
// @Description Validates, deduplicates and stores beneficiaries, volunteers or events
// @Tags imports
// @Accept multipart/form-data
// @Accept json
// @Produce json
// @Param collection path string true "beneficiaries, volunteers or events"
// @Param Idempotency-Key header string false "Replays the completed run registered under this key"
// @Param file formData file false "CSV file"
// @Success 200 {object} Summary "Import summary, or false when the caller is not allowed"
// @Failure 400 {object} map[string]string "Bad request"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /imports/{collection} [post]
func (h *Handler) CreateImport(c *gin.Context) {
	collection, err := common.ParseCollection(c.Param("collection"))
	if err != nil {
		common.RespondError(c, err)
		return
	}

	text, err := readCSV(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	summary, ok, err := h.svc.Import(c.Request.Context(), auth.CallerFrom(c), Request{
		Collection:     collection,
		CSV:            text,
		IdempotencyKey: c.GetHeader("Idempotency-Key"),
	})
	if !ok {
		c.JSON(http.StatusOK, false)
		return
	}
	if err != nil {
		common.RespondError(c, err)
		return
	}

	// Set rows processed for metrics
	c.Set("rows_processed", summary.Imported+summary.Skipped)
	c.JSON(http.StatusOK, summary)
}

// GetImport godoc
// @Summary Get an import run
// @Tags imports
// @Produce json
// @Param id path string true "Import run ID"
// @Success 200 {object} GetImportResponse "Import run details"
// @Failure 404 {object} map[string]string "Run not found"
// @Router /imports/{id} [get]
func (h *Handler) GetImport(c *gin.Context) {
	run, ok, err := h.svc.Run(c.Request.Context(), auth.CallerFrom(c), c.Param("id"))
	if !ok {
		c.JSON(http.StatusOK, false)
		return
	}
	if err != nil {
		common.RespondError(c, err)
		return
	}

	response := GetImportResponse{
		RunID:      run.ID,
		Collection: run.Collection,
		Status:     run.Status,
		TotalRows:  run.TotalRows,
		Imported:   run.Imported,
		Skipped:    run.Skipped,
		Message:    run.Message,
		CreatedAt:  run.CreatedAt.Format(time.RFC3339),
	}
	if run.CompletedAt != nil {
		completed := run.CompletedAt.Format(time.RFC3339)
		response.CompletedAt = &completed
	}
	if run.Rows != "" {
		var rows []common.RowReport
		if err := json.Unmarshal([]byte(run.Rows), &rows); err == nil {
			response.Rows = rows
		} else {
			h.log.Warn("decode run rows", zap.String("run_id", run.ID), zap.Error(err))
		}
	}

	c.Set("rows_processed", run.TotalRows)
	c.JSON(http.StatusOK, response)
}

// readCSV takes the CSV text from a multipart "file" field or a JSON body.
func readCSV(c *gin.Context) (string, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadBytes)

	if strings.HasPrefix(c.GetHeader("Content-Type"), "multipart/form-data") {
		file, _, err := c.Request.FormFile("file")
		if err != nil {
			return "", common.NewError(common.CodeInvalidArgument, "File is required.")
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			return "", common.WrapError(common.CodeInvalidArgument, "Failed to read file.", err)
		}
		return string(data), nil
	}

	var req CreateImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return "", common.WrapError(common.CodeInvalidArgument, "Body must be JSON with a csv field or a multipart file upload.", err)
	}
	return req.CSV, nil
}
