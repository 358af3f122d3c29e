package exports

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"nonprofit-records/auth"
	"nonprofit-records/common"
)

// Handler serves the export endpoints.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts the export routes on rg.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/exports/:collection", h.Export)
	rg.GET("/events/:id/attendees/export", h.ExportAttendees)
}

// Export godoc
// @Summary Export a collection as CSV
// @Description Renders every live beneficiary, volunteer or event
// @Tags exports
// @Produce text/csv
// @Param collection path string true "beneficiaries, volunteers or events"
// @Success 200 {file} file "CSV attachment, or false when the caller is not allowed"
// @Failure 404 {object} map[string]string "Nothing to export"
// @Router /exports/{collection} [get]
func (h *Handler) Export(c *gin.Context) {
	collection, err := common.ParseCollection(c.Param("collection"))
	if err != nil {
		common.RespondError(c, err)
		return
	}

	file, ok, err := h.svc.Export(c.Request.Context(), auth.CallerFrom(c), collection)
	h.respond(c, file, ok, err)
}

// ExportAttendees godoc
// @Summary Export an event's attendee list as CSV
// @Tags exports
// @Produce text/csv
// @Param id path string true "Event ID"
// @Success 200 {file} file "CSV attachment"
// @Failure 404 {object} map[string]string "Event not found"
// @Router /events/{id}/attendees/export [get]
func (h *Handler) ExportAttendees(c *gin.Context) {
	file, ok, err := h.svc.ExportAttendees(c.Request.Context(), auth.CallerFrom(c), c.Param("id"))
	h.respond(c, file, ok, err)
}

func (h *Handler) respond(c *gin.Context, file File, ok bool, err error) {
	if !ok {
		c.JSON(http.StatusOK, false)
		return
	}
	if err != nil {
		common.RespondError(c, err)
		return
	}

	// Set rows_processed for metrics
	c.Set("rows_processed", strings.Count(file.CSV, rowSeparator))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(file.CSV))
}
