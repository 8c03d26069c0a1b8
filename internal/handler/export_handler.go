package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/studira/campus-api/internal/service"
	appErrors "github.com/studira/campus-api/pkg/errors"
	"github.com/studira/campus-api/pkg/response"
)

// ExportHandler serves timetable documents.
type ExportHandler struct {
	service *service.ExportService
}

// NewExportHandler constructs handler.
func NewExportHandler(svc *service.ExportService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// RoomTimetable godoc
// @Summary Export the weekly timetable of a room
// @Tags Exports
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Room ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Router /exports/rooms/{id}/timetable [get]
func (h *ExportHandler) RoomTimetable(c *gin.Context) {
	format, err := exportFormat(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.RoomTimetable(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	serveDocument(c, result)
}

// TeacherTimetable godoc
// @Summary Export the weekly timetable of a teacher
// @Tags Exports
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Teacher ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Router /exports/teachers/{id}/timetable [get]
func (h *ExportHandler) TeacherTimetable(c *gin.Context) {
	format, err := exportFormat(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.TeacherTimetable(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	serveDocument(c, result)
}

func exportFormat(c *gin.Context) (service.ExportFormat, error) {
	raw := strings.ToLower(c.DefaultQuery("format", "csv"))
	switch service.ExportFormat(raw) {
	case service.FormatCSV:
		return service.FormatCSV, nil
	case service.FormatPDF:
		return service.FormatPDF, nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", raw))
	}
}

func serveDocument(c *gin.Context, result *service.ExportResult) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Data(http.StatusOK, result.ContentType, result.Content)
}
