package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studira/campus-api/internal/models"
	appErrors "github.com/studira/campus-api/pkg/errors"
)

// Envelope is the response contract shared by every endpoint: the
// payload (an assignment, a room, a list) under data, a typed error, and
// pagination metadata on list responses.
type Envelope struct {
	Data       interface{}            `json:"data,omitempty"`
	Error      *appErrors.Error       `json:"error,omitempty"`
	Pagination *models.Pagination     `json:"pagination,omitempty"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
}

// JSON sends a success response. List endpoints pass the pagination
// block built by their service; single-resource endpoints pass nil.
func JSON(c *gin.Context, status int, data interface{}, pagination *models.Pagination, meta ...map[string]interface{}) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	envelope := Envelope{Data: data, Pagination: pagination}
	if len(meta) > 0 && meta[0] != nil {
		envelope.Meta = meta[0]
	}
	c.JSON(status, envelope)
}

// Created responds with HTTP 201, used when a slot booking succeeds.
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data, nil)
}

// Error converts err through the typed error taxonomy and writes it with
// the matching HTTP status, so a conflict rejection surfaces as 409 with
// code CONFLICT.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(appErr.Status, Envelope{Error: appErr})
}

// NoContent sends a 204 response, the cancel endpoint's success shape.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
