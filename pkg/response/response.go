package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
)

// Envelope is the uniform response contract: every handler returns it, for
// successes and failures alike. Code mirrors the HTTP status.
type Envelope struct {
	Code      int         `json:"code"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// Page wraps list payloads with pagination metadata inside the envelope data.
type Page struct {
	Items    interface{} `json:"items"`
	Total    int         `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
	Pages    int         `json:"pages"`
}

// NewPage assembles pagination metadata for a list payload.
func NewPage(items interface{}, total, page, pageSize int) Page {
	pages := 0
	if pageSize > 0 {
		pages = (total + pageSize - 1) / pageSize
	}
	return Page{Items: items, Total: total, Page: page, PageSize: pageSize, Pages: pages}
}

// JSON sends a success envelope with the given status and message.
func JSON(c *gin.Context, status int, message string, data interface{}) {
	c.Header("Cache-Control", "no-store")
	c.JSON(status, Envelope{
		Code:      status,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

// OK responds with HTTP 200.
func OK(c *gin.Context, message string, data interface{}) {
	JSON(c, http.StatusOK, message, data)
}

// Created responds with HTTP 201.
func Created(c *gin.Context, message string, data interface{}) {
	JSON(c, http.StatusCreated, message, data)
}

// Error converts any error into the envelope, using the typed error's status.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	c.Header("Cache-Control", "no-store")
	c.JSON(appErr.Status, Envelope{
		Code:      appErr.Status,
		Message:   appErr.Message,
		Data:      nil,
		Timestamp: time.Now().UTC(),
	})
}

// NoContent sends a 204 response without an envelope.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
