package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/reconflow/errors"
)

// DataResponse is the success envelope.
type DataResponse struct {
	Data any   `json:"data"`
	Meta *Meta `json:"meta,omitempty"`
}

// Meta carries list metadata.
type Meta struct {
	Count int `json:"count"`
	Limit int `json:"limit,omitempty"`
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, DataResponse{Data: data})
}

func respondList(c *gin.Context, data any, meta *Meta) {
	c.JSON(http.StatusOK, DataResponse{Data: data, Meta: meta})
}

// respondError renders err with the status its code maps to. Foreign errors
// become INTERNAL_ERROR.
func respondError(c *gin.Context, err error) {
	app := errors.From(err)
	c.JSON(errors.StatusOf(app), app.ToResponse())
}

func notFoundRoute(path string) *errors.AppError {
	return errors.NotFound("route", path)
}
