package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "folio/internal/errors"
	"folio/internal/gateway"
	"folio/internal/middleware"
	"folio/internal/models"
	"folio/internal/store"
)

// registerResources mounts the CRUD routes of every entity family
func registerResources(group *gin.RouterGroup, documents store.DocumentStore, recorder gateway.Recorder) {
	registerResource[models.Client](group, documents, recorder)
	registerResource[models.Fund](group, documents, recorder)
	registerResource[models.Portfolio](group, documents, recorder)
	registerResource[models.Asset](group, documents, recorder)
	registerResource[models.Order](group, documents, recorder)
	registerResource[models.TradeRating](group, documents, recorder)
	registerResource[models.AIForecast](group, documents, recorder)
	registerResource[models.SupportRequest](group, documents, recorder)
}

func registerResource[T models.Entity](group *gin.RouterGroup, documents store.DocumentStore, recorder gateway.Recorder) {
	h := &ResourceHandler[T]{service: gateway.New[T](documents, recorder)}

	family := group.Group("/" + h.service.Resource().Path)
	{
		family.GET("/", h.List)
		family.POST("/", h.Create)
		family.GET("/:id/", h.Detail)
		family.PUT("/:id/", h.Update)
		family.DELETE("/:id/", h.Delete)
	}
}

// ResourceHandler handles the CRUD routes of one entity family
type ResourceHandler[T models.Entity] struct {
	service *gateway.Service[T]
}

// List returns every record of the family
// @Summary List records
// @Description Returns all records of an entity family in creation order
// @Tags Resources
// @Produce json
// @Security BearerAuth
// @Param family path string true "Entity family" Enums(clients, funds, portfolios, assets, orders, trade-ratings, ai-forecasts, support-requests)
// @Success 200 {array} object
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /{family}/ [get]
func (h *ResourceHandler[T]) List(c *gin.Context) {
	records, err := h.service.List(c.Request.Context())
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// Create stores a new record
// @Summary Create a record
// @Tags Resources
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param family path string true "Entity family"
// @Param record body object true "Record fields"
// @Success 201 {object} object
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /{family}/ [post]
func (h *ResourceHandler[T]) Create(c *gin.Context) {
	var record T
	if err := c.ShouldBindJSON(&record); err != nil {
		middleware.AbortWithError(c, apperrors.Validation(err))
		return
	}

	created, err := h.service.Create(c.Request.Context(), record)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// Detail returns one record
// @Summary Get a record
// @Tags Resources
// @Produce json
// @Security BearerAuth
// @Param family path string true "Entity family"
// @Param id path string true "Record ID"
// @Success 200 {object} object
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /{family}/{id}/ [get]
func (h *ResourceHandler[T]) Detail(c *gin.Context) {
	record, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// Update replaces every field of a record
// @Summary Replace a record
// @Tags Resources
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param family path string true "Entity family"
// @Param id path string true "Record ID"
// @Param record body object true "Full record fields"
// @Success 200 {object} object
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /{family}/{id}/ [put]
func (h *ResourceHandler[T]) Update(c *gin.Context) {
	var record T
	if err := c.ShouldBindJSON(&record); err != nil {
		middleware.AbortWithError(c, apperrors.Validation(err))
		return
	}

	updated, err := h.service.Update(c.Request.Context(), c.Param("id"), record)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// Delete removes a record
// @Summary Delete a record
// @Tags Resources
// @Security BearerAuth
// @Param family path string true "Entity family"
// @Param id path string true "Record ID"
// @Success 204
// @Failure 404 {object} errors.ErrorResponse
// @Router /{family}/{id}/ [delete]
func (h *ResourceHandler[T]) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
