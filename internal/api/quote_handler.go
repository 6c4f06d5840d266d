package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"folio/internal/middleware"
	"folio/internal/quotes"
)

// QuoteHandler relays market data from the upstream APIs
type QuoteHandler struct {
	proxy *quotes.Proxy
}

// NewQuoteHandler creates a new quote handler
func NewQuoteHandler(proxy *quotes.Proxy) *QuoteHandler {
	return &QuoteHandler{proxy: proxy}
}

// Yahoo relays the configured Yahoo Finance quote
// @Summary Yahoo Finance quote
// @Description Raw JSON from the Yahoo Finance markets/quote endpoint
// @Tags Quotes
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object
// @Failure 401 {object} errors.ErrorResponse
// @Failure 503 {object} errors.ErrorResponse
// @Router /yahoo-finance/ [get]
func (h *QuoteHandler) Yahoo(c *gin.Context) {
	payload, err := h.proxy.Yahoo(c.Request.Context())
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
}

// AlphaVantage relays the configured Alpha Vantage time series
// @Summary Alpha Vantage time series
// @Description Raw JSON from the Alpha Vantage query endpoint
// @Tags Quotes
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object
// @Failure 401 {object} errors.ErrorResponse
// @Failure 503 {object} errors.ErrorResponse
// @Router /alpha-vantage/ [get]
func (h *QuoteHandler) AlphaVantage(c *gin.Context) {
	payload, err := h.proxy.AlphaVantage(c.Request.Context())
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
}
