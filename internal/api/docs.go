package api

// @title Folio API
// @version 1.0
// @description Portfolio management backend: clients, funds, portfolios, assets, orders, trade ratings, AI forecasts, support requests and market quotes.

// @contact.name API Support

// @host localhost:8000
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @tag.name Auth
// @tag.description Registration, token issuance and refresh

// @tag.name Resources
// @tag.description CRUD over clients, funds, portfolios, assets, orders, trade-ratings, ai-forecasts and support-requests

// @tag.name Quotes
// @tag.description Market data relayed from Yahoo Finance and Alpha Vantage
