package models

// Resource describes how one entity type is stored and routed
type Resource struct {
	Name       string // human name used in error messages
	Collection string // document store collection
	Path       string // URL family under the API base path
	IDKey      string // JSON key carrying the generated identifier
}

// Entity is implemented by every record a gateway serves
type Entity interface {
	Resource() Resource
}

var (
	ClientResource         = Resource{Name: "Client", Collection: "clients", Path: "clients", IDKey: "client_id"}
	FundResource           = Resource{Name: "Fund", Collection: "funds", Path: "funds", IDKey: "fund_id"}
	PortfolioResource      = Resource{Name: "Portfolio", Collection: "portfolios", Path: "portfolios", IDKey: "portfolio_id"}
	AssetResource          = Resource{Name: "Asset", Collection: "assets", Path: "assets", IDKey: "asset_id"}
	OrderResource          = Resource{Name: "Order", Collection: "orders", Path: "orders", IDKey: "order_id"}
	TradeRatingResource    = Resource{Name: "Trade rating", Collection: "trade_ratings", Path: "trade-ratings", IDKey: "trade_rating_id"}
	AIForecastResource     = Resource{Name: "AI forecast", Collection: "ai_forecasts", Path: "ai-forecasts", IDKey: "forecast_id"}
	SupportRequestResource = Resource{Name: "Support request", Collection: "support_requests", Path: "support-requests", IDKey: "support_request_id"}
)

// Resources lists every entity type in route registration order
var Resources = []Resource{
	ClientResource,
	FundResource,
	PortfolioResource,
	AssetResource,
	OrderResource,
	TradeRatingResource,
	AIForecastResource,
	SupportRequestResource,
}

// Client is a fund manager's client
type Client struct {
	ID            string `json:"client_id,omitempty"`
	Name          string `json:"name" binding:"required"`
	FundManagerID Ref    `json:"fund_manager_id"`
}

func (Client) Resource() Resource { return ClientResource }

type Fund struct {
	ID     string `json:"fund_id,omitempty"`
	Name   string `json:"name" binding:"required"`
	UserID Ref    `json:"user_id"`
}

func (Fund) Resource() Resource { return FundResource }

type Portfolio struct {
	ID     string `json:"portfolio_id,omitempty"`
	Name   string `json:"name" binding:"required"`
	FundID Ref    `json:"fund_id"`
}

func (Portfolio) Resource() Resource { return PortfolioResource }

// Asset is a position held in a portfolio
type Asset struct {
	ID          string  `json:"asset_id,omitempty"`
	Symbol      string  `json:"symbol" binding:"required"`
	Price       float64 `json:"price" binding:"gte=0"`
	Volume      float64 `json:"volume" binding:"gte=0"`
	Amount      float64 `json:"amount"`
	PortfolioID Ref     `json:"portfolio_id"`
}

func (Asset) Resource() Resource { return AssetResource }

// Order types accepted by the order gateway
const (
	OrderTypeBuy  = "buy"
	OrderTypeSell = "sell"
)

type Order struct {
	ID          string  `json:"order_id,omitempty"`
	OrderType   string  `json:"order_type" binding:"required,oneof=buy sell"`
	Amount      float64 `json:"amount"`
	PortfolioID Ref     `json:"portfolio_id"`
}

func (Order) Resource() Resource { return OrderResource }

// TradeRating scores an executed order from 0 to 5
type TradeRating struct {
	ID      string  `json:"trade_rating_id,omitempty"`
	Rating  float64 `json:"rating" binding:"gte=0,lte=5"`
	OrderID Ref     `json:"order_id"`
}

func (TradeRating) Resource() Resource { return TradeRatingResource }

type AIForecast struct {
	ID       string `json:"forecast_id,omitempty"`
	Forecast string `json:"forecast" binding:"required"`
	UserID   Ref    `json:"user_id"`
}

func (AIForecast) Resource() Resource { return AIForecastResource }

type SupportRequest struct {
	ID      string `json:"support_request_id,omitempty"`
	Request string `json:"request" binding:"required"`
	UserID  Ref    `json:"user_id"`
}

func (SupportRequest) Resource() Resource { return SupportRequestResource }
