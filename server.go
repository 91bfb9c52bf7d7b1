package salesbridge

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/dawitel/line-sales-bridge/extract"
	"github.com/dawitel/line-sales-bridge/mcpserver"
	"github.com/dawitel/line-sales-bridge/sheets"
	"github.com/gin-gonic/gin"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
)

const (
	serviceName     = "Limit Yotsuya Sales API"
	serviceVersion  = "1.0.0"
	defaultMsgLimit = 10
)

// RecordSaleSchema is the function-calling schema served at /api/schema.
var RecordSaleSchema = gin.H{
	"name":        "record_gym_sale",
	"description": "リミット四ツ谷店の売上情報をGoogleスプレッドシートに記録します。税抜単価は既に計算済みの値を受け取ります。",
	"parameters": gin.H{
		"type": "object",
		"properties": gin.H{
			"day": gin.H{
				"type":        "integer",
				"description": "日付（数値のみ、例：28）",
			},
			"seller": gin.H{
				"type":        "string",
				"description": "販売者名（例：服部誉也）",
			},
			"payment_method": gin.H{
				"type":        "string",
				"description": "決済方法（例：PayPal, PayPay, 現金, クレジットカード）",
			},
			"product_name": gin.H{
				"type":        "string",
				"description": "商品・サービス名（例：月4回プラン, 月8回プラン, プロテイン）",
			},
			"quantity": gin.H{
				"type":        "integer",
				"description": "数量（通常は1）",
			},
			"unit_price_excl_tax": gin.H{
				"type":        "integer",
				"description": "単価（税抜・整数値）。税込金額を1.1で割って整数に丸めた値。",
			},
		},
		"required": []string{"day", "seller", "payment_method", "product_name", "quantity", "unit_price_excl_tax"},
	},
}

type extractRequest struct {
	Text   string `json:"text"`
	DryRun bool   `json:"dry_run"`
}

type extractResponse struct {
	Sale   sheets.SaleRecord `json:"sale"`
	Result *sheets.Result    `json:"result,omitempty"`
}

// API serves the REST endpoints on top of a Bridge.
type API struct {
	bridge *Bridge
	mcp    *mcp.Server
	logger zerolog.Logger
}

// NewRouter builds the gin engine with the webhook, message and sales
// endpoints. The MCP tools are mounted at /mcp over streamable HTTP.
func NewRouter(b *Bridge, logger zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	api := &API{
		bridge: b,
		mcp:    mcpserver.NewServer(b.recorder, b, serviceVersion, logger),
		logger: logger,
	}

	r := gin.New()
	r.Use(RequestID(), RequestLogger(logger), Recovery(logger), CORS())

	r.GET("/", api.root)
	r.GET("/health", api.health)

	r.POST("/webhook", gin.WrapF(b.HandleWebhook()))
	r.GET("/messages", api.listMessages)
	r.DELETE("/messages", api.clearMessages)

	r.POST("/api/record_sale", api.recordSale)
	r.GET("/api/schema", api.schema)
	r.POST("/api/extract_sale", api.extractSale)

	r.Any("/mcp", gin.WrapH(mcpserver.Handler(api.mcp)))

	return r
}

func (a *API) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"service":     serviceName,
		"version":     serviceVersion,
		"description": "売上管理AI「コクピット」",
	})
}

func (a *API) health(c *gin.Context) {
	status, err := a.bridge.Health(c.Request.Context())
	if err != nil {
		a.logger.Error().Err(err).Msg("Health check failed")
		c.JSON(http.StatusServiceUnavailable, status)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (a *API) listMessages(c *gin.Context) {
	limit := defaultMsgLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "limit must be an integer"})
			return
		}
		limit = n
	}

	messages := a.bridge.Store().Recent(limit)
	c.JSON(http.StatusOK, gin.H{
		"count":    len(messages),
		"messages": messages,
	})
}

func (a *API) clearMessages(c *gin.Context) {
	a.bridge.Store().Clear()
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "All messages cleared"})
}

func (a *API) schema(c *gin.Context) {
	c.JSON(http.StatusOK, RecordSaleSchema)
}

func (a *API) recordSale(c *gin.Context) {
	var rec sheets.SaleRecord
	if err := c.ShouldBindJSON(&rec); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}

	a.logger.Info().
		Int("day", rec.Day).
		Str("seller", rec.Customer).
		Str("payment_method", rec.PaymentMethod).
		Str("product", rec.ProductName).
		Int64("quantity", rec.Quantity).
		Int64("unit_price_excl_tax", rec.UnitPriceExclTax).
		Msg("record_sale request")

	res, err := a.bridge.RecordSale(c.Request.Context(), rec)
	if err != nil {
		a.abort(c, err)
		return
	}

	if res.Success {
		a.logger.Info().Str("sheet", res.SheetName).Int("row", res.Row).Msg(res.Message)
	} else {
		a.logger.Error().Msg(res.Message)
	}
	c.JSON(http.StatusOK, res)
}

func (a *API) extractSale(c *gin.Context) {
	var body extractRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}
	if strings.TrimSpace(body.Text) == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "text is required"})
		return
	}

	rec, err := a.bridge.ExtractSale(c.Request.Context(), body.Text)
	if err != nil {
		a.abort(c, err)
		return
	}
	if body.DryRun {
		c.JSON(http.StatusOK, extractResponse{Sale: rec})
		return
	}

	res, err := a.bridge.RecordSale(c.Request.Context(), rec)
	if err != nil {
		a.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, extractResponse{Sale: rec, Result: &res})
}

// abort maps domain errors to HTTP status codes.
func (a *API) abort(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, sheets.ErrInvalidRecord),
		errors.Is(err, extract.ErrNoJSON),
		errors.Is(err, extract.ErrIncomplete):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, ErrRecorderUnavailable),
		errors.Is(err, ErrExtractorUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, extract.ErrModel):
		status = http.StatusBadGateway
	}

	if status >= http.StatusInternalServerError {
		a.logger.Error().Err(err).Int("status", status).Msg("Request failed")
	} else {
		a.logger.Warn().Err(err).Int("status", status).Msg("Request rejected")
	}
	c.JSON(status, gin.H{"detail": err.Error()})
}
