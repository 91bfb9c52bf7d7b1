// Package mcpserver exposes the sales tools over the Model Context Protocol.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dawitel/line-sales-bridge/sheets"
	"github.com/dawitel/line-sales-bridge/store"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// ServerName is the name the server announces to clients.
const ServerName = "LimitYotsuya"

// Transports accepted by Run.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

const defaultFetchLimit = 10

// MessageSource returns recent LINE messages, newest first.
type MessageSource interface {
	RecentMessages(ctx context.Context, limit int) ([]store.StoredMessage, error)
}

// RecordSaleInput are the arguments of the record_gym_sale tool.
type RecordSaleInput struct {
	Day              int    `json:"day" jsonschema:"day of month of the sale, e.g. 28"`
	Seller           string `json:"seller" jsonschema:"customer name, e.g. 田中太郎"`
	PaymentMethod    string `json:"payment_method" jsonschema:"payment method, e.g. PayPal, PayPay, 現金"`
	ProductName      string `json:"product_name" jsonschema:"product name, e.g. 月4回プラン"`
	Quantity         int64  `json:"quantity" jsonschema:"quantity sold"`
	UnitPriceExclTax int64  `json:"unit_price_excl_tax" jsonschema:"unit price excluding tax in yen"`
}

// RecordSaleOutput reports where the sale was written.
type RecordSaleOutput struct {
	Success   bool   `json:"success"`
	Row       int    `json:"row"`
	Message   string `json:"message"`
	SheetName string `json:"sheet_name,omitempty"`
}

// FetchMessagesInput are the arguments of the fetch_messages tool.
type FetchMessagesInput struct {
	Limit *int `json:"limit,omitempty" jsonschema:"maximum number of messages to return, defaults to 10"`
}

// Message is a stored LINE message as returned by fetch_messages.
type Message struct {
	Timestamp string `json:"timestamp"`
	UserID    string `json:"user_id"`
	Text      string `json:"text"`
	MessageID string `json:"message_id"`
}

// FetchMessagesOutput lists recent messages, newest first.
type FetchMessagesOutput struct {
	Count    int       `json:"count"`
	Messages []Message `json:"messages"`
}

type tools struct {
	recorder sheets.Recorder
	messages MessageSource
	logger   zerolog.Logger
}

// NewServer creates an MCP server with the record_gym_sale and
// fetch_messages tools. Either collaborator may be nil, in which case the
// tool reports an error result.
func NewServer(recorder sheets.Recorder, messages MessageSource, version string, logger zerolog.Logger) *mcp.Server {
	t := &tools{recorder: recorder, messages: messages, logger: logger}

	server := mcp.NewServer(&mcp.Implementation{Name: ServerName, Version: version}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name: "record_gym_sale",
		Description: "Record a gym store sale in the monthly management spreadsheet. " +
			"The sale is appended to the sales table of the current month's sheet.",
	}, t.recordSale)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "fetch_messages",
		Description: "Fetch recent LINE messages received by the webhook, newest first.",
	}, t.fetchMessages)

	return server
}

func (t *tools) recordSale(ctx context.Context, _ *mcp.CallToolRequest, in RecordSaleInput) (*mcp.CallToolResult, RecordSaleOutput, error) {
	t.logger.Info().
		Int("day", in.Day).
		Str("seller", in.Seller).
		Str("product", in.ProductName).
		Int64("quantity", in.Quantity).
		Int64("unit_price_excl_tax", in.UnitPriceExclTax).
		Msg("record_gym_sale called")

	if t.recorder == nil {
		return nil, failed(errors.New("spreadsheet is not configured")), nil
	}

	res, err := t.recorder.RecordSale(ctx, sheets.SaleRecord{
		Day:              in.Day,
		Customer:         in.Seller,
		PaymentMethod:    in.PaymentMethod,
		ProductName:      in.ProductName,
		Quantity:         in.Quantity,
		UnitPriceExclTax: in.UnitPriceExclTax,
	})
	if err != nil {
		t.logger.Error().Err(err).Msg("Error recording sale")
		return nil, failed(err), nil
	}

	return nil, RecordSaleOutput{
		Success:   res.Success,
		Row:       res.Row,
		Message:   res.Message,
		SheetName: res.SheetName,
	}, nil
}

func (t *tools) fetchMessages(ctx context.Context, _ *mcp.CallToolRequest, in FetchMessagesInput) (*mcp.CallToolResult, FetchMessagesOutput, error) {
	if t.messages == nil {
		return nil, FetchMessagesOutput{}, errors.New("message source is not configured")
	}

	// Only an omitted limit defaults; zero or negative returns nothing.
	limit := defaultFetchLimit
	if in.Limit != nil {
		limit = *in.Limit
	}

	recent, err := t.messages.RecentMessages(ctx, limit)
	if err != nil {
		return nil, FetchMessagesOutput{}, fmt.Errorf("failed to fetch messages: %w", err)
	}

	out := lo.Map(recent, func(m store.StoredMessage, _ int) Message {
		return Message{
			Timestamp: m.ReceivedAt.Format(time.RFC3339Nano),
			UserID:    m.SenderID,
			Text:      m.Body,
			MessageID: m.MessageID,
		}
	})

	return nil, FetchMessagesOutput{Count: len(out), Messages: out}, nil
}

func failed(err error) RecordSaleOutput {
	return RecordSaleOutput{Success: false, Row: 0, Message: "エラー: " + err.Error()}
}

// Handler serves server over the streamable HTTP transport.
func Handler(server *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, nil)
}

// Run serves until ctx is done. addr is only used by the http transport.
func Run(ctx context.Context, server *mcp.Server, transport, addr string, logger zerolog.Logger) error {
	switch transport {
	case "", TransportStdio:
		logger.Info().Msg("Starting MCP server in stdio mode")
		return server.Run(ctx, &mcp.StdioTransport{})

	case TransportHTTP:
		logger.Info().Str("addr", addr).Msg("Starting MCP server in streamable HTTP mode")
		srv := &http.Server{
			Addr:              addr,
			Handler:           Handler(server),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		}

	default:
		return fmt.Errorf("unknown MCP transport: %s", transport)
	}
}
