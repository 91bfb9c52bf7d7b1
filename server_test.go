package salesbridge

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dawitel/line-sales-bridge/extract"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

const saleJSON = `{"day":28,"seller":"田中太郎","payment_method":"PayPal","product_name":"月4回プラン","quantity":1,"unit_price_excl_tax":32000}`

func Test_Root_And_Schema(t *testing.T) {
	req := require.New(t)
	r := NewRouter(newTestBridge(t, testConfig()), zerolog.Nop())

	w := do(r, http.MethodGet, "/", "")
	req.Equal(http.StatusOK, w.Code)
	req.Equal("ok", decodeBody(t, w)["status"])

	w = do(r, http.MethodGet, "/api/schema", "")
	req.Equal(http.StatusOK, w.Code)
	body := decodeBody(t, w)
	req.Equal("record_gym_sale", body["name"])
	params := body["parameters"].(map[string]any)
	req.Len(params["required"], 6)
}

func Test_Request_ID_And_CORS(t *testing.T) {
	req := require.New(t)
	r := NewRouter(newTestBridge(t, testConfig()), zerolog.Nop())

	w := do(r, http.MethodGet, "/", "")
	req.NotEmpty(w.Header().Get(RequestIDHeader))
	req.Empty(w.Header().Get("Access-Control-Allow-Origin"))

	get := httptest.NewRequest(http.MethodGet, "/", nil)
	get.Header.Set("Origin", "https://aistudio.google.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, get)
	req.Equal(http.StatusOK, w.Code)
	req.Equal("*", w.Header().Get("Access-Control-Allow-Origin"))
	req.Empty(w.Header().Get("Access-Control-Allow-Credentials"))

	pre := httptest.NewRequest(http.MethodOptions, "/api/record_sale", nil)
	pre.Header.Set("Origin", "https://aistudio.google.com")
	pre.Header.Set("Access-Control-Request-Method", http.MethodPost)
	pre.Header.Set(RequestIDHeader, "abc")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, pre)
	req.Equal(http.StatusNoContent, w.Code)
	req.Equal("*", w.Header().Get("Access-Control-Allow-Origin"))
	req.Contains(w.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
	req.Equal("abc", w.Header().Get(RequestIDHeader))
}

func Test_Health_Endpoint(t *testing.T) {
	req := require.New(t)

	ok := titledRecorder{fakeRecorder: &fakeRecorder{title: "店舗管理"}}
	r := NewRouter(newTestBridge(t, testConfig(), WithRecorder(ok)), zerolog.Nop())
	w := do(r, http.MethodGet, "/health", "")
	req.Equal(http.StatusOK, w.Code)
	body := decodeBody(t, w)
	req.Equal("healthy", body["status"])
	req.Equal("店舗管理", body["spreadsheet"])
	req.EqualValues(0, body["messages_count"])

	broken := titledRecorder{fakeRecorder: &fakeRecorder{}, titleErr: errors.New("forbidden")}
	r = NewRouter(newTestBridge(t, testConfig(), WithRecorder(broken)), zerolog.Nop())
	w = do(r, http.MethodGet, "/health", "")
	req.Equal(http.StatusServiceUnavailable, w.Code)
	req.Equal("unhealthy", decodeBody(t, w)["status"])
}

func Test_Messages_Endpoints(t *testing.T) {
	req := require.New(t)
	b := newTestBridge(t, testConfig())
	r := NewRouter(b, zerolog.Nop())

	for _, text := range []string{"a", "b", "c"} {
		b.Store().Add("U1", text, "id-"+text)
	}

	w := do(r, http.MethodGet, "/messages?limit=2", "")
	req.Equal(http.StatusOK, w.Code)
	body := decodeBody(t, w)
	req.EqualValues(2, body["count"])
	messages := body["messages"].([]any)
	first := messages[0].(map[string]any)
	req.Equal("c", first["text"])
	req.Equal("U1", first["user_id"])
	req.Equal("id-c", first["message_id"])
	req.NotEmpty(first["timestamp"])

	w = do(r, http.MethodGet, "/messages", "")
	req.EqualValues(3, decodeBody(t, w)["count"])

	w = do(r, http.MethodGet, "/messages?limit=0", "")
	body = decodeBody(t, w)
	req.EqualValues(0, body["count"])
	req.Equal([]any{}, body["messages"])

	w = do(r, http.MethodGet, "/messages?limit=abc", "")
	req.Equal(http.StatusBadRequest, w.Code)

	w = do(r, http.MethodDelete, "/messages", "")
	req.Equal(http.StatusOK, w.Code)
	req.Equal("All messages cleared", decodeBody(t, w)["message"])
	req.Equal(0, b.Store().Len())
}

func Test_Webhook_Route(t *testing.T) {
	req := require.New(t)
	b := newTestBridge(t, testConfig())
	r := NewRouter(b, zerolog.Nop())

	w := postWebhook(r, linePayload, sign(linePayload))
	req.Equal(http.StatusOK, w.Code)
	req.EqualValues(3, decodeBody(t, w)["events_processed"])
	req.Equal(2, b.Store().Len())
}

func Test_RecordSale_Endpoint(t *testing.T) {
	req := require.New(t)
	rec := &fakeRecorder{}
	r := NewRouter(newTestBridge(t, testConfig(), WithRecorder(rec)), zerolog.Nop())

	w := do(r, http.MethodPost, "/api/record_sale", saleJSON)
	req.Equal(http.StatusOK, w.Code)
	body := decodeBody(t, w)
	req.Equal(true, body["success"])
	req.EqualValues(5, body["row"])
	req.Equal("12 月度", body["sheet_name"])
	req.Equal(validSale, rec.records()[0])

	w = do(r, http.MethodPost, "/api/record_sale", `{"day":0,"seller":""}`)
	req.Equal(http.StatusUnprocessableEntity, w.Code)

	w = do(r, http.MethodPost, "/api/record_sale", `not json`)
	req.Equal(http.StatusUnprocessableEntity, w.Code)
}

func Test_RecordSale_Endpoint_Errors(t *testing.T) {
	req := require.New(t)

	r := NewRouter(newTestBridge(t, testConfig()), zerolog.Nop())
	w := do(r, http.MethodPost, "/api/record_sale", saleJSON)
	req.Equal(http.StatusServiceUnavailable, w.Code)

	failing := &fakeRecorder{err: errors.New("sheet exploded")}
	r = NewRouter(newTestBridge(t, testConfig(), WithRecorder(failing)), zerolog.Nop())
	w = do(r, http.MethodPost, "/api/record_sale", saleJSON)
	req.Equal(http.StatusInternalServerError, w.Code)
	req.Equal("sheet exploded", decodeBody(t, w)["detail"])
}

func Test_ExtractSale_Endpoint(t *testing.T) {
	req := require.New(t)
	rec := &fakeRecorder{}
	b := newTestBridge(t, testConfig(), WithRecorder(rec), WithExtractor(fakeExtractor{rec: validSale}))
	r := NewRouter(b, zerolog.Nop())

	w := do(r, http.MethodPost, "/api/extract_sale", `{"text":"12/28 田中 PayPal 35,200円","dry_run":true}`)
	req.Equal(http.StatusOK, w.Code)
	body := decodeBody(t, w)
	req.Equal("田中太郎", body["sale"].(map[string]any)["seller"])
	req.Nil(body["result"])
	req.Empty(rec.records())

	w = do(r, http.MethodPost, "/api/extract_sale", `{"text":"12/28 田中 PayPal 35,200円"}`)
	req.Equal(http.StatusOK, w.Code)
	body = decodeBody(t, w)
	req.Equal(true, body["result"].(map[string]any)["success"])
	req.Len(rec.records(), 1)

	w = do(r, http.MethodPost, "/api/extract_sale", `{"text":"  "}`)
	req.Equal(http.StatusUnprocessableEntity, w.Code)
}

func Test_ExtractSale_Error_Mapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"no json", extract.ErrNoJSON, http.StatusUnprocessableEntity},
		{"incomplete", extract.ErrIncomplete, http.StatusUnprocessableEntity},
		{"model down", errors.Join(extract.ErrModel, errors.New("503")), http.StatusBadGateway},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBridge(t, testConfig(), WithRecorder(&fakeRecorder{}), WithExtractor(fakeExtractor{err: tt.err}))
			r := NewRouter(b, zerolog.Nop())
			w := do(r, http.MethodPost, "/api/extract_sale", `{"text":"hello"}`)
			require.Equal(t, tt.status, w.Code)
		})
	}

	r := NewRouter(newTestBridge(t, testConfig()), zerolog.Nop())
	w := do(r, http.MethodPost, "/api/extract_sale", `{"text":"hello"}`)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func Test_Recovery_Middleware(t *testing.T) {
	req := require.New(t)
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RequestID(), Recovery(zerolog.Nop()))
	r.GET("/panic", func(*gin.Context) { panic("boom") })

	w := do(r, http.MethodGet, "/panic", "")
	req.Equal(http.StatusInternalServerError, w.Code)
	req.Equal("Internal server error", decodeBody(t, w)["detail"])
}
