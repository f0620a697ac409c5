package tests

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"pos_khqr/api"
	"pos_khqr/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockBakong is a switchable stand-in for the Bakong API: it answers
// check_transaction_by_md5 with whatever response the test scripted.
type mockBakong struct {
	mu   sync.Mutex
	body string
}

func (m *mockBakong) set(body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.body = body
}

func (m *mockBakong) handler(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(m.body))
}

const (
	bakongPaid     = `{"responseCode":0,"responseMessage":"Getting transaction successfully."}`
	bakongNotFound = `{"responseCode":1,"responseMessage":"Transaction could not be found.","errorCode":1}`
)

func initRoutesTests(t *testing.T) (*gin.Engine, *mockBakong) {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	oracle := &mockBakong{body: bakongNotFound}
	oracleServer := httptest.NewServer(http.HandlerFunc(oracle.handler))
	t.Cleanup(oracleServer.Close)

	cfg := &config.Config{
		Port:            "0",
		BakongToken:     "test-token",
		BakongAPIURL:    oracleServer.URL,
		BankAccount:     "myshop@aba",
		MerchantName:    "My Shop",
		MerchantCity:    "Phnom Penh",
		StoreLabel:      "Shop",
		Terminal:        "POS-01",
		DefaultCurrency: "USD",
		SaleTTLSeconds:  300,
	}
	api.InitRoutes(router, cfg)

	return router, oracle
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewBuffer(raw)
	} else {
		reader = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// TestPOSHappyPath_FullFlow covers create -> poll (unpaid) -> poll (paid) ->
// cancel rejection on the paid sale.
func TestPOSHappyPath_FullFlow(t *testing.T) {
	router, oracle := initRoutesTests(t)

	var saleID string

	t.Run("GET_Health", func(t *testing.T) {
		w := doJSON(router, http.MethodGet, "/health", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		var health struct {
			OK                  bool `json:"ok"`
			PaymentCheckEnabled bool `json:"payment_check_enabled"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
		assert.True(t, health.OK)
		assert.True(t, health.PaymentCheckEnabled, "token configured, payment checks enabled")
	})

	t.Run("POST_CreateSale", func(t *testing.T) {
		w := doJSON(router, http.MethodPost, "/pos/sale", map[string]any{
			"amount":     10.0,
			"currency":   "USD",
			"note":       "Coke x2",
			"cashier_id": "C01",
		})
		assert.Equal(t, http.StatusCreated, w.Code, "expected HTTP 201 for successful sale creation")

		var created struct {
			SaleID      string  `json:"sale_id"`
			Amount      float64 `json:"amount"`
			Currency    string  `json:"currency"`
			MD5         string  `json:"md5"`
			QRPNGBase64 string  `json:"qr_png_base64"`
			Status      string  `json:"status"`
			CreatedAt   int64   `json:"created_at"`
			ExpiredAt   int64   `json:"expired_at"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
		assert.NotEmpty(t, created.SaleID)
		assert.Equal(t, 10.0, created.Amount)
		assert.Equal(t, "USD", created.Currency)
		assert.Len(t, created.MD5, 32, "MD5 fingerprint is 32 hex chars")
		assert.Equal(t, "PENDING", created.Status)
		assert.Equal(t, created.CreatedAt+300, created.ExpiredAt)

		raw, err := base64.StdEncoding.DecodeString(created.QRPNGBase64)
		require.NoError(t, err)
		assert.Equal(t, []byte("\x89PNG\r\n\x1a\n"), raw[:8], "QR image must be a PNG")

		saleID = created.SaleID
	})

	if saleID == "" {
		t.Fatal("Sale ID was not successfully generated in POST_CreateSale step.")
	}

	t.Run("GET_FullSaleRecord", func(t *testing.T) {
		w := doJSON(router, http.MethodGet, fmt.Sprintf("/pos/sale/%s", saleID), nil)
		assert.Equal(t, http.StatusOK, w.Code)

		var sale map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sale))
		assert.Equal(t, saleID, sale["sale_id"])
		assert.Equal(t, "Coke x2", sale["note"])
		assert.Equal(t, "C01", sale["cashier_id"])
		assert.Contains(t, sale["bill_number"], "POS-")
		assert.Equal(t, "PENDING", sale["status"])
		assert.Nil(t, sale["paid_at"], "paid_at must be null while PENDING")
	})

	t.Run("GET_Status_Unpaid", func(t *testing.T) {
		w := doJSON(router, http.MethodGet, fmt.Sprintf("/pos/sale/%s/status", saleID), nil)
		assert.Equal(t, http.StatusOK, w.Code)

		var status struct {
			SaleID string `json:"sale_id"`
			Status string `json:"status"`
			MD5    string `json:"md5"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
		assert.Equal(t, saleID, status.SaleID)
		assert.Equal(t, "PENDING", status.Status, "a not-found transaction keeps the sale PENDING")
		assert.NotEmpty(t, status.MD5)
	})

	t.Run("GET_Status_Paid", func(t *testing.T) {
		oracle.set(bakongPaid)

		w := doJSON(router, http.MethodGet, fmt.Sprintf("/pos/sale/%s/status", saleID), nil)
		assert.Equal(t, http.StatusOK, w.Code)

		var status struct {
			Status string `json:"status"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
		assert.Equal(t, "PAID", status.Status)

		// paid_at is now visible on the full record.
		w = doJSON(router, http.MethodGet, fmt.Sprintf("/pos/sale/%s", saleID), nil)
		var sale map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sale))
		assert.NotNil(t, sale["paid_at"])
	})

	t.Run("GET_Status_PaidIsTerminal", func(t *testing.T) {
		// Even if Bakong stopped acknowledging the transaction, the sale
		// stays PAID.
		oracle.set(bakongNotFound)

		w := doJSON(router, http.MethodGet, fmt.Sprintf("/pos/sale/%s/status", saleID), nil)
		assert.Equal(t, http.StatusOK, w.Code)

		var status struct {
			Status string `json:"status"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
		assert.Equal(t, "PAID", status.Status)
	})

	t.Run("POST_CancelPaidSaleRejected", func(t *testing.T) {
		w := doJSON(router, http.MethodPost, fmt.Sprintf("/pos/sale/%s/mark-cancelled", saleID), nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		var resp map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "cannot cancel a PAID sale", resp["error"])
	})
}

func TestPOSCancelFlow(t *testing.T) {
	router, _ := initRoutesTests(t)

	w := doJSON(router, http.MethodPost, "/pos/sale", map[string]any{"amount": 5.5})
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		SaleID   string `json:"sale_id"`
		Currency string `json:"currency"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "USD", created.Currency, "currency defaults to the configured one")

	w = doJSON(router, http.MethodPost, fmt.Sprintf("/pos/sale/%s/mark-cancelled", created.SaleID), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var cancelled struct {
		SaleID string `json:"sale_id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cancelled))
	assert.Equal(t, created.SaleID, cancelled.SaleID)
	assert.Equal(t, "CANCELLED", cancelled.Status)

	// Repeating the cancel is an idempotent success.
	w = doJSON(router, http.MethodPost, fmt.Sprintf("/pos/sale/%s/mark-cancelled", created.SaleID), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cancelled))
	assert.Equal(t, "CANCELLED", cancelled.Status)
}

func TestPOSValidationAndNotFound(t *testing.T) {
	router, _ := initRoutesTests(t)

	t.Run("POST_ZeroAmount", func(t *testing.T) {
		w := doJSON(router, http.MethodPost, "/pos/sale", map[string]any{"amount": 0})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("POST_BadCurrency", func(t *testing.T) {
		w := doJSON(router, http.MethodPost, "/pos/sale", map[string]any{"amount": 10, "currency": "EUR"})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("UnknownSaleIs404", func(t *testing.T) {
		for _, req := range []struct{ method, path string }{
			{http.MethodGet, "/pos/sale/ghost"},
			{http.MethodGet, "/pos/sale/ghost/status"},
			{http.MethodPost, "/pos/sale/ghost/mark-cancelled"},
		} {
			w := doJSON(router, req.method, req.path, nil)
			assert.Equal(t, http.StatusNotFound, w.Code, "%s %s", req.method, req.path)
		}
	})
}

func TestPOSStatusOracleFailureIs500(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	// Oracle answers 503: the status endpoint must surface the failure and
	// leave the sale PENDING.
	oracleServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(oracleServer.Close)

	cfg := &config.Config{
		BakongToken:     "test-token",
		BakongAPIURL:    oracleServer.URL,
		BankAccount:     "myshop@aba",
		MerchantName:    "My Shop",
		MerchantCity:    "Phnom Penh",
		DefaultCurrency: "USD",
		SaleTTLSeconds:  300,
	}
	api.InitRoutes(router, cfg)

	w := doJSON(router, http.MethodPost, "/pos/sale", map[string]any{"amount": 10})
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		SaleID string `json:"sale_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = doJSON(router, http.MethodGet, fmt.Sprintf("/pos/sale/%s/status", created.SaleID), nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = doJSON(router, http.MethodGet, fmt.Sprintf("/pos/sale/%s", created.SaleID), nil)
	var sale map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sale))
	assert.Equal(t, "PENDING", sale["status"], "oracle failure must not mutate the sale")
}
