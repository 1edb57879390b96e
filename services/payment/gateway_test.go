package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soko/config"
)

func gatewayServer(t *testing.T, pushStatus int, pushBody, queryBody string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/v1/generate":
			if r.Header.Get("Authorization") == "" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Write([]byte(`{"access_token":"tok-1","expires_in":"3599"}`))
		case "/mpesa/stkpush/v1/processrequest":
			assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
			var req stkPushRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "CustomerPayBillOnline", req.TransactionType)
			assert.NotEmpty(t, req.Password)
			w.WriteHeader(pushStatus)
			w.Write([]byte(pushBody))
		case "/mpesa/stkpushquery/v1/query":
			w.Write([]byte(queryBody))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func testClient(baseURL string) *DarajaClient {
	return NewDarajaClient(config.GatewayConfig{
		BaseURL:        baseURL,
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		ShortCode:      "174379",
		Passkey:        "passkey",
		CallbackURL:    "https://example.com/api/payments/callback",
		Timeout:        5 * time.Second,
	}, nil)
}

func TestPushPrompt_Accepted(t *testing.T) {
	srv := gatewayServer(t, http.StatusOK,
		`{"MerchantRequestID":"m-1","CheckoutRequestID":"c-1","ResponseCode":"0","ResponseDescription":"Success. Request accepted for processing"}`,
		"")
	defer srv.Close()

	result, err := testClient(srv.URL).PushPrompt(context.Background(), "254712345678", 1500, "AB12CD34")
	require.NoError(t, err)
	assert.Equal(t, "m-1", result.MerchantRequestID)
	assert.Equal(t, "c-1", result.CheckoutRequestID)
}

func TestPushPrompt_Rejected(t *testing.T) {
	srv := gatewayServer(t, http.StatusBadRequest,
		`{"errorMessage":"Bad Request - Invalid PhoneNumber"}`,
		"")
	defer srv.Close()

	_, err := testClient(srv.URL).PushPrompt(context.Background(), "bad", 1500, "AB12CD34")
	assert.True(t, HasCode(err, ErrCodeGatewayUnavailable))
}

func TestPushPrompt_GatewayDown(t *testing.T) {
	srv := gatewayServer(t, http.StatusOK, "", "")
	srv.Close() // connection refused

	_, err := testClient(srv.URL).PushPrompt(context.Background(), "254712345678", 1500, "AB12CD34")
	assert.True(t, HasCode(err, ErrCodeGatewayUnavailable))
}

func TestQueryStatus_Success(t *testing.T) {
	srv := gatewayServer(t, http.StatusOK, "",
		`{"ResponseCode":"0","ResultCode":"0","ResultDesc":"The service request is processed successfully."}`)
	defer srv.Close()

	outcome, err := testClient(srv.URL).QueryStatus(context.Background(), "c-1")
	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.True(t, outcome.Success)
	assert.Equal(t, "c-1", outcome.CheckoutRequestID)
	assert.NotNil(t, outcome.PaidAt)
}

func TestQueryStatus_Failed(t *testing.T) {
	srv := gatewayServer(t, http.StatusOK, "",
		`{"ResponseCode":"0","ResultCode":"1032","ResultDesc":"Request cancelled by user"}`)
	defer srv.Close()

	outcome, err := testClient(srv.URL).QueryStatus(context.Background(), "c-1")
	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.False(t, outcome.Success)
	assert.Nil(t, outcome.PaidAt)
}

func TestQueryStatus_StillProcessing(t *testing.T) {
	srv := gatewayServer(t, http.StatusOK, "",
		`{"errorCode":"500.001.1001","errorMessage":"The transaction is being processed"}`)
	defer srv.Close()

	outcome, err := testClient(srv.URL).QueryStatus(context.Background(), "c-1")
	require.NoError(t, err)
	assert.Nil(t, outcome, "still processing is neither success nor failure")
}
