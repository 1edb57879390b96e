package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"soko/config"
	"soko/models"
	"soko/utils"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const gatewayTokenCacheKey = "gateway:access_token"

// PushResult carries the gateway correlation ids returned when an STK push
// prompt is accepted for processing.
type PushResult struct {
	MerchantRequestID string
	CheckoutRequestID string
}

// GatewayClient talks to the mobile-money gateway. PushPrompt sends the
// payment prompt to the customer's phone; QueryStatus polls the outcome of a
// previous prompt, returning (nil, nil) while the gateway is still processing.
type GatewayClient interface {
	PushPrompt(ctx context.Context, phoneNumber string, amount float64, reference string) (*PushResult, error)
	QueryStatus(ctx context.Context, checkoutRequestID string) (*models.PaymentOutcome, error)
}

// DarajaClient implements GatewayClient against the Daraja STK push API.
// OAuth tokens are cached in Redis so concurrent pushes share one token.
type DarajaClient struct {
	cfg   config.GatewayConfig
	http  *http.Client
	cache *redis.Client
}

// NewDarajaClient builds a gateway client from explicit configuration.
func NewDarajaClient(cfg config.GatewayConfig, cache *redis.Client) *DarajaClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &DarajaClient{
		cfg:   cfg,
		http:  &http.Client{Timeout: timeout},
		cache: cache,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

func (c *DarajaClient) accessToken(ctx context.Context) (string, error) {
	if c.cache != nil {
		if token, err := c.cache.Get(ctx, gatewayTokenCacheKey).Result(); err == nil && token != "" {
			return token, nil
		}
	}

	url := c.cfg.BaseURL + "/oauth/v1/generate?grant_type=client_credentials"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	auth := base64.StdEncoding.EncodeToString([]byte(c.cfg.ConsumerKey + ":" + c.cfg.ConsumerSecret))
	req.Header.Set("Authorization", "Basic "+auth)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", NewError(ErrCodeGatewayUnavailable, fmt.Sprintf("token request failed: %v", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", NewError(ErrCodeGatewayUnavailable, fmt.Sprintf("token request returned %d", resp.StatusCode))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", NewError(ErrCodeGatewayUnavailable, "token response had no access token")
	}

	if c.cache != nil {
		// Tokens are valid for an hour; cache slightly shorter to avoid
		// handing out one about to expire.
		if err := c.cache.Set(ctx, gatewayTokenCacheKey, tr.AccessToken, 50*time.Minute).Err(); err != nil {
			utils.GetLogger().Warn("failed to cache gateway token", zap.Error(err))
		}
	}
	return tr.AccessToken, nil
}

// timestamp and password per the Daraja STK push scheme.
func (c *DarajaClient) credentials(now time.Time) (timestamp, password string) {
	timestamp = now.Format("20060102150405")
	password = base64.StdEncoding.EncodeToString([]byte(c.cfg.ShortCode + c.cfg.Passkey + timestamp))
	return
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            string `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	ErrorMessage        string `json:"errorMessage"`
}

func (c *DarajaClient) PushPrompt(ctx context.Context, phoneNumber string, amount float64, reference string) (*PushResult, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	timestamp, password := c.credentials(time.Now())
	payload := stkPushRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          password,
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            fmt.Sprintf("%.0f", amount),
		PartyA:            phoneNumber,
		PartyB:            c.cfg.ShortCode,
		PhoneNumber:       phoneNumber,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  reference,
		TransactionDesc:   "Booking payment " + reference,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal push request: %w", err)
	}

	url := c.cfg.BaseURL + "/mpesa/stkpush/v1/processrequest"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build push request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, NewError(ErrCodeGatewayUnavailable, fmt.Sprintf("push request failed: %v", err))
	}
	defer resp.Body.Close()

	var pr stkPushResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("failed to decode push response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || pr.ResponseCode != "0" {
		desc := pr.ResponseDescription
		if desc == "" {
			desc = pr.ErrorMessage
		}
		return nil, NewError(ErrCodeGatewayUnavailable, fmt.Sprintf("push rejected: %s", desc))
	}

	return &PushResult{
		MerchantRequestID: pr.MerchantRequestID,
		CheckoutRequestID: pr.CheckoutRequestID,
	}, nil
}

type stkQueryRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

type stkQueryResponse struct {
	ResponseCode string `json:"ResponseCode"`
	ResultCode   string `json:"ResultCode"`
	ResultDesc   string `json:"ResultDesc"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// Daraja error code for a transaction still being processed.
const resultStillProcessing = "500.001.1001"

func (c *DarajaClient) QueryStatus(ctx context.Context, checkoutRequestID string) (*models.PaymentOutcome, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	timestamp, password := c.credentials(time.Now())
	payload := stkQueryRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          password,
		Timestamp:         timestamp,
		CheckoutRequestID: checkoutRequestID,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query request: %w", err)
	}

	url := c.cfg.BaseURL + "/mpesa/stkpushquery/v1/query"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build query request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, NewError(ErrCodeGatewayUnavailable, fmt.Sprintf("query request failed: %v", err))
	}
	defer resp.Body.Close()

	var qr stkQueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&qr); err != nil {
		return nil, fmt.Errorf("failed to decode query response: %w", err)
	}
	if qr.ErrorCode == resultStillProcessing {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, NewError(ErrCodeGatewayUnavailable, fmt.Sprintf("query returned %d: %s", resp.StatusCode, qr.ErrorMessage))
	}

	now := time.Now()
	outcome := &models.PaymentOutcome{
		CheckoutRequestID: checkoutRequestID,
		Success:           qr.ResultCode == "0",
		ResultDesc:        qr.ResultDesc,
	}
	if outcome.Success {
		outcome.PaidAt = &now
	}
	return outcome, nil
}
