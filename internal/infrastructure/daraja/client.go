// Package daraja talks to the Safaricom-style push-payment gateway: one call
// to mint a short-lived access credential, one call to fire the STK prompt.
package daraja

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jmwangi/pesalink-gateway/internal/application"
	"github.com/jmwangi/pesalink-gateway/internal/config"
	"github.com/jmwangi/pesalink-gateway/internal/domain"
)

const timestampLayout = "20060102150405"

type Client struct {
	baseURL        string
	consumerKey    string
	consumerSecret string
	shortCode      string
	passkey        string
	callbackURL    string
	httpClient     *http.Client
	now            func() time.Time
}

func NewClient(cfg config.DarajaConfig) *Client {
	return &Client{
		baseURL:        cfg.BaseURL,
		consumerKey:    cfg.ConsumerKey,
		consumerSecret: cfg.ConsumerSecret,
		shortCode:      cfg.ShortCode,
		passkey:        cfg.Passkey,
		callbackURL:    cfg.CallbackURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		now: time.Now,
	}
}

// RequestPushPayment mints a credential and submits the STK push. The
// credential is fetched fresh per call; its lifetime semantics belong to the
// gateway and are not assumed here.
//
// The gateway's synchronous response is untrusted: a body that does not
// parse degrades to a ticket with no transaction id rather than an error,
// because the prompt may still have reached the phone.
func (c *Client) RequestPushPayment(ctx context.Context, subject domain.Subject, amount decimal.Decimal) (*application.GatewayTicket, error) {
	if c.consumerKey == "" || c.consumerSecret == "" || c.passkey == "" {
		return nil, application.NewConfigurationError("daraja credentials")
	}

	token, err := c.authenticate(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := c.now().Format(timestampLayout)
	password := base64.StdEncoding.EncodeToString([]byte(c.shortCode + c.passkey + timestamp))

	req := stkPushRequest{
		BusinessShortCode: c.shortCode,
		Password:          password,
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            amount.String(),
		PartyA:            subject.Phone,
		PartyB:            c.shortCode,
		PhoneNumber:       subject.Phone,
		CallBackURL:       c.callbackURL,
		AccountReference:  subject.Email,
		TransactionDesc:   fmt.Sprintf("%s subscription", subject.Category),
	}

	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("error marshalling json: %w", err)
	}

	url := fmt.Sprintf("%s/mpesa/stkpush/v1/processrequest", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var gwErrResp gatewayErrorResponse
		if err := json.Unmarshal(body, &gwErrResp); err != nil {
			return nil, &GatewayError{
				Code:       "unknown",
				Message:    fmt.Sprintf("gateway returned status %d", resp.StatusCode),
				StatusCode: resp.StatusCode,
				RawBody:    string(body),
			}
		}
		return nil, &GatewayError{
			Code:       gwErrResp.ErrorCode,
			Message:    gwErrResp.ErrorMessage,
			StatusCode: resp.StatusCode,
			RawBody:    string(body),
		}
	}

	var pushResp stkPushResponse
	if err := json.Unmarshal(body, &pushResp); err != nil {
		// Ticket not obtained; the callback may still arrive under a key we
		// never learned, and TTL expiry will reclaim the record.
		return &application.GatewayTicket{RawResponse: string(body)}, nil
	}

	return &application.GatewayTicket{
		TransactionID: pushResp.CheckoutRequestID,
		RawResponse:   string(body),
	}, nil
}

func (c *Client) authenticate(ctx context.Context) (string, error) {
	url := fmt.Sprintf("%s/oauth/v1/generate?grant_type=client_credentials", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	httpReq.SetBasicAuth(c.consumerKey, c.consumerSecret)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", &GatewayError{
			Code:       "auth_failed",
			Message:    "could not obtain access credential",
			StatusCode: resp.StatusCode,
			RawBody:    string(body),
		}
	}

	var authResp authResponse
	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		return "", fmt.Errorf("error decoding json response: %w", err)
	}
	if authResp.AccessToken == "" {
		return "", &GatewayError{
			Code:       "auth_failed",
			Message:    "empty access token",
			StatusCode: resp.StatusCode,
		}
	}

	return authResp.AccessToken, nil
}
