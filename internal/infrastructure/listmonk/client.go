// Package listmonk is the directory adapter for the mailing-list service the
// success side effect enrolls subscribers into.
package listmonk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jmwangi/pesalink-gateway/internal/application"
	"github.com/jmwangi/pesalink-gateway/internal/config"
)

type Client struct {
	baseURL    string
	apiUser    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(cfg config.DirectoryConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiUser: cfg.APIUser,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (c *Client) FindByEmail(ctx context.Context, email string) (*application.Subscriber, error) {
	query := url.QueryEscape(fmt.Sprintf("subscribers.email = '%s'", email))
	reqURL := fmt.Sprintf("%s/api/subscribers?query=%s", c.baseURL, query)

	var resp queryResponse
	if err := sendRequest(c, ctx, http.MethodGet, reqURL, (*struct{})(nil), &resp); err != nil {
		return nil, err
	}

	if len(resp.Data.Results) == 0 {
		return nil, nil
	}

	sub := resp.Data.Results[0]
	groups := make([]string, 0, len(sub.Lists))
	for _, l := range sub.Lists {
		groups = append(groups, strconv.Itoa(l.ID))
	}

	return &application.Subscriber{
		ID:     strconv.Itoa(sub.ID),
		Email:  sub.Email,
		Groups: groups,
	}, nil
}

func (c *Client) RemoveFromGroup(ctx context.Context, subscriberID, groupID string) error {
	id, err := strconv.Atoi(subscriberID)
	if err != nil {
		return fmt.Errorf("invalid subscriber id %q: %w", subscriberID, err)
	}
	group, err := strconv.Atoi(groupID)
	if err != nil {
		return fmt.Errorf("invalid group id %q: %w", groupID, err)
	}

	reqURL := fmt.Sprintf("%s/api/subscribers/lists", c.baseURL)
	req := listActionRequest{
		IDs:    []int{id},
		Action: "remove",
		Lists:  []int{group},
	}
	return sendRequest[listActionRequest, struct{}](c, ctx, http.MethodPut, reqURL, &req, nil)
}

func (c *Client) Upsert(ctx context.Context, record application.SubscriberRecord) error {
	group, err := strconv.Atoi(record.Group)
	if err != nil {
		return fmt.Errorf("invalid group id %q: %w", record.Group, err)
	}

	attribs := map[string]string{}
	if record.Phone != "" {
		attribs["phone"] = record.Phone
	}
	if record.Receipt != "" {
		attribs["receipt"] = record.Receipt
	}

	reqURL := fmt.Sprintf("%s/api/subscribers", c.baseURL)
	req := upsertRequest{
		Email:                   record.Email,
		Name:                    record.Name,
		Status:                  "enabled",
		Lists:                   []int{group},
		Attribs:                 attribs,
		PreconfirmSubscriptions: true,
	}
	return sendRequest[upsertRequest, struct{}](c, ctx, http.MethodPost, reqURL, &req, nil)
}

func sendRequest[Req any, Resp any](c *Client, ctx context.Context, method, url string, reqBody *Req, respBody *Resp) error {
	var bodyReader io.Reader
	if reqBody != nil {
		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("error marshalling json: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}

	if reqBody != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.SetBasicAuth(c.apiUser, c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		var apiErr apiErrorResponse
		if err := json.Unmarshal(body, &apiErr); err != nil {
			return fmt.Errorf("directory returned status %d: %s", resp.StatusCode, string(body))
		}
		return fmt.Errorf("directory returned status %d: %s", resp.StatusCode, apiErr.Message)
	}

	if respBody != nil {
		if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
			return fmt.Errorf("error decoding json response: %w", err)
		}
	}

	return nil
}
