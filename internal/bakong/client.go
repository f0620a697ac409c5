// Package bakong implements the payment-status oracle on top of the Bakong
// open API: transactions are looked up by the MD5 fingerprint of their KHQR
// payload.
package bakong

import (
	"context"
	"fmt"
	"time"

	"resty.dev/v3"
)

const checkByMD5Path = "/v1/check_transaction_by_md5"

// errorCodeNotFound is Bakong's code for "transaction could not be found",
// which for a polling POS simply means the customer has not paid yet.
const errorCodeNotFound = 1

// Client queries the Bakong API for payment status.
type Client struct {
	http *resty.Client
}

// NewClient initializes a Bakong client authenticated with the given token.
// Requests are bounded by timeout; a zero timeout defaults to 10 seconds.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(token).
		SetTimeout(timeout)
	return &Client{http: c}
}

type checkRequest struct {
	MD5 string `json:"md5"`
}

type checkResponse struct {
	ResponseCode    int    `json:"responseCode"`
	ResponseMessage string `json:"responseMessage"`
	ErrorCode       *int   `json:"errorCode"`
}

// CheckPayment looks up a transaction by fingerprint and returns its status
// as a raw string: "PAID" when Bakong acknowledges the transaction, "UNPAID"
// when it is not found yet, otherwise the API's own response message.
// Transport failures, timeouts and non-2xx replies are returned as errors.
func (c *Client) CheckPayment(ctx context.Context, fingerprint string) (string, error) {
	var out checkResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(checkRequest{MD5: fingerprint}).
		SetResult(&out).
		SetError(&out).
		Post(checkByMD5Path)
	if err != nil {
		return "", fmt.Errorf("bakong request failed: %w", err)
	}
	if !resp.IsSuccess() {
		return "", fmt.Errorf("bakong returned status %d: %s", resp.StatusCode(), out.ResponseMessage)
	}

	if out.ResponseCode == 0 {
		return "PAID", nil
	}
	if out.ErrorCode != nil && *out.ErrorCode == errorCodeNotFound {
		return "UNPAID", nil
	}
	return out.ResponseMessage, nil
}

// Close releases the underlying HTTP client resources.
func (c *Client) Close() error {
	return c.http.Close()
}
