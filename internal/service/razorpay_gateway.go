package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// RazorpayGateway talks to the Razorpay Orders API and checks checkout signatures.
type RazorpayGateway struct {
	keyID     string
	keySecret string
	baseURL   string
	client    *http.Client
}

func NewRazorpayGateway(keyID, keySecret, baseURL string, client *http.Client) (*RazorpayGateway, error) {
	if keyID == "" || keySecret == "" {
		return nil, fmt.Errorf("razorpay key id and secret are required")
	}
	if baseURL == "" {
		baseURL = "https://api.razorpay.com/v1"
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &RazorpayGateway{
		keyID:     keyID,
		keySecret: keySecret,
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    client,
	}, nil
}

// KeyID is public and handed to the checkout widget.
func (g *RazorpayGateway) KeyID() string { return g.keyID }

type razorpayError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (g *RazorpayGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*GatewayOrder, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("invalid amount %d", amount)
	}
	if receipt == "" {
		return nil, fmt.Errorf("receipt is required")
	}

	body, err := json.Marshal(map[string]interface{}{
		"amount":   amount,
		"currency": currency,
		"receipt":  receipt,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(g.keyID, g.keySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("razorpay request failed: %w", err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("razorpay response read failed: %w", err)
	}

	if resp.StatusCode >= 300 {
		var apiErr razorpayError
		_ = json.Unmarshal(payload, &apiErr)
		log.Printf("[Razorpay] create order failed status=%d code=%s desc=%s", resp.StatusCode, apiErr.Error.Code, apiErr.Error.Description)
		return nil, fmt.Errorf("razorpay returned %d: %s", resp.StatusCode, apiErr.Error.Description)
	}

	var order GatewayOrder
	if err := json.Unmarshal(payload, &order); err != nil {
		return nil, fmt.Errorf("razorpay response decode failed: %w", err)
	}
	if order.ID == "" {
		return nil, fmt.Errorf("razorpay returned an order without id")
	}
	return &order, nil
}

// VerifySignature checks hex(HMAC-SHA256(secret, orderID|paymentID)) in constant time.
func (g *RazorpayGateway) VerifySignature(orderID, paymentID, signature string) bool {
	expected := SignPayment(g.keySecret, orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature))))
}

// SignPayment computes the checkout signature Razorpay returns to the client.
func SignPayment(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}
