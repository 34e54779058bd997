package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	config "github.com/elimuhub/learning_platform/configs"
)

type accessTokenResponse struct {
	AccessToken string `json:"access_token"`
}

type payoutBatchResponse struct {
	BatchHeader struct {
		PayoutBatchID string `json:"payout_batch_id"`
		BatchStatus   string `json:"batch_status"`
		SenderBatchHeader struct {
			SenderBatchID string `json:"sender_batch_id"`
		} `json:"sender_batch_header"`
	} `json:"batch_header"`
}

// PayPalPayoutGateway pays out to a PayPal email via the Payouts API. The
// sender_batch_id is our idempotency reference; PayPal refuses a second
// batch with the same id, so retries are safe by construction.
type PayPalPayoutGateway struct {
	BaseURL string
	Client  *http.Client
}

func NewPayPalPayoutGateway() *PayPalPayoutGateway {
	return &PayPalPayoutGateway{
		BaseURL: config.ConfigOr("PAYPAL_API_BASE_URL", "https://api-m.paypal.com"),
		Client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (g *PayPalPayoutGateway) Name() string { return "paypal" }

func (g *PayPalPayoutGateway) getAccessToken() (string, error) {
	clientID := config.Config("PAYPAL_CLIENT_ID")
	clientSecret := config.Config("PAYPAL_CLIENT_SECRET")

	reqBody := strings.NewReader("grant_type=client_credentials")
	req, err := http.NewRequest("POST", fmt.Sprintf("%s/v1/oauth2/token", g.BaseURL), reqBody)
	if err != nil {
		return "", err
	}

	req.SetBasicAuth(clientID, clientSecret)
	req.Header.Add("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to get access token, status: %s", resp.Status)
	}

	var tokenResp accessTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", err
	}

	return tokenResp.AccessToken, nil
}

func (g *PayPalPayoutGateway) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	accessToken, err := g.getAccessToken()
	if err != nil {
		return nil, Transient("token", err)
	}

	amountStr := strconv.FormatFloat(float64(req.AmountMinor)/100, 'f', 2, 64)
	payload := map[string]interface{}{
		"sender_batch_header": map[string]string{
			"sender_batch_id": req.Reference,
			"email_subject":   "You have a payout",
		},
		"items": []map[string]interface{}{
			{
				"recipient_type": "EMAIL",
				"receiver":       req.Details.Email,
				"amount": map[string]string{
					"value":    amountStr,
					"currency": req.Currency,
				},
				"sender_item_id": req.Reference,
			},
		},
	}
	body, _ := json.Marshal(payload)

	httpReq, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s/v1/payments/payouts", g.BaseURL), bytes.NewBuffer(body))
	if err != nil {
		return nil, Permanent("request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", accessToken))

	resp, err := g.Client.Do(httpReq)
	if err != nil {
		return nil, Transient("network", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, Transient(strconv.Itoa(resp.StatusCode), fmt.Errorf("paypal payouts API returned %d: %s", resp.StatusCode, string(respBody)))
	}
	if resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, Permanent(strconv.Itoa(resp.StatusCode), fmt.Errorf("failed to create payout: %s", string(respBody)))
	}

	var batch payoutBatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
		return nil, Transient("unmarshal", err)
	}

	return &TransferResult{
		Reference:   req.Reference,
		ProviderRef: batch.BatchHeader.PayoutBatchID,
	}, nil
}

func (g *PayPalPayoutGateway) LookupTransfer(ctx context.Context, reference string) (*TransferResult, error) {
	accessToken, err := g.getAccessToken()
	if err != nil {
		return nil, Transient("token", err)
	}

	url := fmt.Sprintf("%s/v1/payments/payouts?sender_batch_id=%s", g.BaseURL, reference)
	httpReq, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, Permanent("request", err)
	}
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", accessToken))

	resp, err := g.Client.Do(httpReq)
	if err != nil {
		return nil, Transient("network", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrTransferNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, Transient(strconv.Itoa(resp.StatusCode), fmt.Errorf("paypal payouts lookup returned %d", resp.StatusCode))
	}

	var batch payoutBatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
		return nil, Transient("unmarshal", err)
	}
	if batch.BatchHeader.PayoutBatchID == "" {
		return nil, ErrTransferNotFound
	}

	return &TransferResult{
		Reference:   reference,
		ProviderRef: batch.BatchHeader.PayoutBatchID,
	}, nil
}
