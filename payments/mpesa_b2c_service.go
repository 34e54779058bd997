package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	config "github.com/elimuhub/learning_platform/configs"
)

const kcbB2CBaseURL = "https://api.buni.kcbgroup.com/mm/api/request/1.0.0"

type B2CSendRequest struct {
	PhoneNumber            string `json:"phoneNumber"`
	Amount                 string `json:"amount"`
	InvoiceNumber          string `json:"invoiceNumber"`
	SharedShortCode        bool   `json:"sharedShortCode"`
	OrgShortCode           string `json:"orgShortCode"`
	OrgPassKey             string `json:"orgPassKey"`
	CallbackURL            string `json:"callbackUrl"`
	TransactionDescription string `json:"transactionDescription"`
}

type B2CSendResponse struct {
	Header struct {
		StatusCode        string `json:"statusCode"`
		StatusDescription string `json:"statusDescription"`
	} `json:"header"`
	Response struct {
		OriginatorConversationID string `json:"OriginatorConversationID"`
		ConversationID           string `json:"ConversationID"`
		ResponseCode             string `json:"ResponseCode"`
		ResponseDescription      string `json:"ResponseDescription"`
	} `json:"response"`
}

var nonNumericRegex = regexp.MustCompile(`[^0-9]`)

func SanitizeMpesaNumber(phone string) (string, error) {
	sanitized := nonNumericRegex.ReplaceAllString(phone, "")

	if (strings.HasPrefix(sanitized, "07") || strings.HasPrefix(sanitized, "01")) && len(sanitized) == 10 {
		return "254" + sanitized[1:], nil
	}
	if (strings.HasPrefix(sanitized, "7") || strings.HasPrefix(sanitized, "1")) && len(sanitized) == 9 {
		return "254" + sanitized, nil
	}
	if strings.HasPrefix(sanitized, "254") && len(sanitized) == 12 {
		return sanitized, nil
	}

	return "", errors.New("invalid M-Pesa phone number format")
}

// MpesaB2CGateway sends money to a subscriber's wallet through the KCB Buni
// B2C API. The messageId header carries the idempotency reference, so a
// retried request with the same reference is deduplicated by the rail.
type MpesaB2CGateway struct {
	BaseURL string
	Client  *http.Client
	TokenFn func() (string, error)
}

func NewMpesaB2CGateway() *MpesaB2CGateway {
	return &MpesaB2CGateway{
		BaseURL: config.ConfigOr("KCB_B2C_BASE_URL", kcbB2CBaseURL),
		Client:  &http.Client{Timeout: 10 * time.Second},
		TokenFn: GetKcbAccessToken,
	}
}

func (g *MpesaB2CGateway) Name() string { return "mpesa_b2c" }

func (g *MpesaB2CGateway) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	accessToken, err := g.TokenFn()
	if err != nil {
		return nil, Transient("token", fmt.Errorf("failed to get KCB access token: %w", err))
	}

	sanitizedPhone, err := SanitizeMpesaNumber(req.Details.PhoneNumber)
	if err != nil {
		return nil, Permanent("bad_phone", err)
	}

	// The Buni API takes whole shillings; minor units are cents. A
	// fractional amount must not be rounded into a short payment.
	if req.AmountMinor%100 != 0 {
		return nil, Permanent("amount", fmt.Errorf("B2C amounts must be whole shillings, got %d cents", req.AmountMinor))
	}
	amountStr := strconv.FormatInt(req.AmountMinor/100, 10)
	callbackURL := config.Config("WEBHOOK_BASE_URL") + "/api/v1/payments/webhook/mpesa_b2c"

	payload := B2CSendRequest{
		PhoneNumber:            sanitizedPhone,
		Amount:                 amountStr,
		InvoiceNumber:          req.Reference,
		SharedShortCode:        true,
		CallbackURL:            callbackURL,
		TransactionDescription: config.Config("KCB_TRANSACTION_DESC"),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, Permanent("marshal", fmt.Errorf("failed to marshal B2C payload: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", g.BaseURL+"/sendmoney", bytes.NewBuffer(body))
	if err != nil {
		return nil, Permanent("request", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("routeCode", config.Config("KCB_ROUTE_CODE"))
	httpReq.Header.Set("operation", "SendMoney")
	httpReq.Header.Set("messageId", req.Reference)
	httpReq.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := g.Client.Do(httpReq)
	if err != nil {
		return nil, Transient("network", fmt.Errorf("failed to send B2C request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Transient("read", fmt.Errorf("failed to read B2C response body: %w", err))
	}

	if resp.StatusCode >= 500 {
		log.Printf("KCB B2C API error: %s", string(respBody))
		return nil, Transient(strconv.Itoa(resp.StatusCode), fmt.Errorf("KCB Buni API returned status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		log.Printf("KCB B2C API error: %s", string(respBody))
		return nil, Permanent(strconv.Itoa(resp.StatusCode), fmt.Errorf("KCB Buni API returned status %d", resp.StatusCode))
	}

	var b2cResponse B2CSendResponse
	if err := json.Unmarshal(respBody, &b2cResponse); err != nil {
		return nil, Transient("unmarshal", fmt.Errorf("failed to unmarshal B2C response: %w", err))
	}

	if b2cResponse.Response.ResponseCode != "0" {
		log.Printf("KCB B2C send failed: %s", b2cResponse.Response.ResponseDescription)
		return nil, Permanent(b2cResponse.Response.ResponseCode, fmt.Errorf("KCB B2C send failed: %s", b2cResponse.Response.ResponseDescription))
	}

	log.Println("✅ B2C transfer accepted for reference:", req.Reference)
	return &TransferResult{
		Reference:   req.Reference,
		ProviderRef: b2cResponse.Response.ConversationID,
	}, nil
}

type b2cStatusResponse struct {
	Response struct {
		ConversationID      string `json:"ConversationID"`
		ResponseCode        string `json:"ResponseCode"`
		ResponseDescription string `json:"ResponseDescription"`
	} `json:"response"`
}

func (g *MpesaB2CGateway) LookupTransfer(ctx context.Context, reference string) (*TransferResult, error) {
	accessToken, err := g.TokenFn()
	if err != nil {
		return nil, Transient("token", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "GET", g.BaseURL+"/transactionstatus/"+reference, nil)
	if err != nil {
		return nil, Permanent("request", err)
	}
	httpReq.Header.Set("routeCode", config.Config("KCB_ROUTE_CODE"))
	httpReq.Header.Set("operation", "TransactionStatus")
	httpReq.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := g.Client.Do(httpReq)
	if err != nil {
		return nil, Transient("network", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrTransferNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, Transient(strconv.Itoa(resp.StatusCode), fmt.Errorf("KCB status API returned %d", resp.StatusCode))
	}

	var status b2cStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, Transient("unmarshal", err)
	}
	if status.Response.ResponseCode != "0" {
		return nil, ErrTransferNotFound
	}

	return &TransferResult{
		Reference:   reference,
		ProviderRef: status.Response.ConversationID,
	}, nil
}
