package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	config "github.com/elimuhub/learning_platform/configs"
)

const kcbFundsTransferBaseURL = "https://api.buni.kcbgroup.com/fundstransfer/api/v1.0.0"

type fundsTransferRequest struct {
	CompanyCode       string `json:"companyCode"`
	TransactionType   string `json:"transactionType"`
	DebitAccount      string `json:"debitAccountNumber"`
	CreditAccount     string `json:"creditAccountNumber"`
	BeneficiaryBank   string `json:"beneficiaryBankCode"`
	BeneficiaryName   string `json:"beneficiaryName"`
	Amount            string `json:"amount"`
	Currency          string `json:"currency"`
	TransactionRefID  string `json:"transactionReference"`
	Narration         string `json:"narration"`
}

type fundsTransferResponse struct {
	Header struct {
		StatusCode        string `json:"statusCode"`
		StatusDescription string `json:"statusDescription"`
	} `json:"header"`
	Response struct {
		TransactionID       string `json:"transactionID"`
		ResponseCode        string `json:"responseCode"`
		ResponseDescription string `json:"responseDescription"`
	} `json:"response"`
}

// BankTransferGateway settles payouts over the KCB funds transfer API. The
// rail has no native idempotency key, so Transfer pre-flights a lookup on
// the reference and returns the existing transaction when one is found.
type BankTransferGateway struct {
	BaseURL string
	Client  *http.Client
	TokenFn func() (string, error)
}

func NewBankTransferGateway() *BankTransferGateway {
	return &BankTransferGateway{
		BaseURL: config.ConfigOr("KCB_FT_BASE_URL", kcbFundsTransferBaseURL),
		Client:  &http.Client{Timeout: 15 * time.Second},
		TokenFn: GetKcbAccessToken,
	}
}

func (g *BankTransferGateway) Name() string { return "bank_transfer" }

func (g *BankTransferGateway) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	// Pre-flight existence check: a retried dispatch must not move money twice.
	existing, err := g.LookupTransfer(ctx, req.Reference)
	if err == nil {
		log.Printf("Bank transfer %s already executed, returning existing transaction", req.Reference)
		return existing, nil
	}
	if err != ErrTransferNotFound {
		return nil, err
	}

	accessToken, err := g.TokenFn()
	if err != nil {
		return nil, Transient("token", fmt.Errorf("failed to get KCB access token: %w", err))
	}

	amountStr := strconv.FormatFloat(float64(req.AmountMinor)/100, 'f', 2, 64)
	payload := fundsTransferRequest{
		CompanyCode:      config.Config("KCB_COMPANY_CODE"),
		TransactionType:  "EFT",
		DebitAccount:     config.Config("KCB_SETTLEMENT_ACCOUNT"),
		CreditAccount:    req.Details.BankAccount,
		BeneficiaryBank:  req.Details.BankCode,
		BeneficiaryName:  req.Details.BankName,
		Amount:           amountStr,
		Currency:         req.Currency,
		TransactionRefID: req.Reference,
		Narration:        "Instructor payout",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, Permanent("marshal", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", g.BaseURL+"/transfer", bytes.NewBuffer(body))
	if err != nil {
		return nil, Permanent("request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := g.Client.Do(httpReq)
	if err != nil {
		return nil, Transient("network", fmt.Errorf("failed to send funds transfer request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Transient("read", err)
	}

	if resp.StatusCode >= 500 {
		log.Printf("KCB funds transfer API error: %s", string(respBody))
		return nil, Transient(strconv.Itoa(resp.StatusCode), fmt.Errorf("funds transfer API returned status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		log.Printf("KCB funds transfer API error: %s", string(respBody))
		return nil, Permanent(strconv.Itoa(resp.StatusCode), fmt.Errorf("funds transfer API returned status %d", resp.StatusCode))
	}

	var ftResp fundsTransferResponse
	if err := json.Unmarshal(respBody, &ftResp); err != nil {
		return nil, Transient("unmarshal", err)
	}

	if ftResp.Response.ResponseCode != "0" {
		return nil, Permanent(ftResp.Response.ResponseCode, fmt.Errorf("funds transfer rejected: %s", ftResp.Response.ResponseDescription))
	}

	log.Println("✅ Bank transfer accepted for reference:", req.Reference)
	return &TransferResult{
		Reference:   req.Reference,
		ProviderRef: ftResp.Response.TransactionID,
	}, nil
}

func (g *BankTransferGateway) LookupTransfer(ctx context.Context, reference string) (*TransferResult, error) {
	accessToken, err := g.TokenFn()
	if err != nil {
		return nil, Transient("token", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "GET", g.BaseURL+"/transfer/"+reference, nil)
	if err != nil {
		return nil, Permanent("request", err)
	}
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
		return nil, Transient(strconv.Itoa(resp.StatusCode), fmt.Errorf("funds transfer status API returned %d", resp.StatusCode))
	}

	var ftResp fundsTransferResponse
	if err := json.NewDecoder(resp.Body).Decode(&ftResp); err != nil {
		return nil, Transient("unmarshal", err)
	}
	if ftResp.Response.ResponseCode != "0" {
		return nil, ErrTransferNotFound
	}

	return &TransferResult{
		Reference:   reference,
		ProviderRef: ftResp.Response.TransactionID,
	}, nil
}
