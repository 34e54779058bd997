package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	config "github.com/elimuhub/learning_platform/configs"
	"github.com/elimuhub/learning_platform/models"
	"github.com/google/uuid"
)

// GenerateSettlementReceipt renders a PDF receipt for a completed payout
// and stores its URL on the withdrawal. Called in a goroutine after
// settlement; failures are logged, never propagated, since the settlement
// itself already stands.
func GenerateSettlementReceipt(store WithdrawalStore, req *models.WithdrawalRequest, providerRef string) {
	htmlData, err := generateReceiptHTML(req, providerRef)
	if err != nil {
		log.Printf("🔥 Failed to generate receipt HTML for %s: %v", req.ID, err)
		return
	}

	pdfBytes, err := generatePDFFromHTML(htmlData)
	if err != nil {
		log.Printf("🔥 Failed to generate receipt PDF for %s: %v", req.ID, err)
		return
	}

	uploadURL, err := uploadReceipt(pdfBytes, req.ID.String())
	if err != nil {
		log.Printf("🔥 Failed to upload receipt for %s: %v", req.ID, err)
		return
	}

	if err := store.SetReceiptURL(req.ID, uploadURL); err != nil {
		log.Printf("🔥 Failed to save receipt URL for %s: %v", req.ID, err)
		return
	}
	log.Printf("✅ Generated settlement receipt for withdrawal %s.", req.ID)
}

func generateReceiptHTML(req *models.WithdrawalRequest, providerRef string) (string, error) {
	tmpl, err := template.ParseFiles("templates/receipt.html")
	if err != nil {
		return "", err
	}

	data := struct {
		RequestID   string
		Amount      string
		Currency    string
		Method      string
		ProviderRef string
		SettledAt   string
	}{
		RequestID:   req.ID.String(),
		Amount:      req.Amount.StringFixed(2),
		Currency:    req.Currency,
		Method:      string(req.PayoutMethod),
		ProviderRef: providerRef,
		SettledAt:   time.Now().Format("January 2, 2006 15:04"),
	}

	var renderedHTML bytes.Buffer
	if err := tmpl.Execute(&renderedHTML, data); err != nil {
		return "", err
	}
	return renderedHTML.String(), nil
}

func generatePDFFromHTML(htmlContent string) ([]byte, error) {
	ctx, cancel := chromedp.NewContext(context.Background())
	defer cancel()

	var pdfBuffer []byte
	err := chromedp.Run(ctx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, htmlContent).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			pdf, _, err := page.PrintToPDF().WithPrintBackground(true).Do(ctx)
			if err != nil {
				return err
			}
			pdfBuffer = pdf
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}
	return pdfBuffer, nil
}

func uploadReceipt(fileBytes []byte, withdrawalID string) (string, error) {
	cld, err := cloudinary.NewFromURL(config.Config("CLOUDINARY_URL"))
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	uploadParams := uploader.UploadParams{
		PublicID:     fmt.Sprintf("receipts/%s_%s", withdrawalID, uuid.New().String()),
		Folder:       "settlement_receipts",
		ResourceType: "raw",
	}

	uploadResult, err := cld.Upload.Upload(ctx, bytes.NewReader(fileBytes), uploadParams)
	if err != nil {
		return "", err
	}

	return uploadResult.SecureURL, nil
}
