package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elimuhub/learning_platform/database"
	"github.com/elimuhub/learning_platform/handlers"
	"github.com/elimuhub/learning_platform/jobs"
	"github.com/elimuhub/learning_platform/models"
	"github.com/elimuhub/learning_platform/notifications"
	"github.com/elimuhub/learning_platform/payments"
	"github.com/elimuhub/learning_platform/routes"
	"github.com/elimuhub/learning_platform/services"
	"github.com/elimuhub/learning_platform/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/robfig/cron/v3"
)

// queueNotifier fans withdrawal lifecycle events out to the reviewer feed.
type queueNotifier struct{}

func (queueNotifier) WithdrawalEvent(req *models.WithdrawalRequest, event string) {
	websocket.Publish(websocket.QueueEvent{
		Kind:      event,
		RequestID: req.ID.String(),
		Status:    string(req.Status),
		Amount:    req.Amount.StringFixed(2),
		Currency:  req.Currency,
		At:        time.Now().UTC(),
	})
}

func main() {
	database.ConnectDB()
	database.Migrate()
	database.SeedAdmin()
	notifications.InitEmailService()

	go payments.GetKcbAccessToken()

	ledgerStore := database.NewLedgerStore(database.DB)
	withdrawalStore := database.NewWithdrawalStore(database.DB)
	payoutStore := database.NewPayoutStore(database.DB)
	purchaseStore := database.NewPurchaseStore(database.DB)
	auditStore := database.NewAuditStore(database.DB)
	gatewayEventStore := database.NewGatewayEventStore(database.DB)
	userStore := database.NewUserStore(database.DB)

	gateways := map[models.PayoutMethod]payments.Gateway{
		models.MethodMpesaB2C:     payments.NewMpesaB2CGateway(),
		models.MethodBankTransfer: payments.NewBankTransferGateway(),
		models.MethodPayPal:       payments.NewPayPalPayoutGateway(),
	}

	dispatcher := services.NewDispatcher(payoutStore, ledgerStore, gateways, payments.DefaultBackoff)
	dispatcher.OnCompleted = func(item *models.PayoutQueueItem, providerRef string) {
		req, err := withdrawalStore.Get(item.WithdrawalID)
		if err != nil {
			log.Printf("🔥 Could not load withdrawal %s after settlement: %v", item.WithdrawalID, err)
			return
		}
		go services.GenerateSettlementReceipt(withdrawalStore, req, providerRef)
		if owner, err := userStore.Get(req.OwnerID); err == nil {
			go notifications.SendEmail(
				owner.FullName,
				owner.Email,
				"Your withdrawal has been paid out",
				"<p>Hi "+owner.FullName+",</p><p>Your withdrawal of "+req.Amount.StringFixed(2)+" "+req.Currency+" has been settled. Reference: "+providerRef+".</p>",
			)
		}
		websocket.Publish(websocket.QueueEvent{
			Kind:      "settlement_completed",
			RequestID: req.ID.String(),
			Status:    string(models.WithdrawalCompleted),
			Amount:    req.Amount.StringFixed(2),
			Currency:  req.Currency,
			At:        time.Now().UTC(),
		})
	}
	dispatcher.OnFailed = func(item *models.PayoutQueueItem, reason string) {
		req, err := withdrawalStore.Get(item.WithdrawalID)
		if err != nil {
			log.Printf("🔥 Could not load withdrawal %s after failure: %v", item.WithdrawalID, err)
			return
		}
		if owner, err := userStore.Get(req.OwnerID); err == nil {
			go notifications.SendEmail(
				owner.FullName,
				owner.Email,
				"Your withdrawal could not be paid out",
				"<p>Hi "+owner.FullName+",</p><p>We could not settle your withdrawal of "+req.Amount.StringFixed(2)+" "+req.Currency+" ("+reason+"). Our team will review it shortly.</p>",
			)
		}
		websocket.Publish(websocket.QueueEvent{
			Kind:      "settlement_failed",
			RequestID: req.ID.String(),
			Status:    string(models.WithdrawalFailed),
			Amount:    req.Amount.StringFixed(2),
			Currency:  req.Currency,
			At:        time.Now().UTC(),
		})
	}

	withdrawals := services.NewWithdrawalService(withdrawalStore, ledgerStore, queueNotifier{})
	purchases := services.NewPurchaseService(purchaseStore, userStore)

	handlers.Setup(withdrawals, purchases, dispatcher, auditStore, gatewayEventStore)

	reaper := jobs.NewExpiryReaper(purchaseStore)
	payoutWorker := jobs.NewPayoutWorker(dispatcher)
	reconciliation := jobs.NewReconciliationJob(dispatcher)

	c := cron.New()
	c.AddFunc("*/5 * * * *", reaper.Run)
	c.AddFunc("* * * * *", payoutWorker.Run)
	c.AddFunc("0 * * * *", reconciliation.Run)
	go c.Start()
	log.Println("✅ Cron jobs for expiry, payouts and reconciliation scheduled successfully.")

	app := fiber.New(fiber.Config{
		Prefork:           false,
		AppName:           "Elimu Payments",
		CaseSensitive:     true,
		StrictRouting:     true,
		EnablePrintRoutes: true,
		PassLocalsToViews: true,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}

			log.Printf("[ERROR] %v | Path: %s | Method: %s", err, c.Path(), c.Method())
			return c.Status(code).JSON(fiber.Map{
				"status":  "error",
				"code":    code,
				"message": err.Error(),
			})
		},
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:  "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders: "Content-Length, Authorization",
		MaxAge:        86400,
	}))

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "Africa/Nairobi",
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "success",
			"message": "Welcome to Elimu Payments API",
		})
	})

	routes.WithdrawalRoutes(app)
	routes.PurchaseRoutes(app)
	routes.AdminRoutes(app)
	routes.PaymentRoutes(app)

	go websocket.RunHub()

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down: stopping cron and draining connections...")
		<-c.Stop().Done()
		if err := app.Shutdown(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	}()

	log.Println("✅ Server is running on port 8080")
	err := app.Listen(":8080")
	if err != nil {
		log.Fatalf("🔥 Server failed to start: %v", err)
	}
}
