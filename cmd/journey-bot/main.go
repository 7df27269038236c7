package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ad/go-onboarding-journey/internal/client"
	"github.com/ad/go-onboarding-journey/internal/config"
	"github.com/ad/go-onboarding-journey/internal/handlers"
	"github.com/ad/go-onboarding-journey/internal/journey"
	"github.com/ad/go-onboarding-journey/internal/services"
	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	_ "github.com/joho/godotenv/autoload"
)

func main() {
	cfg, err := config.LoadBot()
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	httpClient := &http.Client{
		Timeout: 30 * time.Second,
	}

	b, err := bot.New(cfg.Token, bot.WithHTTPClient(15*time.Second, httpClient))
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	// Retry getMe with shorter timeout
	var botInfo *tgmodels.User
	for i := 0; i < 3; i++ {
		log.Printf("Attempting to connect to Telegram API (attempt %d/3)...", i+1)
		getMeCtx, getMeCancel := context.WithTimeout(ctx, 10*time.Second)
		botInfo, err = b.GetMe(getMeCtx)
		getMeCancel()
		if err == nil {
			break
		}
		log.Printf("Failed to get bot info (attempt %d/3): %v", i+1, err)
		if i < 2 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		log.Fatalf("Failed to get bot info after 3 attempts: %v", err)
	}

	api := client.New(cfg.APIURL, client.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}))
	registry := journey.NewRegistry(api, cfg.IdleTTL, journey.WithTimeout(cfg.RequestTimeout))
	go registry.Run(ctx, cfg.IdleTTL/2)

	errorManager := services.NewErrorManager(b, cfg.AdminID)
	msgManager := services.NewMessageManager(b, errorManager)
	handler := handlers.NewBotHandler(registry, msgManager, errorManager, cfg.StudentID)

	b.RegisterHandlerMatchFunc(func(update *tgmodels.Update) bool {
		return true
	}, handler.HandleUpdate, logMiddleware)

	log.Printf("Bot @%s started. API: %s", botInfo.Username, cfg.APIURL)
	b.Start(ctx)
}

func formatUser(u tgmodels.User) string {
	name := u.FirstName
	if u.LastName != "" {
		name += " " + u.LastName
	}
	if u.Username != "" {
		name += " @" + u.Username
	}
	return fmt.Sprintf("%s [%d]", name, u.ID)
}

func logMiddleware(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *tgmodels.Update) {
		if update.Message != nil && update.Message.From != nil {
			log.Printf("[MSG] from=%s text=%q", formatUser(*update.Message.From), update.Message.Text)
		}
		if update.CallbackQuery != nil {
			log.Printf("[CALLBACK] from=%s data=%q", formatUser(update.CallbackQuery.From), update.CallbackQuery.Data)
		}
		next(ctx, b, update)
	}
}
