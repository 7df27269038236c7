package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ad/go-onboarding-journey/internal/config"
	"github.com/ad/go-onboarding-journey/internal/db"
	"github.com/ad/go-onboarding-journey/internal/handlers"
	"github.com/ad/go-onboarding-journey/internal/models"
	"github.com/ad/go-onboarding-journey/internal/services"
	_ "github.com/joho/godotenv/autoload"
	_ "modernc.org/sqlite"
)

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatal(err)
	}

	sqlDB, err := sql.Open("sqlite", cfg.DBPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer sqlDB.Close()

	if err := db.InitSchema(sqlDB); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	dbQueue := db.NewQueue(sqlDB)
	defer dbQueue.Close()

	progressService := services.NewProgressService(db.NewStepRepository(dbQueue), db.NewProgressRepository(dbQueue))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.ProgramFile != "" {
		if err := loadProgram(ctx, progressService, cfg.ProgramFile); err != nil {
			log.Fatalf("Failed to load program: %v", err)
		}
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handlers.NewAPIHandler(progressService, cfg.DefaultStudentID, cfg.RequestTimeout).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("Onboarding API listening on %s, DB: %s", cfg.ListenAddr, cfg.DBPath)
	if err := run(ctx, srv); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Printf("Onboarding API stopped")
}

func run(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loadProgram(ctx context.Context, svc *services.ProgressService, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var program []models.StepDefinition
	if err := json.Unmarshal(data, &program); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return svc.LoadProgram(ctx, program)
}
