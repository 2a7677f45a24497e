package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"portfolio/internal/config"
	"portfolio/internal/domain"
	"portfolio/internal/storage"
)

func main() {
	source := flag.String("file", "", "JSON snapshot to import (defaults to DATA_FILE)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if !cfg.Database.IsConfigured() {
		log.Fatal("DATABASE_URL must be set: import copies a JSON snapshot into the relational store")
	}

	data, err := readSnapshot(*source, cfg.Storage.DataFile)
	if err != nil {
		log.Fatalf("Failed to read snapshot: %v", err)
	}

	backend, err := storage.Open(cfg)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	gw := storage.NewGateway(backend, &cfg.Storage)
	defer gw.Close()

	// Existing rows are kept; only missing keys are inserted
	if err := gw.Import(context.Background(), data); err != nil {
		log.Fatalf("Import failed: %v", err)
	}

	fmt.Printf("Imported %d projects, %d skills, %d experiences, %d testimonials, %d messages, %d appointments, %d subscribers, %d stats days\n",
		len(data.Projects), len(data.Skills), len(data.Experiences), len(data.Testimonials),
		len(data.Messages), len(data.Appointments), len(data.Subscribers)+len(data.PendingSubscribers), len(data.DailyStats))
}

// readSnapshot loads either an explicit snapshot file or the file backend's
// own document
func readSnapshot(source, dataFile string) (*domain.SiteData, error) {
	if source == "" {
		fb, err := storage.NewFileBackend(dataFile)
		if err != nil {
			return nil, err
		}
		return fb.Load(context.Background())
	}

	raw, err := os.ReadFile(source)
	if err != nil {
		return nil, err
	}
	var data domain.SiteData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("invalid snapshot: %w", err)
	}
	return &data, nil
}
