package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"portfolio/internal/config"
	"portfolio/internal/services"
	"portfolio/internal/storage"
)

func main() {
	password := flag.String("password", os.Getenv("NEW_ADMIN_PASSWORD"), "new admin password")
	current := flag.String("current", "", "current admin password, required with -force")
	force := flag.Bool("force", false, "replace an existing credential")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *password == "" {
		log.Fatal("A new password is required: pass -password or set NEW_ADMIN_PASSWORD")
	}

	backend, err := storage.Open(cfg)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	gw := storage.NewGateway(backend, &cfg.Storage)
	defer gw.Close()

	// The fallback password is not accepted here; rotation needs the stored one
	creds := services.NewCredentialManager(gw, "")
	ctx := context.Background()

	set, err := creds.IsSet(ctx)
	if err != nil {
		log.Fatalf("Failed to read admin credential: %v", err)
	}

	switch {
	case !set:
		err = creds.Set(ctx, *password)
	case !*force:
		fmt.Println("An admin password is already set. Use -force with -current to replace it.")
		return
	default:
		err = creds.Rotate(ctx, *current, *password)
	}
	if err != nil {
		log.Fatalf("Failed to set admin password: %v", err)
	}

	fmt.Println("Admin password stored. ADMIN_PASSWORD is no longer accepted.")
}
