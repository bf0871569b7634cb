package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"codeberg.org/anonchat/server/internal/identity"
)

func main() {
	// load environment
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found")
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET not set")
	}

	provider, err := identity.NewProvider(secret)
	if err != nil {
		log.Fatalf("Failed to create identity provider: %v", err)
	}

	id, err := provider.Issue()
	if err != nil {
		log.Fatalf("Failed to issue identity: %v", err)
	}

	fmt.Printf("✅ Minted anonymous identity: %s\n", id.UserID)
	fmt.Printf("\n🔑 Test Token:\n%s\n\n", id.Token)
	fmt.Printf("Export this token for testing:\nexport TEST_TOKEN=\"%s\"\n", id.Token)
}
