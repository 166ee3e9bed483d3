// Command validate smoke-checks a running API process: health, tier reads
// and the marketplace browse endpoint. It makes no writes.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"
)

func main() {
	var baseURL string
	flag.StringVar(&baseURL, "url", "http://localhost:8081", "Base URL for API validation")
	flag.Parse()

	log.Printf("Starting API validation against: %s", baseURL)

	client := &http.Client{Timeout: 10 * time.Second}
	checks := []struct {
		name string
		path string
	}{
		{"health", "/health"},
		{"tiers", "/api/tiers"},
		{"listings", "/api/listings"},
		{"metrics", "/metrics"},
	}

	failed := 0
	for _, check := range checks {
		if err := expectOK(client, baseURL+check.path); err != nil {
			log.Printf("FAIL %-10s %v", check.name, err)
			failed++
			continue
		}
		log.Printf("OK   %-10s %s", check.name, check.path)
	}

	if failed > 0 {
		log.Fatalf("Validation failed: %d of %d checks", failed, len(checks))
	}
	log.Println("Validation passed")
}

func expectOK(client *http.Client, url string) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct == "application/json" {
		var body interface{}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return fmt.Errorf("invalid JSON body: %w", err)
		}
	}
	return nil
}
