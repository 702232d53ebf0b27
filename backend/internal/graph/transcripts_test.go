package graph

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

func createTestDriver() (neo4j.DriverWithContext, error) {
	uri := os.Getenv("NEO4J_URI")
	if uri == "" {
		uri = "bolt://localhost:7687"
	}
	user := os.Getenv("NEO4J_USER")
	if user == "" {
		user = "neo4j"
	}
	return neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, os.Getenv("NEO4J_PASSWORD"), ""))
}

// TestRepository_LogUtterance requires a running Neo4j instance
// Set NEO4J_URI, NEO4J_USER, NEO4J_PASSWORD environment variables
func TestRepository_LogUtterance(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	driver, err := createTestDriver()
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}
	defer driver.Close(ctx)

	repo := NewRepository(driver)
	guildID := "test-guild-" + time.Now().Format("20060102150405")

	// Clean up
	defer func() {
		session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
		defer session.Close(ctx)
		_, _ = session.Run(ctx,
			"MATCH (g:Guild {id: $id}) OPTIONAL MATCH (m:Utterance)-[:IN_GUILD]->(g) DETACH DELETE m, g",
			map[string]interface{}{"id": guildID})
	}()

	for i := 0; i < 3; i++ {
		err := repo.LogUtterance(ctx, guildID, "test-user", "Tester",
			fmt.Sprintf("utterance %d", i), fmt.Sprintf("reply %d", i))
		if err != nil {
			t.Fatalf("LogUtterance failed: %v", err)
		}
	}

	utterances, err := repo.RecentUtterances(ctx, guildID, 10)
	if err != nil {
		t.Fatalf("RecentUtterances failed: %v", err)
	}
	if len(utterances) != 3 {
		t.Fatalf("Expected 3 utterances, got %d", len(utterances))
	}
	if utterances[0].Label != "Tester" {
		t.Errorf("Expected label 'Tester', got %q", utterances[0].Label)
	}
	if utterances[0].Reply != "reply 2" {
		t.Errorf("Expected newest reply first, got %q", utterances[0].Reply)
	}
}
