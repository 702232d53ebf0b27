package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"voxa/backend/pkg/logger"
)

// Repository handles all Neo4j database operations
type Repository struct {
	driver neo4j.DriverWithContext
	logger *zap.Logger
}

// NewRepository creates a new graph repository
func NewRepository(driver neo4j.DriverWithContext) *Repository {
	return &Repository{
		driver: driver,
		logger: logger.Get(),
	}
}

// Close closes the Neo4j driver connection
func (r *Repository) Close() error {
	return r.driver.Close(context.Background())
}

// LogUtterance records one processed voice exchange: who spoke, what was
// recognized, and what the agent replied. Linked per guild and per speaker so
// a call's history can be walked later.
func (r *Repository) LogUtterance(ctx context.Context, guildID, speakerID, label, transcript, reply string) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	now := time.Now().UTC().Format(time.RFC3339)

	query := `
		MERGE (g:Guild {id: $guildID})
		MERGE (u:User {id: $speakerID})
		SET u.label = $label

		CREATE (m:Utterance {
			id: $utteranceID,
			transcript: $transcript,
			reply: $reply,
			at: datetime($now)
		})

		MERGE (u)-[:SPOKE]->(m)
		MERGE (m)-[:IN_GUILD]->(g)
	`

	_, err := session.Run(ctx, query, map[string]interface{}{
		"guildID":     guildID,
		"speakerID":   speakerID,
		"label":       label,
		"utteranceID": uuid.New().String(),
		"transcript":  transcript,
		"reply":       reply,
		"now":         now,
	})
	if err != nil {
		return fmt.Errorf("failed to log utterance: %w", err)
	}

	return nil
}

// RecentUtterances returns the latest recorded exchanges for a guild, newest
// first.
func (r *Repository) RecentUtterances(ctx context.Context, guildID string, limit int) ([]Utterance, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	if limit < 1 {
		limit = 20
	}

	query := `
		MATCH (u:User)-[:SPOKE]->(m:Utterance)-[:IN_GUILD]->(g:Guild {id: $guildID})
		RETURN m.id as id, u.id as speaker_id, u.label as label,
		       m.transcript as transcript, m.reply as reply, m.at as at
		ORDER BY m.at DESC
		LIMIT $limit
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"guildID": guildID,
		"limit":   limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query utterances: %w", err)
	}

	var utterances []Utterance
	for result.Next(ctx) {
		record := result.Record()
		u := Utterance{
			ID:         stringValue(record, "id"),
			SpeakerID:  stringValue(record, "speaker_id"),
			Label:      stringValue(record, "label"),
			Transcript: stringValue(record, "transcript"),
			Reply:      stringValue(record, "reply"),
		}
		if raw, ok := record.Get("at"); ok {
			if ts, ok := raw.(time.Time); ok {
				u.At = ts
			}
		}
		utterances = append(utterances, u)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read utterances: %w", err)
	}

	return utterances, nil
}

func stringValue(record *neo4j.Record, key string) string {
	raw, ok := record.Get(key)
	if !ok || raw == nil {
		return ""
	}
	s, _ := raw.(string)
	return s
}
