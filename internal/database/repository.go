package database

import (
	"context"
	"fmt"
	"time"

	"github.com/bigdegenenergy/open-cloud-ops/hermes/pkg/models"
)

// InsertRequest stores a generation request record.
func (db *DB) InsertRequest(ctx context.Context, rec *models.GenerationRecord) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO generation_requests (
			id, provider, model, client_ip,
			prompt_tokens, completion_tokens, total_tokens,
			latency_ms, status_code, error_detail, timestamp
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NULLIF($10, ''),$11)
	`, rec.ID, string(rec.Provider), rec.Model, rec.ClientIP,
		rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens,
		rec.LatencyMs, rec.StatusCode, rec.ErrorDetail, rec.Timestamp)
	if err != nil {
		return fmt.Errorf("inserting request: %w", err)
	}
	return nil
}

// GetProviderSummary aggregates ledger rows per provider between from and to.
func (db *DB) GetProviderSummary(ctx context.Context, from, to time.Time) ([]models.ProviderSummary, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT
			provider,
			COUNT(*) AS total_requests,
			COUNT(*) FILTER (WHERE status_code >= 400) AS failed_requests,
			COALESCE(SUM(total_tokens), 0) AS total_tokens,
			COALESCE(AVG(latency_ms), 0) AS avg_latency_ms
		FROM generation_requests
		WHERE timestamp >= $1 AND timestamp <= $2
		GROUP BY provider
		ORDER BY total_requests DESC
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("querying provider summary: %w", err)
	}
	defer rows.Close()

	var results []models.ProviderSummary
	for rows.Next() {
		var s models.ProviderSummary
		if err := rows.Scan(&s.Provider, &s.TotalRequests, &s.FailedCount, &s.TotalTokens, &s.AvgLatencyMs); err != nil {
			return nil, fmt.Errorf("scanning provider summary: %w", err)
		}
		results = append(results, s)
	}
	return results, rows.Err()
}
