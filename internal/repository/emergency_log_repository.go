package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// EmergencyLogRepository appends audit rows for emergency injections. Best
// effort: the orchestrator logs insert failures and moves on, so an audit
// outage never blocks an injection.
type EmergencyLogRepository struct {
	Conn *sql.DB
}

// Insert writes one audit entry. The request and result payloads are stored
// as JSON for later inspection.
func (r *EmergencyLogRepository) Insert(ctx context.Context, fileName, priority, strategy string, request, result any, executionMs int64) error {
	requestJSON, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("marshal audit request: %w", err)
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal audit result: %w", err)
	}

	if _, err := r.Conn.ExecContext(ctx, `
        INSERT INTO emergency_content_logs (
            file_name, priority, strategy, request_payload, result_payload, execution_time_ms
        ) VALUES ($1, $2, $3, $4, $5, $6)
    `, fileName, priority, strategy, requestJSON, resultJSON, executionMs); err != nil {
		return fmt.Errorf("insert emergency log: %w", err)
	}
	return nil
}
