package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"github.com/wolfman30/patient-portal/internal/audit"
	"github.com/wolfman30/patient-portal/pkg/logging"
)

// OpenAuditLog connects the appointment audit trail. An empty URL disables it
// and returns a nil log, which records nothing.
func OpenAuditLog(ctx context.Context, databaseURL string, logger *logging.Logger) (*audit.Log, *sql.DB, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, nil, nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap: open audit db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("bootstrap: ping audit db: %w", err)
	}
	logger.Info("appointment audit trail enabled")
	return audit.NewLog(db), db, nil
}
