package database

import (
	"context"
	"fmt"

	"github.com/apex/log"
)

// performance_logs deliberately has no foreign key: deleting a report
// leaves its analytics rows in place.
var tableDefinitions = []struct {
	name string
	ddl  string
}{
	{
		name: "feedback_reports",
		ddl: `
			CREATE TABLE IF NOT EXISTS feedback_reports (
				id CHAR(36) PRIMARY KEY,
				user_id VARCHAR(64) NULL,
				matatu_id VARCHAR(64) NOT NULL,
				report_type ENUM('GENERAL', 'INCIDENT') NOT NULL,
				category VARCHAR(255) NULL,
				rating TINYINT NULL,
				comment TEXT NULL,
				evidence TEXT NULL,
				priority ENUM('CRITICAL', 'HIGH', 'MEDIUM', 'LOW') NULL,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				INDEX idx_feedback_matatu_type (matatu_id, report_type, created_at),
				INDEX idx_feedback_created_at (created_at)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	},
	{
		name: "performance_logs",
		ddl: `
			CREATE TABLE IF NOT EXISTS performance_logs (
				id BIGINT AUTO_INCREMENT PRIMARY KEY,
				report_id CHAR(36) NOT NULL,
				matatu_id VARCHAR(64) NOT NULL,
				report_type ENUM('GENERAL', 'INCIDENT') NOT NULL,
				rating TINYINT NULL,
				priority_score TINYINT NULL,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				INDEX idx_perf_matatu (matatu_id, created_at),
				INDEX idx_perf_report (report_id)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	},
	{
		name: "channel_messages",
		ddl: `
			CREATE TABLE IF NOT EXISTS channel_messages (
				id BIGINT AUTO_INCREMENT PRIMARY KEY,
				channel VARCHAR(16) NOT NULL,
				direction VARCHAR(16) NOT NULL,
				recipient VARCHAR(32) NOT NULL,
				body TEXT NOT NULL,
				transport_id VARCHAR(64) NULL,
				is_read BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				INDEX idx_channel_recipient (recipient, created_at)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	},
}

// EnsureTables creates the service tables if they are missing. The users
// table belongs to the account service and is only read.
func (d *Database) EnsureTables(ctx context.Context) error {
	for _, table := range tableDefinitions {
		if _, err := d.db.ExecContext(ctx, table.ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", table.name, err)
		}
		log.Infof("%s table verified", table.name)
	}
	return nil
}
