package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"matatu-feedback/metrics"
	"matatu-feedback/models"

	"github.com/apex/log"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// IncidentPageSize bounds GetHighPriorityIncidents
const IncidentPageSize = 20

// ScoreFunc scores an incident from its category and the number of
// incidents already on record for the vehicle
type ScoreFunc func(category string, priorIncidents int) int

const reportColumns = `id, user_id, matatu_id, report_type, category, rating, comment, evidence, priority, created_at`

// CreateReport writes the report and its performance log row in one
// transaction. Incidents are scored inside the transaction so the prior
// count and the insert see the same data. A failed performance log insert
// is rolled back to a savepoint and the report is still committed.
func (d *Database) CreateReport(ctx context.Context, in models.ReportInput, score ScoreFunc) (*models.CreatedReport, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	report := models.Report{
		ID:         uuid.NewString(),
		UserID:     in.UserID,
		MatatuID:   in.MatatuID,
		ReportType: in.ReportType,
		Category:   in.Category,
		Rating:     in.Rating,
		Comment:    in.Comment,
		Evidence:   in.Evidence,
		Priority:   in.Priority,
		CreatedAt:  time.Now().UTC().Truncate(time.Second),
	}
	created := &models.CreatedReport{}

	if report.ReportType == models.ReportTypeIncident {
		var prior int
		err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM feedback_reports WHERE matatu_id = ? AND report_type = 'INCIDENT'",
			report.MatatuID).Scan(&prior)
		if err != nil {
			return nil, fmt.Errorf("failed to count prior incidents: %w", err)
		}
		created.PriorIncidents = prior
		if score != nil {
			s := score(report.CategoryText(), prior)
			created.PriorityScore = &s
		}
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO feedback_reports ("+reportColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		report.ID, report.UserID, report.MatatuID, report.ReportType, report.Category,
		report.Rating, report.Comment, report.Evidence, report.Priority, report.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert report: %w", err)
	}

	d.writePerformanceLog(ctx, tx, &report, created.PriorityScore)

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit report: %w", err)
	}

	created.Report = report
	return created, nil
}

func (d *Database) writePerformanceLog(ctx context.Context, tx *sql.Tx, report *models.Report, score *int) {
	if _, err := tx.ExecContext(ctx, "SAVEPOINT perf_log"); err != nil {
		metrics.SecondaryWriteFailuresTotal.Inc()
		log.WithError(err).WithField("report_id", report.ID).Warn("secondary write failed")
		return
	}

	_, err := tx.ExecContext(ctx,
		"INSERT INTO performance_logs (report_id, matatu_id, report_type, rating, priority_score, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		report.ID, report.MatatuID, report.ReportType, report.Rating, score, report.CreatedAt)
	if err == nil {
		return
	}

	metrics.SecondaryWriteFailuresTotal.Inc()
	log.WithError(err).WithField("report_id", report.ID).Warn("secondary write failed")
	if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT perf_log"); rbErr != nil {
		log.WithError(rbErr).WithField("report_id", report.ID).Warn("failed to roll back to savepoint")
	}
}

// GetReport returns one report by id
func (d *Database) GetReport(ctx context.Context, id string) (*models.Report, error) {
	row := d.db.QueryRowContext(ctx, "SELECT "+reportColumns+" FROM feedback_reports WHERE id = ?", id)
	report, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report %s: %w", id, err)
	}
	return report, nil
}

// DeleteReport hard deletes a report. Performance log rows are kept.
func (d *Database) DeleteReport(ctx context.Context, id string) error {
	result, err := d.db.ExecContext(ctx, "DELETE FROM feedback_reports WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete report %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListRecentReports returns the newest reports first
func (d *Database) ListRecentReports(ctx context.Context, limit int) ([]models.Report, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT "+reportColumns+" FROM feedback_reports ORDER BY created_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent reports: %w", err)
	}
	return collectReports(rows)
}

// GetHighPriorityIncidents returns the latest incidents filed against a vehicle
func (d *Database) GetHighPriorityIncidents(ctx context.Context, matatuID string) ([]models.Report, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT "+reportColumns+" FROM feedback_reports WHERE matatu_id = ? AND report_type = 'INCIDENT' ORDER BY created_at DESC LIMIT ?",
		matatuID, IncidentPageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to query incidents: %w", err)
	}
	return collectReports(rows)
}

// GetMatatuStats aggregates the reports filed against a vehicle
func (d *Database) GetMatatuStats(ctx context.Context, matatuID string) (*models.MatatuStats, error) {
	var (
		total, general, incidents, categories sql.NullInt64
		avgRating                             sql.NullString
		lastReport                            sql.NullTime
	)

	err := d.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			SUM(CASE WHEN report_type = 'GENERAL' THEN 1 ELSE 0 END),
			SUM(CASE WHEN report_type = 'INCIDENT' THEN 1 ELSE 0 END),
			AVG(rating),
			COUNT(DISTINCT CASE WHEN report_type = 'INCIDENT' THEN category END),
			MAX(created_at)
		FROM feedback_reports
		WHERE matatu_id = ?
	`, matatuID).Scan(&total, &general, &incidents, &avgRating, &categories, &lastReport)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats for matatu %s: %w", matatuID, err)
	}

	stats := &models.MatatuStats{
		MatatuID:           matatuID,
		TotalReports:       int(total.Int64),
		GeneralReports:     int(general.Int64),
		IncidentReports:    int(incidents.Int64),
		IncidentCategories: int(categories.Int64),
	}

	if avgRating.Valid {
		avg, err := decimal.NewFromString(avgRating.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse average rating %q: %w", avgRating.String, err)
		}
		s := avg.StringFixed(2)
		stats.AverageRating = &s
	}
	if lastReport.Valid {
		t := lastReport.Time.UTC()
		stats.LastReportAt = &t
	}

	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*models.Report, error) {
	var (
		r                                   models.Report
		userID, category, comment, evidence sql.NullString
		priority                            sql.NullString
		rating                              sql.NullInt64
		reportType                          string
	)

	err := row.Scan(&r.ID, &userID, &r.MatatuID, &reportType, &category, &rating, &comment, &evidence, &priority, &r.CreatedAt)
	if err != nil {
		return nil, err
	}

	r.ReportType = models.ReportType(reportType)
	r.UserID = nullString(userID)
	r.Category = nullString(category)
	r.Comment = nullString(comment)
	r.Evidence = nullString(evidence)
	if priority.Valid {
		if p, ok := models.ParsePriority(priority.String); ok {
			r.Priority = &p
		}
	}
	if rating.Valid {
		v := int(rating.Int64)
		r.Rating = &v
	}
	r.CreatedAt = r.CreatedAt.UTC()
	return &r, nil
}

func collectReports(rows *sql.Rows) ([]models.Report, error) {
	defer rows.Close()

	reports := []models.Report{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reports: %w", err)
	}
	return reports, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
