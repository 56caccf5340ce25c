package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"matatu-feedback/models"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jknair0/beforeeach"
)

var (
	db   *sql.DB
	mock sqlmock.Sqlmock
)

func setUp() {
	db, mock, _ = sqlmock.New()
}

func tearDown() {
	db.Close()
}

var it = beforeeach.Create(setUp, tearDown)

func strPtr(s string) *string {
	return &s
}

func intPtr(i int) *int {
	return &i
}

func priorityPtr(p models.Priority) *models.Priority {
	return &p
}

func expectedPriority(p *models.Priority) interface{} {
	if p == nil {
		return nil
	}
	return string(*p)
}

var reportRowColumns = []string{"id", "user_id", "matatu_id", "report_type", "category", "rating", "comment", "evidence", "priority", "created_at"}

func TestCreateReport(t *testing.T) {
	it(func() {
		testCases := []struct {
			name  string
			input models.ReportInput

			prior       int
			perfLogErr  error
			commitErr   error
			insertErr   error
			expectScore *int
			expectError bool
		}{
			{
				name:  "General report",
				input: models.ReportInput{MatatuID: "KBX 123A", ReportType: models.ReportTypeGeneral, Rating: intPtr(5), Comment: strPtr("")},
			},
			{
				name:        "Incident with repeat offender",
				input:       models.ReportInput{MatatuID: "KBX 123A", ReportType: models.ReportTypeIncident, Category: strPtr("Unsafe Driving")},
				prior:       6,
				expectScore: intPtr(12),
			},
			{
				name:        "Performance log table missing",
				input:       models.ReportInput{MatatuID: "KBX 123A", ReportType: models.ReportTypeIncident, Category: strPtr("Loud Music")},
				prior:       0,
				perfLogErr:  errors.New("Error 1146: Table 'matatu.performance_logs' doesn't exist"),
				expectScore: intPtr(2),
			},
			{
				name:        "Explicit priority is stored",
				input:       models.ReportInput{MatatuID: "KBX 123A", ReportType: models.ReportTypeIncident, Category: strPtr("Loud Music"), Priority: priorityPtr(models.PriorityCritical)},
				expectScore: intPtr(2),
			},
			{
				name:        "Insert fails",
				input:       models.ReportInput{MatatuID: "KBX 123A", ReportType: models.ReportTypeGeneral, Rating: intPtr(3)},
				insertErr:   errors.New("connection lost"),
				expectError: true,
			},
			{
				name:        "Commit fails",
				input:       models.ReportInput{MatatuID: "KBX 123A", ReportType: models.ReportTypeGeneral, Rating: intPtr(3)},
				commitErr:   errors.New("deadlock"),
				expectError: true,
			},
		}

		for _, testCase := range testCases {
			setUp()
			mock.ExpectBegin()
			if testCase.input.ReportType == models.ReportTypeIncident {
				mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM feedback_reports WHERE matatu_id = (.+) AND report_type = 'INCIDENT'").
					WithArgs(testCase.input.MatatuID).
					WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(testCase.prior))
			}
			insert := mock.ExpectExec("INSERT INTO feedback_reports \\(id, user_id, matatu_id, report_type, category, rating, comment, evidence, priority, created_at\\)").
				WithArgs(sqlmock.AnyArg(), nil, testCase.input.MatatuID, string(testCase.input.ReportType),
					sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), nil, expectedPriority(testCase.input.Priority), sqlmock.AnyArg())
			if testCase.insertErr != nil {
				insert.WillReturnError(testCase.insertErr)
				mock.ExpectRollback()
			} else {
				insert.WillReturnResult(sqlmock.NewResult(1, 1))
				mock.ExpectExec("SAVEPOINT perf_log").WillReturnResult(sqlmock.NewResult(0, 0))
				perf := mock.ExpectExec("INSERT INTO performance_logs")
				if testCase.perfLogErr != nil {
					perf.WillReturnError(testCase.perfLogErr)
					mock.ExpectExec("ROLLBACK TO SAVEPOINT perf_log").WillReturnResult(sqlmock.NewResult(0, 0))
				} else {
					perf.WillReturnResult(sqlmock.NewResult(1, 1))
				}
				if testCase.commitErr != nil {
					mock.ExpectCommit().WillReturnError(testCase.commitErr)
				} else {
					mock.ExpectCommit()
				}
			}

			score := func(category string, prior int) int {
				base := map[string]int{"Unsafe Driving": 10, "Loud Music": 2}[category]
				if prior > 5 {
					base += 2
				}
				return base
			}

			created, err := New(db).CreateReport(context.Background(), testCase.input, score)
			if testCase.expectError != (err != nil) {
				t.Errorf("%s, CreateReport: expected error: %v, got error: %v", testCase.name, testCase.expectError, err)
			}
			if err == nil {
				if created.Report.ID == "" || created.Report.CreatedAt.IsZero() {
					t.Errorf("%s, CreateReport: id and timestamp must be assigned: %+v", testCase.name, created.Report)
				}
				if created.Report.CreatedAt.Location() != time.UTC {
					t.Errorf("%s, CreateReport: timestamp not in UTC", testCase.name)
				}
				if (testCase.expectScore == nil) != (created.PriorityScore == nil) ||
					(testCase.expectScore != nil && *testCase.expectScore != *created.PriorityScore) {
					t.Errorf("%s, CreateReport: expected score %v, got %v", testCase.name, testCase.expectScore, created.PriorityScore)
				}
				if (created.Report.Priority == nil) != (testCase.input.Priority == nil) ||
					(created.Report.Priority != nil && *created.Report.Priority != *testCase.input.Priority) {
					t.Errorf("%s, CreateReport: expected priority %v, got %v", testCase.name, testCase.input.Priority, created.Report.Priority)
				}
				if created.PriorIncidents != testCase.prior {
					t.Errorf("%s, CreateReport: expected prior %d, got %d", testCase.name, testCase.prior, created.PriorIncidents)
				}
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("%s, CreateReport: unmet expectations: %v", testCase.name, err)
			}
		}
	})
}

func TestGetReport(t *testing.T) {
	it(func() {
		created := time.Date(2026, 5, 1, 7, 45, 0, 0, time.UTC)
		mock.ExpectQuery("SELECT (.+) FROM feedback_reports WHERE id = (.+)").
			WithArgs("r1").
			WillReturnRows(sqlmock.NewRows(reportRowColumns).
				AddRow("r1", "u1", "KBX 123A", "INCIDENT", "Overloading", nil, "18 people", nil, "CRITICAL", created))

		r, err := New(db).GetReport(context.Background(), "r1")
		if err != nil {
			t.Fatalf("GetReport: %v", err)
		}
		if r.ReportType != models.ReportTypeIncident || r.CategoryText() != "Overloading" || r.Rating != nil || r.Evidence != nil {
			t.Errorf("unexpected report: %+v", r)
		}
		if r.Priority == nil || *r.Priority != models.PriorityCritical {
			t.Errorf("explicit priority not read back: %v", r.Priority)
		}
		if r.UserID == nil || *r.UserID != "u1" || !r.CreatedAt.Equal(created) {
			t.Errorf("unexpected report: %+v", r)
		}

		mock.ExpectQuery("SELECT (.+) FROM feedback_reports WHERE id = (.+)").
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows(reportRowColumns))
		if _, err := New(db).GetReport(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestDeleteReport(t *testing.T) {
	it(func() {
		testCases := []struct {
			name         string
			rowsAffected int64
			execErr      error
			expectErr    error
		}{
			{name: "Deleted", rowsAffected: 1},
			{name: "Missing", rowsAffected: 0, expectErr: ErrNotFound},
		}

		for _, testCase := range testCases {
			setUp()
			mock.ExpectExec("DELETE FROM feedback_reports WHERE id = (.+)").
				WithArgs("r1").
				WillReturnResult(sqlmock.NewResult(0, testCase.rowsAffected))

			err := New(db).DeleteReport(context.Background(), "r1")
			if !errors.Is(err, testCase.expectErr) {
				t.Errorf("%s, DeleteReport: expected %v, got %v", testCase.name, testCase.expectErr, err)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("%s: %v", testCase.name, err)
			}
		}
	})
}

func TestGetHighPriorityIncidents(t *testing.T) {
	it(func() {
		newer := time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)
		older := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
		mock.ExpectQuery("SELECT (.+) FROM feedback_reports WHERE matatu_id = (.+) AND report_type = 'INCIDENT' ORDER BY created_at DESC LIMIT (.+)").
			WithArgs("KBX 123A", IncidentPageSize).
			WillReturnRows(sqlmock.NewRows(reportRowColumns).
				AddRow("r2", nil, "KBX 123A", "INCIDENT", "Harassment", nil, nil, nil, nil, newer).
				AddRow("r1", nil, "KBX 123A", "INCIDENT", "Overloading", nil, nil, nil, "BOGUS", older))

		reports, err := New(db).GetHighPriorityIncidents(context.Background(), "KBX 123A")
		if err != nil {
			t.Fatalf("GetHighPriorityIncidents: %v", err)
		}
		if len(reports) != 2 || reports[0].ID != "r2" || reports[1].ID != "r1" {
			t.Errorf("unexpected reports: %+v", reports)
		}
		if len(reports) == 2 && reports[1].Priority != nil {
			t.Errorf("unknown stored priority should be dropped, got %v", *reports[1].Priority)
		}
	})
}

func TestListRecentReportsEmpty(t *testing.T) {
	it(func() {
		mock.ExpectQuery("SELECT (.+) FROM feedback_reports ORDER BY created_at DESC LIMIT (.+)").
			WithArgs(100).
			WillReturnRows(sqlmock.NewRows(reportRowColumns))

		reports, err := New(db).ListRecentReports(context.Background(), 100)
		if err != nil {
			t.Fatalf("ListRecentReports: %v", err)
		}
		if reports == nil || len(reports) != 0 {
			t.Errorf("expected an empty, non-nil slice, got %#v", reports)
		}
	})
}

func TestGetMatatuStats(t *testing.T) {
	it(func() {
		last := time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)
		columns := []string{"total", "general", "incident", "avg", "categories", "last"}

		mock.ExpectQuery("SELECT (.+) FROM feedback_reports WHERE matatu_id = (.+)").
			WithArgs("KBX 123A").
			WillReturnRows(sqlmock.NewRows(columns).AddRow(5, 3, 2, "4.3333", 2, last))

		stats, err := New(db).GetMatatuStats(context.Background(), "KBX 123A")
		if err != nil {
			t.Fatalf("GetMatatuStats: %v", err)
		}
		if stats.TotalReports != 5 || stats.GeneralReports != 3 || stats.IncidentReports != 2 || stats.IncidentCategories != 2 {
			t.Errorf("unexpected counts: %+v", stats)
		}
		if stats.AverageRating == nil || *stats.AverageRating != "4.33" {
			t.Errorf("unexpected average: %v", stats.AverageRating)
		}
		if stats.LastReportAt == nil || !stats.LastReportAt.Equal(last) {
			t.Errorf("unexpected last report: %v", stats.LastReportAt)
		}

		setUp()
		mock.ExpectQuery("SELECT (.+) FROM feedback_reports WHERE matatu_id = (.+)").
			WithArgs("EMPTY").
			WillReturnRows(sqlmock.NewRows(columns).AddRow(0, nil, nil, nil, 0, nil))

		stats, err = New(db).GetMatatuStats(context.Background(), "EMPTY")
		if err != nil {
			t.Fatalf("GetMatatuStats: %v", err)
		}
		if stats.TotalReports != 0 || stats.AverageRating != nil || stats.LastReportAt != nil {
			t.Errorf("unexpected stats for a vehicle without reports: %+v", stats)
		}
	})
}

func TestRecordMessage(t *testing.T) {
	it(func() {
		msg := models.ChannelMessage{
			Channel:     "whatsapp",
			Direction:   "outbound",
			Recipient:   "+254711000000",
			Body:        "hi",
			TransportID: "SM1",
			CreatedAt:   time.Now().UTC(),
		}
		mock.ExpectExec("INSERT INTO channel_messages").
			WithArgs("whatsapp", "outbound", "+254711000000", "hi", "SM1", false, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		if err := New(db).RecordMessage(context.Background(), msg); err != nil {
			t.Errorf("RecordMessage: %v", err)
		}
	})
}

func TestGetContactPhone(t *testing.T) {
	it(func() {
		mock.ExpectQuery("SELECT phone FROM users WHERE id = (.+)").
			WithArgs("u1").
			WillReturnRows(sqlmock.NewRows([]string{"phone"}).AddRow("0711000000"))
		phone, err := New(db).GetContactPhone(context.Background(), "u1")
		if err != nil || phone != "0711000000" {
			t.Errorf("GetContactPhone = %q, %v", phone, err)
		}

		mock.ExpectQuery("SELECT phone FROM users WHERE id = (.+)").
			WithArgs("u2").
			WillReturnRows(sqlmock.NewRows([]string{"phone"}))
		if _, err := New(db).GetContactPhone(context.Background(), "u2"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestEnsureTables(t *testing.T) {
	it(func() {
		for range tableDefinitions {
			mock.ExpectExec("CREATE TABLE IF NOT EXISTS").WillReturnResult(sqlmock.NewResult(0, 0))
		}
		if err := New(db).EnsureTables(context.Background()); err != nil {
			t.Errorf("EnsureTables: %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Error(err)
		}
	})
}
