package attendance

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewRepository(sqlx.NewDb(db, "postgres")), mock
}

var historyColumns = []string{
	"id", "workflow_id", "session_id", "class_id", "session_date", "operator", "note",
	"total", "present", "absent", "unmarked", "faces_detected", "matches_found", "confirmed_at",
}

func TestSaveConfirmedAssignsID(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO attendance_sessions")).
		WithArgs(sqlmock.AnyArg(), "wf-1", "sess-1", "10-A", "2026-03-02", "teacher-1", "period 1",
			3, 2, 1, 0, 4, 2, testNow).
		WillReturnResult(sqlmock.NewResult(1, 1))

	rec, err := repo.SaveConfirmed(context.Background(), HistoryRecord{
		WorkflowID: "wf-1", SessionID: "sess-1", ClassID: "10-A", SessionDate: "2026-03-02",
		Operator: "teacher-1", Note: "period 1",
		Total: 3, Present: 2, Absent: 1, FacesDetected: 4, MatchesFound: 2,
		ConfirmedAt: testNow,
	})

	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveConfirmedPropagatesErrors(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec("INSERT INTO attendance_sessions").WillReturnError(errors.New("disk full"))

	_, err := repo.SaveConfirmed(context.Background(), HistoryRecord{WorkflowID: "wf-1"})

	assert.EqualError(t, err, "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListConfirmedFiltersAndPaginates(t *testing.T) {
	repo, mock := newMockRepo(t)
	rows := sqlmock.NewRows(historyColumns).
		AddRow("h1", "wf-1", "sess-1", "10-A", "2026-03-02", "teacher-1", "", 3, 2, 1, 0, 4, 2, testNow)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE class_id = $1 AND operator = $2 ORDER BY confirmed_at DESC LIMIT $3 OFFSET $4")).
		WithArgs("10-A", "teacher-1", 10, 20).
		WillReturnRows(rows)

	records, err := repo.ListConfirmed(context.Background(), HistoryFilter{ClassID: "10-A", Operator: "teacher-1", Limit: 10, Offset: 20})

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "sess-1", records[0].SessionID)
	assert.Equal(t, 2, records[0].Present)
	assert.True(t, testNow.Equal(records[0].ConfirmedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListConfirmedDefaultLimit(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance_sessions ORDER BY confirmed_at DESC LIMIT $1 OFFSET $2")).
		WithArgs(50, 0).
		WillReturnRows(sqlmock.NewRows(historyColumns))

	records, err := repo.ListConfirmed(context.Background(), HistoryFilter{})

	require.NoError(t, err)
	assert.Empty(t, records)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateCreatesTable(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS attendance_sessions")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
