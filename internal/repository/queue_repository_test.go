package repository

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/model"
)

var queueCols = []string{
	"id", "campaign_id", "prospect_id", "provider_id", "message_type",
	"rendered_content", "scheduled_for", "status", "last_error", "retry_count",
	"created_at", "updated_at",
}

func newQueueRepo(t *testing.T) (*QueueRepository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &QueueRepository{DB: db}, mock
}

func TestCreateSurfacesUniqueViolation(t *testing.T) {
	repo, mock := newQueueRepo(t)
	mock.ExpectQuery("INSERT INTO send_queue").
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(&model.QueueEntry{
		CampaignID: 1, ProspectID: 10,
		ProviderID:  "ACoAASara00000000001",
		MessageType: model.MessageTypeConnectionRequest,
	})

	require.Error(t, err)
	assert.True(t, appErrors.IsUniqueViolation(err),
		"callers must be able to recognize the already-admitted case")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAssignsID(t *testing.T) {
	repo, mock := newQueueRepo(t)
	mock.ExpectQuery("INSERT INTO send_queue").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	e := &model.QueueEntry{
		CampaignID: 1, ProspectID: 10,
		ProviderID:  "ACoAASara00000000001",
		MessageType: model.MessageTypeConnectionRequest,
	}
	require.NoError(t, repo.Create(e))

	assert.Equal(t, 7, e.ID)
	assert.Equal(t, model.QueueStatusPending, e.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListDue(t *testing.T) {
	repo, mock := newQueueRepo(t)
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM send_queue").
		WithArgs(now, 50).
		WillReturnRows(sqlmock.NewRows(queueCols).
			AddRow(1, 1, 10, "ACoAASara00000000001", "connection_request",
				"Hi Sara", now.Add(-time.Hour), "pending", nil, 0, now, now).
			AddRow(2, 1, 11, "ACoAATom000000000001", "connection_request",
				"Hi Tom", now.Add(-20*time.Minute), "pending", nil, 0, now, now))

	entries, err := repo.ListDue(now, 50)
	require.NoError(t, err)

	require.Len(t, entries, 2)
	assert.Equal(t, 1, entries[0].ID)
	assert.Equal(t, model.QueueStatusPending, entries[0].Status)
	assert.Nil(t, entries[0].LastError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkFailedIncrementsRetryCount(t *testing.T) {
	repo, mock := newQueueRepo(t)
	mock.ExpectExec("UPDATE send_queue SET status='failed'").
		WithArgs("format mismatch: expected opaque id, got vanity slug", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkFailed(1, "format mismatch: expected opaque id, got vanity slug"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimPendingWinsOnPendingEntry(t *testing.T) {
	repo, mock := newQueueRepo(t)
	mock.ExpectExec("UPDATE send_queue SET status='sent'").
		WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	claimed, err := repo.ClaimPending(1)
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimPendingLosesWhenAlreadyClaimed(t *testing.T) {
	repo, mock := newQueueRepo(t)
	mock.ExpectExec("UPDATE send_queue SET status='sent'").
		WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 0))

	claimed, err := repo.ClaimPending(1)
	require.NoError(t, err)
	assert.False(t, claimed, "a non-pending entry must not be claimable")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequeueSurfacesUniqueViolation(t *testing.T) {
	repo, mock := newQueueRepo(t)
	mock.ExpectExec("UPDATE send_queue").
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Requeue(1, "ACoAASara00000000001", time.Now())
	require.Error(t, err)
	assert.True(t, appErrors.IsUniqueViolation(err),
		"recovery must be able to recognize a reclaimed slot")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkSkipped(t *testing.T) {
	repo, mock := newQueueRepo(t)
	mock.ExpectExec("UPDATE send_queue SET status='skipped'").
		WithArgs("slot already claimed", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkSkipped(1, "slot already claimed"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLastScheduledEmptySchedule(t *testing.T) {
	repo, mock := newQueueRepo(t)
	mock.ExpectQuery("SELECT COALESCE").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(time.Unix(0, 0).UTC()))

	last, err := repo.LastScheduled(1)
	require.NoError(t, err)
	assert.True(t, last.IsZero(), "empty schedule reads as the zero time")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatusCountsFillsZeroes(t *testing.T) {
	repo, mock := newQueueRepo(t)
	mock.ExpectQuery("SELECT status, COUNT").
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("pending", 4).
			AddRow("sent", 2))

	counts, err := repo.StatusCounts(3)
	require.NoError(t, err)

	assert.Equal(t, 4, counts["pending"])
	assert.Equal(t, 2, counts["sent"])
	assert.Equal(t, 0, counts["failed"])
	assert.Equal(t, 0, counts["skipped"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
