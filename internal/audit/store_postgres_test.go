package audit

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStore_Append(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := &BlockedAttempt{
		ID:         "ba-1",
		Subject:    "user-1",
		Action:     "payout_request",
		Source:     SourcePayout,
		ReasonCode: "per_transaction_limit",
		Message:    "amount exceeds limit",
		Reasons:    []string{"per_transaction_limit"},
		PayoutID:   "po-9",
		CreatedAt:  now,
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO blocked_attempts")).
		WithArgs("ba-1", "user-1", "payout_request", "payout", "per_transaction_limit", "amount exceeds limit",
			sqlmock.AnyArg(), 0, nil, "po-9", nil, nil, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewPostgresStore(db).Append(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AppendError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO blocked_attempts")).
		WillReturnError(errors.New("connection refused"))

	err = NewPostgresStore(db).Append(context.Background(), &BlockedAttempt{ID: "x", Subject: "u"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert blocked attempt")
}

func TestPostgresStore_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "subject", "action", "source", "reason_code", "message", "reasons", "score",
		"assessment_id", "payout_id", "ip_prefix", "request_id", "created_at",
	}).AddRow("ba-1", "user-1", "login", "assessment", "policy_blocked", "blocked", "{bot,ip}", 92,
		"as-1", "", "203.0.113.0/24", "req-1", since.Add(time.Hour))

	mock.ExpectQuery(regexp.QuoteMeta("FROM blocked_attempts WHERE subject = $1 AND created_at >= $2 ORDER BY created_at DESC LIMIT $3")).
		WithArgs("user-1", since, DefaultListLimit).
		WillReturnRows(rows)

	got, err := NewPostgresStore(db).List(context.Background(), Filter{Subject: "user-1", Since: since})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, SourceAssessment, got[0].Source)
	assert.Equal(t, []string{"bot", "ip"}, got[0].Reasons)
	assert.Equal(t, 92, got[0].Score)
	assert.Equal(t, "as-1", got[0].AssessmentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
