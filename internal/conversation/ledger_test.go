package conversation

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botforge/chatbot-platform/pkg/logging"
)

func newLedger(t *testing.T) (*Ledger, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewLedger(db, logging.New("error")), mock
}

func TestResolveExisting(t *testing.T) {
	ledger, mock := newLedger(t)
	botID := uuid.New()
	existing := uuid.New()

	mock.ExpectQuery("SELECT id FROM conversations").
		WithArgs(botID, "sess-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(existing))

	id, created, err := ledger.Resolve(context.Background(), botID, "sess-1", nil)
	require.NoError(t, err)
	assert.Equal(t, existing, id)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveCreates(t *testing.T) {
	ledger, mock := newLedger(t)
	botID := uuid.New()
	newID := uuid.New()

	mock.ExpectQuery("SELECT id FROM conversations").
		WithArgs(botID, "sess-2").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("INSERT INTO conversations").
		WithArgs(sqlmock.AnyArg(), botID, "sess-2", []byte("{}")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(newID))

	id, created, err := ledger.Resolve(context.Background(), botID, "sess-2", nil)
	require.NoError(t, err)
	assert.Equal(t, newID, id)
	assert.True(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveLosesInsertRace(t *testing.T) {
	ledger, mock := newLedger(t)
	botID := uuid.New()
	winner := uuid.New()

	mock.ExpectQuery("SELECT id FROM conversations").
		WithArgs(botID, "sess-3").
		WillReturnError(sql.ErrNoRows)
	// ON CONFLICT DO NOTHING returns no row when another request won.
	mock.ExpectQuery("INSERT INTO conversations").
		WithArgs(sqlmock.AnyArg(), botID, "sess-3", sqlmock.AnyArg()).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT id FROM conversations").
		WithArgs(botID, "sess-3").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(winner))

	id, created, err := ledger.Resolve(context.Background(), botID, "sess-3", map[string]any{"ua": "test"})
	require.NoError(t, err)
	assert.Equal(t, winner, id)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendMessageIncrementsCounter(t *testing.T) {
	ledger, mock := newLedger(t)
	convID := uuid.New()

	mock.ExpectExec("INSERT INTO messages").
		WithArgs(sqlmock.AnyArg(), convID, RoleAssistant, "Hello", []byte(`["Docs"]`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE conversations SET message_count = message_count \\+ 1").
		WithArgs(convID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := ledger.AppendMessage(context.Background(), convID, RoleAssistant, "Hello", []string{"Docs"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendMessageNilSources(t *testing.T) {
	ledger, mock := newLedger(t)
	convID := uuid.New()

	mock.ExpectExec("INSERT INTO messages").
		WithArgs(sqlmock.AnyArg(), convID, RoleUser, "hi", nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE conversations SET message_count").
		WithArgs(convID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, ledger.AppendMessage(context.Background(), convID, RoleUser, "hi", nil))
}

func TestAppendMessageRejectsInvalidRole(t *testing.T) {
	ledger, _ := newLedger(t)
	err := ledger.AppendMessage(context.Background(), uuid.New(), "system", "x", nil)
	assert.ErrorContains(t, err, "invalid role")
}

func TestPersistUserTurnSkipsAssistantRole(t *testing.T) {
	ledger, mock := newLedger(t)
	// No SQL expected: a trailing assistant message is already persisted.
	err := ledger.PersistUserTurn(context.Background(), uuid.New(), RoleAssistant, "echo")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnd(t *testing.T) {
	ledger, mock := newLedger(t)
	convID := uuid.New()

	mock.ExpectExec("UPDATE conversations SET ended_at").
		WithArgs(convID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, ledger.End(context.Background(), convID))
	assert.NoError(t, mock.ExpectationsWereMet())
}
