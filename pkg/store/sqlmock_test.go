package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/tome/pkg/scope"
)

func TestFindOrgQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	st := NewStore(db)

	mock.ExpectQuery(`SELECT .+ FROM organizations o WHERE o\.id = \$1`).
		WithArgs(int64(1)).
		WillReturnError(fmt.Errorf("connection reset"))

	_, err = st.FindOrg(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get organization")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindOrgsBindsFilterArgs(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	st := NewStore(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "name", "domain", "owner_id", "is_support",
		"created_at", "updated_at"}).
		AddRow(1, "Acme", "acme", nil, false, now, now)

	// The filter's placeholders land in the WHERE clause in argument order.
	mock.ExpectQuery(`FROM organizations o\s+WHERE \(o\.domain = \$1 OR o\.owner_id = \$2\)`).
		WithArgs("acme", int64(7)).
		WillReturnRows(rows)

	orgs, err := st.FindOrgs(context.Background(),
		scope.Or(scope.MatchesDomain("acme"), scope.PersonalOrgOf(7)))
	require.NoError(t, err)
	require.Len(t, orgs, 1)
	assert.Equal(t, "Acme", orgs[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithReadTxOpensReadOnly(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	st := NewStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT group_id FROM group_members`).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"group_id"}).AddRow(3))
	mock.ExpectCommit()

	err = st.WithReadTx(context.Background(), func(tx *Store) error {
		groups, err := tx.GroupsForUser(context.Background(), 5)
		if err != nil {
			return err
		}
		assert.Equal(t, []int64{3}, groups)
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithReadTxRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	st := NewStore(db)

	mock.ExpectBegin()
	mock.ExpectRollback()

	sentinel := fmt.Errorf("boom")
	err = st.WithReadTx(context.Background(), func(tx *Store) error { return sentinel })
	assert.ErrorIs(t, err, sentinel)
	assert.NoError(t, mock.ExpectationsWereMet())
}
