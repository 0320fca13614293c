package access

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/tome/pkg/store"
)

var testDBCounter int

// setupStore creates an in-memory sqlite database with the production schema
// shape and a Store on top of it.
func setupStore(t *testing.T) *store.Store {
	t.Helper()

	testDBCounter++
	dsn := fmt.Sprintf("file:accesstest%d?mode=memory&cache=shared", testDBCounter)
	db, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	schema := []string{
		`CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT NOT NULL UNIQUE,
			personal_org_id INTEGER,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE organizations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			domain TEXT UNIQUE,
			owner_id INTEGER UNIQUE,
			is_support BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE workspaces (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			org_id INTEGER NOT NULL REFERENCES organizations(id),
			name TEXT NOT NULL,
			removed_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE docs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			workspace_id INTEGER NOT NULL REFERENCES workspaces(id),
			name TEXT NOT NULL,
			url_id TEXT NOT NULL UNIQUE,
			removed_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE role_grants (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER,
			group_id INTEGER,
			resource_type TEXT NOT NULL,
			resource_id INTEGER NOT NULL,
			role TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE group_members (
			group_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			PRIMARY KEY (group_id, user_id)
		)`,
	}
	for _, stmt := range schema {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}

	return store.NewStoreWithTxOptions(db, nil)
}

// chain seeds an org -> workspace -> doc chain and returns all three.
func chain(t *testing.T, st *store.Store, domain string) (*store.Organization, *store.Workspace, *store.Document) {
	t.Helper()
	ctx := context.Background()

	org := &store.Organization{Name: domain, Domain: &domain}
	require.NoError(t, st.CreateOrg(ctx, org))
	ws := &store.Workspace{OrgID: org.ID, Name: "Home"}
	require.NoError(t, st.CreateWorkspace(ctx, ws))
	doc := &store.Document{WorkspaceID: ws.ID, Name: "Plan"}
	require.NoError(t, st.CreateDoc(ctx, doc))
	return org, ws, doc
}

func grant(t *testing.T, st *store.Store, userID int64, rt store.ResourceType, resourceID int64, role store.Role) {
	t.Helper()
	uid := userID
	require.NoError(t, st.AddGrant(context.Background(), &store.RoleGrant{
		UserID: &uid, ResourceType: rt, ResourceID: resourceID, Role: role,
	}))
}
