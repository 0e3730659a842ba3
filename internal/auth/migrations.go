package auth

import (
	"context"
	"fmt"

	"the-keep/internal/core"
)

// Migration001CreateAuthTables creates the account and token tables.
// Version 1 is reserved for auth; feature migrations start at 2.
var Migration001CreateAuthTables = core.Migration{
	Version:     1,
	Name:        "create_auth_tables",
	Description: "Create user, token and permission tables",
	UpSQL: `
		-- Accounts
		CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			email TEXT UNIQUE NOT NULL,
			password_hash BLOB NOT NULL,
			activated BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		-- Authentication tokens, stored hashed
		CREATE TABLE IF NOT EXISTS tokens (
			hash BLOB PRIMARY KEY,
			user_id INTEGER NOT NULL,
			expiry DATETIME NOT NULL,
			scope TEXT NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
		);

		-- Permission codes
		CREATE TABLE IF NOT EXISTS permissions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			code TEXT NOT NULL UNIQUE
		);

		CREATE TABLE IF NOT EXISTS users_permissions (
			user_id INTEGER NOT NULL,
			permission_id INTEGER NOT NULL,
			PRIMARY KEY (user_id, permission_id),
			FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE,
			FOREIGN KEY (permission_id) REFERENCES permissions (id) ON DELETE CASCADE
		);

		INSERT OR IGNORE INTO permissions (code) VALUES ('docs:admin');

		CREATE INDEX IF NOT EXISTS idx_tokens_user_id ON tokens(user_id);
		CREATE INDEX IF NOT EXISTS idx_tokens_expiry ON tokens(expiry);
	`,
	DownSQL: `
		DROP INDEX IF EXISTS idx_tokens_expiry;
		DROP INDEX IF EXISTS idx_tokens_user_id;

		DROP TABLE IF EXISTS users_permissions;
		DROP TABLE IF EXISTS permissions;
		DROP TABLE IF EXISTS tokens;
		DROP TABLE IF EXISTS users;
	`,
}

// Migrate applies all pending auth migrations
func Migrate(ctx context.Context, db *core.Database, logger *core.Logger) error {
	migrationService := core.NewMigrationService(db, logger)

	if err := migrationService.InitMigrations(ctx); err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}

	if err := migrationService.ApplyMigration(ctx, Migration001CreateAuthTables); err != nil {
		return fmt.Errorf("failed to apply auth migration: %w", err)
	}

	return nil
}
