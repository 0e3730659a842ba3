package migrations

import (
	"the-keep/internal/core"
)

// Migration002CreateDocsTables creates the document access log.
// Version 1 belongs to the auth tables.
var Migration002CreateDocsTables = core.Migration{
	Version:     2,
	Name:        "create_docs_tables",
	Description: "Create document access log tables",
	UpSQL: `
		-- Per-request access log, written asynchronously
		CREATE TABLE IF NOT EXISTS docs_access_log (
			id TEXT PRIMARY KEY,
			mount TEXT NOT NULL,
			path TEXT NOT NULL,
			method TEXT NOT NULL,
			status INTEGER NOT NULL,
			bytes INTEGER NOT NULL DEFAULT 0,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			remote_addr TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_docs_access_log_mount ON docs_access_log(mount);
		CREATE INDEX IF NOT EXISTS idx_docs_access_log_created_at ON docs_access_log(created_at);
		CREATE INDEX IF NOT EXISTS idx_docs_access_log_status ON docs_access_log(status);
	`,
	DownSQL: `
		DROP INDEX IF EXISTS idx_docs_access_log_status;
		DROP INDEX IF EXISTS idx_docs_access_log_created_at;
		DROP INDEX IF EXISTS idx_docs_access_log_mount;

		DROP TABLE IF EXISTS docs_access_log;
	`,
}
