// Package database provides SQLite storage for the dashboard core.
//
// The dashboard keeps very little on disk: the persisted login session and
// anything else that must survive a restart. SQLite in WAL mode is enough,
// and a single writer connection avoids lock contention entirely.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql, and live at the root of the given fs.FS.
//
// Use Path ":memory:" for tests.
package database
