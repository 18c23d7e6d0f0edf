// Package database provides SQLite connectivity and schema migrations for
// the timeline database.
//
// This package manages:
//   - Database connection with WAL mode and foreign keys
//   - A single-connection pool, which the timeline store's conditional
//     writes rely on for serialisation
//   - Schema migrations from any fs.FS (the embedded migrations package in
//     production, fstest.MapFS in tests)
//
// Security Considerations:
//   - All queries use parameterised statements (no SQL injection)
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if _, err := db.Migrator(migrations.FS, migrations.Dir).Up(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with a
// matching .down.sql. Each runs in its own transaction.
package database
