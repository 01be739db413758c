// Package database owns the SQLite snapshot store.
//
// Lumen persists two things across restarts: the discovered device
// directory and the per-device scene caches. Both live in a single SQLite
// file opened in WAL mode so API reads never block a refresh cycle's
// snapshot write.
//
// Schema changes ship as embedded up/down SQL migrations applied by
// Migrate at startup. Migrations are additive: new columns are nullable or
// carry defaults, and nothing is dropped or renamed, so an older binary
// can still read a newer file.
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// All access goes through parameterised statements, and the database file
// is created owner read/write only.
package database
