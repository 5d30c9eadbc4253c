// Package database opens the SQLite file that backs the Nobø hub service.
//
// Two tables live in it: nobo_entities, the last line received for every
// hub entity, and command_log, the history of commands sent through the
// API. Both are created by versioned migrations embedded in the binary by
// the migrations package:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql and are
// additive only; there is no rollback. SchemaStatus reports what has been
// applied.
package database
