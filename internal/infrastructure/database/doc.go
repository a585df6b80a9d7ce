// Package database provides SQLite connectivity for the catalog's
// snapshot backend.
//
// It opens the database file (or an in-memory database for tests), applies
// forward-only migrations embedded in the binary, and exposes a health check.
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// All queries use parameterised statements and the database file is
// restricted to the owner (0600).
package database
