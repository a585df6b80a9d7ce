// Package catalog implements the greenhouse catalog's record store and
// the reaper that expires stale records.
//
// The store holds four collections (devices, users, greenhouses, services)
// and two singleton slots (broker, device_catalog). Every write is checked
// against a fixed required-field set; extra fields are dropped. Every
// accepted write stamps last_update, and the reaper removes records (or
// empties slots) whose last_update is older than their timeout.
//
// The in-memory state is authoritative. After each mutation the store
// hands a snapshot to a Snapshotter (JSON file or SQLite); a failed flush is
// logged and the mutation stands.
//
//	store := catalog.NewStore(catalog.NewFileSnapshotter("data/catalog.json"))
//	if err := store.Restore(ctx); err != nil {
//	    return err
//	}
//	reaper := catalog.NewReaper(store, catalog.UniformTimeouts(2*time.Minute), time.Minute)
//	go reaper.Run(ctx)
package catalog
