package db

import (
	"slices"
	"sync"
)

// registry holds the open databases of the process by name. A database
// stays registered until it is closed, so every Open of the same name
// shares one catalog.
var registry = struct {
	mu        sync.Mutex
	databases map[string]*Database
}{databases: make(map[string]*Database)}

// OpenDatabase returns the open database named cfg.Name, opening it with
// cfg when it is not open yet.
func OpenDatabase(cfg Config) (*Database, error) {
	cfg = cfg.withDefaults()

	registry.mu.Lock()
	defer registry.mu.Unlock()
	if db, ok := registry.databases[cfg.Name]; ok {
		return db, nil
	}
	db, err := NewDatabase(cfg)
	if err != nil {
		return nil, err
	}
	registry.databases[db.name] = db
	return db, nil
}

// DatabaseNames lists the open databases in name order.
func DatabaseNames() []string {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	names := make([]string, 0, len(registry.databases))
	for name := range registry.databases {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func unregister(db *Database) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if registry.databases[db.name] == db {
		delete(registry.databases, db.name)
	}
}
