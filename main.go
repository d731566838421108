package EmbedDB

import (
	"github.com/nickyhof/EmbedDB/db"
)

// Open connects user to the database called databaseName, opening it on
// first use. "." and "mem:<name>" are in-memory databases; any other name
// is the directory of a file-backed one.
func Open(databaseName, user, password string) (*db.Channel, error) {
	return OpenWithConfig(db.ConfigForName(databaseName), user, password)
}

// OpenWithConfig is Open with full control over the database settings.
// The settings only apply when the database is not open yet.
func OpenWithConfig(cfg db.Config, user, password string) (*db.Channel, error) {
	database, err := db.OpenDatabase(cfg)
	if err != nil {
		return nil, err
	}
	return database.Connect(user, password)
}
