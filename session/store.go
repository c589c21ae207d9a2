package session

import (
	"time"

	"github.com/alexedwards/scs/gormstore"
	"github.com/alexedwards/scs/v2"
	"github.com/alexedwards/scs/v2/memstore"
	"gorm.io/gorm"
)

const databaseCleanupInterval = 5 * time.Minute

func NewMemoryStore() scs.Store {
	return memstore.New()
}

// NewDatabaseStore returns a gorm-backed store that prunes expired sessions every five minutes.
// Callers stop the pruning goroutine with StopCleanup.
func NewDatabaseStore(db *gorm.DB) (*gormstore.GORMStore, error) {
	return gormstore.NewWithCleanupInterval(db, databaseCleanupInterval)
}
