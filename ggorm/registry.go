package ggorm

import (
	"fmt"
	"sync"

	"gorm.io/gorm"
)

// DialectorOpener is an alias for a function that returns a gorm.Dialector for a given DSN.
type DialectorOpener = func(string) gorm.Dialector

var (
	registryMu sync.RWMutex
	openers    = make(map[string]DialectorOpener)
)

// Register adds a database driver to the registry. The sqlite, postgres,
// and mysql drivers are registered by default.
func Register(name string, opener DialectorOpener) {
	registryMu.Lock()
	defer registryMu.Unlock()
	openers[name] = opener
}

// Open connects to the named database and returns a migrated Repository.
func Open(name, dsn string, config *gorm.Config) (*Repository, error) {
	db, err := OpenDB(name, dsn, config)
	if err != nil {
		return nil, err
	}

	repo := NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		return nil, err
	}
	return repo, nil
}

// OpenDB connects to the named database without running migrations. Used
// for the dataset query backend, whose schema the proxy does not own.
func OpenDB(name, dsn string, config *gorm.Config) (*gorm.DB, error) {
	registryMu.RLock()
	opener, ok := openers[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("ggorm: unknown database driver %q", name)
	}

	if config == nil {
		config = &gorm.Config{}
	}
	return gorm.Open(opener(dsn), config)
}
