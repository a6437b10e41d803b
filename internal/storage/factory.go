package storage

import "fmt"

const (
	DefaultStoreKind  = "memory"
	DefaultSQLitePath = "knapsack.db"
)

func NewStore(kind, sqlitePath string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		if sqlitePath == "" {
			sqlitePath = DefaultSQLitePath
		}
		return newSQLiteStore(sqlitePath)
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}

// SupportedKinds lists the backend names NewStore accepts.
func SupportedKinds() []string {
	return []string{"memory", "sqlite"}
}

func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
