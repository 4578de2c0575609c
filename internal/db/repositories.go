package db

// Repositories provides access to all database repositories
type Repositories struct {
	Media    *MediaRepository
	Settings *SettingsRepository
}

// NewRepositories creates a new repository collection
func NewRepositories(db *DB) *Repositories {
	return &Repositories{
		Media:    NewMediaRepository(db),
		Settings: NewSettingsRepository(db),
	}
}
