package migrations

import (
	"context"
	"fmt"

	"the-keep/internal/core"
)

// Manager handles docs feature migrations
type Manager struct {
	migrationService *core.MigrationService
	logger           *core.Logger
}

// NewManager creates a new docs migration manager
func NewManager(db *core.Database, logger *core.Logger) *Manager {
	migrationService := core.NewMigrationService(db, logger)
	return &Manager{
		migrationService: migrationService,
		logger:           logger,
	}
}

// Migrations returns all docs migrations in order
func (m *Manager) Migrations() []core.Migration {
	return []core.Migration{
		Migration002CreateDocsTables,
	}
}

// Migrate applies all pending docs migrations
func (m *Manager) Migrate(ctx context.Context) error {
	if err := m.migrationService.InitMigrations(ctx); err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}

	migrations := m.Migrations()
	m.logger.Info("Starting docs migrations", "count", len(migrations))

	for _, migration := range migrations {
		if err := m.migrationService.ApplyMigration(ctx, migration); err != nil {
			return fmt.Errorf("failed to apply migration %d (%s): %w", migration.Version, migration.Name, err)
		}
	}

	m.logger.Info("Docs migrations completed successfully")
	return nil
}

// Rollback rolls back the last applied docs migration
func (m *Manager) Rollback(ctx context.Context) error {
	if err := m.migrationService.InitMigrations(ctx); err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}

	applied, err := m.migrationService.GetAppliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	// Find the last applied docs migration
	var lastApplied *core.Migration
	for _, migration := range applied {
		for _, docsMigration := range m.Migrations() {
			if migration.Version == docsMigration.Version {
				lastApplied = &docsMigration
				break
			}
		}
	}

	if lastApplied == nil {
		return fmt.Errorf("no docs migrations have been applied")
	}

	if err := m.migrationService.RollbackMigration(ctx, *lastApplied); err != nil {
		return fmt.Errorf("failed to rollback migration %d (%s): %w", lastApplied.Version, lastApplied.Name, err)
	}

	m.logger.Info("Rolled back docs migration", "version", lastApplied.Version, "name", lastApplied.Name)
	return nil
}

// Status returns the current migration status
func (m *Manager) Status(ctx context.Context) (*core.MigrationStatus, error) {
	return m.migrationService.GetMigrationStatus(ctx)
}
