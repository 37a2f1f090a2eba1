package migration

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

//go:embed sql/*.sql
var embedded embed.FS

// Migrator is the schema step that runs before the SQL files.
type Migrator interface {
	Migrate() error
}

type Runner struct {
	migrator Migrator
	db       *gorm.DB
	files    fs.FS
	logger   *logrus.Logger
}

// NewRunner uses the SQL files compiled into the binary.
func NewRunner(migrator Migrator, db *gorm.DB, logger *logrus.Logger) *Runner {
	sub, _ := fs.Sub(embedded, "sql")
	return NewRunnerFS(migrator, db, sub, logger)
}

func NewRunnerFS(migrator Migrator, db *gorm.DB, files fs.FS, logger *logrus.Logger) *Runner {
	return &Runner{
		migrator: migrator,
		db:       db,
		files:    files,
		logger:   logger,
	}
}

// RunMigrations executes all pending migrations
func (r *Runner) RunMigrations() error {
	r.logger.Info("Starting database migrations...")

	// First run GORM auto-migrations
	if err := r.migrator.Migrate(); err != nil {
		return fmt.Errorf("GORM auto-migration failed: %w", err)
	}

	if err := r.runSQLMigrations(); err != nil {
		return fmt.Errorf("SQL migrations failed: %w", err)
	}

	r.logger.Info("Database migrations completed successfully")
	return nil
}

// Files lists the SQL migrations in execution order.
func (r *Runner) Files() ([]string, error) {
	entries, err := fs.ReadDir(r.files, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	var sqlFiles []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			sqlFiles = append(sqlFiles, entry.Name())
		}
	}
	sort.Strings(sqlFiles)
	return sqlFiles, nil
}

func (r *Runner) runSQLMigrations() error {
	sqlFiles, err := r.Files()
	if err != nil {
		return err
	}

	for _, name := range sqlFiles {
		content, err := fs.ReadFile(r.files, name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		for i, stmt := range Statements(string(content)) {
			r.logger.WithFields(logrus.Fields{
				"file":      name,
				"statement": i + 1,
			}).Debug("Executing SQL statement")

			if err := r.db.Exec(stmt).Error; err != nil {
				return fmt.Errorf("failed to execute statement %d in %s: %w", i+1, name, err)
			}
		}
		r.logger.WithField("file", name).Info("Migration executed successfully")
	}
	return nil
}

// Statements strips comment lines and splits on semicolons. Files using
// dollar quoting are returned whole.
func Statements(sql string) []string {
	var lines []string
	for _, line := range strings.Split(sql, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		lines = append(lines, trimmed)
	}

	if strings.Contains(sql, "$$") {
		whole := strings.TrimSpace(strings.Join(lines, "\n"))
		if whole == "" {
			return nil
		}
		return []string{whole}
	}

	var result []string
	for _, stmt := range strings.Split(strings.Join(lines, " "), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			result = append(result, stmt)
		}
	}
	return result
}
