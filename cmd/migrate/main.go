package main

import (
	"bufio"
	"database/sql"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"automatch/internal/config"
	"automatch/internal/db"
	"automatch/internal/logger"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const downMarker = "-- +migrate Down"

// Usage: migrate [up|down]. "up" applies every pending file in migrations/;
// "down" reverts the most recently applied one.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.AppEnv, ServiceName: "automatch-migrate"})
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	database, err := db.Connect(cfg.DatabaseURL, db.PoolOptions{MaxOpenConns: 1, MaxIdleConns: 1})
	if err != nil {
		log.Fatal("failed to connect database", zap.Error(err))
	}
	defer database.Close()

	if _, err := database.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (filename text primary key, applied_at timestamptz default now())`); err != nil {
		log.Fatal("failed to ensure schema_migrations", zap.Error(err))
	}

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}
	switch command {
	case "up":
		err = up(database, log)
	case "down":
		err = down(database, log)
	default:
		log.Fatal("unknown command", zap.String("command", command))
	}
	if err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}
}

func up(database *sqlx.DB, log *zap.Logger) error {
	files, err := filepath.Glob("migrations/*.sql")
	if err != nil {
		return errors.Wrap(err, "read migrations")
	}
	sort.Strings(files)

	applied := 0
	for _, file := range files {
		filename := filepath.Base(file)
		var exists bool
		if err := database.Get(&exists, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE filename = $1)`, filename); err != nil {
			return errors.Wrap(err, "read migration state")
		}
		if exists {
			continue
		}
		upSQL, _, err := readSections(file)
		if err != nil {
			return err
		}
		if err := applyStatements(database, upSQL); err != nil {
			return errors.Wrapf(err, "apply %s", filename)
		}
		if _, err := database.Exec(`INSERT INTO schema_migrations (filename) VALUES ($1)`, filename); err != nil {
			return errors.Wrapf(err, "record migration %s", filename)
		}
		log.Info("applied migration", zap.String("file", filename))
		applied++
	}
	log.Info("migrations up to date", zap.Int("applied", applied))
	return nil
}

func down(database *sqlx.DB, log *zap.Logger) error {
	var filename string
	err := database.Get(&filename, `SELECT filename FROM schema_migrations ORDER BY filename DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		log.Info("nothing to revert")
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "read migration state")
	}
	_, downSQL, err := readSections(filepath.Join("migrations", filename))
	if err != nil {
		return err
	}
	if err := applyStatements(database, downSQL); err != nil {
		return errors.Wrapf(err, "revert %s", filename)
	}
	if _, err := database.Exec(`DELETE FROM schema_migrations WHERE filename = $1`, filename); err != nil {
		return errors.Wrapf(err, "forget migration %s", filename)
	}
	log.Info("reverted migration", zap.String("file", filename))
	return nil
}

func readSections(path string) (string, string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", "", errors.Wrapf(err, "read %s", path)
	}
	upSQL, downSQL, _ := strings.Cut(string(content), downMarker)
	return upSQL, downSQL, nil
}

func applyStatements(database execer, sqlText string) error {
	for _, stmt := range splitSQL(sqlText) {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := database.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// splitSQL breaks a script into statements at lines containing a semicolon.
// Function bodies must therefore stay on a single line.
func splitSQL(sqlText string) []string {
	var statements []string
	var current strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(sqlText))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		current.WriteString(line)
		current.WriteRune('\n')
		if strings.Contains(line, ";") {
			statements = append(statements, current.String())
			current.Reset()
		}
	}
	if strings.TrimSpace(current.String()) != "" {
		statements = append(statements, current.String())
	}
	return statements
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}
