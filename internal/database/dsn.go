package database

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

const sharedMemoryDSN = "file::memory:?cache=shared&_foreign_keys=1"

func sqliteDSN(cfg Config) (dsn string, memory bool, err error) {
	if cfg.DSN != "" {
		return cfg.DSN, isMemoryDSN(cfg.DSN), nil
	}

	path := strings.TrimSpace(cfg.Path)
	if path == "" || strings.EqualFold(path, ":memory:") {
		return sharedMemoryDSN, true, nil
	}
	if err := ensureDir(path); err != nil {
		return "", false, fmt.Errorf("create sqlite directory: %w", err)
	}

	params := joinOptions(map[string]string{
		"_foreign_keys": "1",
		"_journal_mode": "WAL",
		"_busy_timeout": "5000",
	}, cfg.Options, "&")
	return "file:" + filepath.ToSlash(path) + "?" + params, false, nil
}

func isMemoryDSN(dsn string) bool {
	return strings.Contains(dsn, "mode=memory") || strings.Contains(dsn, ":memory:")
}

func postgresDSN(cfg Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}
	if err := requireCredentials(cfg); err != nil {
		return "", err
	}

	params := []string{
		"host=" + orDefault(cfg.Host, "localhost"),
		fmt.Sprintf("port=%d", portOrDefault(cfg.Port, 5432)),
		"user=" + cfg.User,
		"dbname=" + cfg.Name,
	}
	if cfg.Password != "" {
		params = append(params, "password="+cfg.Password)
	}
	params = append(params, joinOptions(map[string]string{"sslmode": "disable"}, cfg.Options, " "))

	return strings.Join(params, " "), nil
}

func mysqlDSN(cfg Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}
	if err := requireCredentials(cfg); err != nil {
		return "", err
	}

	user := cfg.User
	if cfg.Password != "" {
		user += ":" + cfg.Password
	}

	opts := joinOptions(map[string]string{
		"charset":   "utf8mb4",
		"parseTime": "True",
		"loc":       "Local",
	}, cfg.Options, "&")

	return fmt.Sprintf("%s@tcp(%s:%d)/%s?%s",
		user, orDefault(cfg.Host, "127.0.0.1"), portOrDefault(cfg.Port, 3306), cfg.Name, opts), nil
}

func requireCredentials(cfg Config) error {
	if cfg.User == "" || cfg.Name == "" {
		return fmt.Errorf("%s configuration requires user and database name", cfg.Driver)
	}
	return nil
}

// joinOptions overlays overrides on defaults and renders key=value pairs in
// key order so the DSN is stable.
func joinOptions(defaults, overrides map[string]string, sep string) string {
	merged := make(map[string]string, len(defaults)+len(overrides))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+merged[k])
	}
	return strings.Join(pairs, sep)
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func portOrDefault(port, fallback int) int {
	if port <= 0 {
		return fallback
	}
	return port
}
