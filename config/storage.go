package config

import "fmt"

// StorageConfig defines where reports, alerts and the offline buffer live.
type StorageConfig struct {
	// Backend selects the persistence store type: "sqlite" or "memory".
	Backend string `json:"backend"`
	// DatabasePath is the SQLite database file.
	DatabasePath string `json:"database_path"`
	// LedgerPath is the JSONL offline ledger file. Empty disables offline
	// buffering.
	LedgerPath string `json:"ledger_path"`
}

// SetDefaults applies sane defaults.
func (c *StorageConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "sqlite"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "surveillance.db"
	}
	if c.LedgerPath == "" {
		c.LedgerPath = "offline.jsonl"
	}
}

// Validate checks mandatory fields.
func (c StorageConfig) Validate() error {
	if c.Backend != "sqlite" && c.Backend != "memory" {
		return fmt.Errorf("unknown backend %s", c.Backend)
	}
	if c.Backend == "sqlite" && c.DatabasePath == "" {
		return fmt.Errorf("database_path is required")
	}
	return nil
}
