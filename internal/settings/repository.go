package settings

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Setting keys as stored in config.db. Values are stored as strings and
// converted on load; durations are stored in milliseconds.
const (
	keyAutoRefresh         = "auto_refresh"
	keyRefreshIntervalMs   = "refresh_interval_ms"
	keyCacheTimeoutMs      = "cache_timeout_ms"
	keyMaxComparisons      = "max_comparisons"
	keyEnableNotifications = "enable_notifications"
)

// Repository handles settings persistence in config.db. Persisted values
// take precedence over compiled-in defaults, which allows runtime
// configuration changes to survive restarts.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new settings repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "settings").Logger(),
	}
}

// get retrieves a setting value by key. Returns nil if the setting doesn't
// exist (not an error).
func (r *Repository) get(key string) (*string, error) {
	var value string
	err := r.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return &value, nil
}

// set upserts a setting value.
func (r *Repository) set(key, value string) error {
	now := time.Now().Unix()
	_, err := r.db.Exec(`
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, key, value, now)
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

// LoadPartial reads all persisted settings as a Partial; keys that were
// never persisted stay nil so defaults apply.
func (r *Repository) LoadPartial() (Partial, error) {
	var p Partial

	if v, err := r.get(keyAutoRefresh); err != nil {
		return p, err
	} else if v != nil {
		b := *v == "true"
		p.AutoRefresh = &b
	}

	if v, err := r.get(keyRefreshIntervalMs); err != nil {
		return p, err
	} else if v != nil {
		ms, err := strconv.ParseInt(*v, 10, 64)
		if err != nil {
			r.log.Warn().Str("value", *v).Msg("Ignoring unparseable refresh_interval_ms")
		} else {
			d := time.Duration(ms) * time.Millisecond
			p.RefreshInterval = &d
		}
	}

	if v, err := r.get(keyCacheTimeoutMs); err != nil {
		return p, err
	} else if v != nil {
		ms, err := strconv.ParseInt(*v, 10, 64)
		if err != nil {
			r.log.Warn().Str("value", *v).Msg("Ignoring unparseable cache_timeout_ms")
		} else {
			d := time.Duration(ms) * time.Millisecond
			p.CacheTimeout = &d
		}
	}

	if v, err := r.get(keyMaxComparisons); err != nil {
		return p, err
	} else if v != nil {
		n, err := strconv.Atoi(*v)
		if err != nil {
			r.log.Warn().Str("value", *v).Msg("Ignoring unparseable max_comparisons")
		} else {
			p.MaxComparisons = &n
		}
	}

	if v, err := r.get(keyEnableNotifications); err != nil {
		return p, err
	} else if v != nil {
		b := *v == "true"
		p.EnableNotifications = &b
	}

	return p, nil
}

// Save persists the full settings snapshot.
func (r *Repository) Save(s Settings) error {
	if err := r.set(keyAutoRefresh, strconv.FormatBool(s.AutoRefresh)); err != nil {
		return err
	}
	if err := r.set(keyRefreshIntervalMs, strconv.FormatInt(s.RefreshInterval.Milliseconds(), 10)); err != nil {
		return err
	}
	if err := r.set(keyCacheTimeoutMs, strconv.FormatInt(s.CacheTimeout.Milliseconds(), 10)); err != nil {
		return err
	}
	if err := r.set(keyMaxComparisons, strconv.Itoa(s.MaxComparisons)); err != nil {
		return err
	}
	return r.set(keyEnableNotifications, strconv.FormatBool(s.EnableNotifications))
}
