package store

const schema = `
CREATE TABLE IF NOT EXISTS device (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS packages (
    name TEXT PRIMARY KEY,
    label TEXT,
    uid INTEGER NOT NULL DEFAULT 0,
    flags INTEGER NOT NULL DEFAULT 0,
    installed_at INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS usage_samples (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    package TEXT NOT NULL,
    interval INTEGER NOT NULL,
    first_time_stamp INTEGER NOT NULL,
    last_time_stamp INTEGER NOT NULL,
    last_time_used INTEGER NOT NULL,
    total_time_in_foreground INTEGER NOT NULL,
    import_id TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS usage_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    package TEXT NOT NULL,
    class_name TEXT,
    event_type INTEGER NOT NULL,
    timestamp INTEGER NOT NULL,
    import_id TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS event_stats (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    interval INTEGER NOT NULL,
    event_type INTEGER NOT NULL,
    first_time_stamp INTEGER NOT NULL,
    last_time_stamp INTEGER NOT NULL,
    total_time INTEGER NOT NULL,
    count INTEGER NOT NULL,
    import_id TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS network_buckets (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    uid INTEGER NOT NULL,
    network_class INTEGER NOT NULL,
    start_time_stamp INTEGER NOT NULL,
    end_time_stamp INTEGER NOT NULL,
    rx_bytes INTEGER NOT NULL,
    tx_bytes INTEGER NOT NULL,
    import_id TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS imports (
    id TEXT PRIMARY KEY,
    source TEXT NOT NULL,
    checksum TEXT NOT NULL UNIQUE,
    imported_at TIMESTAMP NOT NULL,
    row_count INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_samples_interval ON usage_samples(interval, last_time_stamp);
CREATE INDEX IF NOT EXISTS idx_samples_package ON usage_samples(package);
CREATE INDEX IF NOT EXISTS idx_events_timestamp ON usage_events(timestamp);
CREATE INDEX IF NOT EXISTS idx_event_stats_interval ON event_stats(interval, event_type);
CREATE INDEX IF NOT EXISTS idx_buckets_class ON network_buckets(network_class, start_time_stamp);
CREATE INDEX IF NOT EXISTS idx_imports_source ON imports(source);
`
