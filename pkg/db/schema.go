package db

const schema = `
-- Performance and reliability settings
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA foreign_keys = ON;
PRAGMA temp_store = MEMORY;

-- Procedures: one row per scraped TUPA procedure. source_url is the
-- canonical identity key; re-scrapes update in place.
CREATE TABLE IF NOT EXISTS procedures (
    procedure_id INTEGER PRIMARY KEY AUTOINCREMENT,
    source_url TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    description TEXT,
    requirements TEXT,            -- JSON array
    steps TEXT,                   -- JSON array
    cost REAL,                    -- NULL when the page publishes no cost
    currency TEXT DEFAULT 'PEN',
    is_free BOOLEAN DEFAULT 0,
    duration TEXT,
    entity_name TEXT,
    entity_code TEXT,
    tupa_code TEXT,
    is_online BOOLEAN DEFAULT 0,
    channels TEXT,                -- JSON array
    category TEXT NOT NULL DEFAULT 'General',
    tags TEXT,                    -- JSON array, max 5 entries
    keywords TEXT,                -- JSON array
    legal_basis TEXT,             -- JSON array
    language TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_procedures_entity ON procedures(entity_code);
CREATE INDEX IF NOT EXISTS idx_procedures_category ON procedures(category);
CREATE INDEX IF NOT EXISTS idx_procedures_online ON procedures(is_online) WHERE is_online = 1;

-- Runs: one row per pipeline invocation, for the validate command and the
-- run report.
CREATE TABLE IF NOT EXISTS runs (
    run_id INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP,
    total_records INTEGER DEFAULT 0,
    inserted_count INTEGER DEFAULT 0,
    updated_count INTEGER DEFAULT 0,
    driver_errors INTEGER DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
`
