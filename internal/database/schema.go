package database

// schemas maps database names to their full schema. All statements are
// idempotent so Migrate can run on every startup.
var schemas = map[string]string{
	"ledger": ledgerSchema,
	"config": configSchema,
	"cache":  cacheSchema,
}

// ledgerSchema holds the immutable execution trail and the wheel state
// derived from it. Executions are append-only; wheels are rewritten by the
// engine on every sync.
const ledgerSchema = `
CREATE TABLE IF NOT EXISTS executions (
    owner        TEXT NOT NULL,
    trade_id     TEXT NOT NULL,
    symbol       TEXT NOT NULL,
    asset_class  TEXT NOT NULL,
    put_call     TEXT NOT NULL DEFAULT '',
    strike       REAL,
    quantity     REAL NOT NULL,
    price        REAL NOT NULL,
    commission   REAL NOT NULL DEFAULT 0,
    executed_at  INTEGER NOT NULL,
    description  TEXT NOT NULL DEFAULT '',
    created_at   INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
    PRIMARY KEY (owner, trade_id)
);

CREATE INDEX IF NOT EXISTS idx_executions_owner_symbol ON executions(owner, symbol);
CREATE INDEX IF NOT EXISTS idx_executions_executed_at ON executions(executed_at);

CREATE TABLE IF NOT EXISTS wheels (
    owner             TEXT NOT NULL,
    wheel_id          TEXT NOT NULL,
    symbol            TEXT NOT NULL,
    phase             TEXT NOT NULL,
    active            INTEGER NOT NULL DEFAULT 1,
    strike            REAL,
    current_call_id   TEXT NOT NULL DEFAULT '',
    started_at        INTEGER NOT NULL,
    closed_at         INTEGER,
    total_pnl         REAL NOT NULL DEFAULT 0,
    updated_at        INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
    PRIMARY KEY (owner, wheel_id)
);

CREATE INDEX IF NOT EXISTS idx_wheels_owner_symbol ON wheels(owner, symbol);
CREATE INDEX IF NOT EXISTS idx_wheels_owner_active ON wheels(owner, active);

CREATE TABLE IF NOT EXISTS wheel_trades (
    owner        TEXT NOT NULL,
    wheel_id     TEXT NOT NULL,
    seq          INTEGER NOT NULL,
    trade_id     TEXT NOT NULL,
    category     TEXT NOT NULL,
    related_id   TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (owner, wheel_id, seq),
    FOREIGN KEY (owner, wheel_id) REFERENCES wheels(owner, wheel_id) ON DELETE CASCADE
);
`

// configSchema holds per-owner account settings.
const configSchema = `
CREATE TABLE IF NOT EXISTS account_settings (
    owner           TEXT PRIMARY KEY,
    flex_token      TEXT NOT NULL DEFAULT '',
    flex_query_id   TEXT NOT NULL DEFAULT '',
    exclude_symbols TEXT NOT NULL DEFAULT '',
    updated_at      INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);
`

// cacheSchema holds ephemeral data rebuilt on every sync.
const cacheSchema = `
CREATE TABLE IF NOT EXISTS positions (
    owner       TEXT NOT NULL,
    symbol      TEXT NOT NULL,
    quantity    REAL NOT NULL,
    mark_price  REAL NOT NULL,
    multiplier  REAL NOT NULL DEFAULT 1,
    updated_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
    PRIMARY KEY (owner, symbol)
);

CREATE TABLE IF NOT EXISTS sync_runs (
    owner        TEXT PRIMARY KEY,
    report       BLOB NOT NULL,
    finished_at  INTEGER NOT NULL
);
`
