package pgstore

const schema = `
CREATE TABLE IF NOT EXISTS otc_codes (
    recipient        TEXT PRIMARY KEY,
    short_code_hash  BYTEA NOT NULL,
    long_code_hash   BYTEA NOT NULL UNIQUE,
    issued_at        TIMESTAMPTZ NOT NULL,
    expires_at       TIMESTAMPTZ NOT NULL,
    failed_attempts  INTEGER NOT NULL DEFAULT 0,
    redirect_url     TEXT NOT NULL DEFAULT '',
    version          UUID NOT NULL
);

CREATE INDEX IF NOT EXISTS otc_codes_expires_at_idx ON otc_codes (expires_at);

CREATE TABLE IF NOT EXISTS password_credentials (
    identity_id      TEXT PRIMARY KEY,
    hash             TEXT NOT NULL,
    last_changed_at  TIMESTAMPTZ NOT NULL,
    failed_attempts  INTEGER NOT NULL DEFAULT 0,
    locked_until     TIMESTAMPTZ NULL,
    version          UUID NOT NULL
);
`
