package tracker

// createSchemaSQL is the DDL for the updates table. One row per applied
// update file; rows are never updated or deleted.
const createSchemaSQL = `CREATE TABLE IF NOT EXISTS updates (
    update_id        BIGSERIAL PRIMARY KEY,
    update_filename  TEXT NOT NULL UNIQUE,
    update_checksum  TEXT NOT NULL DEFAULT '',
    update_created   TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
