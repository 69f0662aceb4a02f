package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Dialect selects the DDL flavor. Production runs on Postgres; tests run the
// same statements against SQLite.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// schemaTemplate is written in Postgres DDL; Schema rewrites the handful of
// type keywords SQLite spells differently. Composite identities from the
// device model are enforced here with COALESCE unique indexes so that absent
// instance labels and EVSE references count as one identity value, not as
// distinct NULLs.
const schemaTemplate = `
CREATE TABLE IF NOT EXISTS stations (
	id TEXT PRIMARY KEY,
	vendor TEXT,
	model TEXT,
	firmware_version TEXT,
	last_seen TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS station_credentials (
	station_id TEXT PRIMARY KEY REFERENCES stations(id),
	password_hash TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS evses (
	database_id BIGSERIAL PRIMARY KEY,
	evse_id INTEGER NOT NULL,
	connector_id INTEGER
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_evses_identity
	ON evses (evse_id, COALESCE(connector_id, -1));

CREATE TABLE IF NOT EXISTS components (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	instance TEXT,
	evse_database_id BIGINT REFERENCES evses(database_id)
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_components_identity
	ON components (name, COALESCE(instance, ''), COALESCE(evse_database_id, -1));

CREATE TABLE IF NOT EXISTS variables (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	instance TEXT
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_variables_identity
	ON variables (name, COALESCE(instance, ''));

CREATE TABLE IF NOT EXISTS component_variables (
	component_id BIGINT NOT NULL REFERENCES components(id),
	variable_id BIGINT NOT NULL REFERENCES variables(id),
	PRIMARY KEY (component_id, variable_id)
);

CREATE TABLE IF NOT EXISTS variable_characteristics (
	id BIGSERIAL PRIMARY KEY,
	variable_id BIGINT NOT NULL UNIQUE REFERENCES variables(id),
	unit TEXT,
	data_type TEXT NOT NULL,
	min_limit DOUBLE PRECISION,
	max_limit DOUBLE PRECISION,
	values_list TEXT,
	supports_monitoring BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS variable_attributes (
	id BIGSERIAL PRIMARY KEY,
	station_id TEXT NOT NULL REFERENCES stations(id),
	variable_id BIGINT NOT NULL REFERENCES variables(id),
	component_id BIGINT NOT NULL REFERENCES components(id),
	evse_database_id BIGINT REFERENCES evses(database_id),
	type TEXT NOT NULL,
	value TEXT,
	data_type TEXT,
	mutability TEXT NOT NULL,
	persistent BOOLEAN NOT NULL DEFAULT FALSE,
	constant BOOLEAN NOT NULL DEFAULT FALSE,
	boot_config_set_id BIGINT,
	generated_at TIMESTAMPTZ NOT NULL,
	UNIQUE (station_id, variable_id, component_id, type)
);

CREATE INDEX IF NOT EXISTS ix_variable_attributes_station
	ON variable_attributes (station_id);

CREATE TABLE IF NOT EXISTS variable_statuses (
	id BIGSERIAL PRIMARY KEY,
	variable_attribute_id BIGINT NOT NULL REFERENCES variable_attributes(id),
	value TEXT,
	status TEXT NOT NULL,
	status_info TEXT,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS ix_variable_statuses_attribute
	ON variable_statuses (variable_attribute_id, created_at);
`

var sqliteRewriter = strings.NewReplacer(
	"BIGSERIAL PRIMARY KEY", "INTEGER PRIMARY KEY AUTOINCREMENT",
	"TIMESTAMPTZ", "DATETIME",
	"DOUBLE PRECISION", "REAL",
	"BIGINT", "INTEGER",
)

// Schema returns the DDL for the given dialect.
func Schema(dialect Dialect) string {
	if dialect == DialectSQLite {
		return sqliteRewriter.Replace(schemaTemplate)
	}
	return schemaTemplate
}

// Migrate applies the schema. All statements are idempotent.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	if _, err := db.ExecContext(ctx, Schema(dialect)); err != nil {
		return fmt.Errorf("repository: apply schema: %w", err)
	}
	return nil
}
