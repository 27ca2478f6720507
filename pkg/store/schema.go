// ABOUTME: Relational schema for the node repository
// ABOUTME: Core node table, version table and the attribute-lookup view

package store

// Physical schema names referenced by the adapter and the query
// compiler. The attribute-lookup view joins raw values to their
// category/attribute definitions so consumers only ever see
// display-name keyed, definition-matched rows.
const (
	TableNodes    = "nodes"
	TableVersions = "node_versions"
	ViewAttrs     = "node_attributes"
)

// TimeLayout is the text encoding for timestamp columns. Lexicographic
// order matches chronological order so compiled date comparisons work
// directly on the column.
const TimeLayout = "2006-01-02 15:04:05"

const schemaDDL = `
CREATE TABLE IF NOT EXISTS nodes (
	data_id        INTEGER PRIMARY KEY,
	parent_id      INTEGER NOT NULL,
	version_num    INTEGER NOT NULL DEFAULT 0,
	name           TEXT    NOT NULL,
	subtype        INTEGER NOT NULL DEFAULT 0,
	origin_data_id INTEGER NOT NULL DEFAULT 0,
	owner_id       INTEGER NOT NULL DEFAULT 0,
	create_date    TEXT    NOT NULL,
	modify_date    TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_nodes_parent_name ON nodes(parent_id, name);

CREATE TABLE IF NOT EXISTS node_versions (
	version_id       INTEGER PRIMARY KEY,
	data_id          INTEGER NOT NULL,
	version_number   INTEGER NOT NULL,
	create_date      TEXT    NOT NULL,
	modify_date      TEXT    NOT NULL,
	file_create_date TEXT,
	file_modify_date TEXT,
	filename         TEXT    NOT NULL DEFAULT '',
	size_bytes       INTEGER NOT NULL DEFAULT 0,
	mime_type        TEXT    NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_versions_node ON node_versions(data_id, version_number);

CREATE TABLE IF NOT EXISTS attribute_values (
	data_id          INTEGER NOT NULL,
	version_num      INTEGER NOT NULL,
	category_id      INTEGER NOT NULL,
	category_version INTEGER NOT NULL,
	attribute_id     INTEGER NOT NULL,
	value_date       TEXT,
	value_int        INTEGER,
	value_long       INTEGER,
	value_real       REAL,
	value_string     TEXT
);
CREATE INDEX IF NOT EXISTS idx_attr_values_node ON attribute_values(data_id, version_num);

CREATE TABLE IF NOT EXISTS attribute_definitions (
	category_id      INTEGER NOT NULL,
	category_version INTEGER NOT NULL,
	category_name    TEXT    NOT NULL,
	attribute_id     INTEGER NOT NULL,
	attribute_name   TEXT    NOT NULL,
	attribute_type   TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_attr_defs_lookup ON attribute_definitions(category_id, category_version, attribute_id);

CREATE VIEW IF NOT EXISTS node_attributes AS
	SELECT v.data_id          AS data_id,
	       v.version_num      AS version_num,
	       d.category_name    AS category,
	       d.attribute_name   AS attribute,
	       d.attribute_type   AS attribute_type,
	       v.value_date       AS value_date,
	       v.value_int        AS value_int,
	       v.value_long       AS value_long,
	       v.value_real       AS value_real,
	       v.value_string     AS value_string
	FROM attribute_values v
	JOIN attribute_definitions d
	  ON d.category_id = v.category_id
	 AND d.category_version = v.category_version
	 AND d.attribute_id = v.attribute_id;
`
