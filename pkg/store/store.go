// ABOUTME: Node store adapter over the backing relational database
// ABOUTME: Typed row queries for core, version and attribute details

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jonnycoombes/tarantula/internal/logger"
	"github.com/jonnycoombes/tarantula/internal/metrics"
	"github.com/jonnycoombes/tarantula/internal/worker"
	"github.com/jonnycoombes/tarantula/pkg/node"
)

const coreColumns = "parent_id, data_id, version_num, name, subtype, origin_data_id, owner_id, create_date, modify_date"

// Store executes parameterized queries against the relational schema
// and returns typed rows. The schema is read-only from this layer's
// perspective; Bootstrap exists for embedded and test deployments.
type Store struct {
	db      *sql.DB
	log     *logger.Logger
	pool    *worker.Pool
	metrics *metrics.Metrics
}

// Open connects to the backing database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// SetLogger attaches a structured logger for query logging.
func (s *Store) SetLogger(l *logger.Logger) { s.log = l }

// SetPool routes every query through the bounded worker pool.
func (s *Store) SetPool(p *worker.Pool) { s.pool = p }

// SetMetrics attaches Prometheus instrumentation.
func (s *Store) SetMetrics(m *metrics.Metrics) { s.metrics = m }

// DB exposes the underlying handle for the external write path and for
// fixture loading.
func (s *Store) DB() *sql.DB { return s.db }

// Bootstrap creates the schema if it does not exist.
func (s *Store) Bootstrap() error {
	if _, err := s.db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("store: bootstrap schema: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// ChildByName returns the core row of the child named name under
// parentID. The lookup is restricted to positive identifiers so a
// volume's negative reciprocal can never shadow a real node.
func (s *Store) ChildByName(ctx context.Context, parentID int64, name string) (node.NodeCoreDetails, error) {
	var details node.NodeCoreDetails
	err := s.run(ctx, "child_by_name", func() error {
		query := "SELECT " + coreColumns + " FROM nodes WHERE parent_id = ? AND name = ? AND data_id > 0"
		row := s.db.QueryRowContext(ctx, query, parentID, name)
		var scanErr error
		details, scanErr = scanCore(row)
		return scanErr
	})
	return details, err
}

// CoreByID returns the core row for a node identifier.
func (s *Store) CoreByID(ctx context.Context, id int64) (node.NodeCoreDetails, error) {
	var details node.NodeCoreDetails
	err := s.run(ctx, "core_by_id", func() error {
		query := "SELECT " + coreColumns + " FROM nodes WHERE data_id = ?"
		row := s.db.QueryRowContext(ctx, query, id)
		var scanErr error
		details, scanErr = scanCore(row)
		return scanErr
	})
	return details, err
}

// ChildrenByParent returns the core rows of all children filed under
// parentID, ordered by name.
func (s *Store) ChildrenByParent(ctx context.Context, parentID int64) ([]node.NodeCoreDetails, error) {
	var children []node.NodeCoreDetails
	err := s.run(ctx, "children_by_parent", func() error {
		query := "SELECT " + coreColumns + " FROM nodes WHERE parent_id = ? AND data_id > 0 ORDER BY name"
		rows, err := s.db.QueryContext(ctx, query, parentID)
		if err != nil {
			return node.NewStoreFault("children_by_parent", err)
		}
		defer rows.Close()

		for rows.Next() {
			details, err := scanCore(rows)
			if err != nil {
				return err
			}
			children = append(children, details)
		}
		if err := rows.Err(); err != nil {
			return node.NewStoreFault("children_by_parent", err)
		}
		return nil
	})
	return children, err
}

// VersionsByID returns the version history for a node, ordered by
// version number.
func (s *Store) VersionsByID(ctx context.Context, id int64) ([]node.NodeVersionDetails, error) {
	var versions []node.NodeVersionDetails
	err := s.run(ctx, "versions_by_id", func() error {
		query := `SELECT version_id, version_number, create_date, modify_date,
			file_create_date, file_modify_date, filename, size_bytes, mime_type
			FROM node_versions WHERE data_id = ? ORDER BY version_number`
		rows, err := s.db.QueryContext(ctx, query, id)
		if err != nil {
			return node.NewStoreFault("versions_by_id", err)
		}
		defer rows.Close()

		for rows.Next() {
			var v node.NodeVersionDetails
			var created, modified string
			var fileCreated, fileModified sql.NullString
			if err := rows.Scan(&v.VersionID, &v.VersionNumber, &created, &modified,
				&fileCreated, &fileModified, &v.Filename, &v.SizeBytes, &v.MimeType); err != nil {
				return node.NewStoreFault("versions_by_id", err)
			}
			v.CreateDate = parseTime(created)
			v.ModifyDate = parseTime(modified)
			if fileCreated.Valid {
				v.FileCreateDate = parseTime(fileCreated.String)
			}
			if fileModified.Valid {
				v.FileModifyDate = parseTime(fileModified.String)
			}
			versions = append(versions, v)
		}
		if err := rows.Err(); err != nil {
			return node.NewStoreFault("versions_by_id", err)
		}
		return nil
	})
	return versions, err
}

// AttributesByID returns the typed attribute rows for a node. The join
// against the node's current version number filters out rows written
// under a stale version or stale category definition.
func (s *Store) AttributesByID(ctx context.Context, id int64) ([]node.NodeAttributeDetails, error) {
	var attrs []node.NodeAttributeDetails
	err := s.run(ctx, "attributes_by_id", func() error {
		query := `SELECT a.category, a.attribute, a.attribute_type,
			a.value_date, a.value_int, a.value_long, a.value_real, a.value_string
			FROM node_attributes a
			JOIN nodes n ON n.data_id = a.data_id AND n.version_num = a.version_num
			WHERE a.data_id = ?
			ORDER BY a.category, a.attribute`
		rows, err := s.db.QueryContext(ctx, query, id)
		if err != nil {
			return node.NewStoreFault("attributes_by_id", err)
		}
		defer rows.Close()

		for rows.Next() {
			attr, err := scanAttribute(rows)
			if err != nil {
				return err
			}
			attrs = append(attrs, attr)
		}
		if err := rows.Err(); err != nil {
			return node.NewStoreFault("attributes_by_id", err)
		}
		return nil
	})
	return attrs, err
}

// SelectIDs executes a compiled identifier query and returns the
// matching node ids. Args are the compiled statement's bound
// parameters.
func (s *Store) SelectIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	var ids []int64
	err := s.run(ctx, "select_ids", func() error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return node.NewStoreFault("select_ids", err)
		}
		defer rows.Close()

		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return node.NewStoreFault("select_ids", err)
			}
			ids = append(ids, id)
		}
		if err := rows.Err(); err != nil {
			return node.NewStoreFault("select_ids", err)
		}
		return nil
	})
	return ids, err
}

// run dispatches a query onto the worker pool (when attached) and
// records instrumentation around it.
func (s *Store) run(ctx context.Context, name string, fn func() error) error {
	do := func() error {
		if s.metrics != nil {
			s.metrics.StoreCallsInFlight.Inc()
			defer s.metrics.StoreCallsInFlight.Dec()
		}

		start := time.Now()
		err := fn()
		elapsed := time.Since(start)

		if s.metrics != nil {
			status := "ok"
			switch {
			case errors.Is(err, node.ErrNotFound):
				status = "not_found"
			case err != nil:
				status = "error"
			}
			s.metrics.RecordStoreQuery(name, status, elapsed)
		}
		if s.log != nil && err != nil && !errors.Is(err, node.ErrNotFound) {
			s.log.LogStoreQuery(name, elapsed, 0, err)
		}
		return err
	}

	if s.pool != nil {
		return s.pool.Do(ctx, do)
	}
	return do()
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCore(r rowScanner) (node.NodeCoreDetails, error) {
	var d node.NodeCoreDetails
	var created, modified string
	err := r.Scan(&d.ParentID, &d.DataID, &d.VersionNum, &d.Name, &d.SubType,
		&d.OriginDataID, &d.OwnerID, &created, &modified)
	if errors.Is(err, sql.ErrNoRows) {
		return d, node.ErrNotFound
	}
	if err != nil {
		return d, node.NewStoreFault("scan_core", err)
	}
	d.CreateDate = parseTime(created)
	d.ModifyDate = parseTime(modified)
	return d, nil
}

func scanAttribute(r rowScanner) (node.NodeAttributeDetails, error) {
	var a node.NodeAttributeDetails
	var vDate, vString sql.NullString
	var vInt, vLong sql.NullInt64
	var vReal sql.NullFloat64
	err := r.Scan(&a.Category, &a.Attribute, &a.AttributeType,
		&vDate, &vInt, &vLong, &vReal, &vString)
	if err != nil {
		return a, node.NewStoreFault("scan_attribute", err)
	}

	// Populate the one slot named by the definition's type hint
	switch a.AttributeType {
	case "date":
		if vDate.Valid {
			t := parseTime(vDate.String)
			a.DateValue = &t
		}
	case "integer":
		if vInt.Valid {
			i := int(vInt.Int64)
			a.IntValue = &i
		}
	case "long":
		if vLong.Valid {
			l := vLong.Int64
			a.LongValue = &l
		}
	case "real":
		if vReal.Valid {
			f := vReal.Float64
			a.RealValue = &f
		}
	default:
		if vString.Valid {
			v := vString.String
			a.StringValue = &v
		}
	}
	return a, nil
}

// parseTime decodes a timestamp column, accepting the full layout and
// the date-only prefix.
func parseTime(s string) time.Time {
	if t, err := time.Parse(TimeLayout, s); err == nil {
		return t
	}
	if t, err := time.Parse(node.DateFormat, s); err == nil {
		return t
	}
	return time.Time{}
}

// FormatTime encodes a timestamp for storage or comparison.
func FormatTime(t time.Time) string {
	return t.Format(TimeLayout)
}
