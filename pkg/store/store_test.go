// ABOUTME: Tests for the node store adapter
// ABOUTME: Verifies row queries, identifier restrictions and version matching

package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jonnycoombes/tarantula/pkg/node"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.Bootstrap(); err != nil {
		t.Fatalf("Failed to bootstrap: %v", err)
	}
	return s
}

func seedNode(t *testing.T, s *Store, parentID, dataID, versionNum int64, name string, subtype int, originID int64) {
	t.Helper()
	_, err := s.DB().Exec(
		`INSERT INTO nodes (parent_id, data_id, version_num, name, subtype, origin_data_id, owner_id, create_date, modify_date)
		 VALUES (?, ?, ?, ?, ?, ?, 1000, '2025-01-10 09:00:00', '2025-02-01 10:30:00')`,
		parentID, dataID, versionNum, name, subtype, originID)
	if err != nil {
		t.Fatalf("Failed to seed node %s: %v", name, err)
	}
}

func seedFixtureTree(t *testing.T, s *Store) {
	t.Helper()
	// Enterprise volume at the top level; children file under -2000
	seedNode(t, s, -1, 2000, 0, "Enterprise", 141, 0)
	seedNode(t, s, -2000, 2001, 0, "Finance", node.SubTypeFolder, 0)
	seedNode(t, s, 2001, 2002, 2, "Invoice.pdf", node.SubTypeDocument, 0)
	seedNode(t, s, -2000, 2003, 0, "Finance Shortcut", node.SubTypeAlias, 2001)
}

func TestChildByName(t *testing.T) {
	s := setupTestStore(t)
	seedFixtureTree(t, s)

	got, err := s.ChildByName(context.Background(), -1, "Enterprise")
	if err != nil {
		t.Fatalf("Failed to look up child: %v", err)
	}
	if got.DataID != 2000 || !got.IsVolume() {
		t.Errorf("Got %+v, want volume 2000", got)
	}
	if got.CreateDate.IsZero() || got.ModifyDate.IsZero() {
		t.Errorf("Expected timestamps to be decoded, got %+v", got)
	}

	if _, err := s.ChildByName(context.Background(), -1, "Absent"); !errors.Is(err, node.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestChildByNameIgnoresNegativeIdentifiers(t *testing.T) {
	s := setupTestStore(t)
	// A malformed row in the reciprocal namespace must never resolve
	seedNode(t, s, -1, 2000, 0, "Enterprise", 141, 0)
	if _, err := s.DB().Exec(
		`INSERT INTO nodes (parent_id, data_id, version_num, name, subtype, origin_data_id, owner_id, create_date, modify_date)
		 VALUES (-1, -2000, 0, 'Enterprise', 0, 0, 0, '2025-01-01 00:00:00', '2025-01-01 00:00:00')`); err != nil {
		t.Fatalf("Failed to seed: %v", err)
	}

	got, err := s.ChildByName(context.Background(), -1, "Enterprise")
	if err != nil {
		t.Fatalf("Failed to look up child: %v", err)
	}
	if got.DataID != 2000 {
		t.Errorf("Got data id %d, want the positive identifier 2000", got.DataID)
	}
}

func TestCoreByID(t *testing.T) {
	s := setupTestStore(t)
	seedFixtureTree(t, s)

	got, err := s.CoreByID(context.Background(), 2003)
	if err != nil {
		t.Fatalf("Failed to fetch core row: %v", err)
	}
	if !got.IsAlias() || got.OriginDataID != 2001 {
		t.Errorf("Got %+v, want alias onto 2001", got)
	}

	if _, err := s.CoreByID(context.Background(), 9999); !errors.Is(err, node.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestChildrenByParentOrdering(t *testing.T) {
	s := setupTestStore(t)
	seedFixtureTree(t, s)

	children, err := s.ChildrenByParent(context.Background(), -2000)
	if err != nil {
		t.Fatalf("Failed to list children: %v", err)
	}
	if len(children) != 2 {
		t.Fatalf("Got %d children, want 2", len(children))
	}
	if children[0].Name != "Finance" || children[1].Name != "Finance Shortcut" {
		t.Errorf("Children not ordered by name: %s, %s", children[0].Name, children[1].Name)
	}
}

func TestVersionsByID(t *testing.T) {
	s := setupTestStore(t)
	seedFixtureTree(t, s)

	for _, row := range []struct {
		versionID, versionNumber int64
		filename                 string
	}{
		{11, 2, "invoice_v2.pdf"},
		{10, 1, "invoice_v1.pdf"},
	} {
		if _, err := s.DB().Exec(
			`INSERT INTO node_versions (version_id, data_id, version_number, create_date, modify_date,
				file_create_date, file_modify_date, filename, size_bytes, mime_type)
			 VALUES (?, 2002, ?, '2025-01-15 08:00:00', '2025-01-15 08:00:00', NULL, NULL, ?, 4096, 'application/pdf')`,
			row.versionID, row.versionNumber, row.filename); err != nil {
			t.Fatalf("Failed to seed version: %v", err)
		}
	}

	versions, err := s.VersionsByID(context.Background(), 2002)
	if err != nil {
		t.Fatalf("Failed to fetch versions: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("Got %d versions, want 2", len(versions))
	}
	if versions[0].VersionNumber != 1 || versions[1].VersionNumber != 2 {
		t.Errorf("Versions not ordered: %d, %d", versions[0].VersionNumber, versions[1].VersionNumber)
	}
	if versions[1].Filename != "invoice_v2.pdf" || versions[1].MimeType != "application/pdf" {
		t.Errorf("Version row not decoded: %+v", versions[1])
	}
	if !versions[0].FileCreateDate.IsZero() {
		t.Errorf("NULL file date should decode to zero time")
	}
}

func seedAttributeDefinition(t *testing.T, s *Store, catID, catVersion int64, catName string, attrID int64, attrName, attrType string) {
	t.Helper()
	if _, err := s.DB().Exec(
		`INSERT INTO attribute_definitions (category_id, category_version, category_name, attribute_id, attribute_name, attribute_type)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		catID, catVersion, catName, attrID, attrName, attrType); err != nil {
		t.Fatalf("Failed to seed definition: %v", err)
	}
}

func TestAttributesByIDVersionMatching(t *testing.T) {
	s := setupTestStore(t)
	seedFixtureTree(t, s)

	seedAttributeDefinition(t, s, 5, 3, "Finance", 1, "Status", "string")
	seedAttributeDefinition(t, s, 5, 3, "Finance", 2, "Amount", "integer")

	type valueRow struct {
		versionNum, catVersion, attrID int64
		str                            *string
		intVal                         *int64
	}
	approved := "Approved"
	stale := "Draft"
	amount := int64(250)
	rows := []valueRow{
		{2, 3, 1, &approved, nil}, // current version, current definition
		{2, 3, 2, nil, &amount},   // current version, integer slot
		{1, 3, 1, &stale, nil},    // stale node version, must be excluded
		{2, 9, 1, &stale, nil},    // category version with no definition, must be excluded
	}
	for _, r := range rows {
		if _, err := s.DB().Exec(
			`INSERT INTO attribute_values (data_id, version_num, category_id, category_version, attribute_id, value_string, value_int)
			 VALUES (2002, ?, 5, ?, ?, ?, ?)`,
			r.versionNum, r.catVersion, r.attrID, r.str, r.intVal); err != nil {
			t.Fatalf("Failed to seed value: %v", err)
		}
	}

	attrs, err := s.AttributesByID(context.Background(), 2002)
	if err != nil {
		t.Fatalf("Failed to fetch attributes: %v", err)
	}
	if len(attrs) != 2 {
		t.Fatalf("Got %d attributes, want 2 version-matched rows: %+v", len(attrs), attrs)
	}

	byName := map[string]node.NodeAttributeDetails{}
	for _, a := range attrs {
		byName[a.Attribute] = a
	}

	status := byName["Status"]
	if status.Category != "Finance" || status.StringValue == nil || *status.StringValue != "Approved" {
		t.Errorf("Status attribute wrong: %+v", status)
	}
	am := byName["Amount"]
	if am.IntValue == nil || *am.IntValue != 250 {
		t.Errorf("Amount attribute wrong: %+v", am)
	}
}

func TestSelectIDs(t *testing.T) {
	s := setupTestStore(t)
	seedFixtureTree(t, s)

	ids, err := s.SelectIDs(context.Background(),
		"SELECT data_id FROM nodes WHERE subtype = ? ORDER BY data_id", node.SubTypeFolder)
	if err != nil {
		t.Fatalf("Failed to select ids: %v", err)
	}
	if len(ids) != 1 || ids[0] != 2001 {
		t.Errorf("Got %v, want [2001]", ids)
	}
}

func TestSelectIDsSurfacesFault(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.SelectIDs(context.Background(), "SELECT data_id FROM no_such_table")
	if !node.IsStoreFault(err) {
		t.Errorf("Expected store fault for bad SQL, got %v", err)
	}
}
