// ABOUTME: Node data model for the hierarchical content repository
// ABOUTME: Core attributes, version history and typed custom attributes

package node

import (
	"strconv"
	"time"
)

// Node subtypes with structural meaning for path resolution
const (
	SubTypeFolder   = 0   // Plain container
	SubTypeAlias    = 1   // Pointer to another node via OriginDataID
	SubTypeDocument = 144 // Versioned document
)

// Volume subtypes. A volume owns a reciprocal negative identifier
// (-DataID) under which its children are filed.
var volumeSubTypes = map[int]bool{
	141: true, // Enterprise volume
	142: true, // Admin volume
	161: true, // Workflow volume
	525: true, // Personal workspace volume
}

// NodeCoreDetails is the core row of a node in the repository tree.
// DataID is unique among positive identifiers; the negative namespace
// is reserved for volume reciprocals.
type NodeCoreDetails struct {
	ParentID     int64     // Parent identifier (negative under a volume)
	DataID       int64     // Node identifier, always positive
	VersionNum   int64     // Current version number
	Name         string    // Display name, unique per parent
	SubType      int       // Node subtype
	OriginDataID int64     // Alias target (zero for non-aliases)
	OwnerID      int64     // Owning principal
	CreateDate   time.Time // Creation timestamp
	ModifyDate   time.Time // Last modification timestamp
}

// IsAlias reports whether the node is a pointer to another node.
func (d NodeCoreDetails) IsAlias() bool {
	return d.SubType == SubTypeAlias
}

// IsVolume reports whether the node is a volume container.
func (d NodeCoreDetails) IsVolume() bool {
	return volumeSubTypes[d.SubType]
}

// IsDocument reports whether the node is a versioned document.
func (d NodeCoreDetails) IsDocument() bool {
	return d.SubType == SubTypeDocument
}

// IsFolder reports whether the node is a plain folder.
func (d NodeCoreDetails) IsFolder() bool {
	return d.SubType == SubTypeFolder
}

// ChildParentID derives the parent identifier under which this node's
// children are filed: aliases delegate to their origin, volumes file
// children under the negative reciprocal, everything else under DataID.
func (d NodeCoreDetails) ChildParentID() int64 {
	switch {
	case d.IsAlias():
		return d.OriginDataID
	case d.IsVolume():
		return -d.DataID
	default:
		return d.DataID
	}
}

// NodeVersionDetails is one entry in a node's version history.
type NodeVersionDetails struct {
	VersionID      int64     // Version row identifier
	VersionNumber  int64     // Ordinal version number
	CreateDate     time.Time // Version creation time
	ModifyDate     time.Time // Version modification time
	FileCreateDate time.Time // Underlying file creation time
	FileModifyDate time.Time // Underlying file modification time
	Filename       string    // Original filename
	SizeBytes      int64     // Content size in bytes
	MimeType       string    // Content MIME type
}

// NodeAttributeDetails is one typed custom attribute row. Exactly one
// of the value slots is populated, selected by AttributeType.
type NodeAttributeDetails struct {
	Category      string // Category display name
	Attribute     string // Attribute display name within the category
	AttributeType string // Type hint: date, integer, long, real, string

	DateValue   *time.Time
	IntValue    *int
	LongValue   *int64
	RealValue   *float64
	StringValue *string
}

// ValueString formats whichever value slot is populated. Returns the
// empty string when no slot is set.
func (a NodeAttributeDetails) ValueString() string {
	switch {
	case a.DateValue != nil:
		return a.DateValue.Format(DateFormat)
	case a.IntValue != nil:
		return strconv.Itoa(*a.IntValue)
	case a.LongValue != nil:
		return strconv.FormatInt(*a.LongValue, 10)
	case a.RealValue != nil:
		return strconv.FormatFloat(*a.RealValue, 'g', -1, 64)
	case a.StringValue != nil:
		return *a.StringValue
	default:
		return ""
	}
}

// NodeDetails is the full aggregate for a node: core row, version
// history and current-version attributes. It is an immutable snapshot,
// re-fetched rather than mutated in place.
type NodeDetails struct {
	Core       NodeCoreDetails
	Versions   []NodeVersionDetails
	Attributes []NodeAttributeDetails
}

// HasVersions reports whether the node owns any version rows.
func (d NodeDetails) HasVersions() bool {
	return len(d.Versions) > 0
}

// HasAttributes reports whether the node owns any attribute rows.
func (d NodeDetails) HasAttributes() bool {
	return len(d.Attributes) > 0
}

// DateFormat is the canonical date-only text format used for attribute
// values and query literals.
const DateFormat = "2006-01-02"
