package collection

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var segmentRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_-]*$`)

const (
	// DefaultSRID is the spatial reference assumed when none is supplied.
	DefaultSRID = 4326
	// SharedSchema is the schema holding catalog and shared item storage.
	SharedSchema = "spatialvault"
	// SharedItemsTable holds raster and point cloud records for all collections.
	SharedItemsTable = "items"

	maxSegmentLen = 63
)

// Kind is the closed set of collection storage kinds.
type Kind int

const (
	// KindVector stores features in a dedicated per-collection table.
	KindVector Kind = iota + 1
	// KindRaster stores items in the shared items table.
	KindRaster
	// KindPointCloud stores items in the shared items table.
	KindPointCloud
)

// ParseKind maps the wire representation to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "vector":
		return KindVector, nil
	case "raster":
		return KindRaster, nil
	case "pointcloud":
		return KindPointCloud, nil
	default:
		return 0, fmt.Errorf("unknown collection type: %q", s)
	}
}

func (k Kind) String() string {
	switch k {
	case KindVector:
		return "vector"
	case KindRaster:
		return "raster"
	case KindPointCloud:
		return "pointcloud"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// DedicatedTable reports whether records of this kind live in a
// per-collection table rather than the shared items table.
func (k Kind) DedicatedTable() (bool, error) {
	switch k {
	case KindVector:
		return true, nil
	case KindRaster, KindPointCloud:
		return false, nil
	default:
		return false, fmt.Errorf("unknown collection kind %d", int(k))
	}
}

// Descriptor identifies a physical storage location.
type Descriptor struct {
	Schema string
	Table  string
}

// ParseName splits a canonical name into its owner segment and the
// remaining segments. A canonical name is owner:segment[:segment...].
func ParseName(name string) (owner string, rest []string, err error) {
	parts := strings.Split(name, ":")
	if len(parts) < 2 {
		return "", nil, fmt.Errorf("collection name must be owner:name, got %q", name)
	}
	for _, p := range parts {
		if err := validateSegment(p); err != nil {
			return "", nil, err
		}
	}
	return parts[0], parts[1:], nil
}

func validateSegment(s string) error {
	if s == "" {
		return fmt.Errorf("collection name segment is empty")
	}
	if len(s) > maxSegmentLen {
		return fmt.Errorf("collection name segment too long (max %d): %q", maxSegmentLen, s)
	}
	if !segmentRegex.MatchString(s) {
		return fmt.Errorf("collection name segment must start with a letter or underscore and contain only alphanumerics, underscores and hyphens: %q", s)
	}
	return nil
}

// NameDescriptor derives the name-scoped {schema, table} pair from a
// canonical name: schema is the owner segment, table the remaining
// segments joined with underscores. For dedicated-table collections this
// is the physical storage location; grants always target it.
func NameDescriptor(name string) (Descriptor, error) {
	owner, rest, err := ParseName(name)
	if err != nil {
		return Descriptor{}, err
	}
	return Descriptor{Schema: owner, Table: strings.Join(rest, "_")}, nil
}

// Collection is the tenant-visible resource (immutable value object).
// The schema and table names are fixed at creation from the canonical
// name; a later rename changes the name but never moves physical storage.
type Collection struct {
	id          uuid.UUID
	name        string
	owner       string
	schemaName  string
	tableName   string
	kind        Kind
	title       string
	description string
	srid        int
	version     int64
	createdAt   time.Time
	updatedAt   time.Time
}

// New validates and creates a Collection at version 1, deriving the
// storage location from the canonical name.
func New(name string, kind Kind, title, description string, srid int) (Collection, error) {
	owner, _, err := ParseName(name)
	if err != nil {
		return Collection{}, err
	}
	if _, err := kind.DedicatedTable(); err != nil {
		return Collection{}, err
	}
	if srid == 0 {
		srid = DefaultSRID
	}
	if srid < 0 {
		return Collection{}, fmt.Errorf("srid must be positive, got %d", srid)
	}
	d, err := NameDescriptor(name)
	if err != nil {
		return Collection{}, err
	}
	if len(d.Table) > maxSegmentLen {
		return Collection{}, fmt.Errorf("derived table name too long (max %d): %q", maxSegmentLen, d.Table)
	}
	now := time.Now().UTC()
	return Collection{
		id:          uuid.New(),
		name:        name,
		owner:       owner,
		schemaName:  d.Schema,
		tableName:   d.Table,
		kind:        kind,
		title:       title,
		description: description,
		srid:        srid,
		version:     1,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// Reconstruct creates a Collection without validation (storage hydration).
func Reconstruct(
	id uuid.UUID, name, owner, schemaName, tableName string, kind Kind,
	title, description string, srid int,
	version int64, createdAt, updatedAt time.Time,
) Collection {
	return Collection{
		id:          id,
		name:        name,
		owner:       owner,
		schemaName:  schemaName,
		tableName:   tableName,
		kind:        kind,
		title:       title,
		description: description,
		srid:        srid,
		version:     version,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}
}

// ID returns the stable collection identifier.
func (c Collection) ID() uuid.UUID { return c.id }

// Name returns the canonical name (owner:segment[:segment...]).
func (c Collection) Name() string { return c.name }

// Owner returns the owning principal or group name.
func (c Collection) Owner() string { return c.owner }

// SchemaName returns the schema holding the collection's dedicated table.
func (c Collection) SchemaName() string { return c.schemaName }

// TableName returns the collection's dedicated table name.
func (c Collection) TableName() string { return c.tableName }

// Kind returns the collection storage kind.
func (c Collection) Kind() Kind { return c.kind }

// Title returns the display title.
func (c Collection) Title() string { return c.title }

// Description returns the free-text description.
func (c Collection) Description() string { return c.description }

// SRID returns the spatial reference of the collection's geometry.
func (c Collection) SRID() int { return c.srid }

// Version returns the optimistic concurrency token.
func (c Collection) Version() int64 { return c.version }

// CreatedAt returns the creation timestamp.
func (c Collection) CreatedAt() time.Time { return c.createdAt }

// UpdatedAt returns the last mutation timestamp.
func (c Collection) UpdatedAt() time.Time { return c.updatedAt }

// Storage resolves the physical storage target for this collection.
// Vector collections get their dedicated table derived from the canonical
// name; raster and point cloud collections share the items table, scoped
// by collection id.
func (c Collection) Storage() (Descriptor, error) {
	dedicated, err := c.kind.DedicatedTable()
	if err != nil {
		return Descriptor{}, err
	}
	if !dedicated {
		return Descriptor{Schema: SharedSchema, Table: SharedItemsTable}, nil
	}
	return Descriptor{Schema: c.schemaName, Table: c.tableName}, nil
}
