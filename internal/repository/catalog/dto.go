package catalog

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/02JanDal/spatialvault/internal/domain/collection"
)

// collectionColumns is the select list every catalog query shares, in
// scanCollection order.
const collectionColumns = "id, canonical_name, owner, schema_name, table_name, " +
	"collection_type, title, COALESCE(description, ''), srid, version, created_at, updated_at"

// scanCollection hydrates a domain Collection from a catalog row.
func scanCollection(row pgx.Row) (collection.Collection, error) {
	var (
		id                 uuid.UUID
		name, owner        string
		schema, table      string
		kindStr            string
		title, description string
		srid               int
		version            int64
		createdAt          time.Time
		updatedAt          time.Time
	)
	if err := row.Scan(&id, &name, &owner, &schema, &table, &kindStr, &title,
		&description, &srid, &version, &createdAt, &updatedAt); err != nil {
		return collection.Collection{}, err //nolint:wrapcheck // callers normalize
	}
	kind, err := collection.ParseKind(kindStr)
	if err != nil {
		return collection.Collection{}, fmt.Errorf("hydrate collection %q: %w", name, err)
	}
	return collection.Reconstruct(id, name, owner, schema, table, kind,
		title, description, srid, version, createdAt, updatedAt), nil
}
