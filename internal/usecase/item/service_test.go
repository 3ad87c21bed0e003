package item

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/02JanDal/spatialvault/internal/domain"
	domcol "github.com/02JanDal/spatialvault/internal/domain/collection"
	domitem "github.com/02JanDal/spatialvault/internal/domain/item"
)

func rasterFixture(t *testing.T) (*mockRepository, *mockResolver, *Service) {
	t.Helper()
	col := mustCollection(t, "alice:imagery", domcol.KindRaster)
	repo := &mockRepository{}
	resolver := &mockResolver{cols: map[string]domcol.Collection{col.Name(): col}}
	return repo, resolver, New(repo, resolver)
}

func TestParseInterval(t *testing.T) {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := map[string]struct {
		input      string
		start, end *time.Time
	}{
		"closed":     {"2023-01-01T00:00:00Z/2023-06-01T00:00:00Z", &start, &end},
		"open start": {"../2023-06-01T00:00:00Z", nil, &end},
		"open end":   {"2023-01-01T00:00:00Z/..", &start, nil},
		"instant":    {"2023-01-01T00:00:00Z", &start, &start},
	}
	for name, tt := range tests {
		gotStart, gotEnd, err := ParseInterval(tt.input)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", name, err)
			continue
		}
		if !equalBound(gotStart, tt.start) || !equalBound(gotEnd, tt.end) {
			t.Errorf("%s: got %v/%v, want %v/%v", name, gotStart, gotEnd, tt.start, tt.end)
		}
	}
}

func equalBound(got, want *time.Time) bool {
	if (got == nil) != (want == nil) {
		return false
	}
	return got == nil || got.Equal(*want)
}

func TestParseInterval_Invalid(t *testing.T) {
	for name, input := range map[string]string{
		"both open":   "../..",
		"end first":   "2023-06-01T00:00:00Z/2023-01-01T00:00:00Z",
		"three parts": "a/b/c",
		"not rfc3339": "January 1st",
		"date only":   "2023-01-01",
	} {
		if _, _, err := ParseInterval(input); !errors.Is(err, domain.ErrInvalidQuery) {
			t.Errorf("%s: error = %v, want ErrInvalidQuery", name, err)
		}
	}
}

func TestList_IntervalReachesQuery(t *testing.T) {
	repo, _, svc := rasterFixture(t)

	_, err := svc.List(context.Background(), mustPrincipal(t, "alice"), "imagery",
		ListParams{Datetime: "2023-01-01T00:00:00Z/.."})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	q := repo.queries[0]
	if q.DatetimeStart == nil || q.DatetimeEnd != nil {
		t.Errorf("interval = %v/%v, want open end", q.DatetimeStart, q.DatetimeEnd)
	}
}

func TestList_RejectsVectorCollection(t *testing.T) {
	col := mustCollection(t, "alice:city:roads", domcol.KindVector)
	resolver := &mockResolver{cols: map[string]domcol.Collection{col.Name(): col}}
	svc := New(&mockRepository{}, resolver)

	_, err := svc.List(context.Background(), mustPrincipal(t, "alice"), "city:roads", ListParams{})
	if !errors.Is(err, domain.ErrInvalidQuery) {
		t.Fatalf("error = %v, want ErrInvalidQuery", err)
	}
}

func TestList_RunsAsPrincipal(t *testing.T) {
	repo, _, svc := rasterFixture(t)

	_, err := svc.List(context.Background(), mustPrincipal(t, "bob"), "alice:imagery", ListParams{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.roles[0] != "bob" {
		t.Errorf("role = %q, want bob", repo.roles[0])
	}
}

func TestCreate_Success(t *testing.T) {
	repo, _, svc := rasterFixture(t)
	dt := time.Date(2023, 3, 15, 10, 30, 0, 0, time.UTC)

	it, err := svc.Create(context.Background(), mustPrincipal(t, "alice"), "imagery",
		geojson.NewGeometry(orb.Point{11.6, 48.1}), &dt, map[string]any{"cloud_cover": 12.5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if it.Version() != 1 || it.Datetime() == nil {
		t.Errorf("item = %+v", it)
	}
	if len(repo.created) != 1 {
		t.Fatalf("created = %d items", len(repo.created))
	}
	if repo.created[0].CollectionID() == uuid.Nil {
		t.Error("collection id not set")
	}
}

func TestCreate_MissingGeometry(t *testing.T) {
	_, _, svc := rasterFixture(t)

	_, err := svc.Create(context.Background(), mustPrincipal(t, "alice"), "imagery", nil, nil, nil)
	if !errors.Is(err, domain.ErrInvalidQuery) {
		t.Fatalf("error = %v, want ErrInvalidQuery", err)
	}
}

func TestAddAsset(t *testing.T) {
	repo, _, svc := rasterFixture(t)
	itemID := uuid.New()

	a, err := svc.AddAsset(context.Background(), mustPrincipal(t, "alice"), "imagery", itemID,
		"thumbnail", "s3://bucket/thumb.png", "image/png", "Thumbnail", "", []string{"thumbnail"}, 2048)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Key != "thumbnail" || a.MediaType != "image/png" || a.FileSize != 2048 {
		t.Errorf("asset = %+v", a)
	}
	if len(repo.assets) != 1 {
		t.Fatalf("assets = %d", len(repo.assets))
	}
}

func TestAddAsset_ItemMissing(t *testing.T) {
	repo, _, svc := rasterFixture(t)
	repo.getFn = func(collectionID, id uuid.UUID) (domitem.Item, error) {
		return domitem.Item{}, fmt.Errorf("item %s: %w", id, domain.ErrNotFound)
	}

	_, err := svc.AddAsset(context.Background(), mustPrincipal(t, "alice"), "imagery", uuid.New(),
		"thumbnail", "s3://bucket/thumb.png", "", "", "", nil, 0)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestAddAsset_MissingKey(t *testing.T) {
	_, _, svc := rasterFixture(t)

	_, err := svc.AddAsset(context.Background(), mustPrincipal(t, "alice"), "imagery", uuid.New(),
		"", "s3://bucket/thumb.png", "", "", "", nil, 0)
	if !errors.Is(err, domain.ErrInvalidQuery) {
		t.Fatalf("error = %v, want ErrInvalidQuery", err)
	}
}

func TestRemoveAsset(t *testing.T) {
	repo, _, svc := rasterFixture(t)
	var gotKey string
	repo.deleteAssetFn = func(itemID uuid.UUID, key string) error {
		gotKey = key
		return nil
	}

	err := svc.RemoveAsset(context.Background(), mustPrincipal(t, "alice"), "imagery", uuid.New(), "thumbnail")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotKey != "thumbnail" {
		t.Errorf("key = %q", gotKey)
	}
}

func TestDelete_PropagatesConflict(t *testing.T) {
	repo, _, svc := rasterFixture(t)
	repo.deleteFn = func(collectionID, id uuid.UUID, expectedVersion *int64) error {
		return domain.NewVersionConflict(3)
	}

	err := svc.Delete(context.Background(), mustPrincipal(t, "alice"), "imagery", uuid.New(), nil)
	if !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("error = %v, want ErrVersionConflict", err)
	}
}
