// Package chi exposes the service over HTTP. Identity arrives via
// trusted proxy headers; errors map onto a uniform JSON body.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/02JanDal/spatialvault/internal/db"
	"github.com/02JanDal/spatialvault/internal/domain"
	"github.com/02JanDal/spatialvault/internal/domain/principal"
	"github.com/02JanDal/spatialvault/internal/repository/catalog"
	itemrepo "github.com/02JanDal/spatialvault/internal/repository/item"
	collectionuc "github.com/02JanDal/spatialvault/internal/usecase/collection"
	featureuc "github.com/02JanDal/spatialvault/internal/usecase/feature"
	healthuc "github.com/02JanDal/spatialvault/internal/usecase/health"
	itemuc "github.com/02JanDal/spatialvault/internal/usecase/item"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server routes HTTP requests onto the usecase services.
type Server struct {
	collections   *collectionuc.Service
	features      *featureuc.Service
	items         *itemuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	collections *collectionuc.Service,
	features *featureuc.Service,
	items *itemuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		collections: collections,
		features:    features,
		items:       items,
		health:      health,
		logger:      logger,
	}
	s.errorHandlers = []errorHandler{
		versionConflictHandler,
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
		sentinelHandler(domain.ErrAlreadyExists, http.StatusConflict, CodeAlreadyExists),
		sentinelHandler(domain.ErrForbidden, http.StatusForbidden, CodeForbidden),
		sentinelHandler(db.ErrPermissionDenied, http.StatusForbidden, CodeForbidden),
		sentinelHandler(domain.ErrInvalidName, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrInvalidFilter, http.StatusBadRequest, CodeInvalidFilter),
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, CodeBadRequest),
		sentinelHandler(domain.ErrNotImplemented, http.StatusNotImplemented, CodeNotImplemented),
	}
	return s
}

// Routes builds the HTTP router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(PrincipalMiddleware())

	r.Get("/health", s.HealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/collections", func(r chi.Router) {
		r.Get("/", s.ListCollections)
		r.Post("/", s.CreateCollection)
		r.Route("/{collection}", func(r chi.Router) {
			r.Get("/", s.GetCollection)
			r.Patch("/", s.UpdateCollection)
			r.Put("/", s.ReplaceCollection)
			r.Delete("/", s.DeleteCollection)
			r.Get("/extent", s.GetExtent)
			r.Get("/storage-crs", s.GetStorageCRS)

			r.Get("/shares", s.ListShares)
			r.Put("/shares/{principal}", s.AddShare)
			r.Delete("/shares/{principal}", s.RemoveShare)

			r.Route("/features", func(r chi.Router) {
				r.Get("/", s.ListFeatures)
				r.Post("/", s.CreateFeature)
				r.Get("/{id}", s.GetFeature)
				r.Put("/{id}", s.UpdateFeature)
				r.Delete("/{id}", s.DeleteFeature)
			})

			r.Route("/items", func(r chi.Router) {
				r.Get("/", s.ListItems)
				r.Post("/", s.CreateItem)
				r.Get("/{id}", s.GetItem)
				r.Put("/{id}", s.UpdateItem)
				r.Delete("/{id}", s.DeleteItem)
				r.Get("/{id}/assets", s.ListAssets)
				r.Post("/{id}/assets", s.AddAsset)
				r.Delete("/{id}/assets/{key}", s.RemoveAsset)
			})
		})
	})

	return r
}

// CreateCollection handles POST /collections.
func (s *Server) CreateCollection(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing principal")
		return
	}

	var req createCollectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "Collection name is required")
		return
	}
	if req.Type == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "Collection type is required")
		return
	}

	col, err := s.collections.Create(r.Context(), p, req.Name, req.Type, req.Title, req.Description, req.SRID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	setVersionETag(w, col.Version())
	writeJSON(w, http.StatusCreated, collectionToResponse(col))
}

// ListCollections handles GET /collections.
func (s *Server) ListCollections(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing principal")
		return
	}

	limit, offset, err := pageParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	cols, err := s.collections.List(r.Context(), p, limit, offset)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]CollectionResponse, len(cols))
	for i, c := range cols {
		items[i] = collectionToResponse(c)
	}
	writeJSON(w, http.StatusOK, CollectionListResponse{Collections: items})
}

// GetCollection handles GET /collections/{collection}. A name that only
// survives as an alias redirects to its current location.
func (s *Server) GetCollection(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing principal")
		return
	}
	name := chi.URLParam(r, "collection")

	col, err := s.collections.Get(r.Context(), p, name)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) && s.redirectAlias(w, r, p, name) {
			return
		}
		s.handleDomainError(w, err)
		return
	}

	setVersionETag(w, col.Version())
	writeJSON(w, http.StatusOK, collectionToResponse(col))
}

// UpdateCollection handles PATCH /collections/{collection}.
func (s *Server) UpdateCollection(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing principal")
		return
	}
	expectedVersion, err := parseIfMatch(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	var req updateCollectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	col, err := s.collections.Update(r.Context(), p, chi.URLParam(r, "collection"), expectedVersion,
		catalog.UpdateParams{Title: req.Title, Description: req.Description, NewName: req.NewName})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	setVersionETag(w, col.Version())
	writeJSON(w, http.StatusOK, collectionToResponse(col))
}

// ReplaceCollection handles PUT /collections/{collection}.
func (s *Server) ReplaceCollection(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing principal")
		return
	}
	expectedVersion, err := parseIfMatch(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	var req replaceCollectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	col, err := s.collections.Replace(r.Context(), p, chi.URLParam(r, "collection"), expectedVersion,
		req.Title, req.Description)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	setVersionETag(w, col.Version())
	writeJSON(w, http.StatusOK, collectionToResponse(col))
}

// DeleteCollection handles DELETE /collections/{collection}.
func (s *Server) DeleteCollection(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing principal")
		return
	}
	expectedVersion, err := parseIfMatch(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	if err := s.collections.Delete(r.Context(), p, chi.URLParam(r, "collection"), expectedVersion); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetExtent handles GET /collections/{collection}/extent.
func (s *Server) GetExtent(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing principal")
		return
	}

	ext, err := s.collections.Extent(r.Context(), p, chi.URLParam(r, "collection"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, extentToResponse(ext))
}

// GetStorageCRS handles GET /collections/{collection}/storage-crs.
func (s *Server) GetStorageCRS(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing principal")
		return
	}

	srid, err := s.collections.StorageSRID(r.Context(), p, chi.URLParam(r, "collection"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StorageCRSResponse{SRID: srid})
}

// ListShares handles GET /collections/{collection}/shares.
func (s *Server) ListShares(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing principal")
		return
	}

	entries, err := s.collections.ListShares(r.Context(), p, chi.URLParam(r, "collection"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sharesToResponse(entries))
}

// AddShare handles PUT /collections/{collection}/shares/{principal}.
func (s *Server) AddShare(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing principal")
		return
	}

	var req shareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	err := s.collections.AddShare(r.Context(), p, chi.URLParam(r, "collection"),
		chi.URLParam(r, "principal"), req.Permission)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveShare handles DELETE /collections/{collection}/shares/{principal}.
func (s *Server) RemoveShare(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing principal")
		return
	}

	err := s.collections.RemoveShare(r.Context(), p, chi.URLParam(r, "collection"),
		chi.URLParam(r, "principal"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListFeatures handles GET /collections/{collection}/features.
func (s *Server) ListFeatures(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing principal")
		return
	}
	name := chi.URLParam(r, "collection")

	params, err := featureListParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	page, err := s.features.List(r.Context(), p, name, params)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) && s.redirectAlias(w, r, p, name) {
			return
		}
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, featurePageToResponse(page))
}

// GetFeature handles GET /collections/{collection}/features/{id}.
func (s *Server) GetFeature(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing principal")
		return
	}
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	f, err := s.features.Get(r.Context(), p, chi.URLParam(r, "collection"), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	setVersionETag(w, f.Version())
	writeJSON(w, http.StatusOK, featureToResponse(f))
}

// CreateFeature handles POST /collections/{collection}/features.
func (s *Server) CreateFeature(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing principal")
		return
	}

	var req featureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	f, err := s.features.Create(r.Context(), p, chi.URLParam(r, "collection"), req.Geometry, req.Properties)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	setVersionETag(w, f.Version())
	writeJSON(w, http.StatusCreated, featureToResponse(f))
}

// UpdateFeature handles PUT /collections/{collection}/features/{id}.
func (s *Server) UpdateFeature(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing principal")
		return
	}
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	expectedVersion, err := parseIfMatch(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	var req featureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	f, err := s.features.Update(r.Context(), p, chi.URLParam(r, "collection"), id, expectedVersion,
		req.Geometry, req.Properties)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	setVersionETag(w, f.Version())
	writeJSON(w, http.StatusOK, featureToResponse(f))
}

// DeleteFeature handles DELETE /collections/{collection}/features/{id}.
func (s *Server) DeleteFeature(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing principal")
		return
	}
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	expectedVersion, err := parseIfMatch(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	if err := s.features.Delete(r.Context(), p, chi.URLParam(r, "collection"), id, expectedVersion); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListItems handles GET /collections/{collection}/items.
func (s *Server) ListItems(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing principal")
		return
	}
	name := chi.URLParam(r, "collection")

	params, err := itemListParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	page, err := s.items.List(r.Context(), p, name, params)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) && s.redirectAlias(w, r, p, name) {
			return
		}
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, itemPageToResponse(page))
}

// GetItem handles GET /collections/{collection}/items/{id}.
func (s *Server) GetItem(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing principal")
		return
	}
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	it, err := s.items.Get(r.Context(), p, chi.URLParam(r, "collection"), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	setVersionETag(w, it.Version())
	writeJSON(w, http.StatusOK, itemToResponse(it))
}

// CreateItem handles POST /collections/{collection}/items.
func (s *Server) CreateItem(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing principal")
		return
	}

	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	it, err := s.items.Create(r.Context(), p, chi.URLParam(r, "collection"), req.Geometry, req.Datetime, req.Properties)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	setVersionETag(w, it.Version())
	writeJSON(w, http.StatusCreated, itemToResponse(it))
}

// UpdateItem handles PUT /collections/{collection}/items/{id}.
func (s *Server) UpdateItem(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing principal")
		return
	}
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	expectedVersion, err := parseIfMatch(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	it, err := s.items.Update(r.Context(), p, chi.URLParam(r, "collection"), id, expectedVersion,
		itemrepo.UpdateParams{Geometry: req.Geometry, Datetime: req.Datetime, Properties: req.Properties})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	setVersionETag(w, it.Version())
	writeJSON(w, http.StatusOK, itemToResponse(it))
}

// DeleteItem handles DELETE /collections/{collection}/items/{id}.
func (s *Server) DeleteItem(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing principal")
		return
	}
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	expectedVersion, err := parseIfMatch(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	if err := s.items.Delete(r.Context(), p, chi.URLParam(r, "collection"), id, expectedVersion); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListAssets handles GET /collections/{collection}/items/{id}/assets.
func (s *Server) ListAssets(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing principal")
		return
	}
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	assets, err := s.items.ListAssets(r.Context(), p, chi.URLParam(r, "collection"), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	resp := AssetListResponse{Assets: make([]AssetResponse, len(assets))}
	for i, a := range assets {
		resp.Assets[i] = assetToResponse(a)
	}
	writeJSON(w, http.StatusOK, resp)
}

// AddAsset handles POST /collections/{collection}/items/{id}/assets.
func (s *Server) AddAsset(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing principal")
		return
	}
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	var req assetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	a, err := s.items.AddAsset(r.Context(), p, chi.URLParam(r, "collection"), id,
		req.Key, req.Href, req.MediaType, req.Title, req.Description, req.Roles, req.FileSize)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, assetToResponse(a))
}

// RemoveAsset handles DELETE /collections/{collection}/items/{id}/assets/{key}.
func (s *Server) RemoveAsset(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing principal")
		return
	}
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	err = s.items.RemoveAsset(r.Context(), p, chi.URLParam(r, "collection"), id, chi.URLParam(r, "key"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, HealthResponse{Status: string(report.Status), Checks: checks})
}

// redirectAlias answers a renamed collection's old name with a temporary
// redirect to the same path under the current name. Returns true when a
// redirect was written.
func (s *Server) redirectAlias(w http.ResponseWriter, r *http.Request, p principal.Principal, name string) bool {
	target, found, err := s.collections.ResolveAlias(r.Context(), p, name)
	if err != nil || !found {
		return false
	}
	location := strings.Replace(r.URL.Path, name, target, 1)
	http.Redirect(w, r, location, http.StatusTemporaryRedirect)
	return true
}

func featureListParams(r *http.Request) (featureuc.ListParams, error) {
	q := r.URL.Query()
	params := featureuc.ListParams{Filter: q.Get("filter")}

	var err error
	if params.Limit, params.Offset, err = pageParams(r); err != nil {
		return featureuc.ListParams{}, err
	}
	if params.BBox, err = parseBBoxParam(q.Get("bbox")); err != nil {
		return featureuc.ListParams{}, err
	}
	return params, nil
}

func itemListParams(r *http.Request) (itemuc.ListParams, error) {
	q := r.URL.Query()
	params := itemuc.ListParams{Filter: q.Get("filter"), Datetime: q.Get("datetime")}

	var err error
	if params.Limit, params.Offset, err = pageParams(r); err != nil {
		return itemuc.ListParams{}, err
	}
	if params.BBox, err = parseBBoxParam(q.Get("bbox")); err != nil {
		return itemuc.ListParams{}, err
	}
	return params, nil
}

func pageParams(r *http.Request) (limit, offset int, err error) {
	q := r.URL.Query()
	if raw := q.Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil {
			return 0, 0, errors.New("limit must be an integer")
		}
	}
	if raw := q.Get("offset"); raw != "" {
		if offset, err = strconv.Atoi(raw); err != nil {
			return 0, 0, errors.New("offset must be an integer")
		}
	}
	return limit, offset, nil
}

func parseBBoxParam(raw string) ([]float64, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	coords := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, errors.New("bbox must be comma-separated numbers")
		}
		coords[i] = v
	}
	return coords, nil
}

func parseID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, errors.New("id must be a UUID")
	}
	return id, nil
}

// parseIfMatch reads the expected version from a quoted If-Match header.
// An absent header means unconditional.
func parseIfMatch(r *http.Request) (*int64, error) {
	raw := r.Header.Get("If-Match")
	if raw == "" {
		return nil, nil
	}
	unquoted, err := strconv.Unquote(raw)
	if err != nil {
		return nil, errors.New("If-Match must be a quoted version")
	}
	v, err := strconv.ParseInt(unquoted, 10, 64)
	if err != nil {
		return nil, errors.New("If-Match must be a quoted version number")
	}
	return &v, nil
}

func setVersionETag(w http.ResponseWriter, version int64) {
	w.Header().Set("ETag", strconv.Quote(strconv.FormatInt(version, 10)))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client
// without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrAlreadyExists,
		domain.ErrForbidden,
		domain.ErrVersionConflict,
		domain.ErrInvalidName,
		domain.ErrInvalidFilter,
		domain.ErrInvalidQuery,
		domain.ErrNotImplemented,
		db.ErrPermissionDenied,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// versionConflictHandler handles ErrVersionConflict with ETag header and
// the current version in the body.
func versionConflictHandler(w http.ResponseWriter, err error, msg string) bool {
	if !errors.Is(err, domain.ErrVersionConflict) {
		return false
	}
	var vc *domain.VersionConflictError
	if errors.As(err, &vc) {
		setVersionETag(w, vc.CurrentVersion)
		writeJSON(w, http.StatusConflict, map[string]any{
			"code":            CodeVersionConflict,
			"message":         msg,
			"current_version": vc.CurrentVersion,
		})
		return true
	}
	writeError(w, http.StatusConflict, CodeVersionConflict, msg)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
