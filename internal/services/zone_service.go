package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"delivery-pricing/internal/apperror"
	"delivery-pricing/internal/database"
	"delivery-pricing/internal/logger"
	"delivery-pricing/internal/metrics"
	"delivery-pricing/internal/models"
	"delivery-pricing/internal/redis"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const zoneColumns = `id, name, city, shape, polygon, center_lat, center_lon, radius_km,
		delivery_fee, free_delivery_threshold, is_active, created_at, updated_at`

// ZoneService хранит зоны доставки и определяет зону для адреса.
type ZoneService struct {
	db       *database.DB
	cache    *redis.Client
	log      *logger.Logger
	resolver *GeoZoneResolver
	metrics  *metrics.PricingMetrics
	ttl      time.Duration
}

// NewZoneService создаёт сервис зон. cache и metrics могут быть nil.
func NewZoneService(db *database.DB, cache *redis.Client, log *logger.Logger, resolver *GeoZoneResolver, m *metrics.PricingMetrics, ttl time.Duration) *ZoneService {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &ZoneService{
		db:       db,
		cache:    cache,
		log:      log,
		resolver: resolver,
		metrics:  m,
		ttl:      ttl,
	}
}

// CreateZone создаёт зону доставки.
func (s *ZoneService) CreateZone(ctx context.Context, req *models.ZoneRequest) (*models.DeliveryZone, error) {
	zone, err := zoneFromRequest(req)
	if err != nil {
		return nil, apperror.Validation(err.Error(), err)
	}
	zone.ID = uuid.New()
	zone.CreatedAt = time.Now()
	zone.UpdatedAt = zone.CreatedAt

	polygon, err := json.Marshal(zone.Polygon)
	if err != nil {
		return nil, fmt.Errorf("failed to encode polygon: %w", err)
	}

	query := `
		INSERT INTO delivery_zones (id, name, city, shape, polygon, center_lat, center_lon, radius_km,
			delivery_fee, free_delivery_threshold, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	if _, err := s.db.ExecContext(ctx, query, zone.ID, zone.Name, zone.City, zone.Shape, string(polygon),
		zone.CenterLat, zone.CenterLon, zone.RadiusKm, zone.DeliveryFee, zone.FreeDeliveryThreshold,
		zone.Active, zone.CreatedAt, zone.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to create zone: %w", err)
	}

	s.InvalidateCity(ctx, zone.City)
	s.log.WithFields(logrus.Fields{"zone_id": zone.ID, "zone": zone.Name, "city": zone.City}).Info("Delivery zone created")
	return zone, nil
}

// UpdateZone обновляет зону; кеш сбрасывается для старого и нового города.
func (s *ZoneService) UpdateZone(ctx context.Context, id uuid.UUID, req *models.ZoneRequest) (*models.DeliveryZone, error) {
	zone, err := zoneFromRequest(req)
	if err != nil {
		return nil, apperror.Validation(err.Error(), err)
	}

	existing, err := s.GetZone(ctx, id)
	if err != nil {
		return nil, err
	}

	polygon, err := json.Marshal(zone.Polygon)
	if err != nil {
		return nil, fmt.Errorf("failed to encode polygon: %w", err)
	}

	query := `
		UPDATE delivery_zones
		SET name = $1, city = $2, shape = $3, polygon = $4, center_lat = $5, center_lon = $6, radius_km = $7,
			delivery_fee = $8, free_delivery_threshold = $9, is_active = $10, updated_at = $11
		WHERE id = $12
	`
	result, err := s.db.ExecContext(ctx, query, zone.Name, zone.City, zone.Shape, string(polygon),
		zone.CenterLat, zone.CenterLon, zone.RadiusKm, zone.DeliveryFee, zone.FreeDeliveryThreshold,
		zone.Active, time.Now(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update zone: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, apperror.NotFound("zone not found", nil)
	}

	s.InvalidateCity(ctx, existing.City)
	if !strings.EqualFold(existing.City, zone.City) {
		s.InvalidateCity(ctx, zone.City)
	}
	s.log.WithFields(logrus.Fields{"zone_id": id, "city": zone.City}).Info("Delivery zone updated")

	return s.GetZone(ctx, id)
}

// GetZone возвращает зону по ID.
func (s *ZoneService) GetZone(ctx context.Context, id uuid.UUID) (*models.DeliveryZone, error) {
	query := `SELECT ` + zoneColumns + ` FROM delivery_zones WHERE id = $1`
	zone, err := scanZone(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("zone not found", err)
		}
		return nil, fmt.Errorf("failed to get zone: %w", err)
	}
	return zone, nil
}

// ListZones возвращает все зоны, при непустом city только зоны этого города.
func (s *ZoneService) ListZones(ctx context.Context, city string) ([]models.DeliveryZone, error) {
	query := `SELECT ` + zoneColumns + ` FROM delivery_zones`
	var args []interface{}
	if city != "" {
		query += ` WHERE LOWER(city) = LOWER($1)`
		args = append(args, city)
	}
	query += ` ORDER BY city, name, id`
	return s.queryZones(ctx, s.db, query, args...)
}

// ZonesForCity возвращает активные зоны города из кеша или базы.
func (s *ZoneService) ZonesForCity(ctx context.Context, city string) ([]models.DeliveryZone, error) {
	return s.zonesForCity(ctx, s.db, city)
}

func (s *ZoneService) zonesForCity(ctx context.Context, q queryer, city string) ([]models.DeliveryZone, error) {
	key := redis.ZonesKey(city)

	var cached []models.DeliveryZone
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		s.metrics.ZoneCacheLookup(true)
		return cached, nil
	} else if !errors.Is(err, redis.ErrCacheMiss) {
		s.log.WithError(err).WithField("city", city).Warn("Zone cache read failed")
	}
	s.metrics.ZoneCacheLookup(false)

	query := `SELECT ` + zoneColumns + `
		FROM delivery_zones
		WHERE LOWER(city) = LOWER($1) AND is_active
		ORDER BY name, id`
	zones, err := s.queryZones(ctx, q, query, strings.TrimSpace(city))
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, zones, s.ttl); err != nil {
		s.log.WithError(err).WithField("city", city).Warn("Failed to cache zones")
	}
	return zones, nil
}

// InvalidateCity сбрасывает кеш зон города (best effort).
func (s *ZoneService) InvalidateCity(ctx context.Context, city string) {
	if err := s.cache.Delete(ctx, redis.ZonesKey(city)); err != nil {
		s.log.WithError(err).WithField("city", city).Warn("Failed to invalidate zone cache")
	}
}

// InvalidateAll сбрасывает кеш зон всех городов (best effort).
func (s *ZoneService) InvalidateAll(ctx context.Context) {
	if err := s.cache.DeleteByPrefix(ctx, redis.KeyPrefixZones+":"); err != nil {
		s.log.WithError(err).Warn("Failed to invalidate zone cache")
	}
}

// ResolveZoneForAddress определяет зону доставки адреса.
func (s *ZoneService) ResolveZoneForAddress(ctx context.Context, addr models.DeliveryAddress) (*models.ZoneResolution, error) {
	zones, err := s.ZonesForCity(ctx, addr.City)
	if err != nil {
		return nil, err
	}
	return s.resolver.ResolveZone(zones, addr)
}

// CheckAddressInZone проверяет, доставляем ли по координатам в городе.
func (s *ZoneService) CheckAddressInZone(ctx context.Context, lat, lon float64, city string) (*models.ZoneCheck, error) {
	zones, err := s.ZonesForCity(ctx, city)
	if err != nil {
		return nil, err
	}
	check := s.resolver.CheckAddressInZone(zones, lat, lon, city)
	s.metrics.ZoneChecked(check.InZone)
	return check, nil
}

func (s *ZoneService) queryZones(ctx context.Context, q queryer, query string, args ...interface{}) ([]models.DeliveryZone, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list zones: %w", err)
	}
	defer rows.Close()

	zones := make([]models.DeliveryZone, 0)
	for rows.Next() {
		zone, err := scanZone(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan zone: %w", err)
		}
		zones = append(zones, *zone)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate zones: %w", err)
	}
	return zones, nil
}

func scanZone(row rowScanner) (*models.DeliveryZone, error) {
	var (
		zone      models.DeliveryZone
		polygon   []byte
		centerLat sql.NullFloat64
		centerLon sql.NullFloat64
		radiusKm  sql.NullFloat64
		threshold decimal.NullDecimal
	)
	if err := row.Scan(&zone.ID, &zone.Name, &zone.City, &zone.Shape, &polygon, &centerLat, &centerLon,
		&radiusKm, &zone.DeliveryFee, &threshold, &zone.Active, &zone.CreatedAt, &zone.UpdatedAt); err != nil {
		return nil, err
	}
	if len(polygon) > 0 {
		if err := json.Unmarshal(polygon, &zone.Polygon); err != nil {
			return nil, fmt.Errorf("invalid polygon for zone %s: %w", zone.ID, err)
		}
	}
	zone.CenterLat = floatPtr(centerLat)
	zone.CenterLon = floatPtr(centerLon)
	zone.RadiusKm = floatPtr(radiusKm)
	zone.FreeDeliveryThreshold = decimalPtr(threshold)
	return &zone, nil
}

// zoneFromRequest проверяет форму зоны и суммы.
func zoneFromRequest(req *models.ZoneRequest) (*models.DeliveryZone, error) {
	shape := req.Shape
	if shape == "" {
		shape = models.ZoneShapePolygon
	}

	switch shape {
	case models.ZoneShapePolygon:
		if len(req.Polygon) < 3 {
			return nil, fmt.Errorf("polygon zone needs at least 3 vertices")
		}
	case models.ZoneShapeRadius:
		if req.CenterLat == nil || req.CenterLon == nil || req.RadiusKm == nil || *req.RadiusKm <= 0 {
			return nil, fmt.Errorf("radius zone needs center and positive radius_km")
		}
	default:
		return nil, fmt.Errorf("invalid shape")
	}
	if (req.CenterLat == nil) != (req.CenterLon == nil) {
		return nil, fmt.Errorf("center_lat and center_lon must be set together")
	}
	if req.DeliveryFee.IsNegative() {
		return nil, fmt.Errorf("delivery_fee must be non-negative")
	}
	if req.FreeDeliveryThreshold != nil && req.FreeDeliveryThreshold.IsNegative() {
		return nil, fmt.Errorf("free_delivery_threshold must be non-negative")
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	polygon := req.Polygon
	if polygon == nil {
		polygon = []models.Vertex{}
	}

	zone := &models.DeliveryZone{
		Name:        strings.TrimSpace(req.Name),
		City:        strings.TrimSpace(req.City),
		Shape:       shape,
		Polygon:     polygon,
		CenterLat:   req.CenterLat,
		CenterLon:   req.CenterLon,
		RadiusKm:    req.RadiusKm,
		DeliveryFee: round2(req.DeliveryFee),
		Active:      active,
	}
	if req.FreeDeliveryThreshold != nil {
		threshold := round2(*req.FreeDeliveryThreshold)
		zone.FreeDeliveryThreshold = &threshold
	}
	return zone, nil
}
