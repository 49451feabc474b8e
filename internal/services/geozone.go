package services

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"delivery-pricing/internal/apperror"
	"delivery-pricing/internal/models"
)

const earthRadiusKm = 6371.0

// OutOfZoneError описывает точку вне всех зон города с ближайшей зоной для диагностики.
type OutOfZoneError struct {
	City        string
	NearestZone string
	DistanceKm  float64
}

func (e *OutOfZoneError) Error() string {
	if e.NearestZone == "" {
		return fmt.Sprintf("address in %s is outside delivery zones", e.City)
	}
	return fmt.Sprintf("address in %s is outside delivery zones, nearest zone %s is %.2f km away", e.City, e.NearestZone, e.DistanceKm)
}

// GeoZoneResolver определяет зону доставки для координат.
// Радиусные зоны учитываются только при включенном honorRadius.
type GeoZoneResolver struct {
	honorRadius bool
}

// NewGeoZoneResolver создаёт резолвер зон.
func NewGeoZoneResolver(honorRadius bool) *GeoZoneResolver {
	return &GeoZoneResolver{honorRadius: honorRadius}
}

// IsPointInZone проверяет попадание точки в зону по её форме.
func (r *GeoZoneResolver) IsPointInZone(zone *models.DeliveryZone, lat, lon float64) bool {
	if zone == nil {
		return false
	}
	switch zone.Shape {
	case models.ZoneShapeRadius:
		if !r.honorRadius || zone.RadiusKm == nil {
			return false
		}
		centerLat, centerLon, ok := ZoneCenter(zone)
		if !ok {
			return false
		}
		return calculateDistance(centerLat, centerLon, lat, lon) <= *zone.RadiusKm
	default:
		return IsPointInPolygon(zone.Polygon, lat, lon)
	}
}

// IsPointInPolygon реализует ray casting: x = долгота, y = широта.
// Полигон из менее чем трёх вершин не содержит ни одной точки.
func IsPointInPolygon(polygon []models.Vertex, lat, lon float64) bool {
	n := len(polygon)
	if n < 3 {
		return false
	}

	x, y := lon, lat
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := polygon[i].Lon, polygon[i].Lat
		xj, yj := polygon[j].Lon, polygon[j].Lat
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// ZoneCenter возвращает явный центр зоны либо среднее вершин полигона.
func ZoneCenter(zone *models.DeliveryZone) (float64, float64, bool) {
	if zone.CenterLat != nil && zone.CenterLon != nil {
		return *zone.CenterLat, *zone.CenterLon, true
	}
	if len(zone.Polygon) == 0 {
		return 0, 0, false
	}
	var sumLat, sumLon float64
	for _, v := range zone.Polygon {
		sumLat += v.Lat
		sumLon += v.Lon
	}
	n := float64(len(zone.Polygon))
	return sumLat / n, sumLon / n, true
}

// DistanceToZoneCenter расстояние в км от точки до центра зоны.
// Для зоны без центра и вершин возвращает +Inf.
func (r *GeoZoneResolver) DistanceToZoneCenter(zone *models.DeliveryZone, lat, lon float64) float64 {
	centerLat, centerLon, ok := ZoneCenter(zone)
	if !ok {
		return math.Inf(1)
	}
	return calculateDistance(lat, lon, centerLat, centerLon)
}

// ResolveZone выбирает зону для адреса среди переданных зон.
// Первая содержащая точку зона побеждает; порядок зон задаётся sortZones.
func (r *GeoZoneResolver) ResolveZone(zones []models.DeliveryZone, addr models.DeliveryAddress) (*models.ZoneResolution, error) {
	if addr.Lat == nil || addr.Lon == nil {
		return nil, apperror.AddressUnresolved("delivery address has no coordinates")
	}

	cityZones := zonesForCity(zones, addr.City)
	if len(cityZones) == 0 {
		return nil, apperror.NoDeliveryZone(fmt.Sprintf("no delivery zones configured for city %s", addr.City))
	}

	lat, lon := *addr.Lat, *addr.Lon
	for i := range cityZones {
		zone := &cityZones[i]
		if r.IsPointInZone(zone, lat, lon) {
			return &models.ZoneResolution{Zone: zone, DistanceKm: r.DistanceToZoneCenter(zone, lat, lon)}, nil
		}
	}

	nearest, distance := r.nearestZone(cityZones, lat, lon)
	outErr := &OutOfZoneError{City: addr.City, DistanceKm: distance}
	if nearest != nil {
		outErr.NearestZone = nearest.Name
	}
	return nil, apperror.OutOfZone(outErr.Error(), outErr)
}

// CheckAddressInZone отвечает на вопрос «доставляем ли сюда» без ошибок предметной области.
func (r *GeoZoneResolver) CheckAddressInZone(zones []models.DeliveryZone, lat, lon float64, city string) *models.ZoneCheck {
	cityZones := zonesForCity(zones, city)
	check := &models.ZoneCheck{Zones: make([]models.ZoneInfo, 0, len(cityZones))}
	if len(cityZones) == 0 {
		check.Reason = fmt.Sprintf("no delivery zones configured for city %s", city)
		return check
	}

	for i := range cityZones {
		zone := &cityZones[i]
		info := models.ZoneInfo{
			ID:                    zone.ID,
			Name:                  zone.Name,
			DeliveryFee:           zone.DeliveryFee,
			FreeDeliveryThreshold: zone.FreeDeliveryThreshold,
			DistanceKm:            kmPtr(r.DistanceToZoneCenter(zone, lat, lon)),
			InZone:                r.IsPointInZone(zone, lat, lon),
		}
		check.Zones = append(check.Zones, info)

		if info.InZone && !check.InZone {
			id := zone.ID
			check.InZone = true
			check.ZoneID = &id
			check.ZoneName = zone.Name
			check.DistanceKm = info.DistanceKm
			check.Reason = fmt.Sprintf("address is inside delivery zone %s", zone.Name)
		}
	}

	if !check.InZone {
		nearest, distance := r.nearestZone(cityZones, lat, lon)
		if nearest != nil {
			check.ZoneName = nearest.Name
			check.DistanceKm = kmPtr(distance)
			check.Reason = fmt.Sprintf("address is outside delivery zones, nearest zone %s is %.2f km away", nearest.Name, *check.DistanceKm)
		} else {
			check.Reason = "address is outside delivery zones"
		}
	}
	return check
}

func (r *GeoZoneResolver) nearestZone(zones []models.DeliveryZone, lat, lon float64) (*models.DeliveryZone, float64) {
	var nearest *models.DeliveryZone
	best := math.Inf(1)
	for i := range zones {
		d := r.DistanceToZoneCenter(&zones[i], lat, lon)
		if d < best {
			best = d
			nearest = &zones[i]
		}
	}
	return nearest, best
}

// zonesForCity отбирает активные зоны города (без учета регистра) в стабильном порядке.
func zonesForCity(zones []models.DeliveryZone, city string) []models.DeliveryZone {
	city = strings.TrimSpace(city)
	result := make([]models.DeliveryZone, 0, len(zones))
	for _, zone := range zones {
		if zone.Active && strings.EqualFold(strings.TrimSpace(zone.City), city) {
			result = append(result, zone)
		}
	}
	sortZones(result)
	return result
}

func sortZones(zones []models.DeliveryZone) {
	sort.SliceStable(zones, func(i, j int) bool {
		if zones[i].Name != zones[j].Name {
			return zones[i].Name < zones[j].Name
		}
		return zones[i].ID.String() < zones[j].ID.String()
	})
}

// calculateDistance вычисляет расстояние между двумя точками по формуле гаверсинуса (в км)
func calculateDistance(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180.0
	lat2Rad := lat2 * math.Pi / 180.0
	deltaLat := (lat2 - lat1) * math.Pi / 180.0
	deltaLon := (lon2 - lon1) * math.Pi / 180.0

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

// kmPtr округляет расстояние до сотых; неизвестное расстояние дает nil
func kmPtr(km float64) *float64 {
	if math.IsInf(km, 0) || math.IsNaN(km) {
		return nil
	}
	rounded := math.Round(km*100) / 100
	return &rounded
}
