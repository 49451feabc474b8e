package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"delivery-pricing/internal/config"
	"delivery-pricing/internal/logger"
	"delivery-pricing/internal/models"
	"delivery-pricing/internal/redis"
)

const geocodeCacheTTL = 24 * time.Hour

// ErrGeocoderDisabled возвращается, если провайдер геокодирования не настроен.
// Координаты адреса в этом случае остаются неизвестными.
var ErrGeocoderDisabled = errors.New("geocoder is disabled")

// Coordinates представляют координаты точки.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// GeocodingService определяет координаты адреса через Yandex с кешированием в Redis.
type GeocodingService struct {
	redis  *redis.Client
	log    *logger.Logger
	client *http.Client
	cfg    *config.GeocodingConfig
}

// NewGeocodingService создает сервис геокодирования.
func NewGeocodingService(redis *redis.Client, log *logger.Logger, cfg *config.GeocodingConfig) *GeocodingService {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &GeocodingService{
		redis:  redis,
		log:    log,
		client: &http.Client{Timeout: timeout},
		cfg:    cfg,
	}
}

// GeocodeAddress определяет координаты адреса доставки по городу и улице.
func (s *GeocodingService) GeocodeAddress(ctx context.Context, addr models.DeliveryAddress) (*Coordinates, error) {
	city := strings.TrimSpace(addr.City)
	if city == "" {
		return nil, fmt.Errorf("city is empty")
	}
	query := city
	if street := strings.TrimSpace(addr.Street); street != "" {
		query = city + ", " + street
	}
	return s.Geocode(ctx, query)
}

// Geocode возвращает координаты по адресу, используя кеш Redis.
// Неудача никогда не подменяется выдуманными координатами.
func (s *GeocodingService) Geocode(ctx context.Context, address string) (*Coordinates, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, fmt.Errorf("address is empty")
	}
	if !strings.EqualFold(s.cfg.Provider, "yandex") || s.cfg.YandexAPIKey == "" {
		return nil, ErrGeocoderDisabled
	}

	key := redis.GenerateKey(redis.KeyPrefixGeocode, hashKey(address))

	// Пробуем из кеша
	var cached Coordinates
	if err := s.redis.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	}

	lat, lon, err := s.yandexGeocode(ctx, address)
	if err != nil {
		return nil, err
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, fmt.Errorf("geocoder returned coordinates out of range: %f %f", lat, lon)
	}
	coords := &Coordinates{Lat: lat, Lon: lon}

	// Пишем в кеш (best effort)
	if err := s.redis.Set(ctx, key, coords, geocodeCacheTTL); err != nil {
		s.log.WithError(err).WithField("address", address).Warn("Failed to cache geocode result")
	}

	return coords, nil
}

// yandexGeocode вызывает API Яндекс Геокодера и возвращает координаты (lat, lon).
func (s *GeocodingService) yandexGeocode(ctx context.Context, address string) (float64, float64, error) {
	params := url.Values{}
	params.Set("apikey", s.cfg.YandexAPIKey)
	params.Set("format", "json")
	params.Set("geocode", address)

	endpoint := s.cfg.YandexBaseURL
	if endpoint == "" {
		endpoint = "https://geocode-maps.yandex.ru/1.x"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to call yandex geocode: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, 0, fmt.Errorf("yandex geocode returned status %d: %s", resp.StatusCode, string(body))
	}

	var data yandexResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return 0, 0, fmt.Errorf("failed to decode yandex geocode response: %w", err)
	}

	pos := data.FirstPos()
	if pos == "" {
		return 0, 0, fmt.Errorf("yandex geocode returned empty position")
	}

	// pos формат: "64.4556 39.7681" (lon lat)
	var lon, lat float64
	if _, err := fmt.Sscanf(pos, "%f %f", &lon, &lat); err != nil {
		return 0, 0, fmt.Errorf("failed to parse position: %w", err)
	}

	return lat, lon, nil
}

// Структуры для парсинга Yandex ответа
type yandexResponse struct {
	Response struct {
		GeoObjectCollection struct {
			FeatureMember []struct {
				GeoObject struct {
					Point struct {
						Pos string `json:"pos"`
					} `json:"Point"`
				} `json:"GeoObject"`
			} `json:"featureMember"`
		} `json:"GeoObjectCollection"`
	} `json:"response"`
}

func (r *yandexResponse) FirstPos() string {
	if len(r.Response.GeoObjectCollection.FeatureMember) == 0 {
		return ""
	}
	return r.Response.GeoObjectCollection.FeatureMember[0].GeoObject.Point.Pos
}

// hashKey делает короткий ключ для адреса; регистр и лишние пробелы не влияют на ключ.
func hashKey(address string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.Join(strings.Fields(strings.ToLower(address)), " ")))
	return fmt.Sprintf("%x", h.Sum64())
}
