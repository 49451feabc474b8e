package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ZoneShape задает способ определения границ зоны доставки
type ZoneShape string

const (
	ZoneShapePolygon ZoneShape = "polygon"
	ZoneShapeRadius  ZoneShape = "radius"
)

// Vertex вершина полигона зоны
type Vertex struct {
	Lat float64 `json:"lat" validate:"latitude"`
	Lon float64 `json:"lon" validate:"longitude"`
}

// DeliveryZone представляет зону доставки
type DeliveryZone struct {
	ID                    uuid.UUID        `json:"id" db:"id"`
	Name                  string           `json:"name" db:"name"`
	City                  string           `json:"city" db:"city"`
	Shape                 ZoneShape        `json:"shape" db:"shape"`
	Polygon               []Vertex         `json:"polygon" db:"polygon"`
	CenterLat             *float64         `json:"center_lat,omitempty" db:"center_lat"`
	CenterLon             *float64         `json:"center_lon,omitempty" db:"center_lon"`
	RadiusKm              *float64         `json:"radius_km,omitempty" db:"radius_km"`
	DeliveryFee           decimal.Decimal  `json:"delivery_fee" db:"delivery_fee"`
	FreeDeliveryThreshold *decimal.Decimal `json:"free_delivery_threshold,omitempty" db:"free_delivery_threshold"`
	Active                bool             `json:"active" db:"is_active"`
	CreatedAt             time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at" db:"updated_at"`
}

// ZoneRequest описывает запрос на создание или обновление зоны
type ZoneRequest struct {
	Name                  string           `json:"name" validate:"required,max=100"`
	City                  string           `json:"city" validate:"required,max=100"`
	Shape                 ZoneShape        `json:"shape" validate:"omitempty,oneof=polygon radius"`
	Polygon               []Vertex         `json:"polygon" validate:"omitempty,dive"`
	CenterLat             *float64         `json:"center_lat,omitempty" validate:"omitempty,latitude"`
	CenterLon             *float64         `json:"center_lon,omitempty" validate:"omitempty,longitude"`
	RadiusKm              *float64         `json:"radius_km,omitempty" validate:"omitempty,gt=0"`
	DeliveryFee           decimal.Decimal  `json:"delivery_fee"`
	FreeDeliveryThreshold *decimal.Decimal `json:"free_delivery_threshold,omitempty"`
	Active                *bool            `json:"active,omitempty"`
}

// ZoneCheckRequest запрос проверки попадания точки в зону доставки
type ZoneCheckRequest struct {
	Lat  *float64 `json:"lat" validate:"required,latitude"`
	Lon  *float64 `json:"lon" validate:"required,longitude"`
	City string   `json:"city" validate:"required"`
}

// ZoneInfo краткая информация о зоне относительно проверяемой точки
type ZoneInfo struct {
	ID                    uuid.UUID        `json:"id"`
	Name                  string           `json:"name"`
	DeliveryFee           decimal.Decimal  `json:"delivery_fee"`
	FreeDeliveryThreshold *decimal.Decimal `json:"free_delivery_threshold,omitempty"`
	DistanceKm            *float64         `json:"distance_km,omitempty"`
	InZone                bool             `json:"in_zone"`
}

// ZoneCheck результат проверки адреса
type ZoneCheck struct {
	InZone     bool       `json:"in_zone"`
	ZoneID     *uuid.UUID `json:"zone_id,omitempty"`
	ZoneName   string     `json:"zone_name,omitempty"`
	DistanceKm *float64   `json:"distance_km,omitempty"`
	Reason     string     `json:"reason"`
	Zones      []ZoneInfo `json:"zones"`
}

// ZoneResolution итог определения зоны для адреса заказа
type ZoneResolution struct {
	Zone       *DeliveryZone `json:"zone"`
	DistanceKm float64       `json:"distance_km"`
}
