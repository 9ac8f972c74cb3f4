package entity

import (
	"fmt"
	"math"
	"time"
)

// ApprovalStatus представляет состояние жизненного цикла фидбека.
// Только записи approved/auto_approved видны агрегации и скорингу.
type ApprovalStatus string

const (
	ApprovalStatusPending      ApprovalStatus = "pending"       // Ожидает ручной модерации
	ApprovalStatusApproved     ApprovalStatus = "approved"      // Одобрено администратором
	ApprovalStatusAutoApproved ApprovalStatus = "auto_approved" // Одобрено автоматически валидатором
	ApprovalStatusRejected     ApprovalStatus = "rejected"      // Отклонено
)

// IsApproved сообщает, участвует ли запись с этим статусом в расчёте скора
func (s ApprovalStatus) IsApproved() bool {
	return s == ApprovalStatusApproved || s == ApprovalStatusAutoApproved
}

// Feedback представляет одну пользовательскую оценку безопасности локации
type Feedback struct {
	ID           uint    `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID       string  `json:"user_id" gorm:"type:varchar(64);index"` // Пустая строка = анонимная отправка
	LocationID   string  `json:"location_id" gorm:"type:varchar(128);index"`
	LocationName string  `json:"location_name" gorm:"type:varchar(256)"`
	Latitude     float64 `json:"latitude" gorm:"not null;index:idx_feedback_coords"`
	Longitude    float64 `json:"longitude" gorm:"not null;index:idx_feedback_coords"`
	PlaceType    string  `json:"place_type" gorm:"type:varchar(64);index:idx_feedback_region_type"` // Например tourist_place
	Region       string  `json:"region" gorm:"type:varchar(64);index:idx_feedback_region_type"`
	Rating       int     `json:"rating" gorm:"not null"` // Оценка от 1 до 10
	Comment      string  `json:"comment" gorm:"type:text"`

	ApprovalStatus  ApprovalStatus `json:"approval_status" gorm:"type:varchar(20);not null;default:'pending';index"`
	ApprovedBy      string         `json:"approved_by,omitempty" gorm:"type:varchar(64)"`
	ApprovedAt      *time.Time     `json:"approved_at,omitempty"`
	RejectedBy      string         `json:"rejected_by,omitempty" gorm:"type:varchar(64)"`
	RejectedAt      *time.Time     `json:"rejected_at,omitempty"`
	RejectionReason string         `json:"rejection_reason,omitempty" gorm:"type:varchar(256)"`

	// Ошибки валидации, зафиксированные в момент отправки
	ValidationErrors StringList `json:"validation_errors,omitempty" gorm:"type:jsonb"`

	// Снимок доверия на момент отправки; задним числом не пересчитывается
	IsTrustedUser bool `json:"is_trusted_user"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName указывает имя таблицы для GORM
func (Feedback) TableName() string {
	return "feedback"
}

// MakeLocationID генерирует детерминированный ID локации по координатам
// (точность ~0.001°, тот же бакет используется для группировки фидбека)
func MakeLocationID(lat, lon float64) string {
	return fmt.Sprintf("LOC_%d_%d", int(lat*1000), int(lon*1000))
}

// BoundingBox описывает прямоугольник координат для выборки записей вокруг точки
type BoundingBox struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// BoundingBoxAround строит bounding box вокруг точки по радиусу в метрах.
// Широта: 1° ≈ 111000 м. Долгота дополнительно корректируется на 1/cos(lat),
// это приближение, а не точная гео-фильтрация по дуге.
func BoundingBoxAround(lat, lon, radiusMeters float64) BoundingBox {
	latDelta := radiusMeters / 111000.0

	cosLat := math.Cos(lat * math.Pi / 180.0)
	if cosLat < 0.01 {
		cosLat = 0.01 // У полюсов меридианы сходятся, ограничиваем растяжение
	}
	lonDelta := latDelta / cosLat

	return BoundingBox{
		MinLat: lat - latDelta,
		MaxLat: lat + latDelta,
		MinLon: lon - lonDelta,
		MaxLon: lon + lonDelta,
	}
}

// FeedbackEvent представляет событие для Kafka
type FeedbackEvent struct {
	EventType  string         `json:"event_type"` // FEEDBACK_CREATED, FEEDBACK_APPROVED, FEEDBACK_REJECTED
	FeedbackID uint           `json:"feedback_id"`
	UserID     string         `json:"user_id"`
	LocationID string         `json:"location_id"`
	Latitude   float64        `json:"latitude"`
	Longitude  float64        `json:"longitude"`
	Rating     int            `json:"rating"`
	Status     ApprovalStatus `json:"status"`
	Actor      string         `json:"actor,omitempty"` // Администратор для ручных переходов
	Timestamp  time.Time      `json:"timestamp"`
}

const (
	EventFeedbackCreated  = "FEEDBACK_CREATED"
	EventFeedbackApproved = "FEEDBACK_APPROVED"
	EventFeedbackRejected = "FEEDBACK_REJECTED"
)
