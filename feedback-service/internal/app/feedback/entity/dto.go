package entity

import "time"

// SubmitFeedbackRequest - запрос на отправку фидбека.
// Координаты и оценка заданы указателями, чтобы отличать отсутствие поля
// от легальных нулевых значений (широта 0 валидна).
type SubmitFeedbackRequest struct {
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	Rating       *int     `json:"rating"`
	Comment      string   `json:"comment" validate:"omitempty,max=1000"`
	UserID       string   `json:"user_id" validate:"omitempty,max=64"`
	PlaceType    string   `json:"place_type" validate:"omitempty,max=64"`
	Region       string   `json:"region" validate:"omitempty,max=64"`
	LocationName string   `json:"location_name" validate:"omitempty,max=256"`
}

// SubmitFeedbackResponse - ответ на отправку фидбека
type SubmitFeedbackResponse struct {
	ID             uint           `json:"id"`
	CreatedAt      time.Time      `json:"created_at"`
	ApprovalStatus ApprovalStatus `json:"approval_status"`
	Message        string         `json:"message"`
}

// RejectFeedbackRequest - запрос администратора на отклонение записи
type RejectFeedbackRequest struct {
	Reason string `json:"reason" validate:"required,max=256"`
}

// ErrorResponse - стандартный ответ об ошибке
type ErrorResponse struct {
	Error   string   `json:"error"`
	Message string   `json:"message,omitempty"`
	Details []string `json:"details,omitempty"`
}

// SuccessResponse - стандартный ответ об успехе
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// LocationInfo описывает точку и радиус, для которых построена сводка
type LocationInfo struct {
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	RadiusMeters float64 `json:"radius_meters"`
}

// RatingStatistics - описательная статистика по оценкам локации
type RatingStatistics struct {
	AverageRating float64        `json:"average_rating"`
	MedianRating  float64        `json:"median_rating"`
	RatingStdDev  float64        `json:"rating_std_dev"`
	MinRating     int            `json:"min_rating"`
	MaxRating     int            `json:"max_rating"`
	Distribution  map[string]int `json:"rating_distribution"` // Одна корзина на оценку 1..10
}

// QualityMetrics - метрики качества собранного фидбека
type QualityMetrics struct {
	OutlierCount     int     `json:"outlier_count"`
	RecentFeedbacks  int     `json:"recent_feedbacks"` // За последние 30 дней
	TrustedUserRatio float64 `json:"trusted_user_ratio"`
	DataFreshness    float64 `json:"data_freshness"` // 0..1, выше = новее
}

// FeedbackSummary - агрегированная сводка фидбека по локации
type FeedbackSummary struct {
	Location        LocationInfo     `json:"location"`
	FeedbackCount   int              `json:"feedback_count"`
	UniqueUsers     int              `json:"unique_users"`
	MeetsThreshold  bool             `json:"meets_threshold"`
	Statistics      RatingStatistics `json:"statistics"`
	QualityMetrics  QualityMetrics   `json:"quality_metrics"`
	SafetyScore     float64          `json:"safety_score"` // 0..1, нейтральное значение 0.5
	Recommendations []string         `json:"recommendations"`
	LastUpdated     time.Time        `json:"last_updated"`
}

// RecentActivity - количество записей за последние окна времени
type RecentActivity struct {
	Last24Hours int `json:"last_24_hours"`
	Last7Days   int `json:"last_7_days"`
	Last30Days  int `json:"last_30_days"`
}

// CollectionProgress - прогресс сбора фидбека до порога уникальных пользователей
type CollectionProgress struct {
	Location           LocationInfo   `json:"location"`
	CurrentFeedbacks   int            `json:"current_feedbacks"`
	UniqueUsers        int            `json:"unique_users"`
	TargetUsers        int            `json:"target_users"`
	ProgressPercentage float64        `json:"progress_percentage"`
	RemainingNeeded    int            `json:"remaining_needed"`
	Status             string         `json:"status"` // not_started, started, in_progress, nearly_complete, complete
	RecentActivity     RecentActivity `json:"recent_activity"`
	LastUpdated        time.Time      `json:"last_updated"`
}

// ScoreRequest - запрос на расчёт итогового скора безопасности.
// Неизвестные фичи игнорируются, значения нормализованы в 0..1.
type ScoreRequest struct {
	Latitude           *float64           `json:"latitude"`
	Longitude          *float64           `json:"longitude"`
	Features           map[string]float64 `json:"features" validate:"required"`
	RadiusMeters       float64            `json:"radius_meters" validate:"omitempty,gt=0,lte=10000"`
	WeatherMultiplier  float64            `json:"weather_multiplier" validate:"omitempty,gte=0,lte=1"`
	IncidentMultiplier float64            `json:"incident_multiplier" validate:"omitempty,gte=0,lte=1"`
}

// BlendInfo - метаданные смешивания AI-скора и фидбек-скора
type BlendInfo struct {
	Method             string  `json:"method"` // blended_ai_user_feedback или ai_only_insufficient_feedback
	AIScore            float64 `json:"ai_score"`
	FeedbackScore      float64 `json:"feedback_score,omitempty"` // 0..1, присутствует только при blended
	AIScoreWeight      float64 `json:"ai_score_weight"`
	FeedbackWeight     float64 `json:"user_feedback_weight"`
	FeedbackCount      int     `json:"feedback_count"`
	UniqueUsers        int     `json:"unique_users"`
	SufficientFeedback bool    `json:"has_sufficient_feedback"`
}

// ScoreResponse - итоговый скор безопасности с метаданными расчёта
type ScoreResponse struct {
	Score           float64            `json:"score"` // 1..10
	AdjustmentIndex float64            `json:"adjustment_index"` // Пока константа 1.0, зарезервировано под профильные поправки
	BlendInfo       BlendInfo          `json:"blend_info"`
	Weights         map[string]float64 `json:"weights"`
}

// FeedbackListResponse - ответ со списком записей фидбека
type FeedbackListResponse struct {
	Feedbacks []Feedback `json:"feedbacks"`
	Total     int        `json:"total"`
}

// ValidationRules - активные значения правил валидации для наблюдаемости
type ValidationRules struct {
	MaxPerUserPerDay      int `json:"max_feedback_per_user_per_day"`
	MaxPerLocationPerHour int `json:"max_feedback_per_location_per_hour"`
	AutoApproveMinRating  int `json:"auto_approve_min_rating"`
	AutoApproveMaxRating  int `json:"auto_approve_max_rating"`
	TrustedUserThreshold  int `json:"trusted_user_threshold"`
}

// FeedbackStatistics - сводка по статусам для админки
type FeedbackStatistics struct {
	TotalFeedback    int64           `json:"total_feedback"`
	ApprovedFeedback int64           `json:"approved_feedback"` // approved + auto_approved
	PendingFeedback  int64           `json:"pending_feedback"`
	RejectedFeedback int64           `json:"rejected_feedback"`
	ValidationRules  ValidationRules `json:"validation_rules"`
}
