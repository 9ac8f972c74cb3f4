package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config собирает все настройки Feedback Service.
// Включает конфигурацию HTTP сервера, PostgreSQL, Redis, Kafka, JWT,
// правил валидации, агрегации и скоринга
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	JWT         JWTConfig
	Validation  ValidationConfig
	Aggregation AggregationConfig
	Scoring     ScoringConfig
}

type ServerConfig struct {
	Host string // Адрес хоста (по умолчанию 0.0.0.0)
	Port string // Порт сервера (по умолчанию 8084)
}

type DatabaseConfig struct {
	Host     string // Хост PostgreSQL
	Port     string // Порт PostgreSQL
	User     string // Имя пользователя БД
	Password string // Пароль БД
	DBName   string // Имя базы данных
	SSLMode  string // Режим SSL (disable/require/verify-full)
}

// RedisConfig - настройки Redis для rate-limit счётчиков и кеша сводок
type RedisConfig struct {
	Host     string // Хост Redis
	Port     string // Порт Redis
	Password string // Пароль Redis (опционально)
	DB       int    // Номер БД Redis (0-15)
}

type KafkaConfig struct {
	Brokers []string // Список брокеров Kafka (формат: host:port)
	Topic   string   // Топик для событий FEEDBACK_*
}

type JWTConfig struct {
	Secret string // Секретный ключ для проверки JWT токенов админ-эндпоинтов
}

// ValidationConfig - пороги валидации и авто-одобрения фидбека
type ValidationConfig struct {
	MaxPerUserPerDay      int // Лимит отправок одного пользователя в календарный день
	MaxPerLocationPerHour int // Лимит отправок вблизи одной точки (±0.001°) за час
	MinRating             int // Нижняя граница оценки
	MaxRating             int // Верхняя граница оценки
	MaxCommentLength      int // Максимальная длина комментария
	AutoApproveMinRating  int // Нижняя граница диапазона авто-одобрения
	AutoApproveMaxRating  int // Верхняя граница диапазона авто-одобрения
	NewUserMinRating      int // Более узкий диапазон авто-одобрения для новых пользователей
	NewUserMaxRating      int
	TrustedUserThreshold  int // Одобренных записей для статуса доверенного пользователя
}

// AggregationConfig - параметры агрегации фидбека по локации
type AggregationConfig struct {
	MinUniqueUsers      int     // Минимум уникальных пользователей для участия в блендинге
	MaxFeedbackAgeDays  int     // Максимальный возраст учитываемых записей
	DefaultRadiusMeters float64 // Радиус группировки записей по умолчанию
	OutlierThreshold    float64 // Стандартных отклонений для детекции выбросов
	CacheTTLSeconds     int     // TTL кеша сводок в Redis
}

// ScoringConfig - параметры скорингового движка
type ScoringConfig struct {
	AdaptRegion    string // Фильтр региона для адаптации весов
	AdaptPlaceType string // Фильтр типа места для адаптации весов
	AdaptSchedule  string // Cron-расписание фоновой адаптации весов
	AIScoreWeight  float64
	FeedbackWeight float64
}

func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnv("SERVER_PORT", "8084"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "feedback_service"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers: []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
			Topic:   getEnv("KAFKA_TOPIC", "feedback_events"),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "your-secret-key-change-this-in-production"),
		},
		Validation: ValidationConfig{
			MaxPerUserPerDay:      getEnvInt("VALIDATION_MAX_PER_USER_PER_DAY", 10),
			MaxPerLocationPerHour: getEnvInt("VALIDATION_MAX_PER_LOCATION_PER_HOUR", 5),
			MinRating:             1,
			MaxRating:             10,
			MaxCommentLength:      getEnvInt("VALIDATION_MAX_COMMENT_LENGTH", 1000),
			AutoApproveMinRating:  getEnvInt("VALIDATION_AUTO_APPROVE_MIN", 2),
			AutoApproveMaxRating:  getEnvInt("VALIDATION_AUTO_APPROVE_MAX", 9),
			NewUserMinRating:      getEnvInt("VALIDATION_NEW_USER_MIN", 3),
			NewUserMaxRating:      getEnvInt("VALIDATION_NEW_USER_MAX", 8),
			TrustedUserThreshold:  getEnvInt("VALIDATION_TRUSTED_USER_THRESHOLD", 3),
		},
		Aggregation: AggregationConfig{
			MinUniqueUsers:      getEnvInt("AGGREGATION_MIN_UNIQUE_USERS", 50),
			MaxFeedbackAgeDays:  getEnvInt("AGGREGATION_MAX_AGE_DAYS", 365),
			DefaultRadiusMeters: getEnvFloat("AGGREGATION_DEFAULT_RADIUS_METERS", 100),
			OutlierThreshold:    getEnvFloat("AGGREGATION_OUTLIER_THRESHOLD", 2.0),
			CacheTTLSeconds:     getEnvInt("AGGREGATION_CACHE_TTL_SECONDS", 300),
		},
		Scoring: ScoringConfig{
			AdaptRegion:    getEnv("SCORING_ADAPT_REGION", "tamil nadu"),
			AdaptPlaceType: getEnv("SCORING_ADAPT_PLACE_TYPE", "tourist"),
			AdaptSchedule:  getEnv("SCORING_ADAPT_SCHEDULE", "@every 1h"),
			AIScoreWeight:  getEnvFloat("SCORING_AI_WEIGHT", 0.6),
			FeedbackWeight: getEnvFloat("SCORING_FEEDBACK_WEIGHT", 0.4),
		},
	}, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func (c *ServerConfig) Address() string {
	return c.Host + ":" + c.Port
}

// Address возвращает адрес Redis в формате host:port для подключения
func (c *RedisConfig) Address() string {
	return c.Host + ":" + c.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
