package config

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Server   Server
	Database Database
	Exam     Exam
}

type Server struct {
	Port string
}

type Database struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

// Exam holds engine policy knobs that are deliberately configuration, not code.
type Exam struct {
	// PassThresholdPercent is the percentage at or above which an attempt
	// counts as passed in analytics.
	PassThresholdPercent float64
	// FloorScoreAtZero controls whether the reported total score is clamped
	// at zero when negative marking drives it below zero. The raw total is
	// always kept alongside.
	FloorScoreAtZero bool
	// AnalyticsCacheTTLSeconds bounds staleness of cached analytics snapshots.
	AnalyticsCacheTTLSeconds int
}

func NewConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("EXAM_PASS_THRESHOLD_PERCENT", 40.0)
	viper.SetDefault("EXAM_FLOOR_SCORE_AT_ZERO", false)
	viper.SetDefault("ANALYTICS_CACHE_TTL_SECONDS", 60)

	if err := viper.ReadInConfig(); err != nil {
		log.Warn().Err(err).Msg("Error reading config file")
	}

	var config Config

	config.Server.Port = viper.GetString("SERVER_PORT")
	config.Database.Host = viper.GetString("DATABASE_HOST")
	config.Database.Port = viper.GetString("DATABASE_PORT")
	config.Database.User = viper.GetString("DATABASE_USER")
	config.Database.Password = viper.GetString("DATABASE_PASSWORD")
	config.Database.Name = viper.GetString("DATABASE_NAME")

	config.Exam.PassThresholdPercent = viper.GetFloat64("EXAM_PASS_THRESHOLD_PERCENT")
	config.Exam.FloorScoreAtZero = viper.GetBool("EXAM_FLOOR_SCORE_AT_ZERO")
	config.Exam.AnalyticsCacheTTLSeconds = viper.GetInt("ANALYTICS_CACHE_TTL_SECONDS")

	log.Info().Str("port", config.Server.Port).Msg("Config loaded")
	return &config, nil
}
