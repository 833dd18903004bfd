package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prepboard/examengine/config"
	"github.com/prepboard/examengine/database"
	"github.com/prepboard/examengine/internal/analytics"
	adminctrl "github.com/prepboard/examengine/internal/controller/admin"
	userctrl "github.com/prepboard/examengine/internal/controller/user"
	"github.com/prepboard/examengine/internal/grading"
	"github.com/prepboard/examengine/internal/logger"
	"github.com/prepboard/examengine/internal/model"
	"github.com/prepboard/examengine/internal/repository"
	"github.com/prepboard/examengine/internal/scheduler"
	"github.com/prepboard/examengine/internal/service"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// @title Timed Exam Session Engine API
// @version 1.0
// @description Timed exam sessions over a published test catalog: incremental answer saves, server-authoritative deadlines, deterministic grading and test analytics.
// @host localhost:8080
// @BasePath /api/v1
// @schemes http
func main() {
	logger.Init()

	app := fx.New(
		fx.Provide(
			config.NewConfig,
			database.NewDatabase,
			NewGinEngine,
			scheduler.New,
		),

		fx.Provide(
			repository.NewTestRepository,
			repository.NewQuestionRepository,
			repository.NewSessionRepository,
			repository.NewAnswerRepository,
		),

		fx.Provide(
			service.NewCatalogService,
			func(
				testRepo repository.TestRepository,
				questionRepo repository.QuestionRepository,
				sessionRepo repository.SessionRepository,
				answerRepo repository.AnswerRepository,
				sched *scheduler.Scheduler,
				cfg *config.Config,
			) service.SessionService {
				policy := grading.Policy{FloorTotalAtZero: cfg.Exam.FloorScoreAtZero}
				return service.NewSessionService(testRepo, questionRepo, sessionRepo, answerRepo, sched, policy)
			},
			func(testRepo repository.TestRepository, sessionRepo repository.SessionRepository, cfg *config.Config) service.AnalyticsService {
				params := analytics.Params{PassThresholdPercent: cfg.Exam.PassThresholdPercent}
				ttl := time.Duration(cfg.Exam.AnalyticsCacheTTLSeconds) * time.Second
				return service.NewAnalyticsService(testRepo, sessionRepo, params, ttl)
			},
		),

		fx.Provide(
			adminctrl.NewTestController,
			userctrl.NewExamController,
		),

		fx.Invoke(AutoMigrateDB),
		fx.Invoke(RegisterRoutesAndStartServer),
		fx.Invoke(StartSessionEngine),
	)

	if err := app.Start(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	<-app.Done()
	log.Info().Msg("Application shut down")
}

func NewGinEngine() *gin.Engine {
	r := gin.New()

	r.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		log.Info().
			Str("client_ip", param.ClientIP).
			Str("method", param.Method).
			Str("path", param.Path).
			Int("status_code", param.StatusCode).
			Dur("latency", param.Latency).
			Str("error_message", param.ErrorMessage).
			Msg("gin_request")
		return ""
	}))
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// URL: http://localhost:PORT/swagger/index.html
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

// RegisterRoutesAndStartServer mounts the admin and student surfaces and ties
// the HTTP server to the fx lifecycle.
func RegisterRoutesAndStartServer(
	lc fx.Lifecycle,
	router *gin.Engine,
	cfg *config.Config,
	adminTests *adminctrl.TestController,
	exams *userctrl.ExamController,
) {
	adminTests.RegisterRoutes(router.Group("/api/v1/admin"))
	exams.RegisterRoutes(router.Group("/api/v1"))

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info().Str("port", cfg.Server.Port).Msg("Exam engine server starting")
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal().Err(err).Msg("Server ListenAndServe failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Server shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	})
}

// StartSessionEngine wires the scheduler to the session service and runs the
// recovery scan on startup: orphaned completed sessions are re-graded and
// every in_progress session either gets its timer back or is submitted as
// overdue. Timers are stopped on shutdown; sessions they would have fired for
// are picked up by the next start's recovery scan.
func StartSessionEngine(lc fx.Lifecycle, sched *scheduler.Scheduler, sessions service.SessionService) {
	sched.SetSubmitter(sessions)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := sessions.Recover(); err != nil {
				return err
			}
			log.Info().Int("armedTimers", sched.Active()).Msg("Session recovery complete")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			sched.Stop()
			return nil
		},
	})
}

// AutoMigrateDB creates the schema, including the partial unique index that
// enforces one in_progress session per (student, test) under concurrency.
func AutoMigrateDB(db *gorm.DB) error {
	log.Info().Msg("Running database migrations")
	err := db.AutoMigrate(
		&model.Test{},
		&model.Question{},
		&model.ExamSession{},
		&model.Answer{},
	)
	if err != nil {
		log.Error().Err(err).Msg("Database migration failed")
		return err
	}

	err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_one_ongoing_session
		ON exam_sessions (student_id, test_id)
		WHERE status = 'in_progress' AND deleted_at IS NULL`).Error
	if err != nil {
		log.Error().Err(err).Msg("Failed to create partial unique index on exam_sessions")
		return err
	}

	log.Info().Msg("Database migration completed")
	return nil
}
