package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lumivita/portal/internal/config"
	"github.com/lumivita/portal/internal/domain/appointment"
	"github.com/lumivita/portal/internal/domain/message"
	"github.com/lumivita/portal/internal/domain/prescription"
	"github.com/lumivita/portal/internal/domain/submission"
	"github.com/lumivita/portal/internal/domain/user"
	"github.com/lumivita/portal/internal/platform/assistant"
	"github.com/lumivita/portal/internal/platform/auth"
	"github.com/lumivita/portal/internal/platform/db"
	"github.com/lumivita/portal/internal/platform/middleware"
	"github.com/lumivita/portal/internal/platform/notification"
	"github.com/lumivita/portal/internal/platform/sandbox"
	"github.com/lumivita/portal/internal/platform/websocket"
)

// patientDirectory adapts the user repository to the triage view's lookup
// needs so the submission package stays decoupled from the user domain.
type patientDirectory struct {
	users user.Repository
}

func (d *patientDirectory) GetPatient(ctx context.Context, id uuid.UUID) (*submission.PatientInfo, error) {
	u, err := d.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &submission.PatientInfo{ID: u.ID, Name: u.Name, Email: u.Email}, nil
}

func (d *patientDirectory) ListPatients(ctx context.Context) ([]*submission.PatientInfo, error) {
	users, err := d.users.ListByRole(ctx, user.RolePatient)
	if err != nil {
		return nil, err
	}
	out := make([]*submission.PatientInfo, 0, len(users))
	for _, u := range users {
		out = append(out, &submission.PatientInfo{ID: u.ID, Name: u.Name, Email: u.Email})
	}
	return out, nil
}

// portalNotifier fans domain events out to the websocket hub and the
// notification manager. Every method is best effort; failures are logged by
// the receivers and never surface to the caller.
type portalNotifier struct {
	hub           *websocket.Hub
	notifications *notification.Manager
	users         user.Repository
}

func (n *portalNotifier) SubmissionCreated(ctx context.Context, s *submission.Submission) {
	n.hub.Broadcast(websocket.TopicTriage,
		websocket.NewEvent("submission.created", websocket.TopicTriage, s))
	if u, err := n.users.GetByID(ctx, s.PatientID); err == nil {
		_, _ = n.notifications.SendTemplate(ctx, notification.TemplateSubmissionReceived, u.Email, map[string]string{
			"patient_name": u.Name,
			"date":         s.SubmittedAt.Format("January 2, 2006"),
		})
	}
}

func (n *portalNotifier) SubmissionReviewed(ctx context.Context, s *submission.Submission, _ *submission.Review) {
	n.hub.Broadcast(websocket.TopicTriage,
		websocket.NewEvent("submission.reviewed", websocket.TopicTriage, s))
	topic := websocket.UserTopic(s.PatientID.String())
	n.hub.Broadcast(topic, websocket.NewEvent("submission.reviewed", topic, s))
	if u, err := n.users.GetByID(ctx, s.PatientID); err == nil {
		_, _ = n.notifications.SendTemplate(ctx, notification.TemplateSubmissionReviewed, u.Email, map[string]string{
			"patient_name": u.Name,
			"date":         s.SubmittedAt.Format("January 2, 2006"),
		})
	}
}

func (n *portalNotifier) AppointmentScheduled(ctx context.Context, a *appointment.Appointment) {
	topic := websocket.UserTopic(a.PatientID.String())
	n.hub.Broadcast(topic, websocket.NewEvent("appointment.scheduled", topic, a))
	if u, err := n.users.GetByID(ctx, a.PatientID); err == nil {
		_, _ = n.notifications.SendTemplate(ctx, notification.TemplateAppointmentScheduled, u.Email, map[string]string{
			"patient_name": u.Name,
			"date":         a.ScheduledAt.Format("January 2, 2006"),
			"time":         a.ScheduledAt.Format("15:04"),
			"reason":       a.Reason,
		})
	}
}

func (n *portalNotifier) MessageSent(ctx context.Context, m *message.Message) {
	topic := websocket.UserTopic(m.RecipientID.String())
	n.hub.Broadcast(topic, websocket.NewEvent("message.received", topic, m))
	if u, err := n.users.GetByID(ctx, m.RecipientID); err == nil {
		_, _ = n.notifications.SendTemplate(ctx, notification.TemplateNewMessage, u.Email, map[string]string{
			"recipient_name": u.Name,
		})
	}
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "portal-server",
		Short: "LumiViTA care portal API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the portal API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load demo data into an empty database",
		RunE: func(cmd *cobra.Command, args []string) error {
			seedCfg := sandbox.DefaultSeedConfig()
			seedCfg.Patients, _ = cmd.Flags().GetInt("patients")
			seedCfg.Caregivers, _ = cmd.Flags().GetInt("caregivers")
			seedCfg.Seed, _ = cmd.Flags().GetInt64("seed")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			seeder := sandbox.NewSeeder(
				user.NewRepoPG(pool),
				submission.NewRepoPG(pool),
				appointment.NewRepoPG(pool),
				prescription.NewRepoPG(pool),
				message.NewRepoPG(pool),
			)
			res, err := seeder.Run(ctx, seedCfg)
			if err != nil {
				return fmt.Errorf("seed failed: %w", err)
			}

			fmt.Printf("Seeded %d patients, %d caregivers, %d submissions, %d appointments, %d prescriptions, %d messages.\n",
				res.Patients, res.Caregivers, res.Submissions, res.Appointments, res.Prescriptions, res.Messages)
			return nil
		},
	}
	defaults := sandbox.DefaultSeedConfig()
	cmd.Flags().Int("patients", defaults.Patients, "Number of demo patients")
	cmd.Flags().Int("caregivers", defaults.Caregivers, "Number of demo caregivers")
	cmd.Flags().Int64("seed", defaults.Seed, "Random seed for reproducible data")
	return cmd
}

func runServer() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:   cfg.AuthIssuer,
			Audience: cfg.AuthAudience,
			JWKSURL:  cfg.AuthJWKSURL,
		}))
	}

	e.Use(middleware.Audit(logger))

	api := e.Group("/api/v1")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	api.Use(middleware.RateLimit(rateLimitCfg))

	// Repositories
	userRepo := user.NewRepoPG(pool)
	submissionRepo := submission.NewRepoPG(pool)
	appointmentRepo := appointment.NewRepoPG(pool)
	prescriptionRepo := prescription.NewRepoPG(pool)
	messageRepo := message.NewRepoPG(pool)

	// Realtime hub and notifications
	hub := websocket.NewHub()
	notifier := notification.NewManager(notification.LogSender{}, notification.LogSender{}, notification.NewTemplateEngine())

	// Services
	userSvc := user.NewService(userRepo)
	appointmentSvc := appointment.NewService(appointmentRepo)

	directory := &patientDirectory{users: userRepo}
	submissionSvc := submission.NewService(submissionRepo, directory, appointmentSvc)
	submissionSvc.SetTxRunner(func(ctx context.Context, fn func(ctx context.Context) error) error {
		return db.WithTx(ctx, pool, fn)
	})

	prescriptionSvc := prescription.NewService(prescriptionRepo)
	messageSvc := message.NewService(messageRepo, userSvc)

	events := &portalNotifier{hub: hub, notifications: notifier, users: userRepo}
	submissionSvc.SetHooks(events)
	appointmentSvc.SetNotifier(events)
	messageSvc.SetNotifier(events)

	// Handlers
	user.NewHandler(userSvc).RegisterRoutes(api)
	submission.NewHandler(submissionSvc).RegisterRoutes(api)
	appointment.NewHandler(appointmentSvc).RegisterRoutes(api)
	prescription.NewHandler(prescriptionSvc).RegisterRoutes(api)
	message.NewHandler(messageSvc).RegisterRoutes(api)
	websocket.NewHandler(hub).RegisterRoutes(api)
	notification.NewHandler(notifier).RegisterRoutes(api)

	// Registered even without an API key; the handler answers 503 until one
	// is configured.
	assistant.NewHandler(assistant.NewClient(cfg.AssistantKey, cfg.AssistantModel, cfg.AssistantURL)).RegisterRoutes(api)
	if cfg.AssistantKey != "" {
		logger.Info().Str("model", cfg.AssistantModel).Msg("assistant enabled")
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
