package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/anabiolink/lims/internal/config"
	"github.com/anabiolink/lims/internal/domain/audit"
	"github.com/anabiolink/lims/internal/domain/catalog"
	"github.com/anabiolink/lims/internal/domain/patient"
	"github.com/anabiolink/lims/internal/domain/requisition"
	"github.com/anabiolink/lims/internal/platform/auth"
	"github.com/anabiolink/lims/internal/platform/db"
	"github.com/anabiolink/lims/internal/platform/middleware"
	"github.com/anabiolink/lims/internal/platform/notify"
	"github.com/anabiolink/lims/internal/platform/report"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "lims-server",
		Short: "Laboratory information system API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
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
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
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

// seedCmd loads a small demo catalog so a fresh install has something to
// requisition against.
func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load a demo exam catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
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

			svc := catalog.NewService(catalog.NewExamRepoPG(pool), catalog.NewExamFieldRepoPG(pool))
			for _, seed := range demoCatalog() {
				exam := seed.exam
				if err := svc.CreateExam(ctx, &exam); err != nil {
					fmt.Printf("skip %s: %v\n", exam.Name, err)
					continue
				}
				for _, f := range seed.fields {
					field := f
					field.ExamID = exam.ID
					if err := svc.CreateField(ctx, &field); err != nil {
						return fmt.Errorf("seed field %s: %w", field.FieldName, err)
					}
				}
				fmt.Printf("seeded %s (%d fields)\n", exam.Name, len(seed.fields))
			}
			return nil
		},
	}
}

type examSeed struct {
	exam   catalog.Exam
	fields []catalog.ExamField
}

func demoCatalog() []examSeed {
	strPtr := func(s string) *string { return &s }
	return []examSeed{
		{
			exam: catalog.Exam{Name: "Complete Blood Count", Code: "CBC", TurnaroundHours: 4,
				Method: strPtr("Automated analyzer"), Department: strPtr("Hematology")},
			fields: []catalog.ExamField{
				{FieldName: "Hemoglobin", ValueType: catalog.ValueTypeNumeric, Unit: "g/dL", ReferenceRange: "12.0-17.5", DisplayOrder: 1},
				{FieldName: "Hematocrit", ValueType: catalog.ValueTypeNumeric, Unit: "%", ReferenceRange: "36-52", DisplayOrder: 2},
				{FieldName: "White Blood Cells", ValueType: catalog.ValueTypeNumeric, Unit: "10^3/uL", ReferenceRange: "4.5-11.0", DisplayOrder: 3},
				{FieldName: "Platelets", ValueType: catalog.ValueTypeNumeric, Unit: "10^3/uL", ReferenceRange: "150-450", DisplayOrder: 4},
			},
		},
		{
			exam: catalog.Exam{Name: "Basic Metabolic Panel", Code: "BMP", TurnaroundHours: 6,
				Department: strPtr("Chemistry")},
			fields: []catalog.ExamField{
				{FieldName: "Glucose", ValueType: catalog.ValueTypeNumeric, Unit: "mg/dL", ReferenceRange: "70-100", DisplayOrder: 1},
				{FieldName: "Creatinine", ValueType: catalog.ValueTypeNumeric, Unit: "mg/dL", ReferenceRange: "0.6-1.3", DisplayOrder: 2},
				{FieldName: "Sodium", ValueType: catalog.ValueTypeNumeric, Unit: "mmol/L", ReferenceRange: "135-145", DisplayOrder: 3},
				{FieldName: "Potassium", ValueType: catalog.ValueTypeNumeric, Unit: "mmol/L", ReferenceRange: "3.5-5.0", DisplayOrder: 4},
			},
		},
		{
			exam: catalog.Exam{Name: "Urinalysis", Code: "UA", TurnaroundHours: 2,
				Department: strPtr("Microbiology")},
			fields: []catalog.ExamField{
				{FieldName: "Color", ValueType: catalog.ValueTypeText, DisplayOrder: 1},
				{FieldName: "pH", ValueType: catalog.ValueTypeNumeric, ReferenceRange: "4.5-8.0", DisplayOrder: 2},
				{FieldName: "Protein", ValueType: catalog.ValueTypeChoice, ReferenceRange: "negative", DisplayOrder: 3},
			},
		},
	}
}

// tokenCmd mints a signed JWT for a named user, mainly for testing a
// production-mode server without an identity provider in front of it.
func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, _ := cmd.Flags().GetString("user")
			name, _ := cmd.Flags().GetString("name")
			roles, _ := cmd.Flags().GetString("roles")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return fmt.Errorf("JWT_SECRET is not configured")
			}

			token, err := auth.IssueToken(auth.JWTConfig{
				Issuer: cfg.JWTIssuer,
				Secret: []byte(cfg.JWTSecret),
			}, user, name, strings.Split(roles, ","), ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().String("user", "admin", "Subject id for the token")
	cmd.Flags().String("name", "Administrator", "Display name")
	cmd.Flags().String("roles", "admin", "Comma-separated roles")
	cmd.Flags().Duration("ttl", 8*time.Hour, "Token lifetime")
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
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/ready", db.ReadyHandler(pool))

	apiV1 := e.Group("/api/v1")
	if cfg.IsDev() {
		apiV1.Use(auth.DevAuthMiddleware())
	} else {
		apiV1.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer: cfg.JWTIssuer,
			Secret: []byte(cfg.JWTSecret),
		}))
	}

	pol := auth.NewEngine(auth.DefaultRules())
	txRunner := db.PoolRunner(pool)

	// Wiring
	catalogSvc := catalog.NewService(catalog.NewExamRepoPG(pool), catalog.NewExamFieldRepoPG(pool))
	catalog.NewHandler(catalogSvc).RegisterRoutes(apiV1, pol)

	patientSvc := patient.NewService(patient.NewRepoPG(pool), patient.NewSequenceRepoPG(pool), txRunner)
	patient.NewHandler(patientSvc).RegisterRoutes(apiV1, pol)

	auditSvc := audit.NewService(audit.NewRepoPG(pool))
	audit.NewHandler(auditSvc).RegisterRoutes(apiV1, pol)

	renderer := report.NewRenderer(cfg.LabName, cfg.LabAddress)
	mailer := notify.NewMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.ReportInbox)
	if mailer.Enabled() {
		logger.Info().Str("inbox", cfg.ReportInbox).Msg("report mail delivery enabled")
	}

	reqSvc := requisition.NewService(
		requisition.NewRepoPG(pool),
		requisition.NewResultRepoPG(pool),
		catalog.NewExamFieldRepoPG(pool),
		auditSvc,
		txRunner,
		logger,
	)
	requisition.NewHandler(reqSvc, patientSvc, renderer, mailer, logger).RegisterRoutes(apiV1, pol)

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
