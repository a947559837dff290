package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmlabs-hris/attendance-core/internal/config"
	"github.com/cmlabs-hris/attendance-core/internal/domain/approval"
	"github.com/cmlabs-hris/attendance-core/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-core/internal/domain/ruleset"
	"github.com/cmlabs-hris/attendance-core/internal/domain/schedule"
	"github.com/cmlabs-hris/attendance-core/internal/domain/settings"
	"github.com/cmlabs-hris/attendance-core/internal/domain/user"
	appHTTP "github.com/cmlabs-hris/attendance-core/internal/handler/http"
	"github.com/cmlabs-hris/attendance-core/internal/pkg/cache"
	"github.com/cmlabs-hris/attendance-core/internal/pkg/cron"
	"github.com/cmlabs-hris/attendance-core/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-core/internal/pkg/events"
	"github.com/cmlabs-hris/attendance-core/internal/pkg/jwt"
	"github.com/cmlabs-hris/attendance-core/internal/pkg/logger"
	"github.com/cmlabs-hris/attendance-core/internal/pkg/redis"
	"github.com/cmlabs-hris/attendance-core/internal/pkg/registry"
	"github.com/cmlabs-hris/attendance-core/internal/pkg/sse"
	"github.com/cmlabs-hris/attendance-core/internal/repository/memory"
	"github.com/cmlabs-hris/attendance-core/internal/repository/postgresql"
	approvalService "github.com/cmlabs-hris/attendance-core/internal/service/approval"
	attendanceService "github.com/cmlabs-hris/attendance-core/internal/service/attendance"
	"github.com/cmlabs-hris/attendance-core/internal/service/constraint"
	holidayService "github.com/cmlabs-hris/attendance-core/internal/service/holiday"
	"github.com/cmlabs-hris/attendance-core/internal/service/importer"
	"github.com/cmlabs-hris/attendance-core/internal/service/metrics"
	"github.com/cmlabs-hris/attendance-core/internal/service/permission"
	"github.com/cmlabs-hris/attendance-core/internal/service/reconcile"
	rulesetService "github.com/cmlabs-hris/attendance-core/internal/service/ruleset"
	settingsService "github.com/cmlabs-hris/attendance-core/internal/service/settings"
	"github.com/cmlabs-hris/attendance-core/internal/service/workcontext"
)

// repositories is the storage backend selected by STORAGE_DRIVER.
type repositories struct {
	tx               database.Transactor
	records          attendance.RecordRepository
	events           attendance.EventRepository
	requests         approval.RequestRepository
	instances        approval.InstanceRepository
	audits           approval.AuditRepository
	flows            approval.FlowRepository
	shifts           schedule.ShiftRepository
	shiftAssignments schedule.ShiftAssignmentRepository
	rotations        schedule.RotationRepository
	holidays         schedule.HolidayRepository
	ruleSets         ruleset.Repository
	settings         settings.Repository
	members          user.MemberRepository
	jobRuns          cron.RunMarker
	close            func()
}

func postgresRepositories(db *database.DB) repositories {
	return repositories{
		tx:               postgresql.NewTransactor(db),
		records:          postgresql.NewRecordRepository(db),
		events:           postgresql.NewEventRepository(db),
		requests:         postgresql.NewRequestRepository(db),
		instances:        postgresql.NewInstanceRepository(db),
		audits:           postgresql.NewAuditRepository(db),
		flows:            postgresql.NewFlowRepository(db),
		shifts:           postgresql.NewShiftRepository(db),
		shiftAssignments: postgresql.NewShiftAssignmentRepository(db),
		rotations:        postgresql.NewRotationRepository(db),
		holidays:         postgresql.NewHolidayRepository(db),
		ruleSets:         postgresql.NewRuleSetRepository(db),
		settings:         postgresql.NewSettingsRepository(db),
		members:          postgresql.NewMemberRepository(db),
		jobRuns:          postgresql.NewJobRunRepository(db),
		close:            db.Close,
	}
}

func memoryRepositories() repositories {
	store := memory.NewStore()
	return repositories{
		tx:               store,
		records:          store.Records(),
		events:           store.Events(),
		requests:         store.Requests(),
		instances:        store.Instances(),
		audits:           store.Audits(),
		flows:            store.Flows(),
		shifts:           store.Shifts(),
		shiftAssignments: store.ShiftAssignments(),
		rotations:        store.Rotations(),
		holidays:         store.Holidays(),
		ruleSets:         store.RuleSets(),
		settings:         store.Settings(),
		members:          store.Members(),
		jobRuns:          store.JobRuns(),
		close:            func() {},
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "attendance-core:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	log := logger.New(os.Stdout, cfg.App.LogLevel, cfg.App.Env)
	slog.SetDefault(log)

	var repos repositories
	switch cfg.App.StorageDriver {
	case config.StorageDriverMemory:
		log.Warn("using in-memory storage; data is lost on restart")
		repos = memoryRepositories()
	default:
		db, err := database.NewPostgreSQLDB(cfg.DatabaseURL())
		if err != nil {
			return fmt.Errorf("error connecting to database: %w", err)
		}
		if cfg.App.MigrateOnStart {
			if err := database.RunMigrations(db, log); err != nil {
				db.Close()
				return err
			}
		}
		repos = postgresRepositories(db)
	}
	defer repos.close()

	marker := repos.jobRuns
	if cfg.Redis.Enabled() {
		client, err := redis.NewClient(redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   "attendance:",
		}, log)
		if err != nil {
			return err
		}
		defer client.Close()
		marker = cron.RedisMarker(client, 72*time.Hour)
	}

	bus := events.NewBus(cfg.Attendance.EventQueueSize, log)
	defer bus.Close()
	hub := sse.NewHub()
	detach := hub.Forward(bus)
	defer detach()

	reg := registry.New()
	wire(reg, cfg, repos, bus, marker, log)

	JWTService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration)
	gate := registry.MustGet[user.PermissionGate](reg, registry.PermissionGate)

	attendanceHandler := appHTTP.NewAttendanceHandler(
		registry.MustGet[attendance.Service](reg, registry.Attendance),
		registry.MustGet[attendance.Importer](reg, registry.Importer),
		hub,
	)
	requestHandler := appHTTP.NewRequestHandler(registry.MustGet[approval.Service](reg, registry.Approvals))
	configHandler := appHTTP.NewConfigHandler(
		registry.MustGet[ruleset.Service](reg, registry.RuleSets),
		registry.MustGet[schedule.HolidayService](reg, registry.Holidays),
		registry.MustGet[settings.Service](reg, registry.Settings),
		gate,
	)

	router := appHTTP.NewRouter(
		appHTTP.RouterOptions{AllowedOrigins: cfg.App.AllowedOrigins, Logger: log},
		JWTService,
		attendanceHandler,
		requestHandler,
		configHandler,
	)

	scheduler := cron.NewScheduler(log)
	registry.MustGet[*cron.AttendanceJobs](reg, registry.AttendanceJobs).RegisterJobs(scheduler, cfg.Attendance.AbsenceJobInterval)
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("Server running", "addr", server.Addr, "storage", cfg.App.StorageDriver, "services", reg.Names())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// wire registers every service by capability name. Components are built
// leaves first and each one takes its collaborators from the registry.
func wire(reg *registry.Registry, cfg *config.Config, repos repositories, bus *events.Bus, marker cron.RunMarker, log *slog.Logger) {
	ttl := cfg.Attendance.CacheTTL

	reg.MustRegister(registry.EventBus, events.Publisher(bus))
	reg.MustRegister(registry.PermissionGate, user.PermissionGate(permission.NewGate(cfg.Attendance.PermissionDegradedMode, log)))
	reg.MustRegister(registry.Calculator, attendance.MetricsCalculator(metrics.NewCalculator()))
	reg.MustRegister(registry.Resolver, schedule.Resolver(workcontext.NewResolver(repos.rotations, repos.shifts, repos.shiftAssignments, repos.holidays, log)))
	reg.MustRegister(registry.ConstraintGate, attendance.ConstraintGate(constraint.NewGate(repos.events)))

	gate := registry.MustGet[user.PermissionGate](reg, registry.PermissionGate)
	publisher := registry.MustGet[events.Publisher](reg, registry.EventBus)
	calc := registry.MustGet[attendance.MetricsCalculator](reg, registry.Calculator)
	resolver := registry.MustGet[schedule.Resolver](reg, registry.Resolver)

	reg.MustRegister(registry.Settings, settings.Service(settingsService.NewService(repos.settings, gate, cache.New[settings.Settings](ttl), cfg.Attendance.Defaults(), log)))
	reg.MustRegister(registry.RuleSets, ruleset.Service(rulesetService.NewService(repos.ruleSets, gate, cache.New[*ruleset.Compiled](ttl), log)))
	reg.MustRegister(registry.Reconciler, attendance.Reconciler(reconcile.NewReconciler(repos.tx, repos.records, calc, log)))
	reg.MustRegister(registry.Adjuster, attendance.Adjuster(attendanceService.NewRuleAdjuster(
		registry.MustGet[ruleset.Service](reg, registry.RuleSets), repos.members, log,
	)))

	settingsSvc := registry.MustGet[settings.Service](reg, registry.Settings)
	rules := registry.MustGet[ruleset.Service](reg, registry.RuleSets)
	reconciler := registry.MustGet[attendance.Reconciler](reg, registry.Reconciler)
	adjuster := registry.MustGet[attendance.Adjuster](reg, registry.Adjuster)

	reg.MustRegister(registry.Attendance, attendanceService.NewAttendanceService(
		repos.tx,
		repos.events,
		repos.records,
		repos.requests,
		reconciler,
		resolver,
		settingsSvc,
		registry.MustGet[attendance.ConstraintGate](reg, registry.ConstraintGate),
		gate,
		adjuster,
		publisher,
		log,
	))

	reg.MustRegister(registry.Importer, attendance.Importer(importer.NewService(
		rules,
		settingsSvc,
		resolver,
		repos.requests,
		reconciler,
		adjuster,
		gate,
		publisher,
		log,
	)))

	reg.MustRegister(registry.Approvals, approvalService.NewApprovalService(approvalService.Deps{
		Tx:         repos.tx,
		Requests:   repos.requests,
		Instances:  repos.instances,
		Audits:     repos.audits,
		Flows:      repos.flows,
		Records:    repos.records,
		Events:     repos.events,
		Resolver:   resolver,
		Reconciler: reconciler,
		Adjuster:   adjuster,
		Calculator: calc,
		Settings:   settingsSvc,
		Gate:       gate,
		Publisher:  publisher,
		Logger:     log,
	}))

	reg.MustRegister(registry.Holidays, holidayService.NewHolidayService(repos.tx, repos.holidays, gate, log))

	reg.MustRegister(registry.AttendanceJobs, cron.NewAttendanceJobs(
		repos.members,
		settingsSvc,
		resolver,
		repos.records,
		repos.requests,
		reconciler,
		adjuster,
		marker,
		log,
	))
}
