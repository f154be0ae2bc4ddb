package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/civicgrid/civic-report-api/api"
	"github.com/civicgrid/civic-report-api/api/scheduler"
	"github.com/civicgrid/civic-report-api/config"
	"github.com/civicgrid/civic-report-api/databases"
	"github.com/civicgrid/civic-report-api/geocode"
	"github.com/civicgrid/civic-report-api/models"
)

// App stores the router and db connection, so it can be reused
type App struct {
	Router    *mux.Router
	Config    config.Config
	Scheduler *scheduler.Scheduler
	dbHelper  databases.DatabaseHelper
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	// setup go-guardian for middleware
	m := api.Auth{DB: databases.NewUserDatabase(a.dbHelper), JWTSecret: []byte(a.Config.JWTSecret)}
	m.SetupGoGuardian()

	hub := NewHub()
	go hub.Run()

	mailer := NewMailer(&a.Config)

	account := Account{
		DB:     databases.NewUserDatabase(a.dbHelper),
		PRDB:   databases.NewPasswordResetDatabase(a.dbHelper),
		Config: &a.Config,
		Mailer: mailer,
	}
	report := Report{
		DB:  databases.NewReportDatabase(a.dbHelper),
		DDB: databases.NewDepartmentDatabase(a.dbHelper),
		Geo: geocode.New(a.Config.GeocodeBaseURL),
		Hub: hub,
	}
	emergency := Emergency{
		DB:  databases.NewEmergencyDatabase(a.dbHelper),
		Hub: hub,
	}
	department := Department{
		DB:  databases.NewDepartmentDatabase(a.dbHelper),
		RDB: databases.NewReportDatabase(a.dbHelper),
		UDB: databases.NewUserDatabase(a.dbHelper),
	}
	officer := Officer{
		DB:     databases.NewUserDatabase(a.dbHelper),
		DDB:    databases.NewDepartmentDatabase(a.dbHelper),
		Mailer: mailer,
	}
	media := NewMediaHandler(&a.Config)
	stats := Stats{
		RDB: databases.NewReportDatabase(a.dbHelper),
		EDB: databases.NewEmergencyDatabase(a.dbHelper),
	}
	stream := Stream{Hub: hub}

	limit := api.Limit(5, 10, 3*time.Minute)
	officerOrAdmin := api.RequireRole(models.RoleOfficer, models.RoleAdmin)
	adminOnly := api.RequireRole(models.RoleAdmin)
	citizenOnly := api.RequireRole(models.RoleCitizen)

	r := mux.NewRouter()

	// healthchex
	r.HandleFunc("/health", healthCheckHandler)

	apiCreate := r.PathPrefix("/api/v1").Subrouter()

	apiCreate.Handle("/auth/register", limit(http.HandlerFunc(account.RegisterHandler))).Methods("POST")
	apiCreate.Handle("/auth/login", limit(http.HandlerFunc(account.LoginHandler))).Methods("POST")
	apiCreate.Handle("/auth/token", http.HandlerFunc(m.CreateToken)).Methods("POST")
	apiCreate.Handle("/auth/logout", m.Middleware(http.HandlerFunc(api.RevokeToken))).Methods("DELETE")
	apiCreate.Handle("/auth/forgot-password", limit(http.HandlerFunc(account.ForgotPasswordHandler))).Methods("POST")
	apiCreate.Handle("/auth/reset-password", limit(http.HandlerFunc(account.ResetPasswordHandler))).Methods("POST")

	apiCreate.Handle("/me", m.Middleware(http.HandlerFunc(account.MeHandler))).Methods("GET")
	apiCreate.Handle("/me", m.Middleware(http.HandlerFunc(account.UpdateMeHandler))).Methods("PUT")

	apiCreate.Handle("/reports", m.Middleware(citizenOnly(http.HandlerFunc(report.CreateReportHandler)))).Methods("POST")
	apiCreate.Handle("/reports", m.Middleware(http.HandlerFunc(report.ReportsHandler))).Methods("GET")
	apiCreate.Handle("/reports/nearby", m.Middleware(http.HandlerFunc(report.ReportsNearbyHandler))).Methods("GET")
	apiCreate.Handle("/reports/{report_id}", m.Middleware(http.HandlerFunc(report.ReportByIDHandler))).Methods("GET")
	apiCreate.Handle("/reports/{report_id}/status", m.Middleware(officerOrAdmin(http.HandlerFunc(report.UpdateReportStatusHandler)))).Methods("PUT")
	apiCreate.Handle("/reports/{report_id}/reject", m.Middleware(officerOrAdmin(http.HandlerFunc(report.RejectReportHandler)))).Methods("PUT")

	apiCreate.Handle("/emergencies", m.Middleware(citizenOnly(http.HandlerFunc(emergency.CreateEmergencyHandler)))).Methods("POST")
	apiCreate.Handle("/emergencies", m.Middleware(http.HandlerFunc(emergency.EmergenciesHandler))).Methods("GET")
	apiCreate.Handle("/emergencies/active", m.Middleware(officerOrAdmin(http.HandlerFunc(emergency.ActiveEmergenciesHandler)))).Methods("GET")
	apiCreate.Handle("/emergencies/{emergency_id}", m.Middleware(http.HandlerFunc(emergency.EmergencyByIDHandler))).Methods("GET")
	apiCreate.Handle("/emergencies/{emergency_id}/status", m.Middleware(officerOrAdmin(http.HandlerFunc(emergency.UpdateEmergencyStatusHandler)))).Methods("PUT")

	apiCreate.Handle("/departments", m.Middleware(adminOnly(http.HandlerFunc(department.CreateDepartmentHandler)))).Methods("POST")
	apiCreate.Handle("/departments", m.Middleware(http.HandlerFunc(department.DepartmentsHandler))).Methods("GET")
	apiCreate.Handle("/departments/{department_id}", m.Middleware(http.HandlerFunc(department.DepartmentByIDHandler))).Methods("GET")
	apiCreate.Handle("/departments/{department_id}", m.Middleware(adminOnly(http.HandlerFunc(department.UpdateDepartmentHandler)))).Methods("PATCH")
	apiCreate.Handle("/departments/{department_id}", m.Middleware(adminOnly(http.HandlerFunc(department.DeleteDepartmentHandler)))).Methods("DELETE")
	apiCreate.Handle("/departments/{department_id}/stats", m.Middleware(officerOrAdmin(http.HandlerFunc(department.DepartmentStatsHandler)))).Methods("GET")

	apiCreate.Handle("/officers", m.Middleware(adminOnly(http.HandlerFunc(officer.CreateOfficerHandler)))).Methods("POST")
	apiCreate.Handle("/officers", m.Middleware(adminOnly(http.HandlerFunc(officer.OfficersHandler)))).Methods("GET")
	apiCreate.Handle("/officers/{officer_id}/status", m.Middleware(adminOnly(http.HandlerFunc(officer.UpdateOfficerStatusHandler)))).Methods("PATCH")
	apiCreate.Handle("/officers/{officer_id}/departments", m.Middleware(adminOnly(http.HandlerFunc(officer.UpdateOfficerDepartmentsHandler)))).Methods("PUT")

	apiCreate.Handle("/media", m.Middleware(http.HandlerFunc(media.UploadHandler))).Methods("POST")
	apiCreate.Handle("/media/signature", m.Middleware(http.HandlerFunc(media.GenerateSignature))).Methods("POST")

	apiCreate.Handle("/stats/overview", m.Middleware(adminOnly(http.HandlerFunc(stats.OverviewHandler)))).Methods("GET")

	apiCreate.Handle("/stream", m.Middleware(http.HandlerFunc(stream.ServeHandler))).Methods("GET")

	return r
}

// Initialize is invoked by main to connect with the database and create a router
func (a *App) Initialize() error {

	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With(err).Error("failed to create new client")
		return err
	}

	a.dbHelper = databases.NewDatabase(&a.Config, client)
	err = client.Connect(context.Background())
	if err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With(err).Error("failed to connect to database")
		return err
	}
	zap.S().Info("civic-report-api has connected to the database")

	ctx, cancel := api.WithQueryTimeout(context.Background())
	defer cancel()
	if err := a.dbHelper.EnsureIndexes(ctx); err != nil {
		zap.S().With(err).Error("failed to ensure indexes")
		return err
	}

	// start background jobs
	a.Scheduler = scheduler.New(
		databases.NewDepartmentDatabase(a.dbHelper),
		databases.NewReportDatabase(a.dbHelper),
		databases.NewUserDatabase(a.dbHelper),
		databases.NewPasswordResetDatabase(a.dbHelper),
	)
	a.Scheduler.Start()

	// initialize api router
	a.initializeRoutes()
	return nil
}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	b, _ := json.Marshal(models.HealthCheckResponse{
		Alive: true,
	})
	_, _ = io.WriteString(w, string(b))
}
