package main

import (
	"log"

	"github.com/fasthttp/router"
	"github.com/joho/godotenv"
	"github.com/valyala/fasthttp"

	"leadinsight/internal/analytics"
	"leadinsight/internal/config"
	"leadinsight/internal/db"
	"leadinsight/internal/geo"
	"leadinsight/internal/http/handlers"
	appmw "leadinsight/internal/http/middleware"
	ui "leadinsight/web"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	sqlDB, err := db.Connect(cfg)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	db.StartRetentionWorker(sqlDB)

	if err := db.EnsureBootstrapAdmin(sqlDB, cfg); err != nil {
		log.Fatalf("failed to ensure bootstrap admin: %v", err)
	}

	if cfg.IngestAPIKey != "" {
		if err := db.EnsureBootstrapAPIKey(sqlDB, cfg); err != nil {
			log.Printf("warning: failed to ensure bootstrap ingest key: %v", err)
		} else {
			log.Printf("ingest API key configured and associated with admin user")
		}
	}

	handlers.InitPrometheusMetrics()

	store := db.NewStore(sqlDB)
	resolver := geo.NewResolver(cfg.GeoAPIURL, cfg.GeoTimeout, cfg.GeoCacheMax)
	aggregator := analytics.NewAggregator(store, resolver, cfg.TopIPLimit)

	r := router.New()

	handler := handlers.RequestLogger(r.Handler)

	r.GET("/healthz", func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("ok")
	})

	r.ServeFS("/static/{filepath:*}", ui.StaticFS())

	r.GET("/login", handlers.LoginForm(cfg))
	r.POST("/login", handlers.LoginSubmit(sqlDB, cfg))
	r.POST("/logout", handlers.Logout())

	r.GET("/", appmw.AdminAuth(sqlDB, cfg)(handlers.Dashboard(sqlDB, cfg)))
	r.GET("/users", appmw.AdminAuth(sqlDB, cfg)(handlers.UsersPage(sqlDB, cfg)))
	r.GET("/settings", appmw.AdminAuth(sqlDB, cfg)(handlers.SettingsPage(sqlDB, cfg)))

	r.POST("/admin/users/create", appmw.AdminAuth(sqlDB, cfg)(handlers.CreateUser(sqlDB)))
	r.POST("/admin/users/{id}/reset-password", appmw.AdminAuth(sqlDB, cfg)(handlers.ResetPassword(sqlDB, cfg)))
	r.POST("/admin/users/{id}/delete", appmw.AdminAuth(sqlDB, cfg)(handlers.DeleteUser(sqlDB, cfg)))

	r.POST("/settings/password", appmw.AdminAuth(sqlDB, cfg)(handlers.ChangePasswordSelf(sqlDB, cfg)))

	r.POST("/admin/apikeys/create", appmw.AdminAuth(sqlDB, cfg)(handlers.CreateAPIKey(sqlDB, cfg)))
	r.POST("/admin/apikeys/delete", appmw.AdminAuth(sqlDB, cfg)(handlers.DeleteAPIKey(sqlDB, cfg)))
	r.POST("/admin/apikeys/set-active", appmw.AdminAuth(sqlDB, cfg)(handlers.SetActiveAPIKey(sqlDB, cfg)))

	r.GET("/v1/metrics", handlers.ProjectMetricsHandler(sqlDB))
	r.POST("/v1/events", appmw.BearerAuth(sqlDB)(handlers.IngestHandler(sqlDB, cfg)))

	r.GET("/v1/dashboard/metrics", appmw.AdminAuth(sqlDB, cfg)(handlers.DashboardMetrics(aggregator)))
	r.GET("/v1/dashboard/leads", appmw.AdminAuth(sqlDB, cfg)(handlers.Leads(store)))

	log.Printf("leadinsight listening on %s", cfg.ListenAddr)
	if err := fasthttp.ListenAndServe(cfg.ListenAddr, handler); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
