package handlers

import (
	"bytes"

	"github.com/valyala/fasthttp"
	"gorm.io/gorm"

	"leadinsight/internal/config"
	dbpkg "leadinsight/internal/db"
	httpctx "leadinsight/internal/http/ctx"
	ui "leadinsight/web"
)

type LayoutData struct {
	Title            string
	Breadcrumb       string
	ActivePage       string
	PageTemplate     string
	MaxRetentionDays int
	IsAdmin          bool
	Username         string
	AdminUser        string
	Users            []dbpkg.User
	APIKeys          []dbpkg.APIKey
	IngestAPIKey     string
}

func getLayoutData(ctx *fasthttp.RequestCtx, cfg *config.Config, activePage, breadcrumb, pageTemplate string) LayoutData {
	isAdmin := false
	username := ""
	if user, ok := httpctx.UserFromCtx(ctx); ok && user != nil {
		username = user.Username
		isAdmin = user.IsAdmin || username == cfg.AdminUser
	}

	return LayoutData{
		Title:            breadcrumb,
		Breadcrumb:       breadcrumb,
		ActivePage:       activePage,
		PageTemplate:     pageTemplate,
		MaxRetentionDays: cfg.RetentionDays,
		IsAdmin:          isAdmin,
		Username:         username,
		AdminUser:        cfg.AdminUser,
	}
}

func renderLayout(ctx *fasthttp.RequestCtx, data LayoutData) {
	var buf bytes.Buffer
	if err := ui.Templates().ExecuteTemplate(&buf, "layout", data); err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		ctx.SetBodyString("render error")
		return
	}
	ctx.SetContentType("text/html; charset=utf-8")
	ctx.SetBody(buf.Bytes())
}

// Dashboard renders the metrics shell; the charts fetch their data from the
// JSON endpoints.
func Dashboard(_ *gorm.DB, cfg *config.Config) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		data := getLayoutData(ctx, cfg, "dashboard", "Dashboard", "dashboard")
		renderLayout(ctx, data)
	}
}

func UsersPage(db *gorm.DB, cfg *config.Config) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if _, ok := MustUser(ctx); !ok {
			return
		}

		var users []dbpkg.User
		if err := db.Order("created_at DESC").Find(&users).Error; err != nil {
			ctx.SetStatusCode(fasthttp.StatusInternalServerError)
			ctx.SetBodyString("failed to load users")
			return
		}

		data := getLayoutData(ctx, cfg, "users", "Users", "users")
		data.Users = users
		renderLayout(ctx, data)
	}
}

func SettingsPage(db *gorm.DB, cfg *config.Config) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		user, ok := MustUser(ctx)
		if !ok {
			return
		}

		var apiKeys []dbpkg.APIKey
		if err := db.Where("user_id = ?", user.ID).Order("created_at DESC").Find(&apiKeys).Error; err != nil {
			ctx.SetStatusCode(fasthttp.StatusInternalServerError)
			ctx.SetBodyString("failed to load API keys")
			return
		}

		data := getLayoutData(ctx, cfg, "settings", "Settings", "settings")
		data.APIKeys = apiKeys
		data.IngestAPIKey = cfg.IngestAPIKey
		renderLayout(ctx, data)
	}
}
