package handlers

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"leadinsight/internal/analytics"
	"leadinsight/internal/config"
	dbpkg "leadinsight/internal/db"
	httpctx "leadinsight/internal/http/ctx"
)

// IngestEvent is one activity event from a product backend: a login report,
// a chat message, or a contact-form submission.
type IngestEvent struct {
	Type      string     `json:"type"` // "login" | "chat" | "contact"
	Timestamp *time.Time `json:"timestamp,omitempty"`
	IP        string     `json:"ip,omitempty"`

	// Login fields.
	UserID uint `json:"user_id,omitempty"`

	// Lead fields.
	ConversationID   string         `json:"conversation_id,omitempty"`
	Name             string         `json:"name,omitempty"`
	Email            string         `json:"email,omitempty"`
	Phone            string         `json:"phone,omitempty"`
	Company          string         `json:"company,omitempty"`
	Website          string         `json:"website,omitempty"`
	PreferredContact string         `json:"preferred_contact,omitempty"`
	Attributes       map[string]any `json:"attributes,omitempty"`
}

type ingestRequest struct {
	Events []IngestEvent `json:"events"`
}

func IngestHandler(db *gorm.DB, cfg *config.Config) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		var payload ingestRequest
		if err := json.Unmarshal(ctx.PostBody(), &payload); err != nil {
			ctx.SetStatusCode(fasthttp.StatusBadRequest)
			ctx.SetBodyString("invalid JSON body")
			return
		}
		if len(payload.Events) == 0 {
			ctx.SetStatusCode(fasthttp.StatusBadRequest)
			ctx.SetBodyString("no events provided")
			return
		}

		now := time.Now()
		retentionDays := cfg.RetentionDays
		project := ""
		if ak, ok := httpctx.APIKeyFromCtx(ctx); ok && ak != nil {
			if ak.RetentionDays > 0 {
				retentionDays = ak.RetentionDays
			}
			project = ak.Name
		}

		var logins []dbpkg.LoginEvent
		var leads []dbpkg.LeadEvent

		for _, ev := range payload.Events {
			createdAt := now
			if ev.Timestamp != nil {
				createdAt = *ev.Timestamp
			}

			var expiresAt *time.Time
			if retentionDays > 0 {
				t := createdAt.Add(time.Duration(retentionDays) * 24 * time.Hour)
				expiresAt = &t
			}

			switch ev.Type {
			case "login":
				if ev.UserID == 0 {
					continue
				}
				logins = append(logins, dbpkg.LoginEvent{
					CreatedAt: createdAt,
					ExpiresAt: expiresAt,
					UserID:    ev.UserID,
					IP:        ev.IP,
				})
			case analytics.LeadKindChat, analytics.LeadKindContact:
				attrs := datatypes.JSONMap{}
				for k, v := range ev.Attributes {
					attrs[k] = v
				}
				leads = append(leads, dbpkg.LeadEvent{
					CreatedAt:        createdAt,
					ExpiresAt:        expiresAt,
					Kind:             ev.Type,
					IP:               ev.IP,
					ConversationID:   ev.ConversationID,
					Name:             ev.Name,
					Email:            ev.Email,
					Phone:            ev.Phone,
					Company:          ev.Company,
					Website:          ev.Website,
					PreferredContact: ev.PreferredContact,
					Attributes:       attrs,
				})
			default:
				continue
			}

			eventsIngestedTotal.WithLabelValues(project, ev.Type).Inc()
		}

		total := len(logins) + len(leads)
		if total == 0 {
			ctx.SetStatusCode(fasthttp.StatusBadRequest)
			ctx.SetBodyString("no valid events after validation")
			return
		}

		if len(logins) > 0 {
			if err := db.Create(&logins).Error; err != nil {
				ctx.SetStatusCode(fasthttp.StatusInternalServerError)
				ctx.SetBodyString("failed to persist login events")
				return
			}
		}
		if len(leads) > 0 {
			if err := db.Create(&leads).Error; err != nil {
				ctx.SetStatusCode(fasthttp.StatusInternalServerError)
				ctx.SetBodyString("failed to persist lead events")
				return
			}
		}

		ctx.SetStatusCode(fasthttp.StatusAccepted)
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"status":"accepted","count":` + strconv.Itoa(total) + `}`)
	}
}
