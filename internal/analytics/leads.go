package analytics

import (
	"sort"
	"strconv"
	"strings"
	"time"

	dbpkg "leadinsight/internal/db"
)

// Lead event kinds as stored in the event store.
const (
	LeadKindChat    = "chat"
	LeadKindContact = "contact"
)

// fallbackWindow is the grouping window for chat messages that share only an
// IP: messages whose timestamps land in the same 10-minute slot form one
// conversation. A conversation that pauses longer than this splits into two
// leads, and two visitors behind one NAT IP inside the same slot merge into
// one; both are accepted costs of having no better key.
const fallbackWindow = 10 * time.Minute

// Contact is the merged contact sub-record of a lead.
type Contact struct {
	Name             string `json:"name,omitempty"`
	Email            string `json:"email,omitempty"`
	Phone            string `json:"phone,omitempty"`
	Company          string `json:"company,omitempty"`
	Website          string `json:"website,omitempty"`
	PreferredContact string `json:"preferredContact,omitempty"`
}

// LeadRow is one deduplicated lead: a single contact submission, or a whole
// chat conversation folded into one row.
type LeadRow struct {
	Timestamp time.Time         `json:"timestamp"`
	Source    string            `json:"source"`
	IP        string            `json:"ip"`
	Contact   Contact           `json:"contact"`
	Events    []dbpkg.LeadEvent `json:"events"`
}

// GroupLeads folds raw lead events into deduplicated rows. Contact events map
// one-to-one; chat events are grouped by, in strict priority order: explicit
// conversation id, normalized contact email, then IP within a 10-minute
// window. The result is sorted newest first and truncated to limit
// (limit <= 0 means no truncation). The output is independent of the input
// order.
func GroupLeads(events []dbpkg.LeadEvent, limit int) []LeadRow {
	groups := make(map[string][]dbpkg.LeadEvent)
	var order []string
	for _, e := range events {
		var key string
		if e.Kind == LeadKindContact {
			// One contact submission is always its own lead.
			key = "contact:" + strconv.FormatUint(uint64(e.ID), 10)
		} else {
			key = chatGroupKey(e)
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], e)
	}

	rows := make([]LeadRow, 0, len(order))
	for _, key := range order {
		rows = append(rows, buildRow(groups[key]))
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Timestamp.Equal(rows[j].Timestamp) {
			return rows[i].Timestamp.After(rows[j].Timestamp)
		}
		// Deterministic order for equal timestamps regardless of input order.
		return rows[i].Events[0].ID > rows[j].Events[0].ID
	})

	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

// chatGroupKey picks the strongest available identity for a chat message:
// conversation id, then email, then the IP/time-window fallback.
func chatGroupKey(e dbpkg.LeadEvent) string {
	if id := strings.TrimSpace(e.ConversationID); id != "" {
		return "conv:" + id
	}
	if email := normalizeEmail(eventField(e, e.Email, "email")); email != "" {
		return "email:" + email
	}
	window := e.CreatedAt.UnixMilli() / fallbackWindow.Milliseconds()
	return "ipwin:" + e.IP + ":" + strconv.FormatInt(window, 10)
}

func buildRow(group []dbpkg.LeadEvent) LeadRow {
	sort.SliceStable(group, func(i, j int) bool {
		if !group[i].CreatedAt.Equal(group[j].CreatedAt) {
			return group[i].CreatedAt.Before(group[j].CreatedAt)
		}
		return group[i].ID < group[j].ID
	})

	first := group[0]
	last := group[len(group)-1]

	// Merge contact fields in timestamp order: the first non-empty value
	// wins, later events never overwrite it.
	var c Contact
	for _, e := range group {
		setIfEmpty(&c.Name, eventField(e, e.Name, "name"))
		setIfEmpty(&c.Email, eventField(e, e.Email, "email"))
		setIfEmpty(&c.Phone, eventField(e, e.Phone, "phone"))
		setIfEmpty(&c.Company, eventField(e, e.Company, "company"))
		setIfEmpty(&c.Website, eventField(e, e.Website, "website"))
		setIfEmpty(&c.PreferredContact, eventField(e, e.PreferredContact, "preferredContact"))
	}

	ip := last.IP
	if ip == "" {
		ip = first.IP
	}

	return LeadRow{
		Timestamp: last.CreatedAt,
		Source:    first.Kind,
		IP:        ip,
		Contact:   c,
		Events:    group,
	}
}

// eventField reads a contact field from the flat column first, then from the
// nested "contact" object in the attribute bag.
func eventField(e dbpkg.LeadEvent, flat, key string) string {
	if v := strings.TrimSpace(flat); v != "" {
		return v
	}
	if sub, ok := e.Attributes["contact"].(map[string]any); ok {
		if v, ok := sub[key].(string); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func setIfEmpty(dst *string, v string) {
	if *dst == "" && v != "" {
		*dst = v
	}
}
