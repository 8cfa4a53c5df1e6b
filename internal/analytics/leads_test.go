package analytics

import (
	"testing"
	"time"

	"gorm.io/datatypes"

	dbpkg "leadinsight/internal/db"
)

var leadBase = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func chatEvent(id uint, at time.Time, ip, convID, email string) dbpkg.LeadEvent {
	return dbpkg.LeadEvent{
		ID:             id,
		CreatedAt:      at,
		Kind:           LeadKindChat,
		IP:             ip,
		ConversationID: convID,
		Email:          email,
	}
}

func TestGroupLeadsConversationID(t *testing.T) {
	// Three messages sharing a conversation id fold into one lead, even
	// across different IPs.
	events := []dbpkg.LeadEvent{
		chatEvent(1, leadBase, "1.2.3.4", "abc", ""),
		chatEvent(2, leadBase.Add(5*time.Minute), "5.6.7.8", "abc", ""),
		chatEvent(3, leadBase.Add(20*time.Minute), "1.2.3.4", "abc", ""),
	}

	rows := GroupLeads(events, 0)
	if len(rows) != 1 {
		t.Fatalf("expected 1 lead row, got %d", len(rows))
	}
	row := rows[0]
	if !row.Timestamp.Equal(leadBase.Add(20 * time.Minute)) {
		t.Fatalf("lastSeen should be the latest message, got %v", row.Timestamp)
	}
	if len(row.Events) != 3 {
		t.Fatalf("expected 3 source events, got %d", len(row.Events))
	}
	if !row.Events[0].CreatedAt.Before(row.Events[2].CreatedAt) {
		t.Fatalf("source events should be ascending by timestamp")
	}
}

func TestGroupLeadsFallbackWindowSplits(t *testing.T) {
	// Same IP, no conversation id or email, 12 minutes apart: different
	// 10-minute windows, so two separate leads.
	a := time.Date(2024, 3, 1, 12, 1, 0, 0, time.UTC)
	events := []dbpkg.LeadEvent{
		chatEvent(1, a, "1.2.3.4", "", ""),
		chatEvent(2, a.Add(12*time.Minute), "1.2.3.4", "", ""),
	}

	rows := GroupLeads(events, 0)
	if len(rows) != 2 {
		t.Fatalf("expected 2 lead rows, got %d", len(rows))
	}
}

func TestGroupLeadsFallbackWindowMerges(t *testing.T) {
	// Timestamps inside one 10-minute slot share the fallback key.
	a := time.Date(2024, 3, 1, 12, 0, 10, 0, time.UTC)
	events := []dbpkg.LeadEvent{
		chatEvent(1, a, "1.2.3.4", "", ""),
		chatEvent(2, a.Add(3*time.Minute), "1.2.3.4", "", ""),
	}

	rows := GroupLeads(events, 0)
	if len(rows) != 1 {
		t.Fatalf("expected 1 lead row, got %d", len(rows))
	}
}

func TestGroupLeadsEmailBeatsFallback(t *testing.T) {
	// Shared normalized email groups messages from different IPs and windows.
	events := []dbpkg.LeadEvent{
		chatEvent(1, leadBase, "1.2.3.4", "", "Jo@Example.com "),
		chatEvent(2, leadBase.Add(30*time.Minute), "9.9.9.9", "", "jo@example.com"),
	}

	rows := GroupLeads(events, 0)
	if len(rows) != 1 {
		t.Fatalf("expected 1 lead row, got %d", len(rows))
	}
	if rows[0].Contact.Email != "Jo@Example.com" {
		t.Fatalf("merged email should keep the first non-empty raw value, got %q", rows[0].Contact.Email)
	}
}

func TestGroupLeadsContactEventsNeverGroup(t *testing.T) {
	events := []dbpkg.LeadEvent{
		{ID: 1, CreatedAt: leadBase, Kind: LeadKindContact, IP: "1.2.3.4", Email: "a@b.c"},
		{ID: 2, CreatedAt: leadBase.Add(time.Minute), Kind: LeadKindContact, IP: "1.2.3.4", Email: "a@b.c"},
	}

	rows := GroupLeads(events, 0)
	if len(rows) != 2 {
		t.Fatalf("contact submissions must stay one row each, got %d", len(rows))
	}
	if rows[0].Source != LeadKindContact {
		t.Fatalf("unexpected source: %q", rows[0].Source)
	}
}

func TestGroupLeadsMergesFirstNonEmpty(t *testing.T) {
	e1 := chatEvent(1, leadBase, "1.2.3.4", "abc", "")
	e1.Name = "Ada"
	e2 := chatEvent(2, leadBase.Add(time.Minute), "", "abc", "first@x.io")
	e2.Name = "Ignored Later Name"
	e2.Phone = "+1555"
	e3 := chatEvent(3, leadBase.Add(2*time.Minute), "5.6.7.8", "abc", "second@x.io")

	rows := GroupLeads([]dbpkg.LeadEvent{e3, e1, e2}, 0)
	if len(rows) != 1 {
		t.Fatalf("expected 1 lead row, got %d", len(rows))
	}
	c := rows[0].Contact
	if c.Name != "Ada" || c.Email != "first@x.io" || c.Phone != "+1555" {
		t.Fatalf("unexpected merged contact: %+v", c)
	}
	// Last event's IP wins, falling back to the first event's IP when empty.
	if rows[0].IP != "5.6.7.8" {
		t.Fatalf("unexpected row IP: %q", rows[0].IP)
	}
}

func TestGroupLeadsNestedContactFallback(t *testing.T) {
	e := dbpkg.LeadEvent{
		ID:        1,
		CreatedAt: leadBase,
		Kind:      LeadKindContact,
		IP:        "1.2.3.4",
		Attributes: datatypes.JSONMap{
			"contact": map[string]any{
				"name":  "Grace",
				"email": "grace@x.io",
			},
		},
	}

	rows := GroupLeads([]dbpkg.LeadEvent{e}, 0)
	if len(rows) != 1 {
		t.Fatalf("expected 1 lead row, got %d", len(rows))
	}
	if rows[0].Contact.Name != "Grace" || rows[0].Contact.Email != "grace@x.io" {
		t.Fatalf("nested contact fields not picked up: %+v", rows[0].Contact)
	}
}

func TestGroupLeadsFlatFieldBeatsNested(t *testing.T) {
	e := dbpkg.LeadEvent{
		ID:        1,
		CreatedAt: leadBase,
		Kind:      LeadKindContact,
		Name:      "Flat Name",
		Attributes: datatypes.JSONMap{
			"contact": map[string]any{"name": "Nested Name"},
		},
	}

	rows := GroupLeads([]dbpkg.LeadEvent{e}, 0)
	if rows[0].Contact.Name != "Flat Name" {
		t.Fatalf("flat column should win over nested contact, got %q", rows[0].Contact.Name)
	}
}

func TestGroupLeadsOrderIndependent(t *testing.T) {
	events := []dbpkg.LeadEvent{
		chatEvent(1, leadBase, "1.2.3.4", "abc", ""),
		chatEvent(2, leadBase.Add(5*time.Minute), "1.2.3.4", "abc", ""),
		chatEvent(3, leadBase.Add(40*time.Minute), "1.2.3.4", "", ""),
		{ID: 4, CreatedAt: leadBase.Add(10 * time.Minute), Kind: LeadKindContact, Email: "c@d.e"},
	}
	reversed := []dbpkg.LeadEvent{events[3], events[2], events[1], events[0]}

	a := GroupLeads(events, 0)
	b := GroupLeads(reversed, 0)
	if len(a) != len(b) {
		t.Fatalf("permuted input changed row count: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if !a[i].Timestamp.Equal(b[i].Timestamp) || a[i].Source != b[i].Source ||
			a[i].Contact != b[i].Contact || len(a[i].Events) != len(b[i].Events) {
			t.Fatalf("row %d differs under permutation:\n%+v\n%+v", i, a[i], b[i])
		}
	}
}

func TestGroupLeadsSortedAndLimited(t *testing.T) {
	events := []dbpkg.LeadEvent{
		chatEvent(1, leadBase, "1.1.1.1", "a", ""),
		chatEvent(2, leadBase.Add(time.Hour), "2.2.2.2", "b", ""),
		chatEvent(3, leadBase.Add(2*time.Hour), "3.3.3.3", "c", ""),
	}

	rows := GroupLeads(events, 2)
	if len(rows) != 2 {
		t.Fatalf("expected truncation to 2 rows, got %d", len(rows))
	}
	if !rows[0].Timestamp.After(rows[1].Timestamp) {
		t.Fatalf("rows should be sorted newest first")
	}
	if rows[0].IP != "3.3.3.3" {
		t.Fatalf("newest lead should survive truncation, got %q", rows[0].IP)
	}
}
