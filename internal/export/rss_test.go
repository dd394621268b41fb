package export

import (
	"testing"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/mtaalerts/internal/model"
)

func testSnapshot() *model.AlertSnapshot {
	at := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	return &model.AlertSnapshot{
		FetchedAt: at,
		Alerts: []model.Alert{
			{
				ID:          "lmm:planned_work:1",
				Line:        "A",
				LineColor:   model.LineColorBlue,
				LineType:    model.LineTypeSubway,
				Title:       "Trains run local",
				Description: "Planned track work between stations.",
				Severity:    model.SeverityPlanned,
				LastUpdated: at,
			},
			{
				ID:                 "lmm:alert:2",
				Line:               "LIRR",
				LineColor:          model.LineColorLIRR,
				LineType:           model.LineTypeRail,
				Title:              "Delays",
				Description:        "Trains are running with delays.",
				Severity:           model.SeverityModerate,
				ExpectedResolution: "Until 10/14/2026 3:00 PM",
				LastUpdated:        at,
			},
		},
	}
}

func TestToRSS_RoundTrip(t *testing.T) {
	rss, err := ToRSS(testSnapshot(), "https://alerts.example.com/")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	parsed, err := gofeed.NewParser().ParseString(rss)
	if err != nil {
		t.Fatalf("生成したRSSがパースできない: %v\n%s", err, rss)
	}

	if parsed.FeedType != "rss" {
		t.Errorf("FeedType = %q, want %q", parsed.FeedType, "rss")
	}
	if parsed.Title != feedTitle {
		t.Errorf("Title = %q, want %q", parsed.Title, feedTitle)
	}
	if parsed.Link != "https://alerts.example.com/api/alerts" {
		t.Errorf("Link = %q", parsed.Link)
	}
	if len(parsed.Items) != 2 {
		t.Fatalf("アイテム数 = %d, want 2", len(parsed.Items))
	}

	first := parsed.Items[0]
	if first.Title != "[A] Trains run local" {
		t.Errorf("Items[0].Title = %q, want %q", first.Title, "[A] Trains run local")
	}
	if first.GUID != "lmm:planned_work:1" {
		t.Errorf("Items[0].GUID = %q, want %q", first.GUID, "lmm:planned_work:1")
	}
	if first.Description != "Planned track work between stations." {
		t.Errorf("Items[0].Description = %q", first.Description)
	}

	second := parsed.Items[1]
	if second.Title != "[LIRR] Delays" {
		t.Errorf("Items[1].Title = %q, want %q", second.Title, "[LIRR] Delays")
	}
	if want := "Trains are running with delays.\n\nUntil 10/14/2026 3:00 PM"; second.Description != want {
		t.Errorf("Items[1].Description = %q, want %q", second.Description, want)
	}
}

func TestToRSS_EmptySnapshot(t *testing.T) {
	rss, err := ToRSS(&model.AlertSnapshot{FetchedAt: time.Now()}, "http://localhost:8080")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	parsed, err := gofeed.NewParser().ParseString(rss)
	if err != nil {
		t.Fatalf("生成したRSSがパースできない: %v", err)
	}
	if len(parsed.Items) != 0 {
		t.Errorf("アイテム数 = %d, want 0", len(parsed.Items))
	}
}

func TestToRSS_NilSnapshot(t *testing.T) {
	if _, err := ToRSS(nil, "http://localhost:8080"); err == nil {
		t.Error("nilスナップショットでエラーが返されるべき")
	}
}
