// Package export はアラート一覧を配信用フォーマットへ変換する。
package export

import (
	"fmt"
	"strings"

	"github.com/gorilla/feeds"

	"github.com/hitoshi/mtaalerts/internal/model"
)

const (
	feedTitle       = "MTA Service Alerts"
	feedDescription = "Current service alerts for NYC Subway, Bus, LIRR and Metro-North"
)

// ToRSS はスナップショットをRSS 2.0文書に変換する。
// 各アラートは1アイテムとなり、タイトルは "[路線] タイトル" の形式。
func ToRSS(snapshot *model.AlertSnapshot, baseURL string) (string, error) {
	if snapshot == nil {
		return "", fmt.Errorf("snapshot is nil")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	feed := &feeds.Feed{
		Title:       feedTitle,
		Link:        &feeds.Link{Href: baseURL + "/api/alerts"},
		Description: feedDescription,
		Created:     snapshot.FetchedAt,
		Updated:     snapshot.FetchedAt,
	}

	feed.Items = make([]*feeds.Item, 0, len(snapshot.Alerts))
	for _, a := range snapshot.Alerts {
		description := a.Description
		if a.ExpectedResolution != "" {
			description += "\n\n" + a.ExpectedResolution
		}
		feed.Items = append(feed.Items, &feeds.Item{
			Id:          a.ID,
			Title:       fmt.Sprintf("[%s] %s", a.Line, a.Title),
			Link:        &feeds.Link{Href: baseURL + "/api/alerts#" + a.ID},
			Description: description,
			Created:     snapshot.FetchedAt,
			Updated:     a.LastUpdated,
		})
	}

	rss, err := feed.ToRss()
	if err != nil {
		return "", fmt.Errorf("failed to render rss: %w", err)
	}
	return rss, nil
}
