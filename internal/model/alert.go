// Package model はドメインモデルを定義する。
package model

import "time"

// LineType は路線種別を表す。
type LineType string

const (
	// LineTypeSubway は地下鉄（バスを含む）を示す。
	LineTypeSubway LineType = "subway"
	// LineTypeRail は近郊鉄道（LIRR / Metro-North）を示す。
	LineTypeRail LineType = "rail"
)

// LineColor は路線の表示色を表す。12色の閉じた列挙。
type LineColor string

const (
	LineColorRed        LineColor = "red"
	LineColorGreen      LineColor = "green"
	LineColorPurple     LineColor = "purple"
	LineColorBlue       LineColor = "blue"
	LineColorOrange     LineColor = "orange"
	LineColorLightGreen LineColor = "light-green"
	LineColorBrown      LineColor = "brown"
	LineColorGray       LineColor = "gray"
	LineColorYellow     LineColor = "yellow"
	LineColorDarkGray   LineColor = "dark-gray"
	LineColorMetroNorth LineColor = "metro-north"
	LineColorLIRR       LineColor = "lirr"
)

// AllLineColors は定義済みの全路線色を返す。
func AllLineColors() []LineColor {
	return []LineColor{
		LineColorRed, LineColorGreen, LineColorPurple, LineColorBlue,
		LineColorOrange, LineColorLightGreen, LineColorBrown, LineColorGray,
		LineColorYellow, LineColorDarkGray, LineColorMetroNorth, LineColorLIRR,
	}
}

// Severity はアラートの深刻度を表す。
type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeverityMajor    Severity = "major"
	SeverityPlanned  Severity = "planned"
)

// Alert は正規化済みのサービスアラート。
// 構築後に変更されることはない。
type Alert struct {
	ID                 string    `json:"id"`
	Line               string    `json:"line"`
	LineColor          LineColor `json:"lineColor"`
	LineType           LineType  `json:"lineType"`
	Title              string    `json:"title"`
	Description        string    `json:"description"`
	AffectedStations   []string  `json:"affectedStations"`
	Severity           Severity  `json:"severity"`
	ExpectedResolution string    `json:"expectedResolution,omitempty"`
	// LastUpdated は変換時刻であり、上流フィードのタイムスタンプではない。
	LastUpdated time.Time `json:"lastUpdated"`
}

// TransformStats は1回のバッチ変換の集計値。
type TransformStats struct {
	Entities     int            `json:"entities"`
	Accepted     int            `json:"accepted"`
	Rejected     map[string]int `json:"rejected"`
	Deduplicated int            `json:"deduplicated"`
}

// AlertSnapshot は1リクエストサイクルで得られたアラート一覧。
type AlertSnapshot struct {
	Alerts    []Alert
	FetchedAt time.Time
	Stats     TransformStats
}
