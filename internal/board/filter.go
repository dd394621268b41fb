package board

import (
	"fmt"

	"github.com/hitoshi/mtaalerts/internal/model"
)

// All はフィルタの全件一致を表すワイルドカード。
const All = "all"

// Filter は路線種別と深刻度による絞り込み条件。空文字はAllとして扱う。
type Filter struct {
	LineType string
	Severity string
}

// ParseFilter はコマンドライン等から受け取った値を検証してFilterを生成する。
func ParseFilter(lineType, severity string) (Filter, error) {
	f := Filter{LineType: orAll(lineType), Severity: orAll(severity)}

	switch model.LineType(f.LineType) {
	case All, model.LineTypeSubway, model.LineTypeRail:
	default:
		return Filter{}, fmt.Errorf("invalid line type %q: want all, subway or rail", lineType)
	}

	switch model.Severity(f.Severity) {
	case All, model.SeverityMinor, model.SeverityModerate, model.SeverityMajor, model.SeverityPlanned:
	default:
		return Filter{}, fmt.Errorf("invalid severity %q: want all, minor, moderate, major or planned", severity)
	}
	return f, nil
}

func orAll(s string) string {
	if s == "" {
		return All
	}
	return s
}

// Matches はアラートが条件を満たすかを返す。
func (f Filter) Matches(a model.Alert) bool {
	lineType := orAll(f.LineType)
	severity := orAll(f.Severity)
	return (lineType == All || string(a.LineType) == lineType) &&
		(severity == All || string(a.Severity) == severity)
}

// Apply は条件を満たすアラートを元の順序のまま返す。
func (f Filter) Apply(alerts []model.Alert) []model.Alert {
	out := make([]model.Alert, 0, len(alerts))
	for _, a := range alerts {
		if f.Matches(a) {
			out = append(out, a)
		}
	}
	return out
}

// Counts はフィルタボタンに表示する件数。フィルタ適用前の全件から数える。
type Counts struct {
	Subway   int
	Rail     int
	Minor    int
	Moderate int
	Major    int
	Planned  int
}

// CountAlerts は路線種別・深刻度ごとの件数を数える。
func CountAlerts(alerts []model.Alert) Counts {
	var c Counts
	for _, a := range alerts {
		switch a.LineType {
		case model.LineTypeSubway:
			c.Subway++
		case model.LineTypeRail:
			c.Rail++
		}
		switch a.Severity {
		case model.SeverityMinor:
			c.Minor++
		case model.SeverityModerate:
			c.Moderate++
		case model.SeverityMajor:
			c.Major++
		case model.SeverityPlanned:
			c.Planned++
		}
	}
	return c
}

// AllLineTypes は路線種別の合計。
func (c Counts) AllLineTypes() int { return c.Subway + c.Rail }

// AllSeverities は深刻度の合計。
func (c Counts) AllSeverities() int { return c.Minor + c.Moderate + c.Major + c.Planned }
