// Package alert は上流エンティティを正規化アラートに変換する分類パイプラインを提供する。
//
// 抽出関数はいずれも純粋関数で失敗しない。路線・重大度の分類は
// 上から順に評価する明示的なテーブルとして定義する。
package alert

import (
	"strings"

	"github.com/hitoshi/mtaalerts/internal/model"
)

// ExtractDisplayText は多言語テキストから表示用テキストを選ぶ。
// en または言語タグなしの最初の組を優先し、無ければ（または空なら）最初の組のテキスト、
// それも無ければ空文字列を返す。
func ExtractDisplayText(ts *model.TranslatedString) string {
	if ts == nil || len(ts.Translation) == 0 {
		return ""
	}
	for _, tr := range ts.Translation {
		if tr.Language == "" || tr.Language == "en" {
			if tr.Text != "" {
				return tr.Text
			}
			break
		}
	}
	return ts.Translation[0].Text
}

// railMarker はrouteIDに含まれていれば鉄道（LIRR/Metro-North）とみなす部分文字列。
type railMarker struct {
	substr string
	line   string
	color  model.LineColor
}

var railMarkers = []railMarker{
	{substr: "LIRR", line: "LIRR", color: model.LineColorLIRR},
	{substr: "MNR", line: "Metro-North", color: model.LineColorMetroNorth},
	{substr: "METRO", line: "Metro-North", color: model.LineColorMetroNorth},
}

func matchRail(upperRouteID string) (railMarker, bool) {
	for _, m := range railMarkers {
		if strings.Contains(upperRouteID, m.substr) {
			return m, true
		}
	}
	return railMarker{}, false
}

// ClassifyLineType は路線種別を判定する。
// endpointTypeが指定されていればそれが優先され、lirr/mnr は rail、subway/bus は subway になる。
// 未指定の場合のみrouteIDを大文字小文字を区別せずに走査する。agencyIDは判定に使わない。
func ClassifyLineType(routeID, agencyID string, endpointType model.EndpointType) model.LineType {
	switch endpointType {
	case model.EndpointLIRR, model.EndpointMNR:
		return model.LineTypeRail
	case model.EndpointSubway, model.EndpointBus:
		return model.LineTypeSubway
	}
	if _, ok := matchRail(strings.ToUpper(routeID)); ok {
		return model.LineTypeRail
	}
	return model.LineTypeSubway
}

// lineEntry は路線テーブルの1行。Lettersのいずれかを含むrouteIDがこの路線に分類される。
type lineEntry struct {
	Letters []string
	Line    string
	Color   model.LineColor
}

// lineTable は評価順に並べた路線グループ。最初に一致した行が採用されるため、
// 複数グループの文字を含むrouteID（例: "AB"）は上の行に分類される。
var lineTable = []lineEntry{
	{Letters: []string{"1", "2", "3"}, Line: "1/2/3", Color: model.LineColorRed},
	{Letters: []string{"4", "5", "6"}, Line: "4/5/6", Color: model.LineColorGreen},
	{Letters: []string{"A", "C", "E"}, Line: "A/C/E", Color: model.LineColorBlue},
	{Letters: []string{"B", "D", "F", "M"}, Line: "B/D/F/M", Color: model.LineColorOrange},
	{Letters: []string{"G"}, Line: "G", Color: model.LineColorLightGreen},
	{Letters: []string{"J", "Z"}, Line: "J/Z", Color: model.LineColorBrown},
	{Letters: []string{"L"}, Line: "L", Color: model.LineColorGray},
	{Letters: []string{"N", "Q", "R", "W"}, Line: "N/Q/R/W", Color: model.LineColorYellow},
	{Letters: []string{"7"}, Line: "7", Color: model.LineColorPurple},
	{Letters: []string{"S"}, Line: "S", Color: model.LineColorDarkGray},
}

func (e lineEntry) matches(upperRouteID string) bool {
	for _, l := range e.Letters {
		if strings.Contains(upperRouteID, l) {
			return true
		}
	}
	return false
}

// ClassifyLine は表示用の路線ラベルと路線色を判定する。
func ClassifyLine(routeID string, endpointType model.EndpointType) (string, model.LineColor) {
	switch endpointType {
	case model.EndpointLIRR:
		return "LIRR", model.LineColorLIRR
	case model.EndpointMNR:
		return "Metro-North", model.LineColorMetroNorth
	}

	if routeID == "" {
		return "Unknown", model.LineColorGray
	}

	upper := strings.ToUpper(routeID)
	for _, e := range lineTable {
		if e.matches(upper) {
			return e.Line, e.Color
		}
	}
	if m, ok := matchRail(upper); ok {
		return m.line, m.color
	}
	return routeID, model.LineColorGray
}

// effectEntry はeffectコードから基本重大度への対応1行。
type effectEntry struct {
	Codes    []string
	Severity model.Severity
}

// effectTable は評価順に並べたeffectコードの分類。部分一致で判定する。
var effectTable = []effectEntry{
	{Codes: []string{"NO_SERVICE", "SIGNIFICANT_DELAYS"}, Severity: model.SeverityMajor},
	{Codes: []string{"REDUCED_SERVICE", "MODERATE_DELAYS", "DETOUR", "ADDITIONAL_SERVICE"}, Severity: model.SeverityModerate},
	{Codes: []string{"OTHER_EFFECT", "UNKNOWN_EFFECT"}, Severity: model.SeverityMinor},
}

// ClassifySeverityFromEffect はeffectコードから基本重大度を返す。未設定・未知のコードは minor。
func ClassifySeverityFromEffect(effect string) model.Severity {
	if effect == "" {
		return model.SeverityMinor
	}
	upper := strings.ToUpper(effect)
	for _, e := range effectTable {
		for _, code := range e.Codes {
			if strings.Contains(upper, code) {
				return e.Severity
			}
		}
	}
	return model.SeverityMinor
}
