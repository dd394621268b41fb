package alert

import (
	"strings"

	"github.com/hitoshi/mtaalerts/internal/model"
)

// SeverityRule は説明文のキーワードによる重大度の上書きルール。
// Keywordsのいずれかを含み、かつFromが空か現在の重大度がFromに含まれる場合にResultへ上書きする。
type SeverityRule struct {
	Keywords []string
	Result   model.Severity
	From     []model.Severity
}

// DefaultSeverityRules は順に全て適用される。後のルールが前のルールの結果を上書きしうる。
// 運休系キーワードは計画工事の判定より後に評価されるため優先され、
// 遅延キーワードは重大度がminorのままの場合のみ適用される。
var DefaultSeverityRules = []SeverityRule{
	{
		Keywords: []string{"planned", "scheduled", "maintenance", "weekend", "track work"},
		Result:   model.SeverityPlanned,
	},
	{
		Keywords: []string{"no service", "suspended", "closed"},
		Result:   model.SeverityMajor,
	},
	{
		Keywords: []string{"delay", "running behind"},
		Result:   model.SeverityModerate,
		From:     []model.Severity{model.SeverityMinor},
	},
}

func (r SeverityRule) applies(lowerText string, current model.Severity) bool {
	if len(r.From) > 0 {
		allowed := false
		for _, s := range r.From {
			if s == current {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}
	for _, kw := range r.Keywords {
		if strings.Contains(lowerText, kw) {
			return true
		}
	}
	return false
}

// ApplySeverityRules はbaseから開始してrulesを順に適用した重大度を返す。
// textは小文字化してから照合する。
func ApplySeverityRules(rules []SeverityRule, text string, base model.Severity) model.Severity {
	lower := strings.ToLower(text)
	severity := base
	for _, r := range rules {
		if r.applies(lower, severity) {
			severity = r.Result
		}
	}
	return severity
}
