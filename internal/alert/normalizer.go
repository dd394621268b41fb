package alert

import (
	"time"

	"github.com/goodsign/monday"

	"github.com/hitoshi/mtaalerts/internal/model"
)

// RejectReason はエンティティを正規化できなかった理由。空文字列は受理を表す。
type RejectReason string

const (
	Accepted        RejectReason = ""
	RejectNoBody    RejectReason = "no_body"
	RejectDeleted   RejectReason = "deleted"
	RejectEmptyText RejectReason = "empty_text"
)

// 既定の表示テキスト。
const (
	DefaultTitle       = "Service Alert"
	DefaultDescription = "No description available"
)

// resolutionLayout は解消見込み日時の表示形式（例: 1/2/2006 3:04 PM）。
const resolutionLayout = "1/2/2006 3:04 PM"

// Sanitizer は上流テキストを表示用に整形する。
type Sanitizer interface {
	Sanitize(text string) string
}

// Normalizer は1件のRawEntityを正規化アラートに変換する。
type Normalizer struct {
	now       func() time.Time
	loc       *time.Location
	sanitizer Sanitizer
	rules     []SeverityRule
}

// NormalizerOption はNormalizerの設定を変更する。
type NormalizerOption func(*Normalizer)

// WithClock はlastUpdatedに使う時刻関数を設定する。
func WithClock(now func() time.Time) NormalizerOption {
	return func(n *Normalizer) { n.now = now }
}

// WithLocation は解消見込み日時を表示するタイムゾーンを設定する。
func WithLocation(loc *time.Location) NormalizerOption {
	return func(n *Normalizer) {
		if loc != nil {
			n.loc = loc
		}
	}
}

// WithSanitizer はタイトルと説明文に適用するSanitizerを設定する。
func WithSanitizer(s Sanitizer) NormalizerOption {
	return func(n *Normalizer) { n.sanitizer = s }
}

// WithSeverityRules は重大度の上書きルールを差し替える。
func WithSeverityRules(rules []SeverityRule) NormalizerOption {
	return func(n *Normalizer) { n.rules = rules }
}

// NewNormalizer はNormalizerを生成する。既定ではUTCで表示し、テキストは加工しない。
func NewNormalizer(opts ...NormalizerOption) *Normalizer {
	n := &Normalizer{
		now:   time.Now,
		loc:   time.UTC,
		rules: DefaultSeverityRules,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize はエンティティを正規化する。受理した場合はAcceptedを、
// 除外した場合はその理由を返す。除外時のAlertはゼロ値。
func (n *Normalizer) Normalize(entity model.RawEntity, endpointType model.EndpointType) (model.Alert, RejectReason) {
	if entity.Alert == nil {
		return model.Alert{}, RejectNoBody
	}
	if entity.IsDeleted {
		return model.Alert{}, RejectDeleted
	}
	body := entity.Alert

	header := n.clean(ExtractDisplayText(body.HeaderText))
	description := n.clean(ExtractDisplayText(body.DescriptionText))
	if header == "" && description == "" {
		return model.Alert{}, RejectEmptyText
	}

	var routeID, agencyID string
	if len(body.InformedEntity) > 0 {
		routeID = body.InformedEntity[0].RouteID
		agencyID = body.InformedEntity[0].AgencyID
	}

	line, color := ClassifyLine(routeID, endpointType)
	lineType := ClassifyLineType(routeID, agencyID, endpointType)
	severity := ApplySeverityRules(n.rules, description, ClassifySeverityFromEffect(string(body.Effect)))

	title := header
	if title == "" {
		title = DefaultTitle
	}
	desc := description
	if desc == "" {
		desc = header
	}
	if desc == "" {
		desc = DefaultDescription
	}

	return model.Alert{
		ID:          entity.ID,
		Line:        line,
		LineColor:   color,
		LineType:    lineType,
		Title:       title,
		Description: desc,
		// 駅名の抽出は未実装のため常に空
		AffectedStations:   []string{},
		Severity:           severity,
		ExpectedResolution: n.expectedResolution(body.ActivePeriod),
		LastUpdated:        n.now(),
	}, Accepted
}

func (n *Normalizer) clean(s string) string {
	if n.sanitizer == nil {
		return s
	}
	return n.sanitizer.Sanitize(s)
}

// expectedResolution は終了時刻を持つ最初の有効期間から "Until ..." 文字列を生成する。
func (n *Normalizer) expectedResolution(periods []model.TimeRange) string {
	for _, p := range periods {
		// 0や空文字の終了時刻は未設定とみなす
		if p.End == nil || *p.End <= 0 {
			continue
		}
		end := time.Unix(int64(*p.End), 0).In(n.loc)
		return "Until " + monday.Format(end, resolutionLayout, monday.LocaleEnUS)
	}
	return ""
}
