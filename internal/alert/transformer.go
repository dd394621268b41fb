package alert

import (
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/hitoshi/mtaalerts/internal/model"
)

// KeyFunc は重複判定に使うキーを返す。
type KeyFunc func(a model.Alert) string

// DefaultKey は路線ラベルとタイトルを連結したキー（例: "A/C/E-Service Alert"）。
// 同一路線で汎用タイトルを持つ別内容のアラートも1件にまとまる。
func DefaultKey(a model.Alert) string {
	return a.Line + "-" + a.Title
}

// ContentKey はDefaultKeyに説明文のハッシュを加えたキー。
func ContentKey(a model.Alert) string {
	return DefaultKey(a) + "-" + strconv.FormatUint(xxhash.Sum64String(a.Description), 16)
}

// Deduplicate はキーが同じアラートのうち最初に現れたものだけを出現順に残す。
// 後続の重複はマージせずに破棄する。keyがnilの場合はDefaultKeyを使う。
func Deduplicate(alerts []model.Alert, key KeyFunc) []model.Alert {
	if key == nil {
		key = DefaultKey
	}
	seen := make(map[string]struct{}, len(alerts))
	out := make([]model.Alert, 0, len(alerts))
	for _, a := range alerts {
		k := key(a)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, a)
	}
	return out
}

// Transformer は全フィードの全エンティティを正規化し、重複を除去する。
type Transformer struct {
	normalizer *Normalizer
	key        KeyFunc
}

// NewTransformer はTransformerを生成する。keyがnilの場合はDefaultKeyを使う。
func NewTransformer(normalizer *Normalizer, key KeyFunc) *Transformer {
	if normalizer == nil {
		normalizer = NewNormalizer()
	}
	if key == nil {
		key = DefaultKey
	}
	return &Transformer{normalizer: normalizer, key: key}
}

// Transform はフィード順、エンティティ順に正規化したアラートを重複除去して返す。
// 各エンティティは取得元フィードのエンドポイント種別で分類される。
func (t *Transformer) Transform(feeds []model.TaggedFeed) ([]model.Alert, model.TransformStats) {
	stats := model.TransformStats{Rejected: map[string]int{}}

	var alerts []model.Alert
	for _, feed := range feeds {
		for _, entity := range feed.Message.Entity {
			stats.Entities++
			a, reason := t.normalizer.Normalize(entity, feed.Endpoint.Type)
			if reason != Accepted {
				stats.Rejected[string(reason)]++
				continue
			}
			alerts = append(alerts, a)
		}
	}
	stats.Accepted = len(alerts)

	unique := Deduplicate(alerts, t.key)
	stats.Deduplicated = len(alerts) - len(unique)
	return unique, stats
}
