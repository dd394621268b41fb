package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
)

// EndpointType は上流エンドポイントの種別タグ。
type EndpointType string

const (
	EndpointSubway EndpointType = "subway"
	EndpointBus    EndpointType = "bus"
	EndpointLIRR   EndpointType = "lirr"
	EndpointMNR    EndpointType = "mnr"
)

// FeedFormat は上流フィードのエンコーディング。
type FeedFormat string

const (
	// FeedFormatJSON はGTFS-realtimeのJSON表現。
	FeedFormatJSON FeedFormat = "json"
	// FeedFormatProtobuf はGTFS-realtimeのprotobufバイナリ。
	FeedFormatProtobuf FeedFormat = "protobuf"
)

// Endpoint は上流URLと種別タグを1レコードとして束ねる。
// フィードとタグを位置で対応付ける並列配列は使わない。
type Endpoint struct {
	Type   EndpointType
	URL    string
	Format FeedFormat
}

// TaggedFeed は取得したフィードと取得元エンドポイントの組。
type TaggedFeed struct {
	Endpoint Endpoint
	Message  RawFeedMessage
}

// RawFeedMessage は上流から取得した1つのフィード。リクエスト毎に取得され永続化されない。
type RawFeedMessage struct {
	Header *FeedHeader `json:"header,omitempty"`
	Entity []RawEntity `json:"entity,omitempty"`
}

// FeedHeader はフィードヘッダー。
type FeedHeader struct {
	Timestamp           *UnixTime `json:"timestamp,omitempty"`
	GTFSRealtimeVersion string    `json:"gtfs_realtime_version,omitempty"`
}

// RawEntity は上流のアラートレコード1件。
// IDはフィード内でのみ一意である。
type RawEntity struct {
	ID        string     `json:"id"`
	IsDeleted bool       `json:"is_deleted,omitempty"`
	Alert     *AlertBody `json:"alert,omitempty"`
}

// AlertBody はGTFS-realtimeのAlertメッセージ。
type AlertBody struct {
	HeaderText      *TranslatedString `json:"header_text,omitempty"`
	DescriptionText *TranslatedString `json:"description_text,omitempty"`
	URL             *TranslatedString `json:"url,omitempty"`
	InformedEntity  []InformedEntity  `json:"informed_entity,omitempty"`
	Effect          EffectCode        `json:"effect,omitempty"`
	Cause           CauseCode         `json:"cause,omitempty"`
	ActivePeriod    []TimeRange       `json:"active_period,omitempty"`
}

// InformedEntity はアラートの対象（路線・停留所・事業者）。
type InformedEntity struct {
	RouteID  string `json:"route_id,omitempty"`
	StopID   string `json:"stop_id,omitempty"`
	AgencyID string `json:"agency_id,omitempty"`
}

// TimeRange は有効期間。Start/Endはいずれも省略されうる。
type TimeRange struct {
	Start *UnixTime `json:"start,omitempty"`
	End   *UnixTime `json:"end,omitempty"`
}

// TranslatedString は多言語テキスト。
type TranslatedString struct {
	Translation []Translation `json:"translation"`
}

// Translation は言語タグ付きテキスト1件。
type Translation struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
}

// EffectCode はAlert.Effectの列挙名（例: "NO_SERVICE"）。
// JSONでは列挙名の文字列と列挙番号のどちらも受け付ける。
type EffectCode string

// UnmarshalJSON は列挙名または列挙番号をデコードする。
func (c *EffectCode) UnmarshalJSON(b []byte) error {
	name, err := decodeEnum(b, gtfsrtpb.Alert_Effect_name)
	if err != nil {
		return fmt.Errorf("invalid effect: %w", err)
	}
	*c = EffectCode(name)
	return nil
}

// CauseCode はAlert.Causeの列挙名（例: "MAINTENANCE"）。
type CauseCode string

// UnmarshalJSON は列挙名または列挙番号をデコードする。
func (c *CauseCode) UnmarshalJSON(b []byte) error {
	name, err := decodeEnum(b, gtfsrtpb.Alert_Cause_name)
	if err != nil {
		return fmt.Errorf("invalid cause: %w", err)
	}
	*c = CauseCode(name)
	return nil
}

// decodeEnum は文字列ならそのまま、数値なら names で列挙名に変換する。
// 未定義の番号は10進表記のまま返す。
func decodeEnum(b []byte, names map[int32]string) (string, error) {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return "", nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	n, err := strconv.ParseInt(string(b), 10, 32)
	if err != nil {
		return "", fmt.Errorf("enum value %s is neither a name nor a number", string(b))
	}
	if name, ok := names[int32(n)]; ok {
		return name, nil
	}
	return strconv.FormatInt(n, 10), nil
}

// UnixTime はUnix秒。JSONの数値と10進文字列のどちらからもデコードできる。
// protobufのJSONマッピングはuint64を文字列として出力するため。
type UnixTime int64

// UnmarshalJSON は数値または文字列のUnix秒をデコードする。
func (t *UnixTime) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
		b = []byte(s)
	}
	v, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(string(b), 64)
		if ferr != nil {
			return fmt.Errorf("invalid unix timestamp %q: %w", string(b), err)
		}
		v = int64(f)
	}
	*t = UnixTime(v)
	return nil
}
