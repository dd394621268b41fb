package gtfsrt

import (
	"encoding/json"
	"fmt"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/hitoshi/mtaalerts/internal/model"
)

// Decode はフォーマットに応じてレスポンスボディをRawFeedMessageにデコードする。
func Decode(format model.FeedFormat, body []byte) (model.RawFeedMessage, error) {
	switch format {
	case model.FeedFormatProtobuf:
		return decodeProtobuf(body)
	case model.FeedFormatJSON, "":
		return decodeJSON(body)
	default:
		return model.RawFeedMessage{}, fmt.Errorf("unsupported feed format: %s", format)
	}
}

func decodeJSON(body []byte) (model.RawFeedMessage, error) {
	var msg model.RawFeedMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return model.RawFeedMessage{}, fmt.Errorf("invalid feed json: %w", err)
	}
	return msg, nil
}

func decodeProtobuf(body []byte) (model.RawFeedMessage, error) {
	var fm gtfsrtpb.FeedMessage
	if err := proto.Unmarshal(body, &fm); err != nil {
		return model.RawFeedMessage{}, fmt.Errorf("invalid feed protobuf: %w", err)
	}
	return FromProto(&fm), nil
}

// FromProto はprotobufのFeedMessageをJSON経路と同じモデル型に変換する。
// effect/causeは未設定の場合に空文字列とし、enum既定値を埋めない。
func FromProto(fm *gtfsrtpb.FeedMessage) model.RawFeedMessage {
	var msg model.RawFeedMessage

	if h := fm.GetHeader(); h != nil {
		msg.Header = &model.FeedHeader{GTFSRealtimeVersion: h.GetGtfsRealtimeVersion()}
		if h.Timestamp != nil {
			ts := model.UnixTime(h.GetTimestamp())
			msg.Header.Timestamp = &ts
		}
	}

	msg.Entity = make([]model.RawEntity, 0, len(fm.GetEntity()))
	for _, e := range fm.GetEntity() {
		if e == nil {
			continue
		}
		re := model.RawEntity{
			ID:        e.GetId(),
			IsDeleted: e.GetIsDeleted(),
		}
		if a := e.GetAlert(); a != nil {
			re.Alert = alertFromProto(a)
		}
		msg.Entity = append(msg.Entity, re)
	}

	return msg
}

func alertFromProto(a *gtfsrtpb.Alert) *model.AlertBody {
	body := &model.AlertBody{
		HeaderText:      translatedFromProto(a.GetHeaderText()),
		DescriptionText: translatedFromProto(a.GetDescriptionText()),
		URL:             translatedFromProto(a.GetUrl()),
	}
	if a.Effect != nil {
		body.Effect = model.EffectCode(a.GetEffect().String())
	}
	if a.Cause != nil {
		body.Cause = model.CauseCode(a.GetCause().String())
	}

	for _, ie := range a.GetInformedEntity() {
		if ie == nil {
			continue
		}
		body.InformedEntity = append(body.InformedEntity, model.InformedEntity{
			RouteID:  ie.GetRouteId(),
			StopID:   ie.GetStopId(),
			AgencyID: ie.GetAgencyId(),
		})
	}

	for _, p := range a.GetActivePeriod() {
		if p == nil {
			continue
		}
		var tr model.TimeRange
		if p.Start != nil {
			s := model.UnixTime(p.GetStart())
			tr.Start = &s
		}
		if p.End != nil {
			e := model.UnixTime(p.GetEnd())
			tr.End = &e
		}
		body.ActivePeriod = append(body.ActivePeriod, tr)
	}

	return body
}

func translatedFromProto(ts *gtfsrtpb.TranslatedString) *model.TranslatedString {
	if ts == nil {
		return nil
	}
	out := &model.TranslatedString{Translation: make([]model.Translation, 0, len(ts.GetTranslation()))}
	for _, tr := range ts.GetTranslation() {
		if tr == nil {
			continue
		}
		out.Translation = append(out.Translation, model.Translation{
			Text:     tr.GetText(),
			Language: tr.GetLanguage(),
		})
	}
	return out
}
