package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/hitoshi/mtaalerts/internal/model"
)

// MTAのサービスアラートエンドポイント。順序は subway, bus, lirr, mnr で固定。
const (
	subwayAlertsURL = "https://api-endpoint.mta.info/Dataservice/mtagtfsfeeds/camsys%2Fsubway-alerts.json"
	busAlertsURL    = "https://api-endpoint.mta.info/Dataservice/mtagtfsfeeds/camsys%2Fbus-alerts.json"
	lirrAlertsURL   = "https://api-endpoint.mta.info/Dataservice/mtagtfsfeeds/camsys%2Flirr-alerts.json"
	mnrAlertsURL    = "https://api-endpoint.mta.info/Dataservice/mtagtfsfeeds/camsys%2Fmnr-alerts.json"
)

// DefaultEndpoints はMTAの4エンドポイントをタグ付きで返す。
func DefaultEndpoints() []model.Endpoint {
	return []model.Endpoint{
		{Type: model.EndpointSubway, URL: subwayAlertsURL, Format: model.FeedFormatJSON},
		{Type: model.EndpointBus, URL: busAlertsURL, Format: model.FeedFormatJSON},
		{Type: model.EndpointLIRR, URL: lirrAlertsURL, Format: model.FeedFormatJSON},
		{Type: model.EndpointMNR, URL: mnrAlertsURL, Format: model.FeedFormatJSON},
	}
}

// EndpointConfig はFEEDS_CONFIGファイル内のエンドポイント1件。
type EndpointConfig struct {
	Type   string `yaml:"type" validate:"required,oneof=subway bus lirr mnr"`
	URL    string `yaml:"url" validate:"required,url"`
	Format string `yaml:"format" validate:"omitempty,oneof=json protobuf"`
}

// FeedsFile はFEEDS_CONFIGファイルのルート構造。
type FeedsFile struct {
	Endpoints []EndpointConfig `yaml:"endpoints" validate:"required,min=1,dive"`
}

// LoadEndpointsFile はYAMLファイルからエンドポイント一覧を読み込み検証する。
// ファイル内の記載順がそのままフェッチ結果の順序になる。
func LoadEndpointsFile(path string) ([]model.Endpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseEndpoints(data)
}

// ParseEndpoints はYAMLバイト列からエンドポイント一覧をパースし検証する。
func ParseEndpoints(data []byte) ([]model.Endpoint, error) {
	var f FeedsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("invalid yaml: %w", err)
	}

	v := validator.New()
	if err := v.Struct(f); err != nil {
		return nil, fmt.Errorf("invalid feeds config: %w", err)
	}

	endpoints := make([]model.Endpoint, 0, len(f.Endpoints))
	for _, e := range f.Endpoints {
		format := model.FeedFormat(e.Format)
		if format == "" {
			format = model.FeedFormatJSON
		}
		endpoints = append(endpoints, model.Endpoint{
			Type:   model.EndpointType(e.Type),
			URL:    e.URL,
			Format: format,
		})
	}
	return endpoints, nil
}
