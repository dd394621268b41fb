// Package security は上流フィード取得とテキスト整形に関わる防御機能を提供する。
package security

import (
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"

	"github.com/hitoshi/mtaalerts/internal/model"
)

// UpstreamGuard は上流エンドポイントへの接続を制限する。
// FEEDS_CONFIG で任意のURLを指定できるため、内部ネットワーク宛ての設定を起動時に拒否し、
// 実行時もDNS解決後のアドレスをsafeurlのDialerで検証する。
type UpstreamGuard struct {
	ports []int
}

var allowedSchemes = []string{"http", "https"}

// blockedPrefixes は接続を拒否するアドレス範囲。
var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("127.0.0.0/8"),
	// 169.254.169.254 のメタデータIPを含む
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fe80::/10"),
	netip.MustParsePrefix("fc00::/7"),
}

// NewUpstreamGuard は80/443番ポートのみ許可するUpstreamGuardを生成する。
func NewUpstreamGuard() *UpstreamGuard {
	return &UpstreamGuard{ports: []int{80, 443}}
}

// NewClient は上流取得用のHTTPクライアントを生成する。
// プライベート・ループバック・リンクローカル宛ての接続はDialer段階でブロックされる。
func (g *UpstreamGuard) NewClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(g.ports...).
		Build()

	return safeurl.Client(config).Client
}

// ValidateEndpoints は全エンドポイントのURLを静的に検証する。
// 最初に見つかった不正なエンドポイントのエラーを返す。
func (g *UpstreamGuard) ValidateEndpoints(endpoints []model.Endpoint) error {
	for _, ep := range endpoints {
		if err := g.ValidateURL(ep.URL); err != nil {
			return fmt.Errorf("endpoint %s: %w", ep.Type, err)
		}
	}
	return nil
}

// ValidateURL はDNS解決を伴わずにURLのスキームとホストを検証する。
func (g *UpstreamGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("disallowed scheme: %s (allowed: %v)", scheme, allowedSchemes)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}
	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("blocked host: %s", host)
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		addr = addr.Unmap()
		for _, p := range blockedPrefixes {
			if p.Contains(addr) {
				return fmt.Errorf("blocked IP address: %s", addr)
			}
		}
	}

	return nil
}
