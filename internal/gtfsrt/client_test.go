package gtfsrt

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/hitoshi/mtaalerts/internal/model"
)

// mockMetrics はMetricsCollectorのテスト用モック。並行に呼ばれるためロックする。
type mockMetrics struct {
	mu        sync.Mutex
	successes map[string]int
	failures  map[string]string
	statuses  []int
}

func newMockMetrics() *mockMetrics {
	return &mockMetrics{successes: map[string]int{}, failures: map[string]string{}}
}

func (m *mockMetrics) RecordFetchSuccess(endpointType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.successes[endpointType]++
}

func (m *mockMetrics) RecordFetchFailure(endpointType, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[endpointType] = reason
}

func (m *mockMetrics) RecordUpstreamStatus(code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, code)
}

func (m *mockMetrics) RecordFetchLatency(string, time.Duration) {}
func (m *mockMetrics) RecordEntitiesRejected(string, int) {}
func (m *mockMetrics) RecordAlertsDeduplicated(int) {}
func (m *mockMetrics) SetAlertsServed(int) {}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func feedJSON(ids ...string) string {
	entities := make([]string, 0, len(ids))
	for _, id := range ids {
		entities = append(entities, fmt.Sprintf(
			`{"id":%q,"alert":{"header_text":{"translation":[{"text":"Alert %s","language":"en"}]}}}`, id, id))
	}
	return `{"header":{"gtfs_realtime_version":"2.0","timestamp":1700000000},"entity":[` + strings.Join(entities, ",") + `]}`
}

func endpointsFor(baseURL string) []model.Endpoint {
	return []model.Endpoint{
		{Type: model.EndpointSubway, URL: baseURL + "/subway", Format: model.FeedFormatJSON},
		{Type: model.EndpointBus, URL: baseURL + "/bus", Format: model.FeedFormatJSON},
		{Type: model.EndpointLIRR, URL: baseURL + "/lirr", Format: model.FeedFormatJSON},
		{Type: model.EndpointMNR, URL: baseURL + "/mnr", Format: model.FeedFormatJSON},
	}
}

func TestFetchAll_AllSucceed_PreservesOrderAndTags(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/")
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, feedJSON(name+"-1", name+"-2"))
	}))
	defer server.Close()

	var buf bytes.Buffer
	client := NewClient(server.Client(), newTestLogger(&buf))
	endpoints := endpointsFor(server.URL)

	feeds, err := client.FetchAll(context.Background(), endpoints, "")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(feeds) != len(endpoints) {
		t.Fatalf("feeds 数 = %d, want %d", len(feeds), len(endpoints))
	}
	for i, f := range feeds {
		if f.Endpoint != endpoints[i] {
			t.Errorf("feeds[%d].Endpoint = %+v, want %+v", i, f.Endpoint, endpoints[i])
		}
		wantID := string(endpoints[i].Type) + "-1"
		if len(f.Message.Entity) != 2 || f.Message.Entity[0].ID != wantID {
			t.Errorf("feeds[%d] のエンティティが不正: %+v", i, f.Message.Entity)
		}
	}
}

func TestFetchAll_SecondEndpointTimesOut_SubstitutesEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bus" {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
			return
		}
		io.WriteString(w, feedJSON(strings.TrimPrefix(r.URL.Path, "/")))
	}))
	defer server.Close()

	var buf bytes.Buffer
	m := newMockMetrics()
	client := NewClient(server.Client(), newTestLogger(&buf),
		WithTimeout(100*time.Millisecond),
		WithMetrics(m),
	)

	feeds, err := client.FetchAll(context.Background(), endpointsFor(server.URL), "")
	if err != nil {
		t.Fatalf("1エンドポイントの失敗でバッチがエラーになってはならない: %v", err)
	}
	if len(feeds) != 4 {
		t.Fatalf("feeds 数 = %d, want 4", len(feeds))
	}

	for i, f := range feeds {
		if i == 1 {
			if len(f.Message.Entity) != 0 {
				t.Errorf("タイムアウトした bus は空フィードであるべき: %+v", f.Message)
			}
			if f.Endpoint.Type != model.EndpointBus {
				t.Errorf("feeds[1] のタグ = %q, want bus", f.Endpoint.Type)
			}
			continue
		}
		if len(f.Message.Entity) != 1 {
			t.Errorf("feeds[%d] (%s) のエンティティ数 = %d, want 1", i, f.Endpoint.Type, len(f.Message.Entity))
		}
	}

	if got := m.failures["bus"]; got != "timeout" {
		t.Errorf("bus の失敗理由 = %q, want %q", got, "timeout")
	}
	if m.successes["subway"] != 1 || m.successes["lirr"] != 1 || m.successes["mnr"] != 1 {
		t.Errorf("成功カウントが不正: %+v", m.successes)
	}
	if !strings.Contains(buf.String(), `"level":"WARN"`) {
		t.Errorf("失敗はWARNで記録されるべき: %s", buf.String())
	}
}

func TestFetchAll_FailureKinds(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantReason string
	}{
		{
			name: "非2xx",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
			wantReason: "http_status",
		},
		{
			name: "不正なJSON",
			handler: func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, "<html>maintenance</html>")
			},
			wantReason: "decode",
		},
		{
			name: "サイズ超過",
			handler: func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, feedJSON("a", "b", "c", "d", "e"))
			},
			wantReason: "decode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			var buf bytes.Buffer
			m := newMockMetrics()
			client := NewClient(server.Client(), newTestLogger(&buf), WithMetrics(m), WithMaxBodySize(64))

			eps := []model.Endpoint{{Type: model.EndpointSubway, URL: server.URL, Format: model.FeedFormatJSON}}
			feeds, err := client.FetchAll(context.Background(), eps, "")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(feeds) != 1 || len(feeds[0].Message.Entity) != 0 {
				t.Errorf("空フィードで代替されるべき: %+v", feeds)
			}
			if got := m.failures["subway"]; got != tt.wantReason {
				t.Errorf("失敗理由 = %q, want %q", got, tt.wantReason)
			}
		})
	}
}

func TestFetchAll_NetworkError_SubstitutesEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	var buf bytes.Buffer
	m := newMockMetrics()
	client := NewClient(nil, newTestLogger(&buf), WithMetrics(m))

	feeds, err := client.FetchAll(context.Background(), []model.Endpoint{{Type: model.EndpointMNR, URL: url}}, "")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(feeds) != 1 || len(feeds[0].Message.Entity) != 0 {
		t.Errorf("空フィードで代替されるべき: %+v", feeds)
	}
	if got := m.failures["mnr"]; got != "network" {
		t.Errorf("失敗理由 = %q, want %q", got, "network")
	}
}

func TestFetchAll_Headers(t *testing.T) {
	var gotAccept, gotKey, gotUA atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept.Store(r.Header.Get("Accept"))
		gotKey.Store(r.Header.Get("x-api-key"))
		gotUA.Store(r.Header.Get("User-Agent"))
		io.WriteString(w, feedJSON())
	}))
	defer server.Close()

	var buf bytes.Buffer
	client := NewClient(server.Client(), newTestLogger(&buf))
	eps := []model.Endpoint{{Type: model.EndpointSubway, URL: server.URL, Format: model.FeedFormatJSON}}

	// --- 認証情報あり ---
	if _, err := client.FetchAll(context.Background(), eps, "secret"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if gotAccept.Load() != "application/json" {
		t.Errorf("Accept = %v, want application/json", gotAccept.Load())
	}
	if gotKey.Load() != "secret" {
		t.Errorf("x-api-key = %v, want secret", gotKey.Load())
	}
	if ua, _ := gotUA.Load().(string); !strings.HasPrefix(ua, "mtaalerts/") {
		t.Errorf("User-Agent = %q", ua)
	}

	// --- 認証情報なし ---
	if _, err := client.FetchAll(context.Background(), eps, ""); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if gotKey.Load() != "" {
		t.Errorf("認証情報が空の場合は x-api-key を送らない: %v", gotKey.Load())
	}
}

func TestFetchAll_EmptyEndpoints_ReturnsError(t *testing.T) {
	var buf bytes.Buffer
	client := NewClient(nil, newTestLogger(&buf))

	if _, err := client.FetchAll(context.Background(), nil, ""); err == nil {
		t.Fatal("エンドポイント0件はエラーになるべき")
	}
}

func TestFetchAll_CancelledContext_ReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, feedJSON("x"))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	client := NewClient(server.Client(), newTestLogger(&buf))
	if _, err := client.FetchAll(ctx, endpointsFor(server.URL), ""); err == nil {
		t.Fatal("親コンテキストのキャンセルはエラーになるべき")
	}
}

func TestFetchAll_Protobuf(t *testing.T) {
	fm := &gtfsrtpb.FeedMessage{
		Header: &gtfsrtpb.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Timestamp:           proto.Uint64(1700000000),
		},
		Entity: []*gtfsrtpb.FeedEntity{{
			Id: proto.String("pb-1"),
			Alert: &gtfsrtpb.Alert{
				HeaderText: &gtfsrtpb.TranslatedString{Translation: []*gtfsrtpb.TranslatedString_Translation{
					{Text: proto.String("Suspended"), Language: proto.String("en")},
				}},
				InformedEntity: []*gtfsrtpb.EntitySelector{{RouteId: proto.String("L")}},
				Effect:         gtfsrtpb.Alert_NO_SERVICE.Enum(),
				ActivePeriod:   []*gtfsrtpb.TimeRange{{End: proto.Uint64(1700003600)}},
			},
		}},
	}
	payload, err := proto.Marshal(fm)
	if err != nil {
		t.Fatalf("failed to marshal protobuf: %v", err)
	}

	var gotAccept atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept.Store(r.Header.Get("Accept"))
		w.Write(payload)
	}))
	defer server.Close()

	var buf bytes.Buffer
	client := NewClient(server.Client(), newTestLogger(&buf))
	eps := []model.Endpoint{{Type: model.EndpointSubway, URL: server.URL, Format: model.FeedFormatProtobuf}}

	feeds, err := client.FetchAll(context.Background(), eps, "")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if gotAccept.Load() != "application/x-protobuf" {
		t.Errorf("Accept = %v, want application/x-protobuf", gotAccept.Load())
	}

	ents := feeds[0].Message.Entity
	if len(ents) != 1 || ents[0].ID != "pb-1" || ents[0].Alert == nil {
		t.Fatalf("entity がデコードされていない: %+v", ents)
	}
	if ents[0].Alert.Effect != "NO_SERVICE" {
		t.Errorf("effect = %q, want NO_SERVICE", ents[0].Alert.Effect)
	}
}

func TestFetchAll_Cache(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&hits, 1)
		if n > 1 && r.Header.Get("x-api-key") == "" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		io.WriteString(w, feedJSON("cached"))
	}))
	defer server.Close()

	var buf bytes.Buffer
	client := NewClient(server.Client(), newTestLogger(&buf), WithCache(time.Minute))
	eps := []model.Endpoint{{Type: model.EndpointSubway, URL: server.URL}}

	for i := 0; i < 3; i++ {
		feeds, err := client.FetchAll(context.Background(), eps, "")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(feeds[0].Message.Entity) != 1 {
			t.Errorf("fetch %d: キャッシュから返されるべき", i)
		}
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Errorf("上流へのリクエスト数 = %d, want 1", got)
	}

	// 認証情報が異なればキャッシュキーも異なる
	if _, err := client.FetchAll(context.Background(), eps, "other-key"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := atomic.LoadInt32(&hits); got != 2 {
		t.Errorf("上流へのリクエスト数 = %d, want 2", got)
	}
}

func TestFetchAll_CacheDoesNotStoreFailures(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		io.WriteString(w, feedJSON("ok"))
	}))
	defer server.Close()

	var buf bytes.Buffer
	client := NewClient(server.Client(), newTestLogger(&buf), WithCache(time.Minute))
	eps := []model.Endpoint{{Type: model.EndpointBus, URL: server.URL}}

	first, _ := client.FetchAll(context.Background(), eps, "")
	if len(first[0].Message.Entity) != 0 {
		t.Fatalf("1回目は空フィードであるべき")
	}
	second, _ := client.FetchAll(context.Background(), eps, "")
	if len(second[0].Message.Entity) != 1 {
		t.Errorf("失敗はキャッシュされず2回目は上流から取得されるべき")
	}
}
