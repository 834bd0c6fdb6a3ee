package app

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AccessibilityScanner/internal/config"
	"AccessibilityScanner/internal/domain"
	"AccessibilityScanner/internal/infrastructure/storage"
	"AccessibilityScanner/internal/infrastructure/transport"
)

const fixturePage = `<!DOCTYPE html>
<html><head><title>상품 목록</title></head>
<body>
<img src="banner.png">
<a href="/next">더보기</a>
</body></html>`

func testConfig() config.Config {
	return config.Config{
		Logging:   config.LoggingConfig{Level: "error"},
		Audit:     config.AuditConfig{CheckerTimeout: 5 * time.Second, ContextWindow: 30},
		Storage:   config.StorageConfig{Driver: config.DriverMemory},
		Scheduler: config.SchedulerConfig{Interval: time.Hour},
		Telemetry: config.TelemetryConfig{ServiceName: "test"},
	}
}

func writePage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(path, []byte(fixturePage), 0o600))
	return path
}

func TestScanAndReport(t *testing.T) {
	ctx := context.Background()
	application, err := New(ctx, testConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })

	result, err := application.Scan(ctx, writePage(t))
	require.NoError(t, err)
	assert.Equal(t, "상품 목록", result.Page.PageTitle)

	var missingAlt *domain.Finding
	for i, f := range result.Findings {
		if f.GuidelineID == "1.1.1" {
			missingAlt = &result.Findings[i]
		}
	}
	require.NotNil(t, missingAlt, "an image without alt must be reported")
	require.NotNil(t, missingAlt.GuidelineInfo, "bundled catalog enriches findings")
	assert.Equal(t, "적절한 대체 텍스트 제공", missingAlt.GuidelineInfo.Name)

	var out bytes.Buffer
	require.NoError(t, application.Report(ctx, result.Page.ScanID, &out))
	assert.True(t, strings.HasPrefix(out.String(), "# 🛡️ ABT 접근성 진단 리포트"))

	err = application.Report(ctx, result.Page.ScanID+1, &out)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestBrokenCatalogDisablesEnrichment(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Standards.Path = filepath.Join(t.TempDir(), "missing.json")

	application, err := New(ctx, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })

	result, err := application.Scan(ctx, writePage(t))
	require.NoError(t, err)
	require.NotEmpty(t, result.Findings)
	for _, f := range result.Findings {
		assert.Nil(t, f.GuidelineInfo)
	}
}

func TestEngineStreamsToRelay(t *testing.T) {
	relayStore := storage.NewMemoryStore()
	relay := transport.NewRelay(relayStore, nil)
	server := httptest.NewServer(relay.Handler())
	defer server.Close()

	cfg := testConfig()
	cfg.Transport.RelayURL = "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	application, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })

	page := writePage(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- application.Engine(ctx, page) }()

	require.Eventually(t, func() bool {
		sessions, err := relayStore.Sessions(context.Background())
		return err == nil && len(sessions) == 1 && sessions[0].Findings > 0
	}, 10*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop after cancellation")
	}
}

func TestWatchNeedsTargets(t *testing.T) {
	application, err := New(context.Background(), testConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })
	assert.Error(t, application.Watch(context.Background()))
}
