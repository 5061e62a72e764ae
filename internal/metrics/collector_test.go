package metrics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type mockStatsProvider struct {
	mu    sync.Mutex
	stats Stats
	err   error
	calls int
}

func (m *mockStatsProvider) GetStats(_ context.Context) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.stats, m.err
}

func (m *mockStatsProvider) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func TestNewCollector(t *testing.T) {
	provider := &mockStatsProvider{}
	collector := NewCollector(provider, 5*time.Second)

	if collector == nil {
		t.Fatal("NewCollector returned nil")
	}
	if collector.statsProvider != provider {
		t.Error("statsProvider not set correctly")
	}
	if collector.interval != 5*time.Second {
		t.Errorf("interval = %v, want %v", collector.interval, 5*time.Second)
	}
	if collector.stopChan == nil {
		t.Error("stopChan not initialized")
	}
}

func TestCollectUpdatesGauges(t *testing.T) {
	provider := &mockStatsProvider{
		stats: Stats{
			TotalMetadata:   42,
			InstancesByKind: map[string]int{"thumbnail": 40, "transcoded-video": 7},
		},
	}

	NewCollector(provider, time.Second).collect()

	if got := testutil.ToFloat64(StoredMetadataRecords); got != 42 {
		t.Errorf("StoredMetadataRecords = %v, want 42", got)
	}
	if got := testutil.ToFloat64(StoredInstances.WithLabelValues("transcoded-video")); got != 7 {
		t.Errorf("StoredInstances{transcoded-video} = %v, want 7", got)
	}
}

func TestCollectProviderError(t *testing.T) {
	StoredMetadataRecords.Set(5)
	provider := &mockStatsProvider{err: errors.New("database is locked")}

	NewCollector(provider, time.Second).collect()

	if got := testutil.ToFloat64(StoredMetadataRecords); got != 5 {
		t.Errorf("StoredMetadataRecords changed on error: %v", got)
	}
}

func TestCollectWithNilProvider(t *testing.T) {
	collector := NewCollector(nil, time.Second)

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("collect() panicked with nil provider: %v", r)
		}
	}()

	collector.collect()
}

func TestCollectorStartStop(t *testing.T) {
	provider := &mockStatsProvider{}
	collector := NewCollector(provider, 20*time.Millisecond)

	collector.Start()
	time.Sleep(70 * time.Millisecond)
	collector.Stop()

	if provider.callCount() < 2 {
		t.Errorf("expected at least 2 collections, got %d", provider.callCount())
	}
}
