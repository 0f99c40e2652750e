package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockwhz/iac-analytics-service/internal/analytics"
)

type MockPublisher struct {
	mu     sync.Mutex
	events []Event
	err    error
}

var _ Publisher = (*MockPublisher)(nil)

func (m *MockPublisher) Publish(ctx context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.err
}

type MockSQSClient struct {
	inputs []*sqs.SendMessageInput
	err    error
}

var _ SQSSender = (*MockSQSClient)(nil)

func (m *MockSQSClient) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	m.inputs = append(m.inputs, params)
	if m.err != nil {
		return nil, m.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("msg-1")}, nil
}

type keyRecorder struct{ keys []string }

func (k *keyRecorder) Add(key string, value interface{}) { k.keys = append(k.keys, key) }

func TestTee(t *testing.T) {
	a, b := &keyRecorder{}, &keyRecorder{}
	sink := Tee(a, nil, b)

	sink.Add("iac-test-count", 1)
	sink.Add("iac-issues-count", 2)

	assert.Equal(t, []string{"iac-test-count", "iac-issues-count"}, a.keys)
	assert.Equal(t, a.keys, b.keys)
}

func TestBuffer_FlushPublishesToAll(t *testing.T) {
	failing := &MockPublisher{err: errors.New("queue down")}
	ok := &MockPublisher{}
	buf := NewBuffer("scan-1", failing, ok)

	buf.Add("iac-test-count", 1)
	buf.Add("iac-test-count", 2)
	buf.Add("packageManager", []string{"k8s"})

	event, err := buf.Flush(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue down")

	require.Len(t, failing.events, 1)
	require.Len(t, ok.events, 1)
	assert.Equal(t, event.ID, ok.events[0].ID)
	assert.Equal(t, "scan-1", event.ScanID)
	assert.Equal(t, 2, event.Metrics["iac-test-count"])

	again, err := buf.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Event{}, again)
	assert.Len(t, ok.events, 1)
}

func TestBuffer_FlushEmptyPublishesNothing(t *testing.T) {
	pub := &MockPublisher{}
	buf := NewBuffer("scan-1", pub)

	event, err := buf.Flush(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pub.events)
	assert.Equal(t, Event{}, event)
}

func TestBuffer_ZeroValueUsable(t *testing.T) {
	var buf Buffer
	buf.Add("k", 1)
	event, err := buf.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"k": 1}, event.Metrics)
}

func TestSQSPublisher_Publish(t *testing.T) {
	client := &MockSQSClient{}
	pub := &SQSPublisher{Client: client, QueueURL: "https://sqs.local/analytics"}
	buf := NewBuffer("scan-2", pub)
	buf.Add("iac-issues-count", 4)

	event, err := buf.Flush(context.Background())
	require.NoError(t, err)
	require.Len(t, client.inputs, 1)

	in := client.inputs[0]
	assert.Equal(t, "https://sqs.local/analytics", aws.ToString(in.QueueUrl))
	assert.Equal(t, event.ID.String(), aws.ToString(in.MessageAttributes["event-id"].StringValue))

	var decoded struct {
		ID      string                 `json:"id"`
		ScanID  string                 `json:"scan_id"`
		Metrics map[string]interface{} `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(in.MessageBody)), &decoded))
	assert.Equal(t, "scan-2", decoded.ScanID)
	assert.Equal(t, 4.0, decoded.Metrics["iac-issues-count"])
}

func TestSQSPublisher_SendError(t *testing.T) {
	pub := &SQSPublisher{Client: &MockSQSClient{err: errors.New("throttled")}, QueueURL: "q"}
	err := pub.Publish(context.Background(), Event{Metrics: map[string]interface{}{"a": 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}

func TestGaugeSink(t *testing.T) {
	reg := prometheus.NewRegistry()
	g := NewGaugeSink(reg)

	perf := analytics.NewPerformanceMetrics()
	perf.Set(analytics.FileScanning, 40*time.Millisecond)

	g.Add(analytics.KeyIssuesCount, 7)
	g.Add(analytics.KeyCustomRulesPercentage, 12.5)
	g.Add(analytics.KeyPackageManager, []string{"terraform", "k8s"})
	g.Add(analytics.KeyType, analytics.IssuesByType{"terraform": {"high": 3}})
	g.Add(analytics.KeyMetrics, perf)
	g.Add("unsupported", struct{}{})

	assert.Equal(t, 7.0, testutil.ToFloat64(g.metric.WithLabelValues(analytics.KeyIssuesCount)))
	assert.Equal(t, 12.5, testutil.ToFloat64(g.metric.WithLabelValues(analytics.KeyCustomRulesPercentage)))
	assert.Equal(t, 2.0, testutil.ToFloat64(g.metric.WithLabelValues(analytics.KeyPackageManager)))
	assert.Equal(t, 3.0, testutil.ToFloat64(g.issues.WithLabelValues("terraform", "high")))
	assert.Equal(t, 40.0, testutil.ToFloat64(g.stages.WithLabelValues(string(analytics.FileScanning))))
	assert.Equal(t, 1, testutil.CollectAndCount(g.stages))
	assert.Equal(t, 3, testutil.CollectAndCount(g.metric))
}

func TestGaugeSink_PublishUsesLatestTimings(t *testing.T) {
	g := NewGaugeSink(prometheus.NewRegistry())
	perf := analytics.NewPerformanceMetrics()
	buf := NewBuffer("scan-3", g)

	buf.Add(analytics.KeyMetrics, perf)
	perf.Set(analytics.Total, 2*time.Second)

	_, err := buf.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2000.0, testutil.ToFloat64(g.stages.WithLabelValues(string(analytics.Total))))
}

func TestGaugeSink_IssuesReset(t *testing.T) {
	g := NewGaugeSink(prometheus.NewRegistry())
	g.Add(analytics.KeyType, analytics.IssuesByType{"terraform": {"high": 3}, "k8s": {"low": 1}})
	g.Add(analytics.KeyType, analytics.IssuesByType{"k8s": {"low": 2}})

	assert.Equal(t, 1, testutil.CollectAndCount(g.issues))
	assert.Equal(t, 2.0, testutil.ToFloat64(g.issues.WithLabelValues("k8s", "low")))
}
