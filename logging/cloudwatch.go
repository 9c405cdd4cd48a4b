package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
)

// cloudwatchAPI is the subset of the CloudWatch Logs client this package
// depends on, narrowed so tests can substitute a fake client.
type cloudwatchAPI interface {
	PutLogEvents(ctx context.Context, params *cloudwatchlogs.PutLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error)
}

// CloudWatchSink mirrors decision-log entries to a CloudWatch Logs log
// stream. It is optional: absence of AWS credentials or connectivity
// degrades to local-only logging per the CollaboratorUnavailable policy.
// Each entry is sent synchronously on the caller's goroutine, bounded by a
// 5 s per-call timeout.
type CloudWatchSink struct {
	client        cloudwatchAPI
	logGroup      string
	logStream     string
	putTimeout    time.Duration
	onSendFailure func(error)

	mu            sync.Mutex
	sequenceToken *string
}

// NewCloudWatchSink constructs a sink bound to a log group/stream pair.
// onSendFailure, if non-nil, is invoked (outside any lock) whenever a batch
// fails to ship so the caller can log once and continue, per the
// CollaboratorUnavailable degrade policy.
func NewCloudWatchSink(client cloudwatchAPI, logGroup, logStream string, onSendFailure func(error)) *CloudWatchSink {
	return &CloudWatchSink{
		client:        client,
		logGroup:      logGroup,
		logStream:     logStream,
		putTimeout:    5 * time.Second,
		onSendFailure: onSendFailure,
	}
}

func (s *CloudWatchSink) send(kind string, v interface{}) {
	payload, err := json.Marshal(struct {
		Kind string      `json:"kind"`
		Data interface{} `json:"data"`
	}{Kind: kind, Data: v})
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.putTimeout)
	defer cancel()

	s.mu.Lock()
	token := s.sequenceToken
	s.mu.Unlock()

	out, err := s.client.PutLogEvents(ctx, &cloudwatchlogs.PutLogEventsInput{
		LogGroupName:  &s.logGroup,
		LogStreamName: &s.logStream,
		SequenceToken: token,
		LogEvents: []types.InputLogEvent{
			{
				Message:   stringPtr(string(payload)),
				Timestamp: int64Ptr(time.Now().UnixMilli()),
			},
		},
	})
	if err != nil {
		if s.onSendFailure != nil {
			s.onSendFailure(fmt.Errorf("cloudwatch put_log_events: %w", err))
		}
		return
	}

	s.mu.Lock()
	s.sequenceToken = out.NextSequenceToken
	s.mu.Unlock()
}

func (s *CloudWatchSink) LogPolicyAction(entry PolicyActionEntry) {
	s.send("policy_action", entry)
}

func (s *CloudWatchSink) LogAdmissionEvent(entry AdmissionEventEntry) {
	s.send("admission_event", entry)
}

func (s *CloudWatchSink) LogTrustChange(entry TrustChangeEntry) {
	s.send("trust_change", entry)
}

func stringPtr(s string) *string { return &s }
func int64Ptr(v int64) *int64    { return &v }
