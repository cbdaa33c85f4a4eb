package cloudwatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"

	applicationPort "github.com/dreschagin/vitals-bridge/internal/application/port"
	"github.com/dreschagin/vitals-bridge/internal/infrastructure/awsconfig"
)

const (
	// CloudWatch Logs limits
	maxLogEventsPerRequest = 10000
	maxLogEventSize        = 256000 // 256 KB
)

// logsAPI is the part of the CloudWatch Logs client the publisher uses.
type logsAPI interface {
	PutLogEvents(ctx context.Context, params *cloudwatchlogs.PutLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error)
	CreateLogGroup(ctx context.Context, params *cloudwatchlogs.CreateLogGroupInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error)
	CreateLogStream(ctx context.Context, params *cloudwatchlogs.CreateLogStreamInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogStreamOutput, error)
}

// LogsPublisherConfig holds configuration for CloudWatch logs publishing.
type LogsPublisherConfig struct {
	AWS           awsconfig.Options
	LogGroupName  string
	LogStreamName string
	BufferSize    int // Buffer size before auto-flush
	FlushInterval time.Duration
	AutoCreate    bool // Create log group/stream if missing
}

// LogsPublisher mirrors application logs to AWS CloudWatch Logs.
// It never logs itself: it sits behind the logger and would recurse.
type LogsPublisher struct {
	client        logsAPI
	logGroupName  string
	logStreamName string

	buffer     []applicationPort.LogEntry
	bufferSize int
	dropped    int
	mu         sync.Mutex

	flushTicker *time.Ticker
	stopCh      chan struct{}
	wg          sync.WaitGroup
}

var _ applicationPort.LogPublisher = (*LogsPublisher)(nil)

// NewLogsPublisher creates a new CloudWatch logs publisher.
func NewLogsPublisher(ctx context.Context, cfg LogsPublisherConfig) (*LogsPublisher, error) {
	if cfg.LogGroupName == "" {
		return nil, fmt.Errorf("log group name is required")
	}
	if cfg.LogStreamName == "" {
		return nil, fmt.Errorf("log stream name is required")
	}

	awsCfg, err := awsconfig.Load(ctx, cfg.AWS)
	if err != nil {
		return nil, fmt.Errorf("failed to build AWS config: %w", err)
	}

	client := cloudwatchlogs.NewFromConfig(awsCfg)
	if cfg.AutoCreate {
		if err := ensureLogGroupAndStream(ctx, client, cfg.LogGroupName, cfg.LogStreamName); err != nil {
			return nil, fmt.Errorf("failed to create log group/stream: %w", err)
		}
	}

	return newLogsPublisher(client, cfg), nil
}

func newLogsPublisher(client logsAPI, cfg LogsPublisherConfig) *LogsPublisher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 50
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}

	p := &LogsPublisher{
		client:        client,
		logGroupName:  cfg.LogGroupName,
		logStreamName: cfg.LogStreamName,
		buffer:        make([]applicationPort.LogEntry, 0, cfg.BufferSize),
		bufferSize:    cfg.BufferSize,
		flushTicker:   time.NewTicker(cfg.FlushInterval),
		stopCh:        make(chan struct{}),
	}

	p.wg.Add(1)
	go p.flushLoop()

	return p
}

// Publish buffers a single log entry and flushes when the buffer fills.
func (p *LogsPublisher) Publish(ctx context.Context, entry applicationPort.LogEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.buffer = append(p.buffer, entry)

	if len(p.buffer) >= p.bufferSize {
		if err := p.flushBufferUnsafe(ctx); err != nil {
			return fmt.Errorf("failed to flush buffer: %w", err)
		}
	}

	return nil
}

// Flush forces immediate publication of all buffered log entries.
func (p *LogsPublisher) Flush(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.flushBufferUnsafe(ctx)
}

// Close stops the background flush goroutine and flushes remaining logs.
func (p *LogsPublisher) Close(ctx context.Context) error {
	close(p.stopCh)
	p.flushTicker.Stop()
	p.wg.Wait()

	return p.Flush(ctx)
}

// Dropped returns how many entries were discarded because they could not be encoded.
func (p *LogsPublisher) Dropped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

func (p *LogsPublisher) flushLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.flushTicker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			// ошибка не фатальна, буфер уйдет на следующем тике
			_ = p.Flush(ctx)
			cancel()
		case <-p.stopCh:
			return
		}
	}
}

// flushBufferUnsafe flushes the buffer without locking (caller must hold lock).
func (p *LogsPublisher) flushBufferUnsafe(ctx context.Context) error {
	if len(p.buffer) == 0 {
		return nil
	}

	// CloudWatch Logs требует хронологический порядок в запросе
	sort.SliceStable(p.buffer, func(i, j int) bool {
		return p.buffer[i].Timestamp.Before(p.buffer[j].Timestamp)
	})

	events := make([]types.InputLogEvent, 0, len(p.buffer))
	for _, entry := range p.buffer {
		event, err := convertToLogEvent(entry)
		if err != nil {
			p.dropped++
			continue
		}
		events = append(events, event)
	}

	for i := 0; i < len(events); i += maxLogEventsPerRequest {
		end := i + maxLogEventsPerRequest
		if end > len(events) {
			end = len(events)
		}

		if err := p.putWithRetry(ctx, events[i:end]); err != nil {
			return fmt.Errorf("failed to publish chunk: %w", err)
		}
	}

	p.buffer = p.buffer[:0]

	return nil
}

// putWithRetry publishes log events with exponential backoff retry.
func (p *LogsPublisher) putWithRetry(ctx context.Context, events []types.InputLogEvent) error {
	var lastErr error
	backoff := initialBackoff

	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := p.client.PutLogEvents(ctx, &cloudwatchlogs.PutLogEventsInput{
			LogGroupName:  aws.String(p.logGroupName),
			LogStreamName: aws.String(p.logStreamName),
			LogEvents:     events,
		})
		if err == nil {
			return nil
		}

		lastErr = err

		if attempt < maxRetries-1 {
			select {
			case <-time.After(backoff):
				backoff *= 2
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}

// convertToLogEvent renders an entry as one JSON line.
func convertToLogEvent(entry applicationPort.LogEntry) (types.InputLogEvent, error) {
	logData := map[string]interface{}{
		"timestamp": entry.Timestamp.Format(time.RFC3339Nano),
		"level":     string(entry.Level),
		"message":   entry.Message,
	}
	if len(entry.Fields) > 0 {
		logData["fields"] = entry.Fields
	}

	messageJSON, err := json.Marshal(logData)
	if err != nil {
		return types.InputLogEvent{}, fmt.Errorf("failed to marshal log entry: %w", err)
	}

	message := string(messageJSON)
	if len(message) > maxLogEventSize {
		message = message[:maxLogEventSize-3] + "..."
	}

	return types.InputLogEvent{
		Message:   aws.String(message),
		Timestamp: aws.Int64(entry.Timestamp.UnixMilli()),
	}, nil
}

// ensureLogGroupAndStream creates the log group and stream, tolerating existing ones.
func ensureLogGroupAndStream(ctx context.Context, client logsAPI, group, stream string) error {
	var alreadyExists *types.ResourceAlreadyExistsException

	_, err := client.CreateLogGroup(ctx, &cloudwatchlogs.CreateLogGroupInput{
		LogGroupName: aws.String(group),
	})
	if err != nil && !errors.As(err, &alreadyExists) {
		return fmt.Errorf("failed to create log group: %w", err)
	}

	_, err = client.CreateLogStream(ctx, &cloudwatchlogs.CreateLogStreamInput{
		LogGroupName:  aws.String(group),
		LogStreamName: aws.String(stream),
	})
	if err != nil && !errors.As(err, &alreadyExists) {
		return fmt.Errorf("failed to create log stream: %w", err)
	}

	return nil
}
