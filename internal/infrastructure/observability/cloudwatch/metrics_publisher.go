package cloudwatch

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/dreschagin/vitals-bridge/internal/application/port"
	"github.com/dreschagin/vitals-bridge/internal/domain/entity"
	"github.com/dreschagin/vitals-bridge/internal/infrastructure/awsconfig"
	"github.com/dreschagin/vitals-bridge/pkg/logger"
)

const (
	// CloudWatch limits
	maxMetricsPerRequest = 1000
	maxRetries           = 3
	initialBackoff       = 100 * time.Millisecond
)

// metricDataAPI is the part of the CloudWatch client the publisher uses.
type metricDataAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// MetricsPublisherConfig holds configuration for CloudWatch metrics publishing.
type MetricsPublisherConfig struct {
	AWS               awsconfig.Options
	Namespace         string            // CloudWatch namespace (e.g., "VitalsBridge/WebVitals")
	DefaultDimensions map[string]string // Added to every datum
	BufferSize        int               // Buffer size before auto-flush
	FlushInterval     time.Duration
	StorageResolution int32 // 1 or 60 seconds
}

// MetricsPublisher publishes delivered vitals to AWS CloudWatch.
type MetricsPublisher struct {
	client            metricDataAPI
	namespace         string
	defaultDimensions map[string]string
	storageResolution int32
	logger            *logger.Logger

	buffer     []types.MetricDatum
	bufferSize int
	mu         sync.Mutex

	flushTicker *time.Ticker
	stopCh      chan struct{}
	wg          sync.WaitGroup
}

var _ port.MetricsPublisher = (*MetricsPublisher)(nil)

// NewMetricsPublisher creates a new CloudWatch metrics publisher.
func NewMetricsPublisher(ctx context.Context, cfg MetricsPublisherConfig, log *logger.Logger) (*MetricsPublisher, error) {
	if cfg.Namespace == "" {
		return nil, fmt.Errorf("namespace is required")
	}

	awsCfg, err := awsconfig.Load(ctx, cfg.AWS)
	if err != nil {
		return nil, fmt.Errorf("failed to build AWS config: %w", err)
	}

	return newMetricsPublisher(cloudwatch.NewFromConfig(awsCfg), cfg, log), nil
}

func newMetricsPublisher(client metricDataAPI, cfg MetricsPublisherConfig, log *logger.Logger) *MetricsPublisher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 10 * time.Second
	}
	if cfg.StorageResolution != 1 && cfg.StorageResolution != 60 {
		cfg.StorageResolution = 60
	}

	p := &MetricsPublisher{
		client:            client,
		namespace:         cfg.Namespace,
		defaultDimensions: cfg.DefaultDimensions,
		storageResolution: cfg.StorageResolution,
		logger:            log,
		buffer:            make([]types.MetricDatum, 0, cfg.BufferSize),
		bufferSize:        cfg.BufferSize,
		flushTicker:       time.NewTicker(cfg.FlushInterval),
		stopCh:            make(chan struct{}),
	}

	p.wg.Add(1)
	go p.flushLoop()

	return p
}

// PublishVitals buffers one datum per record and flushes when the buffer fills.
func (p *MetricsPublisher) PublishVitals(ctx context.Context, records []*entity.VitalRecord) error {
	if len(records) == 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, record := range records {
		p.buffer = append(p.buffer, p.convertToDatum(record))

		if len(p.buffer) >= p.bufferSize {
			if err := p.flushBufferUnsafe(ctx); err != nil {
				return fmt.Errorf("failed to flush buffer: %w", err)
			}
		}
	}

	return nil
}

// Flush forces immediate publication of all buffered datums.
func (p *MetricsPublisher) Flush(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.flushBufferUnsafe(ctx)
}

// Close stops the background flush goroutine and flushes what is left.
func (p *MetricsPublisher) Close(ctx context.Context) error {
	close(p.stopCh)
	p.flushTicker.Stop()
	p.wg.Wait()

	return p.Flush(ctx)
}

func (p *MetricsPublisher) flushLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.flushTicker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := p.Flush(ctx); err != nil {
				// следующий тик повторит попытку
				p.logger.Warn("CloudWatch metrics flush failed", "error", err.Error())
			}
			cancel()
		case <-p.stopCh:
			return
		}
	}
}

// flushBufferUnsafe flushes the buffer without locking (caller must hold lock).
// Chunks that were accepted are removed even if a later chunk fails.
func (p *MetricsPublisher) flushBufferUnsafe(ctx context.Context) error {
	for len(p.buffer) > 0 {
		end := len(p.buffer)
		if end > maxMetricsPerRequest {
			end = maxMetricsPerRequest
		}

		if err := p.publishWithRetry(ctx, p.buffer[:end]); err != nil {
			return fmt.Errorf("failed to publish chunk: %w", err)
		}

		p.buffer = append(p.buffer[:0], p.buffer[end:]...)
	}

	return nil
}

// publishWithRetry publishes a batch with exponential backoff retry.
func (p *MetricsPublisher) publishWithRetry(ctx context.Context, data []types.MetricDatum) error {
	var lastErr error
	backoff := initialBackoff

	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := p.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(p.namespace),
			MetricData: data,
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

// convertToDatum maps a record to a datum named after its kind.
// Dimensions are kept low-cardinality: target and page host, never the full URL.
func (p *MetricsPublisher) convertToDatum(record *entity.VitalRecord) types.MetricDatum {
	dimensions := make([]types.Dimension, 0, len(p.defaultDimensions)+2)

	for key, value := range p.defaultDimensions {
		dimensions = append(dimensions, types.Dimension{
			Name:  aws.String(key),
			Value: aws.String(value),
		})
	}

	dimensions = append(dimensions, types.Dimension{
		Name:  aws.String("Target"),
		Value: aws.String(record.Target().String()),
	})
	if host := pageHost(record.URL()); host != "" {
		dimensions = append(dimensions, types.Dimension{
			Name:  aws.String("Host"),
			Value: aws.String(host),
		})
	}

	datum := types.MetricDatum{
		MetricName: aws.String(record.Kind().String()),
		Value:      aws.Float64(record.Value()),
		Unit:       mapUnit(record.Kind().Unit()),
		Timestamp:  aws.Time(record.StartedAt()),
		Dimensions: dimensions,
	}

	if p.storageResolution > 0 {
		datum.StorageResolution = aws.Int32(p.storageResolution)
	}

	return datum
}

// mapUnit maps metric kind units to CloudWatch StandardUnit.
func mapUnit(unit string) types.StandardUnit {
	switch unit {
	case "ms":
		return types.StandardUnitMilliseconds
	case "count":
		return types.StandardUnitCount
	default:
		return types.StandardUnitNone
	}
}

func pageHost(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	return u.Host
}
