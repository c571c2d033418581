package auditexport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/sony/gobreaker"

	"github.com/staffline-labs/staffline-go/internal/domain"
)

// ObjectPutter is the subset of *minio.Client the archive needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// ArchiveExporter stores each event as a JSON object in the audit bucket.
// Writes go through a circuit breaker.
type ArchiveExporter struct {
	client  ObjectPutter
	bucket  string
	prefix  string
	breaker *gobreaker.CircuitBreaker
}

type BreakerConfig struct {
	Name                string
	MaxRequests         uint32
	OpenTimeout         time.Duration
	ConsecutiveFailures uint32
}

func NewArchiveExporter(client ObjectPutter, bucket, prefix string, cb BreakerConfig, logger *slog.Logger) *ArchiveExporter {
	if cb.Name == "" {
		cb.Name = "audit-archive"
	}
	settings := gobreaker.Settings{
		Name:        cb.Name,
		MaxRequests: cb.MaxRequests,
		Timeout:     cb.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cb.ConsecutiveFailures
		},
	}
	if logger != nil {
		settings.OnStateChange = func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		}
	}
	return &ArchiveExporter{
		client:  client,
		bucket:  bucket,
		prefix:  prefix,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// ObjectName places events under prefix/YYYY/MM/DD so daily listings stay cheap.
func (e *ArchiveExporter) ObjectName(event domain.AuditEvent) string {
	day := event.OccurredAt.UTC().Format("2006/01/02")
	hash := event.IntegritySHA256
	if len(hash) > 12 {
		hash = hash[:12]
	}
	name := fmt.Sprintf("%012d-%s-%s.json", event.EventID, event.ResourceType, hash)
	return path.Join(e.prefix, day, name)
}

func (e *ArchiveExporter) Export(ctx context.Context, event domain.AuditEvent) error {
	body, err := json.Marshal(newRecord(event))
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	_, err = e.breaker.Execute(func() (interface{}, error) {
		return e.client.PutObject(ctx, e.bucket, e.ObjectName(event), bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
			ContentType: "application/json",
			UserMetadata: map[string]string{
				"integrity-sha256": event.IntegritySHA256,
			},
		})
	})
	if err != nil {
		return fmt.Errorf("archive audit event %d: %w", event.EventID, err)
	}
	return nil
}

// State reports the breaker state for readiness output.
func (e *ArchiveExporter) State() string {
	return e.breaker.State().String()
}
