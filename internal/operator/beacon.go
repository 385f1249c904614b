package operator

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/fair-protocol/operator/internal/bundlr"
	"github.com/fair-protocol/operator/internal/protocol"
	"github.com/fair-protocol/operator/pkg/logger"
)

// Beacon periodically publishes a liveness proof so the marketplace can
// surface this operator as active.
type Beacon struct {
	uploader bundlr.Uploader
	operator string
	interval time.Duration
	now      func() time.Time
	log      *logger.Logger
}

func NewBeacon(uploader bundlr.Uploader, operatorAddr string, interval time.Duration, log *logger.Logger) *Beacon {
	return &Beacon{
		uploader: uploader,
		operator: operatorAddr,
		interval: interval,
		now:      time.Now,
		log:      log,
	}
}

// Run publishes a proof immediately, then on every interval tick until
// the context is cancelled. Publish failures are logged and retried on
// the next tick; a missed beacon only delays marketplace visibility.
func (b *Beacon) Run(ctx context.Context) {
	b.publish(ctx)
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.publish(ctx)
		}
	}
}

func (b *Beacon) publish(ctx context.Context) {
	tags := protocol.TagSet{
		{Name: protocol.TagProtocolName, Value: protocol.ProtocolName},
		{Name: protocol.TagProtocolVersion, Value: protocol.ProtocolVersion},
		{Name: protocol.TagOperationName, Value: protocol.OperationActiveProof},
		{Name: protocol.TagUnixTime, Value: strconv.FormatInt(b.now().Unix(), 10)},
	}
	body := fmt.Sprintf("Operator %s Running", b.operator)
	id, err := b.uploader.UploadData(ctx, []byte(body), tags)
	if err != nil {
		b.log.Error("active proof publish failed", "error", err)
		return
	}
	b.log.Info("active proof published", "id", id)
}
