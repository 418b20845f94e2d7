package tracing

import (
	"context"
	"time"

	"github.com/ordishs/gocore"
)

type statsKey struct{}

var defaultStat = gocore.NewStat("shardledger", true)

// NewStatFromContext creates a child of the stat carried by ctx, or of defaultParent when ctx
// carries none, and returns a context carrying the child.
func NewStatFromContext(ctx context.Context, key string, defaultParent *gocore.Stat, options ...bool) (time.Time, *gocore.Stat, context.Context) {
	parentStat, ok := ctx.Value(statsKey{}).(*gocore.Stat)
	if !ok {
		parentStat = defaultParent
	}

	ignoreChildren := true
	if len(options) > 0 {
		ignoreChildren = options[0]
	}

	stat := parentStat.NewStat(key, ignoreChildren)

	return gocore.CurrentTime(), stat, context.WithValue(ctx, statsKey{}, stat)
}

func StartStatFromContext(ctx context.Context, key string, options ...bool) (time.Time, *gocore.Stat, context.Context) {
	return NewStatFromContext(ctx, key, defaultStat, options...)
}
