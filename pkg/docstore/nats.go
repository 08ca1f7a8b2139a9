package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// NatsFeed publishes changes on <prefix>.<account>.
type NatsFeed struct {
	nc     *nats.Conn
	prefix string
	log    *slog.Logger
}

func NewNatsFeed(nc *nats.Conn, prefix string, log *slog.Logger) *NatsFeed {
	if prefix == "" {
		prefix = "consultorio.docs"
	}
	if log == nil {
		log = slog.Default()
	}
	return &NatsFeed{nc: nc, prefix: prefix, log: log.With("component", "nats_feed")}
}

func (f *NatsFeed) Subject(account string) string {
	return f.prefix + "." + account
}

func (f *NatsFeed) Publish(_ context.Context, c Change) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode change: %w", err)
	}
	if err := f.nc.Publish(f.Subject(c.Account), data); err != nil {
		return fmt.Errorf("%w: nats publish: %w", ErrUnavailable, err)
	}
	return nil
}

func (f *NatsFeed) Subscribe(account string, fn func(Change)) (func(), error) {
	sub, err := f.nc.Subscribe(f.Subject(account), func(msg *nats.Msg) {
		c, err := DecodeChange(msg.Data)
		if err != nil {
			f.log.Warn("dropping malformed change", "subject", msg.Subject, "err", err)
			return
		}
		fn(c)
	})
	if err != nil {
		return nil, fmt.Errorf("nats subscribe %s: %w", f.Subject(account), err)
	}
	return func() {
		if err := sub.Unsubscribe(); err != nil {
			f.log.Debug("unsubscribe failed", "subject", sub.Subject, "err", err)
		}
	}, nil
}

func DecodeChange(data []byte) (Change, error) {
	var c Change
	if err := json.Unmarshal(data, &c); err != nil {
		return Change{}, err
	}
	if c.Account == "" || c.Doc.Parent == "" || c.Doc.ID == "" {
		return Change{}, fmt.Errorf("incomplete change")
	}
	return c, nil
}
