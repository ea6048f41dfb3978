package nats

import (
	"sync"
	"sync/atomic"

	natsgo "github.com/nats-io/nats.go"
)

// ConnConfig describes how to reach a NATS server.
type ConnConfig struct {
	URL           string `env:"NATS_URL" envDefault:"nats://127.0.0.1:4222"`
	Name          string `env:"NATS_CLIENT_NAME" envDefault:"lrukv"`
	MaxReconnects int    `env:"NATS_MAX_RECONNECTS" envDefault:"3"`
}

type closeFunc = func()

type Connector func() (nc *natsgo.Conn, close closeFunc, err error)

// ReuseConnection shares one connection between all callers of the returned
// Connector. The connection is closed when the last lease is released.
func ReuseConnection(connect Connector) Connector {
	var mu sync.Mutex
	var nc *natsgo.Conn
	var closeCon closeFunc
	var leased atomic.Int64
	var weakClose closeFunc = func() {
		mu.Lock()
		defer mu.Unlock()
		if leased.Add(-1) == 0 {
			closeCon()
			nc = nil
		}
	}
	return func() (*natsgo.Conn, closeFunc, error) {
		mu.Lock()
		defer mu.Unlock()
		if nc == nil {
			var err error
			nc, closeCon, err = connect()
			if err != nil {
				return nil, nil, err
			}
		}
		leased.Add(1)
		return nc, weakClose, nil
	}
}

func Connect(cfg ConnConfig) Connector {
	return func() (*natsgo.Conn, closeFunc, error) {
		opts := []natsgo.Option{natsgo.MaxReconnects(cfg.MaxReconnects)}
		if cfg.Name != "" {
			opts = append(opts, natsgo.Name(cfg.Name))
		}
		nc, err := natsgo.Connect(cfg.URL, opts...)
		if err != nil {
			return nil, nil, err
		}
		return nc, func() { nc.Close() }, nil
	}
}

func ConnectURL(natsURL string) Connector {
	return Connect(ConnConfig{URL: natsURL, MaxReconnects: 3})
}
