package cartstore

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Backend names accepted by New.
const (
	BackendLocal = "local"
	BackendBunt  = "bunt"
	BackendRedis = "redis"
)

// Options selects and configures a backend for New.
type Options struct {
	Backend   string
	BuntPath  string
	RedisAddr string
	Log       logrus.FieldLogger
}

// New builds the backend named by opts.Backend. The caller still has to
// Initialize it.
func New(opts Options) (IStorage, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case BackendLocal:
		return NewLocalCartStore(opts.Log), nil
	case BackendBunt, "":
		path := opts.BuntPath
		if path == "" {
			path = "cart.db"
		}
		return NewBuntCartStore(path, opts.Log), nil
	case BackendRedis:
		if opts.RedisAddr == "" {
			return nil, errors.New("cartstore: REDIS_ADDR is required for the redis backend")
		}
		addr := opts.RedisAddr
		// Add the default port unless one is given.
		if !strings.Contains(addr, ":") {
			addr = addr + ":6379"
		}
		return NewRedisCartStore(addr, opts.Log), nil
	default:
		return nil, errors.Wrapf(ErrUnknownBackend, "%q", opts.Backend)
	}
}
