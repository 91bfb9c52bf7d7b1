package salesbridge

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/dawitel/line-sales-bridge/store"
	"github.com/stretchr/testify/require"
)

func Test_RedisOptions_Carry_TLS_And_Pool(t *testing.T) {
	req := require.New(t)
	cfg := NewConfig().config.Redis
	cfg.Address = "redis.internal:6380"
	cfg.Password = "pw"
	cfg.DB = 2
	cfg.EnableTLS = true
	cfg.TLSSkipVerify = true

	opts := redisOptions(cfg)
	req.Equal("redis.internal:6380", opts.Addr)
	req.Equal("pw", opts.Password)
	req.Equal(2, opts.DB)
	req.Equal(DefaultRedisPoolSize, opts.PoolSize)
	req.Equal(DefaultRedisMinIdleConns, opts.MinIdleConns)
	req.Equal(DefaultRedisReadTimeout, opts.ReadTimeout)
	req.NotNil(opts.TLSConfig)
	req.True(opts.TLSConfig.InsecureSkipVerify)

	cfg.EnableTLS = false
	req.Nil(redisOptions(cfg).TLSConfig)
}

func Test_NewRedisClient_Fails_Without_Server(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	cfg := NewConfig().config.Redis
	cfg.Address = addr
	cfg.DialTimeout = 200 * time.Millisecond

	client, err := NewRedisClient(cfg)
	require.Error(t, err)
	require.Nil(t, client)
}

func Test_NewSnapshotter_File(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), "messages.json")

	snap, err := NewSnapshotter(MessageStoreConfig{Snapshot: store.SnapshotFile, FilePath: path}, RedisConfig{}, nil)
	req.NoError(err)
	req.NotNil(snap)
	req.NoError(snap.Close())
}
