package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	// ModeDurable は永続ストア（PostgreSQL）で動作していることを表す。
	ModeDurable = "durable"
	// ModeFallback はインメモリのフォールバックストアで動作していることを表す。
	ModeFallback = "fallback"

	// connectKey はsingleflightで接続試行を集約するキー。
	connectKey = "connect"
	// defaultConnectTimeout は1回の接続試行にかける上限時間。
	defaultConnectTimeout = 5 * time.Second
)

// Connection はAcquireの結果を表す。
// DBがnilの場合はフォールバックモードを意味する。
// Errが非nilの場合は、接続試行の完了を待つ間に呼び出し元のcontextが終了したことを表す。
// このときはどちらのストアも選ばれておらず、フォールバックとして扱ってはならない。
type Connection struct {
	DB  *sql.DB
	Err error
}

// Fallback はフォールバックモードかどうかを返す。
func (c Connection) Fallback() bool {
	return c.DB == nil && c.Err == nil
}

// Mode は "durable" または "fallback" を返す。DBを保持していない場合は "fallback"。
func (c Connection) Mode() string {
	if c.DB == nil {
		return ModeFallback
	}
	return ModeDurable
}

// ConnectFunc は永続ストアへの接続を確立する関数。
type ConnectFunc func(ctx context.Context, databaseURL string) (*sql.DB, error)

// ManagerOption はManagerの設定を変更する。
type ManagerOption func(*Manager)

// WithConnectFunc は接続確立処理を差し替える。テスト用。
func WithConnectFunc(fn ConnectFunc) ManagerOption {
	return func(m *Manager) { m.connect = fn }
}

// WithConnectTimeout は1回の接続試行のタイムアウトを設定する。
func WithConnectTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithOnConnect は接続確立直後に実行するフックを設定する。
// フックがエラーを返した場合、その接続は破棄され接続失敗として扱われる。
func WithOnConnect(fn func(ctx context.Context, db *sql.DB) error) ManagerOption {
	return func(m *Manager) { m.onConnect = fn }
}

// WithLogger はロガーを設定する。
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// Manager はプロセス全体で1つの永続ストア接続を遅延確立してキャッシュする。
//
// 接続設定が無い場合や接続に失敗した場合はエラーを返さず、
// フォールバックモードのConnectionを返す。失敗した試行はキャッシュしないため、
// 次回のAcquireで再試行される。接続中に到着した呼び出しは同じ試行の完了を待つ。
type Manager struct {
	databaseURL string
	connect     ConnectFunc
	onConnect   func(ctx context.Context, db *sql.DB) error
	timeout     time.Duration
	logger      *slog.Logger

	flight singleflight.Group

	mu sync.RWMutex
	db *sql.DB

	noConfigOnce sync.Once
}

// NewManager はManagerを生成する。databaseURLが空の場合は常にフォールバックモードとなる。
// この時点では接続を試行しない。
func NewManager(databaseURL string, opts ...ManagerOption) *Manager {
	m := &Manager{
		databaseURL: databaseURL,
		connect:     connectAndPing,
		timeout:     defaultConnectTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Acquire は永続ストアの接続、またはフォールバックモードのConnectionを返す。
// 接続失敗もpanicも呼び出し元には伝播しない。
// 接続試行の完了を待つ間にctxが終了した場合はErrにctx.Err()を設定して返す。
// 試行自体は他の待機者のために継続される。
func (m *Manager) Acquire(ctx context.Context) Connection {
	if m.databaseURL == "" {
		m.noConfigOnce.Do(func() {
			m.logger.Info("no database URL provided, using fallback store")
		})
		return Connection{}
	}

	if db := m.cached(); db != nil {
		return Connection{DB: db}
	}

	ch := m.flight.DoChan(connectKey, func() (any, error) {
		// 直前に別の試行が成功している可能性がある
		if db := m.cached(); db != nil {
			return db, nil
		}

		db, err := m.establish()
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		m.db = db
		m.mu.Unlock()
		return db, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Connection{}
		}
		db, _ := res.Val.(*sql.DB)
		return Connection{DB: db}
	case <-ctx.Done():
		return Connection{Err: ctx.Err()}
	}
}

// CachedMode は接続を試行せずに現在のモードを返す。
// 接続が確立済みの場合のみ "durable" となる。
func (m *Manager) CachedMode() string {
	if m.cached() != nil {
		return ModeDurable
	}
	return ModeFallback
}

// Close はキャッシュしている接続を閉じる。
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db = nil
	return err
}

func (m *Manager) cached() *sql.DB {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.db
}

// establish は1回の接続試行を行う。
// 結果は複数の呼び出し元で共有されるため、個々のリクエストのcontextからは切り離す。
func (m *Manager) establish() (db *sql.DB, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if db != nil {
				db.Close()
				db = nil
			}
			err = fmt.Errorf("panic during database connection: %v", rec)
			m.logger.Error("database connection failed, using fallback store",
				slog.String("error", err.Error()),
			)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	db, err = m.connect(ctx, m.databaseURL)
	if err != nil {
		m.logger.Error("database connection failed, using fallback store",
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	if m.onConnect != nil {
		if hookErr := m.onConnect(ctx, db); hookErr != nil {
			db.Close()
			m.logger.Error("database post-connect hook failed, using fallback store",
				slog.String("error", hookErr.Error()),
			)
			return nil, hookErr
		}
	}

	m.logger.Info("database connection established")
	return db, nil
}

// connectAndPing はデフォルトの接続処理。sql.Openは接続を試行しないため、Pingで疎通を確認する。
func connectAndPing(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := Open(databaseURL)
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}
