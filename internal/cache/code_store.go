package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CodeStore 一次性验证码存储。键为（邮箱，用途）二元组：
// Put 覆盖写入并重置 TTL；Consume 对比候选值，命中则原子删除，
// 并发校验同一验证码最多只有一个调用方得到 true。
type CodeStore interface {
	Put(ctx context.Context, subject, purpose, code string, ttl time.Duration) error
	Consume(ctx context.Context, subject, purpose, candidate string) (bool, error)
}

// compareAndDeleteScript 值匹配时删除键，保证校验与消费的原子性
var compareAndDeleteScript = redis.NewScript(`
local current = redis.call("GET", KEYS[1])
if current == ARGV[1] then
	redis.call("DEL", KEYS[1])
	return 1
end
return 0
`)

func codeKey(subject, purpose string) string {
	return fmt.Sprintf("verify_code:%s:%s", purpose, subject)
}

// RedisCodeStore 基于 Redis 的验证码存储
type RedisCodeStore struct{}

// NewRedisCodeStore 创建 Redis 验证码存储（要求 InitRedis 已启用）
func NewRedisCodeStore() *RedisCodeStore {
	return &RedisCodeStore{}
}

// Put 写入验证码并设置过期时间，同键旧值被覆盖
func (s *RedisCodeStore) Put(ctx context.Context, subject, purpose, code string, ttl time.Duration) error {
	client := Client()
	if client == nil {
		return fmt.Errorf("redis not enabled")
	}
	return client.Set(ctx, buildKey(codeKey(subject, purpose)), code, ttl).Err()
}

// Consume 校验并消费验证码。未命中（不存在/过期/不匹配）返回 false
func (s *RedisCodeStore) Consume(ctx context.Context, subject, purpose, candidate string) (bool, error) {
	client := Client()
	if client == nil {
		return false, fmt.Errorf("redis not enabled")
	}
	result, err := compareAndDeleteScript.Run(ctx, client, []string{buildKey(codeKey(subject, purpose))}, candidate).Int()
	if err != nil {
		return false, err
	}
	return result == 1, nil
}

type memoryCodeEntry struct {
	code      string
	expiresAt time.Time
}

// MemoryCodeStore 进程内验证码存储，Redis 未启用时和测试中使用
type MemoryCodeStore struct {
	mu      sync.Mutex
	entries map[string]memoryCodeEntry
	now     func() time.Time
}

// NewMemoryCodeStore 创建进程内验证码存储
func NewMemoryCodeStore() *MemoryCodeStore {
	return &MemoryCodeStore{
		entries: make(map[string]memoryCodeEntry),
		now:     time.Now,
	}
}

// Put 写入验证码并记录过期时间，同键旧值被覆盖
func (s *MemoryCodeStore) Put(_ context.Context, subject, purpose, code string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[codeKey(subject, purpose)] = memoryCodeEntry{
		code:      code,
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

// Consume 校验并消费验证码，读取时检查过期
func (s *MemoryCodeStore) Consume(_ context.Context, subject, purpose, candidate string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := codeKey(subject, purpose)
	entry, ok := s.entries[key]
	if !ok {
		return false, nil
	}
	if s.now().After(entry.expiresAt) {
		delete(s.entries, key)
		return false, nil
	}
	if entry.code != candidate {
		return false, nil
	}
	delete(s.entries, key)
	return true, nil
}
