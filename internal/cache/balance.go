package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ledger_bot/internal/telegram/models"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "ledger:account:"

// 只有版本号不小于缓存中的版本时才写入，保证乱序到达的旧余额不会覆盖新余额
var putScript = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'version')
if current and tonumber(current) > tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'version', ARGV[1], 'data', ARGV[2])
if tonumber(ARGV[3]) > 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[3])
end
return 1
`)

// BalanceCache 账户余额的 Redis 写穿缓存
type BalanceCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewBalanceCache 创建余额缓存，ttl <= 0 表示不过期
func NewBalanceCache(client *redis.Client, ttl time.Duration) *BalanceCache {
	return &BalanceCache{client: client, ttl: ttl}
}

func accountKey(name string) string {
	return keyPrefix + name
}

// Put 写入账户快照，返回是否实际写入（缓存中已有更新版本时为 false）
func (c *BalanceCache) Put(ctx context.Context, account *models.Account) (bool, error) {
	if account == nil {
		return false, errors.New("account is nil")
	}

	data, err := json.Marshal(account)
	if err != nil {
		return false, fmt.Errorf("marshal account: %w", err)
	}

	written, err := putScript.Run(ctx, c.client,
		[]string{accountKey(account.Name)},
		account.Version, string(data), c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("put account %q into cache: %w", account.Name, err)
	}
	return written == 1, nil
}

// Get 读取账户快照，未命中时返回 (nil, false, nil)
func (c *BalanceCache) Get(ctx context.Context, name string) (*models.Account, bool, error) {
	data, err := c.client.HGet(ctx, accountKey(name), "data").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get account %q from cache: %w", name, err)
	}

	var account models.Account
	if err := json.Unmarshal([]byte(data), &account); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached account %q: %w", name, err)
	}
	return &account, true, nil
}

// Invalidate 删除账户缓存
func (c *BalanceCache) Invalidate(ctx context.Context, name string) error {
	if err := c.client.Del(ctx, accountKey(name)).Err(); err != nil {
		return fmt.Errorf("invalidate account %q: %w", name, err)
	}
	return nil
}
