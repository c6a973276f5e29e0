package redisx

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// New создаёт Redis-клиент и проверяет соединение.
func New(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, err
	}
	return rdb, nil
}

// Deduper — дедупликация входящих событий поверх Redis SETNX. Фильтр
// рекомендательный: потеря ключей не ломает корректность, только добавляет
// работы идемпотентным обработчикам.
type Deduper struct {
	rdb *redis.Client
}

// NewDeduper создаёт Redis-дедупликатор.
func NewDeduper(rdb *redis.Client) *Deduper {
	return &Deduper{rdb: rdb}
}

// Seen отмечает ключ и сообщает, встречался ли он раньше.
func (d *Deduper) Seen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	created, err := d.rdb.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, err
	}
	return !created, nil
}
