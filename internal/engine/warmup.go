package engine

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// WarmupState: прогрев L1 (RAM) и L2 (Redis) кэшей множества ID.
// L1 получает объединение БД и Redis: сигнал мог попасть только в Redis (например, отзыв с другого инстанса).
func WarmupState(
	ctx context.Context,
	rdb *redis.Client,
	logger *zap.Logger,
	ids []string,
	redisKey string,
	lockKey string,
	updateL1 func([]string), // Callback для обновления локальной мапы
) error {
	// 1. Локальный кэш из БД
	updateL1(ids)

	// 2. Добираем то, что уже лежит в Redis
	members, err := rdb.SMembers(ctx, redisKey).Result()
	if err != nil {
		logger.Warn("could not read Redis set, L1 is warmed from DB only",
			zap.String("key", redisKey), zap.Error(err))
		return nil
	}
	updateL1(members)

	// 3. Распределенная блокировка (SetNX), чтобы только один инстанс заливал Redis
	ok, err := rdb.SetNX(ctx, lockKey, "processing", 30*time.Second).Result()
	if err != nil || !ok {
		return nil // Либо ошибка сети, либо другой уже греет кэш
	}

	// 4. Если Redis пуст, а данные в БД есть, заливаем
	if len(members) == 0 && len(ids) > 0 {
		logger.Info("Redis set is empty, performing warm-up from DB...",
			zap.String("key", redisKey), zap.Int("count", len(ids)))

		pipe := rdb.Pipeline()
		for _, id := range ids {
			pipe.SAdd(ctx, redisKey, id)
		}
		_, err = pipe.Exec(ctx)
		return err
	}

	return nil
}
