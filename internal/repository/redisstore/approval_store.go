package redisstore

/*
Файл approval_store.go: очередь HITL-запросов в Redis.
Агент кладет запрос и ждет решения на канале approvals, консоль читает очередь и решает.
Postgres здесь не нужен: запрос живет ровно столько, сколько агент готов ждать.
*/

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xela07ax/agent-mandate/internal/domain"
	"github.com/xela07ax/agent-mandate/internal/infra"
)

// DefaultApprovalTTL: сколько хранится запрос после создания
const DefaultApprovalTTL = 24 * time.Hour

type ApprovalStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewApprovalStore(rdb *redis.Client) *ApprovalStore {
	return &ApprovalStore{rdb: rdb, ttl: DefaultApprovalTTL}
}

// Save записывает запрос и добавляет его в индекс.
func (s *ApprovalStore) Save(ctx context.Context, req *domain.ApprovalRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("redis: marshal approval: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, infra.ApprovalKey(req.ID), data, s.ttl)
	pipe.SAdd(ctx, infra.RedisKeyApprovalIndex, req.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: save approval: %w", err)
	}
	return nil
}

func (s *ApprovalStore) Get(ctx context.Context, id string) (*domain.ApprovalRequest, error) {
	data, err := s.rdb.Get(ctx, infra.ApprovalKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrApprovalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get approval: %w", err)
	}
	return decodeApproval(data)
}

// List возвращает запросы с указанным статусом (пустой статус, все).
// Истекшие ключи попутно вычищаются из индекса.
func (s *ApprovalStore) List(ctx context.Context, status domain.ApprovalStatus) ([]*domain.ApprovalRequest, error) {
	ids, err := s.rdb.SMembers(ctx, infra.RedisKeyApprovalIndex).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list approvals: %w", err)
	}
	if len(ids) == 0 {
		return []*domain.ApprovalRequest{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = infra.ApprovalKey(id)
	}
	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: load approvals: %w", err)
	}

	out := make([]*domain.ApprovalRequest, 0, len(values))
	var stale []interface{}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		req, err := decodeApproval([]byte(raw))
		if err != nil {
			return nil, err
		}
		if status == "" || req.Status == status {
			out = append(out, req)
		}
	}

	if len(stale) > 0 {
		_ = s.rdb.SRem(ctx, infra.RedisKeyApprovalIndex, stale...).Err()
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Decide атомарно (WATCH/MULTI) переводит запрос из PENDING в финальный статус
// и публикует сигнал "id:true|false" для ждущего агента.
func (s *ApprovalStore) Decide(ctx context.Context, id string, approved bool, reviewerID, comment string, now time.Time) (*domain.ApprovalRequest, error) {
	key := infra.ApprovalKey(id)
	var decided *domain.ApprovalRequest

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return domain.ErrApprovalNotFound
		}
		if err != nil {
			return err
		}
		req, err := decodeApproval(data)
		if err != nil {
			return err
		}

		next := domain.StatusRejected
		if approved {
			next = domain.StatusApproved
		}
		if err := req.CanTransitionTo(next); err != nil {
			return err
		}

		req.Status = next
		req.ReviewerID = &reviewerID
		if comment != "" {
			req.Comment = &comment
		}
		req.UpdatedAt = now

		updated, err := json.Marshal(req)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, redis.KeepTTL)
			pipe.Publish(ctx, infra.RedisChanApprovalDecisions, fmt.Sprintf("%s:%t", id, approved))
			return nil
		})
		if err == nil {
			decided = req
		}
		return err
	}

	if err := s.rdb.Watch(ctx, txf, key); err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			return nil, domain.ErrAlreadyProcessed
		}
		return nil, err
	}
	return decided, nil
}

func decodeApproval(data []byte) (*domain.ApprovalRequest, error) {
	var req domain.ApprovalRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("redis: decode approval: %w", err)
	}
	return &req, nil
}
