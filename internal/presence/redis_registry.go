package presence

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/annel0/voxelgate/internal/logging"
)

// RedisConfig: параметры реестра в Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	ServerID string        // Идентификатор процесса: каждый ведёт свой хеш
	TTL      time.Duration // Хеш истекает, если процесс перестал его продлевать
}

// DefaultRedisConfig возвращает конфигурацию по умолчанию
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:     "localhost:6379",
		ServerID: "main",
		TTL:      30 * time.Second,
	}
}

// RedisRegistry хранит игроков процесса в хеше presence:<server>.
// Поле: UUID, значение: "<порядок>:<имя>". Фоновая горутина продлевает TTL,
// чтобы записи упавшего процесса исчезли сами.
type RedisRegistry struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	seq    int64

	mu       sync.Mutex
	shutdown chan struct{}
	wg       sync.WaitGroup
	logger   *logging.Logger
}

// NewRedisRegistry подключается к Redis и запускает продление TTL.
func NewRedisRegistry(ctx context.Context, config *RedisConfig) (*RedisRegistry, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	r := &RedisRegistry{
		client:   client,
		key:      "presence:" + config.ServerID,
		ttl:      config.TTL,
		shutdown: make(chan struct{}),
		logger:   logging.GetServerLogger(),
	}
	// Прошлый запуск с тем же ServerID мог оставить записи
	if err := client.Del(ctx, r.key).Err(); err != nil {
		return nil, fmt.Errorf("failed to reset presence: %w", err)
	}

	r.wg.Add(1)
	go r.refreshLoop()

	r.logger.Info("🔴 Presence в Redis %s, ключ %s", config.Addr, r.key)
	return r, nil
}

func (r *RedisRegistry) Join(ctx context.Context, p Player) error {
	r.mu.Lock()
	r.seq++
	order := r.seq
	r.mu.Unlock()

	pipe := r.client.TxPipeline()
	pipe.HSetNX(ctx, r.key, p.UUID.String(), encodeMember(order, p.Name))
	pipe.Expire(ctx, r.key, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to join presence: %w", err)
	}
	return nil
}

func (r *RedisRegistry) Leave(ctx context.Context, id uuid.UUID) error {
	if err := r.client.HDel(ctx, r.key, id.String()).Err(); err != nil {
		return fmt.Errorf("failed to leave presence: %w", err)
	}
	return nil
}

func (r *RedisRegistry) Count(ctx context.Context) (int, error) {
	n, err := r.client.HLen(ctx, r.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count presence: %w", err)
	}
	return int(n), nil
}

func (r *RedisRegistry) Sample(ctx context.Context, n int) ([]Player, error) {
	all, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read presence: %w", err)
	}
	type member struct {
		Player
		order int64
	}
	members := make([]member, 0, len(all))
	for field, value := range all {
		id, err := uuid.Parse(field)
		if err != nil {
			r.logger.Warn("⚠️ Битая запись presence %q: %v", field, err)
			continue
		}
		order, name, ok := decodeMember(value)
		if !ok {
			r.logger.Warn("⚠️ Битое значение presence %q", value)
			continue
		}
		members = append(members, member{Player: Player{UUID: id, Name: name}, order: order})
	}
	sort.Slice(members, func(i, j int) bool { return members[i].order < members[j].order })
	if n < len(members) {
		members = members[:n]
	}
	out := make([]Player, len(members))
	for i, m := range members {
		out[i] = m.Player
	}
	return out, nil
}

// Close удаляет хеш процесса и закрывает соединение.
func (r *RedisRegistry) Close() error {
	close(r.shutdown)
	r.wg.Wait()
	if err := r.client.Del(context.Background(), r.key).Err(); err != nil {
		r.logger.Warn("⚠️ Не удалось очистить presence: %v", err)
	}
	return r.client.Close()
}

func (r *RedisRegistry) refreshLoop() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-r.shutdown:
			return
		case <-ticker.C:
			if err := r.client.Expire(context.Background(), r.key, r.ttl).Err(); err != nil {
				r.logger.Error("❌ Не удалось продлить presence: %v", err)
			}
		}
	}
}

func encodeMember(order int64, name string) string {
	return strconv.FormatInt(order, 10) + ":" + name
}

func decodeMember(v string) (int64, string, bool) {
	i := strings.IndexByte(v, ':')
	if i < 0 {
		return 0, "", false
	}
	order, err := strconv.ParseInt(v[:i], 10, 64)
	if err != nil {
		return 0, "", false
	}
	return order, v[i+1:], true
}
