package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"timelogger/backend/internal/store"
)

type Options struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces every key and the change channel.
	Prefix string
}

// Store keeps the tree in a hash of leaves plus a lexicographic index of leaf
// paths. Changes are announced on a pub/sub channel so subscribers in every
// process see them.
type Store struct {
	client    *redis.Client
	leavesKey string
	indexKey  string
	channel   string

	readScript  *redis.Script
	patchScript *redis.Script

	broker *store.Broker
	pubsub *redis.PubSub
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger zerolog.Logger
}

// Open connects to Redis and starts listening for change announcements.
func Open(opts Options, logger zerolog.Logger) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	// Ping to verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newStore(ctx, client, opts.Prefix, logger)
}

func newStore(ctx context.Context, client *redis.Client, prefix string, logger zerolog.Logger) (*Store, error) {
	if prefix == "" {
		prefix = "timelogger"
	}

	s := &Store{
		client:      client,
		leavesKey:   prefix + ":leaves",
		indexKey:    prefix + ":index",
		channel:     prefix + ":changes",
		readScript:  redis.NewScript(readTreeScript),
		patchScript: redis.NewScript(applyPatchScript),
		broker:      store.NewBroker(),
		logger:      logger.With().Str("component", "redisstore").Logger(),
	}

	s.pubsub = client.Subscribe(ctx, s.channel)
	// Wait for the subscription confirmation so no change published after
	// Open returns is missed.
	if _, err := s.pubsub.Receive(ctx); err != nil {
		_ = s.pubsub.Close()
		_ = client.Close()
		return nil, fmt.Errorf("subscribe %s: %w", s.channel, err)
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go s.listen(listenCtx)

	return s, nil
}

func (s *Store) listen(ctx context.Context) {
	defer s.wg.Done()
	messages := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			s.broker.Publish(msg.Payload)
		}
	}
}

func (s *Store) Get(ctx context.Context, path string) (json.RawMessage, error) {
	if err := store.ValidatePath(path); err != nil {
		return nil, err
	}

	result, err := s.readScript.Run(ctx, s.client, []string{s.leavesKey, s.indexKey}, path).StringSlice()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	leaves := make(store.Leaves, len(result)/2)
	for i := 0; i+1 < len(result); i += 2 {
		leaves[result[i]] = json.RawMessage(result[i+1])
	}
	return store.Expand(path, leaves)
}

func (s *Store) Update(ctx context.Context, path string, fields map[string]any) error {
	patch, err := store.PlanUpdate(path, fields)
	if err != nil {
		return err
	}
	return s.apply(ctx, patch)
}

func (s *Store) Delete(ctx context.Context, path string) error {
	patch, err := store.PlanDelete(path)
	if err != nil {
		return err
	}
	return s.apply(ctx, patch)
}

func (s *Store) apply(ctx context.Context, patch *store.Patch) error {
	args := make([]interface{}, 0, 2+len(patch.Clear)+len(patch.Ancestors)+2*len(patch.Set))
	args = append(args, len(patch.Clear))
	for _, root := range patch.Clear {
		args = append(args, root)
	}
	args = append(args, len(patch.Ancestors))
	for _, ancestor := range patch.Ancestors {
		args = append(args, ancestor)
	}
	for leafPath, raw := range patch.Set {
		args = append(args, leafPath, string(raw))
	}

	if err := s.patchScript.Run(ctx, s.client, []string{s.leavesKey, s.indexKey}, args...).Err(); err != nil {
		return fmt.Errorf("apply patch: %w", err)
	}

	pipe := s.client.Pipeline()
	for _, root := range patch.Clear {
		pipe.Publish(ctx, s.channel, root)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		// The write is committed; only live subscribers miss this change.
		s.logger.Warn().Err(err).Msg("Failed to announce change")
	}
	return nil
}

func (s *Store) Subscribe(ctx context.Context, path string) (*store.Subscription, error) {
	if err := store.ValidatePath(path); err != nil {
		return nil, err
	}
	notify, release := s.broker.Listen(path)
	read := func(ctx context.Context) (json.RawMessage, error) {
		return s.Get(ctx, path)
	}
	return store.Watch(ctx, path, read, notify, release, s.logger), nil
}

// Close stops the change listener and closes the Redis connection.
func (s *Store) Close() error {
	s.cancel()
	_ = s.pubsub.Close()
	s.wg.Wait()
	return s.client.Close()
}
