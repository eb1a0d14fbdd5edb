package variables

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/pkg/errors"
)

const DefaultTTL = time.Hour

// Redis keeps the variables of one request in a hash keyed by request id, so that a
// mapper run spread over several workers shares its variables.
type Redis struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedis(client *redis.Client, prefix, requestID string, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, key: prefix + "variables:" + requestID, ttl: ttl}
}

func (r *Redis) Get(ctx context.Context, name string) (any, bool, error) {
	raw, ok, err := r.client.HGet(ctx, r.key, normalize(name))
	if err != nil {
		return nil, false, errors.Wrapf(err, "reading variable %s", name)
	}
	if !ok {
		return nil, false, nil
	}

	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return nil, false, errors.Wrapf(err, "decoding variable %s", name)
	}
	return value, true, nil
}

func (r *Redis) Set(ctx context.Context, name string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "encoding variable %s", name)
	}
	return errors.Wrapf(r.client.HSet(ctx, r.key, normalize(name), string(b), r.ttl), "writing variable %s", name)
}

// Seed sets all given variables.
func (r *Redis) Seed(ctx context.Context, values map[string]any) error {
	for k, v := range values {
		if err := r.Set(ctx, k, v); err != nil {
			return err
		}
	}
	return nil
}

// Clear removes the request's variables.
func (r *Redis) Clear(ctx context.Context) error {
	return r.client.Del(ctx, r.key)
}
