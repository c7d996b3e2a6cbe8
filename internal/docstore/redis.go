package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"

	"github.com/redis/go-redis/v9"
)

const (
	redisMGetChunk     = 200
	redisUpdateRetries = 5
)

// setScript writes the document and indexes its id in one round trip.
var setScript = redis.NewScript(`
redis.call("SET", KEYS[1], ARGV[1])
redis.call("SADD", KEYS[2], ARGV[2])
return 1
`)

// RedisStore keeps each document under <prefix>doc:<collection>:<id> with a
// per-collection id set at <prefix>idx:<collection>. Queries are evaluated
// in process over the indexed documents.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore wraps a connected client. A non-empty prefix is separated
// from the rest of the key with a colon.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix != "" {
		prefix += ":"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) docKey(ref Ref) string {
	return r.prefix + "doc:" + ref.Collection + ":" + ref.ID
}

func (r *RedisStore) indexKey(collection string) string {
	return r.prefix + "idx:" + collection
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Get(ctx context.Context, ref Ref) (Document, error) {
	if err := validateRef(ref); err != nil {
		return nil, err
	}
	raw, err := r.client.Get(ctx, r.docKey(ref)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", ref, err)
	}
	return unmarshalDocument(raw)
}

func (r *RedisStore) Set(ctx context.Context, ref Ref, doc Document) error {
	if err := validateRef(ref); err != nil {
		return err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", ref, err)
	}
	keys := []string{r.docKey(ref), r.indexKey(ref.Collection)}
	if err := setScript.Run(ctx, r.client, keys, raw, ref.ID).Err(); err != nil {
		return fmt.Errorf("set %s: %w", ref, err)
	}
	return nil
}

// Update merges fields under WATCH so concurrent writers to the same
// document do not lose each other's fields.
func (r *RedisStore) Update(ctx context.Context, ref Ref, fields Document) error {
	if err := validateRef(ref); err != nil {
		return err
	}
	patch, err := Encode(fields)
	if err != nil {
		return err
	}
	key := r.docKey(ref)

	txf := func(tx *redis.Tx) error {
		raw, getErr := tx.Get(ctx, key).Bytes()
		if errors.Is(getErr, redis.Nil) {
			return ErrNotFound
		}
		if getErr != nil {
			return getErr
		}
		current, decodeErr := unmarshalDocument(raw)
		if decodeErr != nil {
			return decodeErr
		}
		maps.Copy(current, patch)
		merged, marshalErr := json.Marshal(current)
		if marshalErr != nil {
			return marshalErr
		}
		_, pipeErr := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, merged, 0)
			return nil
		})
		return pipeErr
	}

	for range redisUpdateRetries {
		err = r.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update %s: %w", ref, err)
	}
	return nil
}

func (r *RedisStore) Query(ctx context.Context, q Query) ([]Snapshot, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	ids, err := r.client.SMembers(ctx, r.indexKey(q.Collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Collection, err)
	}

	snaps := make([]Snapshot, 0, len(ids))
	var stale []any
	for start := 0; start < len(ids); start += redisMGetChunk {
		chunk := ids[start:min(start+redisMGetChunk, len(ids))]
		keys := make([]string, len(chunk))
		for i, id := range chunk {
			keys[i] = r.docKey(Ref{Collection: q.Collection, ID: id})
		}
		values, mgetErr := r.client.MGet(ctx, keys...).Result()
		if mgetErr != nil {
			return nil, fmt.Errorf("query %s: %w", q.Collection, mgetErr)
		}
		for i, v := range values {
			s, ok := v.(string)
			if !ok {
				stale = append(stale, chunk[i])
				continue
			}
			doc, decodeErr := unmarshalDocument([]byte(s))
			if decodeErr != nil {
				return nil, decodeErr
			}
			snaps = append(snaps, Snapshot{Ref: Ref{Collection: q.Collection, ID: chunk[i]}, Data: doc})
		}
	}
	if len(stale) > 0 {
		_ = r.client.SRem(ctx, r.indexKey(q.Collection), stale...).Err()
	}
	return evaluate(snaps, q), nil
}

func (r *RedisStore) BatchDelete(ctx context.Context, refs []Ref) error {
	if len(refs) == 0 {
		return nil
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, ref := range refs {
			pipe.Del(ctx, r.docKey(ref))
			pipe.SRem(ctx, r.indexKey(ref.Collection), ref.ID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("batch delete: %w", err)
	}
	return nil
}
