package remote

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/roach88/offsync/internal/ir"
)

// DefaultPrefix namespaces Redis keys when none is configured.
const DefaultPrefix = "offsync"

// maxTxRetries bounds optimistic-lock retries for read-modify-write updates.
const maxTxRetries = 5

// Redis is a Backend storing each collection as one Redis hash.
//
// Layout for collection c with prefix p:
//
//	p:c          hash: field = canonical JSON of the id, value = record JSON
//	p:c:changes  pub/sub channel: one message (the id) per effective mutation
type Redis struct {
	client redis.UniversalClient
	prefix string
}

// NewRedis creates a backend over client. An empty prefix uses DefaultPrefix.
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Redis{client: client, prefix: prefix}
}

// NewRedisFromURL parses a redis:// URL and creates a backend.
func NewRedisFromURL(url, prefix string) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedis(redis.NewClient(opt), prefix), nil
}

// Client returns the underlying client (shared with the connectivity probe).
func (r *Redis) Client() redis.UniversalClient {
	return r.client
}

// Source implements Backend.
func (r *Redis) Source(collection string) Source {
	return &RedisSource{
		client:  r.client,
		key:     r.prefix + ":" + collection,
		channel: r.prefix + ":" + collection + ":changes",
	}
}

// RedisSource is one collection stored in Redis.
type RedisSource struct {
	client  redis.UniversalClient
	key     string
	channel string
}

// Key returns the hash key holding the records.
func (s *RedisSource) Key() string {
	return s.key
}

// Channel returns the change notification channel.
func (s *RedisSource) Channel() string {
	return s.channel
}

// FetchAll returns every record, ordered by id.
func (s *RedisSource) FetchAll(ctx context.Context) ([]ir.Object, error) {
	raw, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", s.key, err)
	}

	type entry struct {
		id  ir.ID
		doc string
	}
	entries := make([]entry, 0, len(raw))
	for field, doc := range raw {
		id, ok := idFromJSON(gjson.Get(doc, ir.IDField))
		if !ok {
			return nil, fmt.Errorf("fetch %s: field %s holds a record without id", s.key, field)
		}
		entries = append(entries, entry{id: id, doc: doc})
	}
	slices.SortFunc(entries, func(a, b entry) int { return ir.CompareIDs(a.id, b.id) })

	out := make([]ir.Object, 0, len(entries))
	for _, e := range entries {
		obj, err := ir.UnmarshalObject([]byte(e.doc))
		if err != nil {
			return nil, fmt.Errorf("fetch %s: record %s: %w", s.key, e.id, err)
		}
		out = append(out, obj)
	}
	return out, nil
}

// Insert stores the record, overwriting any record with the same id.
func (s *RedisSource) Insert(ctx context.Context, record ir.Object) error {
	id, ok := record.ID()
	if !ok {
		return fmt.Errorf("insert into %s: record has no id", s.key)
	}
	field, err := idField(id)
	if err != nil {
		return err
	}
	doc, err := ir.MarshalCanonical(record)
	if err != nil {
		return fmt.Errorf("insert %s: %w", id, err)
	}

	prior, err := s.client.HGet(ctx, s.key, field).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("insert %s: %w", id, err)
	}
	if err == nil && sameDocument(prior, doc) {
		return nil
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.key, field, doc)
		pipe.Publish(ctx, s.channel, field)
		return nil
	})
	if err != nil {
		return fmt.Errorf("insert %s: %w", id, err)
	}
	return nil
}

// Update shallow-merges patch into the stored record under an optimistic
// lock on the hash.
func (s *RedisSource) Update(ctx context.Context, id ir.ID, patch ir.Object) error {
	field, err := idField(id)
	if err != nil {
		return err
	}

	txf := func(tx *redis.Tx) error {
		prior, err := tx.HGet(ctx, s.key, field).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("update %s/%s: %w", s.key, id, ErrNotFound)
		}
		if err != nil {
			return err
		}

		doc, err := patchDocument(prior, patch)
		if err != nil {
			return err
		}
		if sameDocument(prior, doc) {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, s.key, field, doc)
			pipe.Publish(ctx, s.channel, field)
			return nil
		})
		return err
	}

	for range maxTxRetries {
		err = s.client.Watch(ctx, txf, s.key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("update %s: %w", id, err)
	}
	return err
}

// Delete removes the record if present.
func (s *RedisSource) Delete(ctx context.Context, id ir.ID) error {
	field, err := idField(id)
	if err != nil {
		return err
	}
	removed, err := s.client.HDel(ctx, s.key, field).Result()
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	if removed == 0 {
		return nil
	}
	if err := s.client.Publish(ctx, s.channel, field).Err(); err != nil {
		return fmt.Errorf("delete %s: notify: %w", id, err)
	}
	return nil
}

// Watch subscribes to the change channel. The subscription is confirmed
// before Watch returns.
func (s *RedisSource) Watch(ctx context.Context, notify func()) (func(), error) {
	pubsub := s.client.Subscribe(ctx, s.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", s.channel, err)
	}

	var once sync.Once
	stop := func() {
		once.Do(func() { pubsub.Close() })
	}

	ch := pubsub.Channel()
	go func() {
		for range ch {
			notify()
		}
	}()
	context.AfterFunc(ctx, stop)
	return stop, nil
}

// idField encodes an id as a hash field: canonical JSON, so 1 and "1"
// stay distinct.
func idField(id ir.ID) (string, error) {
	data, err := ir.MarshalCanonical(id.Value())
	if err != nil {
		return "", fmt.Errorf("encode id %s: %w", id, err)
	}
	return string(data), nil
}

// idFromJSON converts a gjson id value into an ir.ID.
func idFromJSON(res gjson.Result) (ir.ID, bool) {
	switch res.Type {
	case gjson.String:
		return ir.StringID(res.Str), true
	case gjson.Number:
		if n, err := strconv.ParseInt(res.Raw, 10, 64); err == nil {
			return ir.IntID(n), true
		}
		return ir.IDFromValue(ir.Float(res.Num))
	default:
		return ir.ID{}, false
	}
}

// patchDocument applies a shallow patch to a stored JSON record in place,
// leaving unpatched members byte-for-byte untouched.
func patchDocument(doc []byte, patch ir.Object) ([]byte, error) {
	if !gjson.ValidBytes(doc) {
		return nil, fmt.Errorf("stored record is not valid JSON")
	}
	out := doc
	for _, key := range patch.SortedKeys() {
		value, err := ir.MarshalCanonical(patch.Get(key))
		if err != nil {
			return nil, fmt.Errorf("encode %q: %w", key, err)
		}
		path, ok := memberPath(key)
		if !ok {
			return mergeDocument(doc, patch)
		}
		out, err = sjson.SetRawBytes(out, path, value)
		if err != nil {
			return nil, fmt.Errorf("set %q: %w", key, err)
		}
	}
	return out, nil
}

// mergeDocument is the slow path for keys sjson paths cannot address.
func mergeDocument(doc []byte, patch ir.Object) ([]byte, error) {
	base, err := ir.UnmarshalObject(doc)
	if err != nil {
		return nil, err
	}
	return ir.MarshalCanonical(ir.Merge(base, patch))
}

// memberPath escapes key for use as a single sjson path component.
// Empty and all-digit keys are rejected: sjson reads them as array syntax.
func memberPath(key string) (string, bool) {
	if key == "" {
		return "", false
	}
	allDigits := true
	escaped := make([]byte, 0, len(key)+8)
	for i := 0; i < len(key); i++ {
		c := key[i]
		if c < '0' || c > '9' {
			allDigits = false
		}
		if !isSafePathChar(c) {
			escaped = append(escaped, '\\')
		}
		escaped = append(escaped, c)
	}
	if allDigits {
		return "", false
	}
	return string(escaped), true
}

func isSafePathChar(c byte) bool {
	return c == '_' || c == '-' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}

// sameDocument compares two JSON records by value.
func sameDocument(a, b []byte) bool {
	va, err := ir.UnmarshalValue(a)
	if err != nil {
		return false
	}
	vb, err := ir.UnmarshalValue(b)
	if err != nil {
		return false
	}
	return ir.Equal(va, vb)
}
