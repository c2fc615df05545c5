package store

import (
	"context"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/ugorji/go/codec"
	"github.com/wxcuop/pyfixmsg-plus/fix"
)

// storeScript implements the archive-on-overwrite algorithm of spec.md §4.1
// atomically server-side: read the current live value, archive it if
// present, write the new value, bump the durable counter if the new seqNum
// is higher. A Lua script is the only way to get this atomicity out of
// Redis without a client-side WATCH/MULTI retry loop across a cluster of
// engine processes sharing one store.
const storeScript = `
local liveKey = KEYS[1]
local archiveKey = KEYS[2]
local counterKey = KEYS[3]
local newValue = ARGV[1]
local seqNum = tonumber(ARGV[2])
local archivedAt = ARGV[3]

local existing = redis.call('GET', liveKey)
if existing then
  redis.call('RPUSH', archiveKey, archivedAt .. '\x1f' .. existing)
end
redis.call('SET', liveKey, newValue)

local current = tonumber(redis.call('GET', counterKey) or '1')
if seqNum + 1 > current then
  redis.call('SET', counterKey, seqNum + 1)
end
return 'OK'
`

// RedisStore is the "shared network-accessible store for production"
// reference backend named in spec.md §9's design notes but absent from the
// distilled MessageStoreType enum — this module exposes it as
// MessageStoreType "redis". Grounded on Aidin1998-finalex and
// wyfcoding-financialTrading's shared use of a Redis client for
// cross-process state.
type RedisStore struct {
	client *redis.Client
	mh     codec.MsgpackHandle
	script *redis.Script
}

// NewRedisStore wraps an existing *redis.Client. The caller owns the
// client's lifecycle except that Close also closes it.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, script: redis.NewScript(storeScript)}
}

func (r *RedisStore) liveKey(id fix.SessionID, seqNum int, direction Direction) string {
	return "fix:live:" + id.String() + ":" + direction.String() + ":" + strconv.Itoa(seqNum)
}

func (r *RedisStore) archiveKey(id fix.SessionID, seqNum int, direction Direction) string {
	return "fix:archive:" + id.String() + ":" + direction.String() + ":" + strconv.Itoa(seqNum)
}

func (r *RedisStore) counterKey(id fix.SessionID, direction Direction) string {
	return "fix:seq:" + id.String() + ":" + direction.String()
}

func (r *RedisStore) encode(v interface{}) ([]byte, error) {
	var buf []byte
	enc := codec.NewEncoderBytes(&buf, &r.mh)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf, nil
}

func (r *RedisStore) decode(raw []byte, v interface{}) error {
	dec := codec.NewDecoderBytes(raw, &r.mh)
	return dec.Decode(v)
}

func (r *RedisStore) Store(id fix.SessionID, seqNum int, direction Direction, raw []byte, ts time.Time) error {
	ctx := context.Background()

	rec := StoredRecord{Session: id, SeqNum: seqNum, Direction: direction, Raw: raw, Timestamp: ts}
	encoded, err := r.encode(rec)
	if err != nil {
		return &Err{Type: Unavailable, Session: id.String(), Cause: err}
	}

	keys := []string{r.liveKey(id, seqNum, direction), r.archiveKey(id, seqNum, direction), r.counterKey(id, direction)}
	now := strconv.FormatInt(time.Now().UnixNano(), 10)

	if err := r.script.Run(ctx, r.client, keys, string(encoded), seqNum, now).Err(); err != nil {
		return &Err{Type: Unavailable, Session: id.String(), Detail: "store", Cause: err}
	}
	return nil
}

func (r *RedisStore) Get(id fix.SessionID, seqNum int, direction Direction) (*StoredRecord, error) {
	ctx := context.Background()
	raw, err := r.client.Get(ctx, r.liveKey(id, seqNum, direction)).Bytes()
	if err == redis.Nil {
		return nil, &Err{Type: KeyNotFound, Session: id.String(), Detail: direction.String() + " seq " + strconv.Itoa(seqNum)}
	}
	if err != nil {
		return nil, &Err{Type: Unavailable, Session: id.String(), Cause: err}
	}
	var rec StoredRecord
	if err := r.decode(raw, &rec); err != nil {
		return nil, &Err{Type: Integrity, Session: id.String(), Cause: err}
	}
	return &rec, nil
}

func (r *RedisStore) Range(id fix.SessionID, direction Direction, from, to int) ([]*StoredRecord, error) {
	if to == 0 {
		next, err := r.next(id, direction)
		if err != nil {
			return nil, err
		}
		to = next - 1
	}

	var out []*StoredRecord
	for seq := from; seq <= to; seq++ {
		rec, err := r.Get(id, seq, direction)
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *RedisStore) FindByField(id fix.SessionID, tag int, value string) ([]*StoredRecord, error) {
	// Redis has no secondary index over opaque blobs; a production
	// deployment would maintain one via a separate SCAN-friendly index.
	// Out of scope here since spec.md §4.1 marks FindByField as "used by
	// inspection tooling; not on the hot path" and the inspection tool
	// itself is an external, out-of-scope collaborator (spec.md §1).
	ctx := context.Background()
	needle := []byte(itoa(tag) + "=" + value + string(rune(fix.SOH)))

	var out []*StoredRecord
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, "fix:live:"+id.String()+":*", 100).Result()
		if err != nil {
			return nil, &Err{Type: Unavailable, Session: id.String(), Cause: err}
		}
		for _, k := range keys {
			raw, err := r.client.Get(ctx, k).Bytes()
			if err != nil {
				continue
			}
			var rec StoredRecord
			if err := r.decode(raw, &rec); err != nil {
				continue
			}
			if containsBytes(rec.Raw, needle) {
				out = append(out, &rec)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return out, nil
}

func (r *RedisStore) next(id fix.SessionID, direction Direction) (int, error) {
	ctx := context.Background()
	v, err := r.client.Get(ctx, r.counterKey(id, direction)).Result()
	if err == redis.Nil {
		return 1, nil
	}
	if err != nil {
		return 0, &Err{Type: Unavailable, Session: id.String(), Cause: err}
	}
	return strconv.Atoi(v)
}

func (r *RedisStore) NextIncoming(id fix.SessionID) (int, error) { return r.next(id, Inbound) }
func (r *RedisStore) NextOutgoing(id fix.SessionID) (int, error) { return r.next(id, Outbound) }

func (r *RedisStore) set(id fix.SessionID, direction Direction, next int) error {
	ctx := context.Background()
	if err := r.client.Set(ctx, r.counterKey(id, direction), next, 0).Err(); err != nil {
		return &Err{Type: Unavailable, Session: id.String(), Cause: err}
	}
	return nil
}

func (r *RedisStore) SetIncoming(id fix.SessionID, next int) error { return r.set(id, Inbound, next) }
func (r *RedisStore) SetOutgoing(id fix.SessionID, next int) error { return r.set(id, Outbound, next) }

func (r *RedisStore) ResetBoth(id fix.SessionID) error {
	if err := r.set(id, Inbound, 1); err != nil {
		return err
	}
	return r.set(id, Outbound, 1)
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
