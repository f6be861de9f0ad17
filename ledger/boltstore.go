package ledger

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"
)

var (
	bucketTotals       = []byte("totals")
	bucketRewards      = []byte("rewards")
	bucketMatchers     = []byte("matchers")
	bucketMatchRewards = []byte("match_rewards")
	bucketVoted        = []byte("voted")
	bucketNonBase      = []byte("non_base")
	bucketTargetLists  = []byte("target_lists")
	bucketMatcherLists = []byte("matcher_lists")
	bucketEvents       = []byte("events")
)

// BoltStore is a bbolt-backed Store. Records are gob encoded under
// big-endian epoch-prefixed composite keys, so a cursor scan within a
// bucket walks epochs in order.
type BoltStore struct {
	db *bbolt.DB
}

// Compile-time interface check.
var _ Store = (*BoltStore)(nil)

// OpenBoltStore opens or creates the bbolt database at dbPath.
// The parent directory is created if it does not exist.
func OpenBoltStore(dbPath string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("ledger: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("ledger: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		buckets := [][]byte{
			bucketTotals, bucketRewards, bucketMatchers, bucketMatchRewards,
			bucketVoted, bucketNonBase, bucketTargetLists, bucketMatcherLists,
			bucketEvents,
		}
		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("boltstore: create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger: create buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error { return s.db.Close() }

// epochKey encodes an epoch as an 8-byte big-endian key prefix.
func epochKey(e uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, e)
	return k
}

// compositeKey concatenates an epoch prefix with one or more addresses.
func compositeKey(e uint64, addrs ...Address) []byte {
	k := make([]byte, 8, 8+20*len(addrs))
	binary.BigEndian.PutUint64(k, e)
	for _, a := range addrs {
		k = append(k, a[:]...)
	}
	return k
}

// encodeGob serializes a value using gob encoding.
func encodeGob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeGob deserializes gob-encoded data into a value.
func decodeGob(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

// getGob reads and decodes the value at key in bucket, leaving v
// untouched (zero record) when the key is absent.
func (s *BoltStore) getGob(bucket, key []byte, v interface{}) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucket).Get(key)
		if data == nil {
			return nil
		}
		if err := decodeGob(data, v); err != nil {
			return fmt.Errorf("boltstore: decode %s: %w", bucket, err)
		}
		return nil
	})
}

// txPutGob encodes and writes v at key in bucket within tx.
func txPutGob(tx *bbolt.Tx, bucket, key []byte, v interface{}) error {
	data, err := encodeGob(v)
	if err != nil {
		return fmt.Errorf("boltstore: encode %s: %w", bucket, err)
	}
	if err := tx.Bucket(bucket).Put(key, data); err != nil {
		return fmt.Errorf("boltstore: put %s: %w", bucket, err)
	}
	return nil
}

// putGob encodes and writes v at key in bucket as its own transaction.
func (s *BoltStore) putGob(bucket, key []byte, v interface{}) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return txPutGob(tx, bucket, key, v)
	})
}

// Totals returns the epoch-wide aggregates for epoch.
func (s *BoltStore) Totals(epoch uint64) (EpochTotals, error) {
	var t EpochTotals
	err := s.getGob(bucketTotals, epochKey(epoch), &t)
	return t, err
}

// PutTotals stores the epoch-wide aggregates for epoch.
func (s *BoltStore) PutTotals(epoch uint64, t EpochTotals) error {
	return s.putGob(bucketTotals, epochKey(epoch), &t)
}

// Reward returns the (epoch, target) activity checkpoint.
func (s *BoltStore) Reward(epoch uint64, target Address) (RewardRecord, error) {
	var r RewardRecord
	err := s.getGob(bucketRewards, compositeKey(epoch, target), &r)
	return r, err
}

// PutReward stores the (epoch, target) activity checkpoint.
func (s *BoltStore) PutReward(epoch uint64, target Address, r RewardRecord) error {
	return s.putGob(bucketRewards, compositeKey(epoch, target), &r)
}

// Matcher returns the (epoch, matcher) escrow record.
func (s *BoltStore) Matcher(epoch uint64, matcher Address) (MatcherRecord, error) {
	var m MatcherRecord
	err := s.getGob(bucketMatchers, compositeKey(epoch, matcher), &m)
	return m, err
}

// PutMatcher stores the (epoch, matcher) escrow record.
func (s *BoltStore) PutMatcher(epoch uint64, matcher Address, m MatcherRecord) error {
	return s.putGob(bucketMatchers, compositeKey(epoch, matcher), &m)
}

// DeleteMatcher clears the (epoch, matcher) escrow record entirely.
func (s *BoltStore) DeleteMatcher(epoch uint64, matcher Address) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return txDeleteMatcher(tx, epoch, matcher)
	})
}

func txDeleteMatcher(tx *bbolt.Tx, epoch uint64, matcher Address) error {
	if err := tx.Bucket(bucketMatchers).Delete(compositeKey(epoch, matcher)); err != nil {
		return fmt.Errorf("boltstore: delete matcher: %w", err)
	}
	return nil
}

// MatchReward returns the (epoch, matcher, target) settlement record.
func (s *BoltStore) MatchReward(epoch uint64, matcher, target Address) (MatchRewardRecord, error) {
	var r MatchRewardRecord
	err := s.getGob(bucketMatchRewards, compositeKey(epoch, matcher, target), &r)
	return r, err
}

// PutMatchReward stores the (epoch, matcher, target) settlement record.
func (s *BoltStore) PutMatchReward(epoch uint64, matcher, target Address, r MatchRewardRecord) error {
	return s.putGob(bucketMatchRewards, compositeKey(epoch, matcher, target), &r)
}

// HasVoted reports whether voter already voted in epoch.
func (s *BoltStore) HasVoted(epoch uint64, voter Address) (bool, error) {
	var voted bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		voted = tx.Bucket(bucketVoted).Get(compositeKey(epoch, voter)) != nil
		return nil
	})
	return voted, err
}

// SetVoted marks voter as having voted in epoch.
func (s *BoltStore) SetVoted(epoch uint64, voter Address) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return txSetVoted(tx, epoch, voter)
	})
}

func txSetVoted(tx *bbolt.Tx, epoch uint64, voter Address) error {
	if err := tx.Bucket(bucketVoted).Put(compositeKey(epoch, voter), []byte{1}); err != nil {
		return fmt.Errorf("boltstore: set voted: %w", err)
	}
	return nil
}

// NonBaseIncentive returns the raw non-base amount for the key.
func (s *BoltStore) NonBaseIncentive(epoch uint64, currency, target Address) (uint64, error) {
	var amt uint64
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketNonBase).Get(compositeKey(epoch, currency, target))
		if data != nil {
			amt = binary.BigEndian.Uint64(data)
		}
		return nil
	})
	return amt, err
}

// PutNonBaseIncentive stores the raw non-base amount for the key.
func (s *BoltStore) PutNonBaseIncentive(epoch uint64, currency, target Address, amt uint64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return txPutNonBaseIncentive(tx, epoch, currency, target, amt)
	})
}

func txPutNonBaseIncentive(tx *bbolt.Tx, epoch uint64, currency, target Address, amt uint64) error {
	val := make([]byte, 8)
	binary.BigEndian.PutUint64(val, amt)
	if err := tx.Bucket(bucketNonBase).Put(compositeKey(epoch, currency, target), val); err != nil {
		return fmt.Errorf("boltstore: put non-base incentive: %w", err)
	}
	return nil
}

// Targets returns epoch's active-target list in insertion order.
func (s *BoltStore) Targets(epoch uint64) ([]Address, error) {
	return s.addressList(bucketTargetLists, epoch)
}

// AppendTarget appends target to epoch's active-target list.
func (s *BoltStore) AppendTarget(epoch uint64, target Address) error {
	return s.appendAddress(bucketTargetLists, epoch, target)
}

// Matchers returns epoch's matcher list in insertion order.
func (s *BoltStore) Matchers(epoch uint64) ([]Address, error) {
	return s.addressList(bucketMatcherLists, epoch)
}

// AppendMatcher appends matcher to epoch's matcher list.
func (s *BoltStore) AppendMatcher(epoch uint64, matcher Address) error {
	return s.appendAddress(bucketMatcherLists, epoch, matcher)
}

// addressList reads an epoch's address list from bucket. The list is
// stored as a flat concatenation of 20-byte addresses.
func (s *BoltStore) addressList(bucket []byte, epoch uint64) ([]Address, error) {
	var out []Address
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucket).Get(epochKey(epoch))
		if len(data)%20 != 0 {
			return fmt.Errorf("boltstore: corrupt address list (%d bytes)", len(data))
		}
		out = make([]Address, len(data)/20)
		for i := range out {
			copy(out[i][:], data[i*20:(i+1)*20])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// appendAddress appends one address to an epoch's flat address list.
func (s *BoltStore) appendAddress(bucket []byte, epoch uint64, addr Address) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return txAppendAddress(tx, bucket, epoch, addr)
	})
}

func txAppendAddress(tx *bbolt.Tx, bucket []byte, epoch uint64, addr Address) error {
	b := tx.Bucket(bucket)
	key := epochKey(epoch)
	old := b.Get(key)
	list := make([]byte, 0, len(old)+20)
	list = append(list, old...)
	list = append(list, addr[:]...)
	if err := b.Put(key, list); err != nil {
		return fmt.Errorf("boltstore: append address: %w", err)
	}
	return nil
}

// AppendEvent appends ev to the audit log, keyed by a monotonic
// sequence number so a cursor walks events in commit order.
func (s *BoltStore) AppendEvent(ev Event) (uint64, error) {
	var seq uint64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		var err error
		seq, err = txAppendEvent(tx, ev)
		return err
	})
	return seq, err
}

func txAppendEvent(tx *bbolt.Tx, ev Event) (uint64, error) {
	b := tx.Bucket(bucketEvents)
	seq, err := b.NextSequence()
	if err != nil {
		return 0, fmt.Errorf("boltstore: event sequence: %w", err)
	}
	ev.Seq = seq
	data, err := encodeGob(&ev)
	if err != nil {
		return 0, fmt.Errorf("boltstore: encode event: %w", err)
	}
	if err := b.Put(epochKey(seq), data); err != nil {
		return 0, fmt.Errorf("boltstore: put event: %w", err)
	}
	return seq, nil
}

// Update runs fn inside one bolt write transaction: every write fn
// makes commits atomically, and an error from fn rolls the whole
// transaction back (including consumed event sequence numbers).
func (s *BoltStore) Update(fn func(w StoreWriter) error) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return fn(&boltWriter{tx: tx})
	})
}

// boltWriter applies batch writes inside one bolt transaction.
type boltWriter struct {
	tx *bbolt.Tx
}

// Compile-time interface check.
var _ StoreWriter = (*boltWriter)(nil)

func (w *boltWriter) PutTotals(epoch uint64, t EpochTotals) error {
	return txPutGob(w.tx, bucketTotals, epochKey(epoch), &t)
}

func (w *boltWriter) PutReward(epoch uint64, target Address, r RewardRecord) error {
	return txPutGob(w.tx, bucketRewards, compositeKey(epoch, target), &r)
}

func (w *boltWriter) PutMatcher(epoch uint64, matcher Address, m MatcherRecord) error {
	return txPutGob(w.tx, bucketMatchers, compositeKey(epoch, matcher), &m)
}

func (w *boltWriter) DeleteMatcher(epoch uint64, matcher Address) error {
	return txDeleteMatcher(w.tx, epoch, matcher)
}

func (w *boltWriter) PutMatchReward(epoch uint64, matcher, target Address, r MatchRewardRecord) error {
	return txPutGob(w.tx, bucketMatchRewards, compositeKey(epoch, matcher, target), &r)
}

func (w *boltWriter) SetVoted(epoch uint64, voter Address) error {
	return txSetVoted(w.tx, epoch, voter)
}

func (w *boltWriter) PutNonBaseIncentive(epoch uint64, currency, target Address, amt uint64) error {
	return txPutNonBaseIncentive(w.tx, epoch, currency, target, amt)
}

func (w *boltWriter) AppendTarget(epoch uint64, target Address) error {
	return txAppendAddress(w.tx, bucketTargetLists, epoch, target)
}

func (w *boltWriter) AppendMatcher(epoch uint64, matcher Address) error {
	return txAppendAddress(w.tx, bucketMatcherLists, epoch, matcher)
}

func (w *boltWriter) AppendEvent(ev Event) (uint64, error) {
	return txAppendEvent(w.tx, ev)
}

// Events returns all audit events recorded for epoch in sequence order.
func (s *BoltStore) Events(epoch uint64) ([]Event, error) {
	var out []Event
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketEvents).ForEach(func(k, v []byte) error {
			var ev Event
			if err := decodeGob(v, &ev); err != nil {
				return fmt.Errorf("boltstore: decode event: %w", err)
			}
			if ev.Epoch == epoch {
				out = append(out, ev)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
