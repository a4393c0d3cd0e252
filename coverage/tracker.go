// Package coverage extracts beacon line numbers from per-call debug output,
// maintains the run-wide monotonic coverage set, persists it to a
// crash-safe bbolt store, and bridges it into the host process's own
// coverage instrumentation.
package coverage

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
	"golang.org/x/exp/maps"
)

// beaconPattern matches the coverage beacon literal emitted by instrumented
// source: `COV=<n>`.
var beaconPattern = regexp.MustCompile(`COV=(\d+)`)

var bucketName = []byte("coverage")

// ExtractBeacons parses a debug buffer for every `COV={n}` occurrence and
// returns the set of line numbers that fired.
func ExtractBeacons(debug []byte) map[int]struct{} {
	matches := beaconPattern.FindAllSubmatch(debug, -1)
	lines := make(map[int]struct{}, len(matches))
	for _, m := range matches {
		n, err := strconv.Atoi(string(m[1]))
		if err != nil {
			continue
		}
		lines[n] = struct{}{}
	}
	return lines
}

// StripBeacons removes every `COV=…` substring from a debug buffer, for
// human-readable trace rendering.
func StripBeacons(buf []byte) []byte {
	return beaconPattern.ReplaceAll(buf, nil)
}

// Tracker is the in-memory, run-wide coverage set, backed by an append-only
// bbolt store. It only ever grows: Merge never removes a previously seen
// line.
type Tracker struct {
	lines map[int]struct{}
	db    *bolt.DB
}

// Open creates or reopens the bbolt-backed coverage store at path and loads
// any previously persisted lines into memory.
func Open(path string) (*Tracker, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open coverage store at %q", path)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "unable to initialize coverage bucket")
	}

	t := &Tracker{lines: make(map[int]struct{}), db: db}
	if err := t.load(); err != nil {
		db.Close()
		return nil, err
	}
	return t, nil
}

func (t *Tracker) load() error {
	return t.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		return bucket.ForEach(func(k, _ []byte) error {
			n, err := strconv.Atoi(string(k))
			if err != nil {
				return nil
			}
			t.lines[n] = struct{}{}
			return nil
		})
	})
}

// Close releases the underlying bbolt store.
func (t *Tracker) Close() error {
	return t.db.Close()
}

// Lines returns the current run-wide coverage set's line numbers.
func (t *Tracker) Lines() []int {
	return maps.Keys(t.lines)
}

// Merge folds newLines into the run-wide set and persists any newly seen
// lines. Never removes keys, so the store stays append-only.
func (t *Tracker) Merge(newLines map[int]struct{}) error {
	fresh := make(map[int]struct{})
	for n := range newLines {
		if _, seen := t.lines[n]; !seen {
			fresh[n] = struct{}{}
			t.lines[n] = struct{}{}
		}
	}

	if len(fresh) == 0 {
		return nil
	}

	return t.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		for n := range fresh {
			key := []byte(strconv.Itoa(n))
			if err := bucket.Put(key, []byte(fmt.Sprintf("%d", time.Now().Unix()))); err != nil {
				return err
			}
		}
		return nil
	})
}
