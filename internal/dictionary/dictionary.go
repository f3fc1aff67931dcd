// Package dictionary is the word list every submitted word is checked against.
package dictionary

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const bucket = "words"

// importBatch is the number of words written per bolt transaction.
const importBatch = 1000

// BoltDictionary keeps the word list in a bolt bucket and memoises lookups
// in an ARC cache.
type BoltDictionary struct {
	db    *bolt.DB
	cache *lru.ARCCache
	log   logrus.FieldLogger
}

// Open opens (or creates) the dictionary file at path.
func Open(path string, cacheSize int, log logrus.FieldLogger) (*BoltDictionary, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open dictionary %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("create words bucket: %w", err)
	}

	c, err := lru.NewARC(cacheSize)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("lru new instance of lru arc cache: %w", err)
	}
	return &BoltDictionary{db: db, cache: c, log: log}, nil
}

func (d *BoltDictionary) Close() error {
	if err := d.db.Close(); err != nil {
		return fmt.Errorf("error close dictionary: %w", err)
	}
	return nil
}

// Normalize lower-cases word and reports whether it only has letters a-z.
func Normalize(word string) (string, bool) {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return "", false
	}
	for _, c := range word {
		if c < 'a' || c > 'z' {
			return word, false
		}
	}
	return word, true
}

// Contains looks word up, reporting storage errors.
func (d *BoltDictionary) Contains(word string) (bool, error) {
	word, ok := Normalize(word)
	if !ok {
		return false, nil
	}
	if v, ok := d.cache.Get(word); ok {
		return v.(bool), nil
	}

	var found bool
	if err := d.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		found = b.Get([]byte(word)) != nil
		return nil
	}); err != nil {
		return false, fmt.Errorf("lookup %q: %w", word, err)
	}
	d.cache.Add(word, found)
	return found, nil
}

// IsValidWord reports whether word is in the dictionary. Lookup failures
// count as invalid.
func (d *BoltDictionary) IsValidWord(word string) bool {
	ok, err := d.Contains(word)
	if err != nil {
		d.log.WithError(err).Warn("dictionary lookup failed")
		return false
	}
	return ok
}

// Import adds every valid line of r as a word and returns how many were read.
func (d *BoltDictionary) Import(ctx context.Context, r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	batch := make([]string, 0, importBatch)
	total := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := d.db.Update(func(tx *bolt.Tx) error {
			b := tx.Bucket([]byte(bucket))
			for _, w := range batch {
				if err := b.Put([]byte(w), []byte{1}); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("store words: %w", err)
		}
		for _, w := range batch {
			d.cache.Remove(w)
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		word, ok := Normalize(scanner.Text())
		if !ok {
			continue
		}
		batch = append(batch, word)
		if len(batch) == importBatch {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return total, fmt.Errorf("read word list: %w", err)
	}
	if err := flush(); err != nil {
		return total, err
	}
	d.log.Infof("imported %d words", total)
	return total, nil
}

// ImportFile imports the newline separated word list at path.
func (d *BoltDictionary) ImportFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open word list: %w", err)
	}
	defer f.Close()
	return d.Import(ctx, f)
}

// Count returns the number of stored words.
func (d *BoltDictionary) Count() (int, error) {
	var n int
	err := d.db.View(func(tx *bolt.Tx) error {
		if b := tx.Bucket([]byte(bucket)); b != nil {
			n = b.Stats().KeyN
		}
		return nil
	})
	return n, err
}
