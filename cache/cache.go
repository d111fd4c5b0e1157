// Package cache keeps an index of compiled model executables in a bolt
// database, keyed by model and backend version.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/op/go-logging"

	bolt "go.etcd.io/bbolt"
)

var log = logging.MustGetLogger("cache")

// MODELS is the bucket holding all entries.
var MODELS = []byte("models")

// Entry describes a compiled model.
type Entry struct {
	// SourceHash is the SHA-256 of the model source the executable
	// was built from.
	SourceHash string    `json:"sourceHash"`
	Executable string    `json:"executable"`
	Created    time.Time `json:"created"`
}

// Cache is a compiled model index.
type Cache struct {
	db *bolt.DB
}

// OpenTimeout is how long Open waits for a lock held by another
// process.
var OpenTimeout = time.Second

// ErrLocked is returned by Open when another process holds the index.
var ErrLocked = errors.New("cache is locked by another process")

// Open opens (or creates) the index at path. An unreadable index is
// moved to path.corrupt and replaced by an empty one. If another
// process holds the index, Open gives up after OpenTimeout and returns
// ErrLocked.
func Open(path string) (*Cache, error) {
	db, err := openDB(path)
	if err == nil {
		return &Cache{db: db}, nil
	}
	if errors.Is(err, ErrLocked) {
		return nil, err
	}
	if _, serr := os.Stat(path); serr != nil {
		return nil, err
	}

	aside := path + ".corrupt"
	log.Noticef("Cannot read model cache %s (%v), moving it to %s", path, err, aside)
	if err := os.Rename(path, aside); err != nil {
		return nil, err
	}
	db, err = openDB(path)
	if err != nil {
		return nil, err
	}
	return &Cache{db: db}, nil
}

func openDB(path string) (*bolt.DB, error) {
	db, err := bolt.Open(path, 0666, &bolt.Options{Timeout: OpenTimeout})
	if errors.Is(err, bolt.ErrTimeout) {
		return nil, fmt.Errorf("%s: %w", path, ErrLocked)
	}
	return db, err
}

// Close closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Key returns the entry key of a model compiled with a backend
// version.
func Key(model, version string) []byte {
	return []byte(model + "-" + version)
}

// HashFile returns the hex SHA-256 of a file.
func HashFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// Lookup returns the entry for key if it was built from a source with
// the given hash and the executable still exists. Stale or unreadable
// entries are removed and reported as a miss.
func (c *Cache) Lookup(key []byte, sourceHash string) (*Entry, error) {
	b, err := LoadData(c.db, key)
	if err != nil || b == nil {
		return nil, err
	}

	var e Entry
	reason := ""
	if err := json.Unmarshal(b, &e); err != nil {
		reason = err.Error()
	} else if e.SourceHash != sourceHash {
		reason = "model source changed"
	} else if _, err := os.Stat(e.Executable); err != nil {
		reason = err.Error()
	}
	if reason != "" {
		log.Noticef("Invalid cached model %s (%s), removing it", key, reason)
		return nil, DeleteData(c.db, key)
	}

	log.Noticef("Using cached model: %s", e.Executable)
	return &e, nil
}

// Save stores an entry.
func (c *Cache) Save(key []byte, e *Entry) error {
	b, err := json.Marshal(e)
	if err != nil {
		log.Error("Error serializing cache entry", err)
		return err
	}
	err = SaveData(c.db, key, b)
	if err != nil {
		log.Error("Error saving cache entry", err)
	}
	return err
}

// SaveData saves values in bolt database.
func SaveData(db *bolt.DB, key []byte, data []byte) error {
	if db == nil {
		return nil
	}
	return db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(MODELS)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}

// LoadData loads data from bolt database.
func LoadData(db *bolt.DB, key []byte) ([]byte, error) {
	var data []byte
	if db == nil {
		return nil, nil
	}
	err := db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(MODELS)
		if b == nil {
			return nil
		}
		if v := b.Get(key); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// DeleteData removes a key from bolt database.
func DeleteData(db *bolt.DB, key []byte) error {
	if db == nil {
		return nil
	}
	return db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(MODELS)
		if b == nil {
			return nil
		}
		return b.Delete(key)
	})
}
