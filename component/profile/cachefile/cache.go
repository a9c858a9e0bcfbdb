package cachefile

import (
	"os"
	"time"

	"github.com/Dreamacro/clash-dashboard/component/profile"
	"github.com/Dreamacro/clash-dashboard/log"

	"go.etcd.io/bbolt"
)

var (
	fileMode os.FileMode = 0666

	bucketRules   = []byte("rules")
	keyFilterText = []byte("filter-text")
)

// CacheFile store and update the cache file
type CacheFile struct {
	DB *bbolt.DB
}

func (c *CacheFile) SetFilterText(text string) {
	if !profile.StoreFilterText.Load() {
		return
	} else if c.DB == nil {
		return
	}

	err := c.DB.Batch(func(t *bbolt.Tx) error {
		bucket, err := t.CreateBucketIfNotExists(bucketRules)
		if err != nil {
			return err
		}
		return bucket.Put(keyFilterText, []byte(text))
	})
	if err != nil {
		log.Warnln("[CacheFile] write cache to %s failed: %s", c.DB.Path(), err.Error())
	}
}

func (c *CacheFile) FilterText() string {
	if !profile.StoreFilterText.Load() || c.DB == nil {
		return ""
	}

	text := ""
	_ = c.DB.View(func(t *bbolt.Tx) error {
		if bucket := t.Bucket(bucketRules); bucket != nil {
			text = string(bucket.Get(keyFilterText))
		}
		return nil
	})
	return text
}

func (c *CacheFile) Close() error {
	if c.DB == nil {
		return nil
	}
	return c.DB.Close()
}

// Open never fails: an unusable cache file degrades to a CacheFile without DB
func Open(path string) *CacheFile {
	options := bbolt.Options{Timeout: time.Second}
	db, err := bbolt.Open(path, fileMode, &options)
	switch err {
	case bbolt.ErrInvalid, bbolt.ErrChecksum, bbolt.ErrVersionMismatch:
		if err = os.Remove(path); err != nil {
			log.Warnln("[CacheFile] remove invalid cache file error: %s", err.Error())
			break
		}
		log.Infoln("[CacheFile] remove invalid cache file and create new one")
		db, err = bbolt.Open(path, fileMode, &options)
	}
	if err != nil {
		log.Warnln("[CacheFile] can't open cache file: %s", err.Error())
		db = nil
	}

	return &CacheFile{DB: db}
}
