package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
)

// Backend 快照的字节级存取
type Backend interface {
	// Load 不存在时返回 (nil, false, nil)
	Load(key string) ([]byte, bool, error)
	Save(key string, data []byte) error
	Close() error
}

// FileBackend 每个快照一个 <dir>/<key>.json 文件，写入先落临时文件再 rename
type FileBackend struct {
	dir string
}

func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("创建快照目录失败: %w", err)
	}
	return &FileBackend{dir: dir}, nil
}

func fileName(key string) string { return strings.ReplaceAll(key, "/", "_") }

func (b *FileBackend) path(key string) string {
	return filepath.Join(b.dir, fileName(key)+".json")
}

func (b *FileBackend) Load(key string) ([]byte, bool, error) {
	data, err := os.ReadFile(b.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (b *FileBackend) Save(key string, data []byte) error {
	tmp, err := os.CreateTemp(b.dir, fileName(key)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), b.path(key))
}

func (b *FileBackend) Close() error { return nil }

// BadgerBackend 快照存入 badger，key 加 checkpoint: 前缀
type BadgerBackend struct {
	db *badger.DB
}

// OpenBadger 打开 <dir> 下的 badger 库
func OpenBadger(dir string) (*BadgerBackend, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("打开badger失败: %w", err)
	}
	return &BadgerBackend{db: db}, nil
}

// NewBadgerBackend 使用已打开的 badger 实例
func NewBadgerBackend(db *badger.DB) *BadgerBackend {
	return &BadgerBackend{db: db}
}

func badgerKey(key string) []byte { return []byte("checkpoint:" + key) }

func (b *BadgerBackend) Load(key string) ([]byte, bool, error) {
	tx := b.db.NewTransaction(false)
	defer tx.Discard()
	item, err := tx.Get(badgerKey(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	data, err := item.ValueCopy(nil)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (b *BadgerBackend) Save(key string, data []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(key), data)
	})
}

func (b *BadgerBackend) Close() error { return b.db.Close() }

// Store 所有快照读写的唯一入口：加载失败一律按空处理
type Store struct {
	backend Backend
	logger  *logrus.Logger
}

func NewStore(backend Backend, logger *logrus.Logger) *Store {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Store{backend: backend, logger: logger}
}

// Open 按配置选择后端：file 或 badger
func Open(kind, dir string, logger *logrus.Logger) (*Store, error) {
	switch kind {
	case "", "file":
		b, err := NewFileBackend(dir)
		if err != nil {
			return nil, err
		}
		return NewStore(b, logger), nil
	case "badger":
		b, err := OpenBadger(filepath.Join(dir, "checkpoints.badger"))
		if err != nil {
			return nil, err
		}
		return NewStore(b, logger), nil
	}
	return nil, fmt.Errorf("未知的快照后端: %s", kind)
}

func (s *Store) Close() error { return s.backend.Close() }

func (s *Store) load(key string, want Kind) (snapshot, bool) {
	log := s.logger.WithFields(logrus.Fields{"checkpoint": key, "kind": want})
	data, ok, err := s.backend.Load(key)
	if err != nil {
		log.WithError(err).Warn("读取进度快照失败，按空快照处理")
		return snapshot{}, false
	}
	if !ok || len(data) == 0 {
		log.Info("进度快照不存在，从头开始")
		return snapshot{}, false
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.WithError(err).Warn("进度快照已损坏，按空快照处理")
		return snapshot{}, false
	}
	if snap.Kind != want {
		log.WithField("found", snap.Kind).Warn("进度快照类型不符，按空快照处理")
		return snapshot{}, false
	}
	return snap, true
}

// LoadIDSet 加载id集合；不存在、损坏或类型不符时返回空集合
func (s *Store) LoadIDSet(key string) *IDSet {
	snap, ok := s.load(key, KindIDSet)
	if !ok {
		return NewIDSet()
	}
	set := NewIDSet(snap.IDs...)
	s.logger.WithFields(logrus.Fields{"checkpoint": key, "size": set.Len()}).Info("进度快照加载完成")
	return set
}

// LoadURLMap 加载 id → url 映射；不存在、损坏或类型不符时返回空映射
func (s *Store) LoadURLMap(key string) *URLMap {
	snap, ok := s.load(key, KindURLMap)
	m := NewURLMap()
	if !ok {
		return m
	}
	for id, u := range snap.URLs {
		m.Set(id, u)
	}
	s.logger.WithFields(logrus.Fields{"checkpoint": key, "size": m.Len()}).Info("进度快照加载完成")
	return m
}

func (s *Store) save(key string, snap snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if err := s.backend.Save(key, data); err != nil {
		return fmt.Errorf("保存进度快照%s失败: %w", key, err)
	}
	return nil
}

func (s *Store) SaveIDSet(key string, set *IDSet) error {
	return s.save(key, snapshot{Kind: KindIDSet, IDs: set.Slice()})
}

func (s *Store) SaveURLMap(key string, m *URLMap) error {
	return s.save(key, snapshot{Kind: KindURLMap, URLs: m.Copy()})
}
