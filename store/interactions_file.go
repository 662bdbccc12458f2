package store

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/rushteam/hybridrec/core"
)

// Dataset 是 YAML 数据文件的结构。
type Dataset struct {
	Items        []core.CatalogItem `yaml:"items"`
	Users        []core.UserProfile `yaml:"users"`
	Interactions []core.Interaction `yaml:"interactions"`
}

// FileInteractionStore 从 YAML 文件读取训练数据（只读）。
// 每次重训重新读取文件，文件被修改后下一次重训即可生效；
// RecordInteraction 写入的交互只保留在实时日志中并在重训时合并。
type FileInteractionStore struct {
	path string

	mu      sync.Mutex
	modTime int64
	cached  *Dataset
}

func NewFileInteractionStore(path string) *FileInteractionStore {
	return &FileInteractionStore{path: path}
}

func (s *FileInteractionStore) Name() string { return "file" }

func (s *FileInteractionStore) load() (*Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := os.Stat(s.path)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleStore, core.ErrorCodeUnavailable,
			fmt.Sprintf("store: dataset %s unavailable", s.path), err)
	}
	if s.cached != nil && info.ModTime().UnixNano() == s.modTime {
		return s.cached, nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleStore, core.ErrorCodeUnavailable,
			fmt.Sprintf("store: read dataset %s", s.path), err)
	}
	var ds Dataset
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return nil, core.WrapDomainError(core.ModuleStore, core.ErrorCodeInvalidInput,
			fmt.Sprintf("store: parse dataset %s", s.path), err)
	}
	s.cached = &ds
	s.modTime = info.ModTime().UnixNano()
	return s.cached, nil
}

func (s *FileInteractionStore) ListItems(ctx context.Context) ([]core.CatalogItem, error) {
	ds, err := s.load()
	if err != nil {
		return nil, err
	}
	return append([]core.CatalogItem(nil), ds.Items...), nil
}

func (s *FileInteractionStore) ListUsers(ctx context.Context) ([]core.UserProfile, error) {
	ds, err := s.load()
	if err != nil {
		return nil, err
	}
	return append([]core.UserProfile(nil), ds.Users...), nil
}

func (s *FileInteractionStore) ListInteractions(ctx context.Context) ([]core.Interaction, error) {
	ds, err := s.load()
	if err != nil {
		return nil, err
	}
	return append([]core.Interaction(nil), ds.Interactions...), nil
}

var _ core.InteractionStore = (*FileInteractionStore)(nil)
