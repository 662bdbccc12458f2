package filter

import (
	"context"

	"github.com/rushteam/hybridrec/core"
)

// BlocklistFilter 是屏蔽列表过滤器，过滤掉运营下线或用户屏蔽的物品。
//   - ItemIDs：配置中的静态屏蔽列表
//   - Store + Key：全局屏蔽列表（运行时可更新）
//   - Store + UserKeyPrefix：用户屏蔽列表，实际 key 为 {UserKeyPrefix}:{UserID}
type BlocklistFilter struct {
	ItemIDs []string

	Store         BlocklistStore
	Key           string
	UserKeyPrefix string

	ids map[string]struct{}
}

// BlocklistStore 是屏蔽列表存储接口。
type BlocklistStore interface {
	// GetBlocklist 获取屏蔽物品 ID 列表，key 不存在时返回空列表
	GetBlocklist(ctx context.Context, key string) ([]string, error)
}

// NewBlocklistFilter 创建一个屏蔽列表过滤器。
func NewBlocklistFilter(itemIDs []string, store BlocklistStore, key string) *BlocklistFilter {
	f := &BlocklistFilter{
		ItemIDs: itemIDs,
		Store:   store,
		Key:     key,
	}
	f.ids = make(map[string]struct{}, len(itemIDs))
	for _, id := range itemIDs {
		f.ids[id] = struct{}{}
	}
	return f
}

func (f *BlocklistFilter) Name() string {
	return "filter.blocklist"
}

func (f *BlocklistFilter) ShouldFilter(
	ctx context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if item == nil {
		return true, nil
	}

	if f.ids != nil {
		if _, ok := f.ids[item.ID]; ok {
			return true, nil
		}
	} else {
		for _, id := range f.ItemIDs {
			if item.ID == id {
				return true, nil
			}
		}
	}

	if f.Store == nil {
		return false, nil
	}
	if f.Key != "" {
		hit, err := f.inStore(ctx, f.Key, item.ID)
		if err != nil || hit {
			return hit, err
		}
	}
	if f.UserKeyPrefix != "" && rctx != nil && rctx.UserID != "" {
		return f.inStore(ctx, f.UserKeyPrefix+":"+rctx.UserID, item.ID)
	}
	return false, nil
}

func (f *BlocklistFilter) inStore(ctx context.Context, key, itemID string) (bool, error) {
	ids, err := f.Store.GetBlocklist(ctx, key)
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		if id == itemID {
			return true, nil
		}
	}
	return false, nil
}
