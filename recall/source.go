package recall

import (
	"context"
	"fmt"

	"github.com/rushteam/hybridrec/core"
	"github.com/rushteam/hybridrec/snapshot"
)

// Source 表示一个可复用的召回源（目录/内容/历史/热度）。
// 可以把它理解为“可并发 fan-out 的策略单元”。
type Source interface {
	Name() string
	Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error)
}

// snapshotFrom 取出请求绑定的快照；召回节点只能在服务读路径中运行。
func snapshotFrom(ctx context.Context) (*snapshot.Snapshot, error) {
	snap, ok := snapshot.FromContext(ctx)
	if !ok {
		return nil, core.NewDomainError(core.ModuleService, core.ErrorCodeUnavailable, "recall: no snapshot bound to request")
	}
	return snap, nil
}

// newCandidate 用目录信息创建候选，类目和标题写入 Meta 供过滤/重排/推荐理由使用。
func newCandidate(snap *snapshot.Snapshot, id string) *core.Item {
	it := core.NewItem(id)
	if ci, ok := snap.Item(id); ok {
		it.Meta["category"] = ci.Category
		it.Meta["title"] = ci.Title
	}
	return it
}

func unknownItem(id string) error {
	return core.NewDomainError(core.ModuleService, core.ErrorCodeNotFound, fmt.Sprintf("recall: item %s not found", id))
}
