package core

import "context"

// InteractionStore 是训练数据源的领域接口（只读视图）。
//
// 设计原则：
//   - 定义在领域层（core），由基础设施层（store）实现
//   - 只在重训时被调用，读请求从不访问它
//   - 返回的数据是一次完整枚举，重训在其上离线构建新快照
//
// 实现：
//   - store.MemoryInteractionStore（测试/开发）
//   - store.FileInteractionStore（YAML 数据文件）
//   - store.PostgresInteractionStore（pgx）
type InteractionStore interface {
	// Name 返回存储后端名称（用于日志/监控）
	Name() string

	// ListItems 枚举物品目录
	ListItems(ctx context.Context) ([]CatalogItem, error)

	// ListUsers 枚举用户画像
	ListUsers(ctx context.Context) ([]UserProfile, error)

	// ListInteractions 枚举全部交互记录
	ListInteractions(ctx context.Context) ([]Interaction, error)
}

// InteractionRecorder 是可写的交互日志。
// 如果 InteractionStore 同时实现了它，RecordInteraction 会把交互持久化到存储中，
// 否则交互只保留在进程内的实时日志里，并在重训时并入训练数据。
type InteractionRecorder interface {
	AppendInteraction(ctx context.Context, it Interaction) error
}
