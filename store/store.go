// Package store 提供 core 包中存储接口的实现。
//
// 缓存（core.Store）：
//   - MemoryStore：进程内，go-cache
//   - RedisStore：多实例共享
//
// 交互数据源（core.InteractionStore）：
//   - MemoryInteractionStore：内存，可写（core.InteractionRecorder）
//   - FileInteractionStore：YAML 文件，只读
//   - PostgresInteractionStore：PostgreSQL，可写
//
// InteractionLog 是快照之后写入的实时交互日志，读路径与重训共用。
package store
