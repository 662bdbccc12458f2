package store

import (
	"sync"

	"github.com/rushteam/hybridrec/core"
)

// LogEntry 是实时日志中的一条交互及其序号。
// Recorded 是写入时的原始记录（评分保留），Interaction 是折算权重后的形式。
type LogEntry struct {
	Seq         uint64
	Recorded    core.Interaction
	Interaction core.Interaction
}

// InteractionLog 是快照之后写入的交互（实时尾部）。
//
// 序号从 1 开始单调递增；重训记录构建时的序号。新快照发布后只丢弃
// 上一个快照已并入的部分，仍持有上一个快照的读请求可以继续读到它之后的交互。
type InteractionLog struct {
	mu      sync.RWMutex
	entries []LogEntry
	seq     uint64
	userSeq map[string]uint64

	// maxEntries > 0 时超出部分从最旧开始丢弃
	maxEntries int
	dropped    uint64
}

// NewInteractionLog 创建实时日志，maxEntries <= 0 表示不限。
func NewInteractionLog(maxEntries int) *InteractionLog {
	return &InteractionLog{
		userSeq:    make(map[string]uint64),
		maxEntries: maxEntries,
	}
}

// Append 追加一条交互并返回其序号。recorded 是原始记录，effective 是读路径使用的折算形式。
func (l *InteractionLog) Append(recorded, effective core.Interaction) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	l.entries = append(l.entries, LogEntry{Seq: l.seq, Recorded: recorded, Interaction: effective})
	l.userSeq[effective.UserID] = l.seq
	if l.maxEntries > 0 && len(l.entries) > l.maxEntries {
		n := len(l.entries) - l.maxEntries
		l.dropped += uint64(n)
		l.entries = append([]LogEntry(nil), l.entries[n:]...)
	}
	return l.seq
}

// LastSeq 返回最新序号，空日志为 0。
func (l *InteractionLog) LastSeq() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.seq
}

// UserSeq 返回用户最近一次交互的序号，没有时为 0。
func (l *InteractionLog) UserSeq(userID string) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.userSeq[userID]
}

// Since 返回序号大于 seq 的交互。
func (l *InteractionLog) Since(seq uint64) []core.Interaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []core.Interaction
	for _, e := range l.entries {
		if e.Seq > seq {
			out = append(out, e.Interaction)
		}
	}
	return out
}

// SinceForUser 返回用户序号大于 seq 的交互。
func (l *InteractionLog) SinceForUser(userID string, seq uint64) []core.Interaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.userSeq[userID] <= seq {
		return nil
	}
	var out []core.Interaction
	for _, e := range l.entries {
		if e.Seq > seq && e.Interaction.UserID == userID {
			out = append(out, e.Interaction)
		}
	}
	return out
}

// Between 返回序号在 (after, through] 之间的原始记录，供重训并入训练数据。
func (l *InteractionLog) Between(after, through uint64) []core.Interaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []core.Interaction
	for _, e := range l.entries {
		if e.Seq > through {
			break
		}
		if e.Seq > after {
			out = append(out, e.Recorded)
		}
	}
	return out
}

// TrimThrough 丢弃序号不大于 seq 的交互，UserSeq 保留。
func (l *InteractionLog) TrimThrough(seq uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := 0
	for k < len(l.entries) && l.entries[k].Seq <= seq {
		k++
	}
	if k > 0 {
		l.entries = append([]LogEntry(nil), l.entries[k:]...)
	}
}

// Len 返回日志中的交互数。
func (l *InteractionLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Dropped 返回因超出 maxEntries 被丢弃的交互数。
func (l *InteractionLog) Dropped() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.dropped
}
