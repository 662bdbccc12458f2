package service

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strconv"
	"time"

	"github.com/rushteam/hybridrec/core"
	"github.com/rushteam/hybridrec/logging"
	"github.com/rushteam/hybridrec/metrics"
	"github.com/rushteam/hybridrec/pkg/utils"
	"github.com/rushteam/hybridrec/snapshot"
)

// 推荐理由
const (
	reasonHybrid   = "Based on your preferences and similar users' behavior"
	reasonTrending = "Currently trending"
)

// request 是一次读操作的参数。
type request struct {
	op       string
	subject  string
	userID   string
	itemID   string
	category string
	limit    int
}

// GetRecommendations 返回用户的个性化推荐，排除用户交互过的物品（含快照之后的实时交互）。
// 未知用户走冷启动路径。
func (s *Service) GetRecommendations(ctx context.Context, userID string, limit int) ([]core.Recommendation, error) {
	if userID == "" {
		return nil, invalidInput(OpRecommendations, "user_id is required")
	}
	return s.serve(ctx, request{op: OpRecommendations, subject: userID, userID: userID, limit: limit})
}

// GetSimilarItems 返回与物品内容相似的物品，不含物品自身；物品不存在时返回 NOT_FOUND。
func (s *Service) GetSimilarItems(ctx context.Context, itemID string, limit int) ([]core.Recommendation, error) {
	if itemID == "" {
		return nil, invalidInput(OpSimilar, "item_id is required")
	}
	return s.serve(ctx, request{op: OpSimilar, subject: itemID, itemID: itemID, limit: limit})
}

// GetTrendingItems 返回全局热门物品。
func (s *Service) GetTrendingItems(ctx context.Context, limit int) ([]core.Recommendation, error) {
	return s.serve(ctx, request{op: OpTrending, subject: "global", limit: limit})
}

// GetCategoryRecommendations 在类目内为用户做个性化推荐。
func (s *Service) GetCategoryRecommendations(ctx context.Context, category, userID string, limit int) ([]core.Recommendation, error) {
	if category == "" {
		return nil, invalidInput(OpCategory, "category is required")
	}
	if userID == "" {
		return nil, invalidInput(OpCategory, "user_id is required")
	}
	return s.serve(ctx, request{
		op:       OpCategory,
		subject:  userID + "/" + category,
		userID:   userID,
		category: category,
		limit:    limit,
	})
}

func invalidInput(op, msg string) error {
	return core.NewDomainError(core.ModuleService, core.ErrorCodeInvalidInput, op+": "+msg)
}

// serve 是四个读操作共用的缓存旁路流程：
// 校验 → 加载快照 → 读缓存 → 未命中时合并并发计算 → 写回缓存。
func (s *Service) serve(ctx context.Context, req request) (out []core.Recommendation, err error) {
	start := time.Now()
	defer func() { metrics.ObserveRequest(req.op, start, err) }()

	if req.limit < 1 || req.limit > MaxLimit {
		return nil, invalidInput(req.op, fmt.Sprintf("limit must be within [1,%d], got %d", MaxLimit, req.limit))
	}
	snap := s.holder.Load()
	if snap == nil {
		return nil, core.NewDomainError(core.ModuleService, core.ErrorCodeUnavailable, req.op+": no snapshot available yet")
	}
	if req.op == OpSimilar {
		if _, ok := snap.Item(req.itemID); !ok {
			return nil, core.NewDomainError(core.ModuleService, core.ErrorCodeNotFound, "similar: unknown item "+req.itemID)
		}
	}

	key := s.cacheKey(req.op, req.subject, req.limit)
	var seq uint64
	if req.userID != "" {
		seq = s.log.UserSeq(req.userID)
	}
	if e, ok := s.cacheGet(ctx, req.op, key); ok {
		if e.Version == snap.Version && e.Seq >= seq {
			metrics.CacheResults.WithLabelValues(req.op, "hit").Inc()
			return e.Items, nil
		}
		metrics.CacheResults.WithLabelValues(req.op, "stale").Inc()
	}

	// 同一 key、同一快照、同一序号的并发未命中只计算一次，计算不随单个调用方取消
	flight := key + "@" + strconv.FormatInt(snap.Version, 10) + "@" + strconv.FormatUint(seq, 10)
	v, err, _ := s.group.Do(flight, func() (any, error) {
		bg := context.WithoutCancel(ctx)
		recs, err := s.compute(bg, snap, req)
		if err != nil {
			return nil, err
		}
		s.cacheSet(bg, req.op, key, cacheEntry{Version: snap.Version, Seq: seq, Items: recs})
		return recs, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]core.Recommendation)), nil
}

// compute 在单个快照上运行操作对应的 pipeline。
func (s *Service) compute(ctx context.Context, snap *snapshot.Snapshot, req request) ([]core.Recommendation, error) {
	rctx := &core.RecommendContext{
		UserID:   req.userID,
		ItemID:   req.itemID,
		Category: req.category,
		Scene:    req.op,
		Limit:    req.limit,
		Now:      s.opts.Now(),
		Params:   map[string]any{},
	}
	if req.userID != "" {
		history := snap.UserHistory(req.userID)
		for _, it := range s.log.SinceForUser(req.userID, snap.TailSeq) {
			history[it.ItemID] += it.Weight
		}
		rctx.History = history
		rctx.User = snap.Profile(req.userID)
	}
	if req.op == OpTrending {
		rctx.Recent = s.log.Since(snap.TailSeq)
	}

	logger := s.logger.With().Str("operation", req.op).Int64("snapshot_version", snap.Version).Logger()
	ctx = logging.ContextWithLogger(snapshot.NewContext(ctx, snap), logger)

	items, err := s.pipelines[req.op].Run(ctx, rctx, nil)
	if err != nil {
		if core.IsDomainError(err) {
			return nil, err
		}
		return nil, core.WrapDomainError(core.ModuleService, core.ErrorCodeUnavailable, req.op+": pipeline failed", err)
	}
	if len(items) > req.limit {
		items = items[:req.limit]
	}

	reason, algorithm := s.describe(snap, req)
	version := utils.Label{Value: strconv.FormatInt(snap.Version, 10), Source: "snapshot"}
	out := make([]core.Recommendation, 0, len(items))
	for _, it := range items {
		it.PutLabel("snapshot_version", version)
		out = append(out, core.Recommendation{
			UserID:    req.userID,
			ItemID:    it.ID,
			Score:     clampScore(it.Score),
			Reason:    reason,
			Algorithm: algorithm,
			Labels:    it.Labels,
		})
	}
	logger.Debug().Str("subject", req.subject).Int("results", len(out)).Msg("computed")
	return out, nil
}

func (s *Service) describe(snap *snapshot.Snapshot, req request) (reason, algorithm string) {
	switch req.op {
	case OpSimilar:
		title := req.itemID
		if it, ok := snap.Item(req.itemID); ok && it.Title != "" {
			title = it.Title
		}
		return "Similar to " + title, core.AlgorithmContent
	case OpTrending:
		return reasonTrending, core.AlgorithmTrending
	case OpCategory:
		return "Recommended in " + req.category + " category", core.AlgorithmCategory
	default:
		return reasonHybrid, core.AlgorithmHybrid
	}
}

func clampScore(x float64) float64 {
	switch {
	case math.IsNaN(x) || x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}
