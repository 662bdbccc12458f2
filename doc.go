// Package hybridrec 是混合推荐核心：协同过滤（因子分解）与内容相似（TF-IDF）两路信号融合排序。
//
// 设计要点：
// - Snapshot-first: 一次重训产出一个不可变快照，原子替换；读请求只读一个快照
// - Pipeline-first: 四个读操作都是 Node 链（Recall → Filter → Rank → ReRank），可用 YAML 覆盖
// - Labels-first: labels 全链路透传，结果里带召回来源、排序信号与快照版本
//
// 入口是 service.New；cmd/hybridrecd 是完整装配的后台进程。
package hybridrec

import (
	"github.com/rushteam/hybridrec/pipeline"
	"github.com/rushteam/hybridrec/service"
)

// 轻量 facade：便于直接 import "hybridrec" 使用核心抽象。
type (
	Service       = service.Service
	Options       = service.Options
	RetrainReport = service.RetrainReport
	Pipeline      = pipeline.Pipeline
	Node          = pipeline.Node
	Kind          = pipeline.Kind
)

// New 创建推荐服务，见 service.New。
func New(opts Options) (*Service, error) {
	return service.New(opts)
}

const (
	KindRecall      = pipeline.KindRecall
	KindFilter      = pipeline.KindFilter
	KindRank        = pipeline.KindRank
	KindReRank      = pipeline.KindReRank
	KindPostProcess = pipeline.KindPostProcess
)
