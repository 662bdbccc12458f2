package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Config 是多条 Pipeline 的配置（支持 YAML/JSON），按名称索引。
//
//	pipelines:
//	  recommendations:
//	    nodes:
//	      - type: recall.fanout
//	        config: {...}
type Config struct {
	Pipelines map[string]Spec `yaml:"pipelines" json:"pipelines"`
}

// Spec 是单条 Pipeline 的节点列表。
type Spec struct {
	Nodes []NodeConfig `yaml:"nodes" json:"nodes"`
}

// NodeConfig 是单个 Node 的配置。
type NodeConfig struct {
	Type   string         `yaml:"type" json:"type"`     // recall.catalog / filter / rank.hybrid / rerank.topn 等
	Config map[string]any `yaml:"config" json:"config"` // Node 特定配置
}

// Parse 解析 YAML 配置。
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return &cfg, nil
}

// Load 从文件加载配置，.json 后缀按 JSON 解析，其余按 YAML。
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		var cfg Config
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
		return &cfg, nil
	}
	return Parse(data)
}

// Names 返回排序后的 Pipeline 名称。
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Pipelines))
	for n := range c.Pipelines {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Merge 用 other 中的同名 Pipeline 覆盖当前配置。
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}
	if c.Pipelines == nil {
		c.Pipelines = make(map[string]Spec, len(other.Pipelines))
	}
	for name, spec := range other.Pipelines {
		c.Pipelines[name] = spec
	}
}

// ApplyDefaults 为指定类型的节点（含 recall.fanout 的 sources）补全缺省配置项，
// 已显式配置的 key 不会被覆盖。
func (c *Config) ApplyDefaults(defaults map[string]map[string]any) {
	for name, spec := range c.Pipelines {
		for k := range spec.Nodes {
			spec.Nodes[k].Config = withDefaults(spec.Nodes[k].Type, spec.Nodes[k].Config, defaults)
			if sources, ok := spec.Nodes[k].Config["sources"].([]any); ok {
				for s, raw := range sources {
					if m, ok := raw.(map[string]any); ok {
						typ, _ := m["type"].(string)
						sources[s] = withDefaults(typ, m, defaults)
					}
				}
			}
		}
		c.Pipelines[name] = spec
	}
}

func withDefaults(nodeType string, cfg map[string]any, defaults map[string]map[string]any) map[string]any {
	d, ok := defaults[nodeType]
	if !ok {
		return cfg
	}
	if cfg == nil {
		cfg = make(map[string]any, len(d))
	}
	for k, v := range d {
		if _, set := cfg[k]; !set {
			cfg[k] = v
		}
	}
	return cfg
}

// BuildPipeline 根据配置构建指定名称的 Pipeline（需要 NodeFactory 注册 Node 构建器）。
func (c *Config) BuildPipeline(name string, factory *NodeFactory) (*Pipeline, error) {
	spec, ok := c.Pipelines[name]
	if !ok {
		return nil, fmt.Errorf("pipeline %q not configured", name)
	}
	nodes := make([]Node, 0, len(spec.Nodes))
	for _, nc := range spec.Nodes {
		node, err := factory.Build(nc.Type, nc.Config)
		if err != nil {
			return nil, fmt.Errorf("pipeline %s: build node %s: %w", name, nc.Type, err)
		}
		nodes = append(nodes, node)
	}
	if err := checkOrder(nodes); err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", name, err)
	}
	return &Pipeline{Name: name, Nodes: nodes}, nil
}

// NodeFactory 用于根据配置构建 Node 实例。
type NodeFactory struct {
	builders map[string]NodeBuilder
}

func NewNodeFactory() *NodeFactory {
	return &NodeFactory{builders: make(map[string]NodeBuilder)}
}

// Register 注册 Node 构建器。
func (f *NodeFactory) Register(nodeType string, builder NodeBuilder) {
	f.builders[nodeType] = builder
}

// Has 判断类型是否已注册。
func (f *NodeFactory) Has(nodeType string) bool {
	_, ok := f.builders[nodeType]
	return ok
}

// Build 根据类型和配置构建 Node。
func (f *NodeFactory) Build(nodeType string, config map[string]any) (Node, error) {
	builder, ok := f.builders[nodeType]
	if !ok {
		return nil, fmt.Errorf("unknown node type: %s", nodeType)
	}
	return builder(config)
}
