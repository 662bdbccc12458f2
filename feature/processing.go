package feature

import "math"

// Normalizer 数值特征归一化接口
type Normalizer interface {
	// NormalizeValue 变换单个值
	NormalizeValue(value float64) float64
}

// LogNormalizer Log 变换
// 公式: x' = log(x + 1)
// 特点: 处理长尾分布（行为计数、价格），压缩大值
type LogNormalizer struct{}

// NewLogNormalizer 创建 Log 变换器
func NewLogNormalizer() *LogNormalizer {
	return &LogNormalizer{}
}

// NormalizeValue 变换单个值；负值、NaN、Inf 返回 0
func (n *LogNormalizer) NormalizeValue(value float64) float64 {
	if value < 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	return math.Log1p(value)
}
