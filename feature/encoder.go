package feature

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// Encoder 是特征编码器接口
// 所有编码都需要特征名（例如 category、tag），编码结果是稀疏的 name -> value
type Encoder interface {
	// EncodeWithKey 编码单个值（指定特征名）
	EncodeWithKey(key string, value any) map[string]float64
}

// CategoricalEncoder 开放词表的 One-Hot 编码
// 每个取值对应一个维度，维度名为 "{prefix}{key}={value}"，不需要预先声明类别列表
type CategoricalEncoder struct {
	Prefix string // 特征名前缀
}

// NewCategoricalEncoder 创建开放词表 One-Hot 编码器
func NewCategoricalEncoder() *CategoricalEncoder {
	return &CategoricalEncoder{}
}

// EncodeWithKey 编码单个值，空值返回空结果
func (e *CategoricalEncoder) EncodeWithKey(key string, value any) map[string]float64 {
	encoded := make(map[string]float64, 1)
	valStr := normalizeValue(value)
	if valStr == "" {
		return encoded
	}
	encoded[fmt.Sprintf("%s%s=%s", e.Prefix, key, valStr)] = 1.0
	return encoded
}

// HashEncoder Hash 编码（哈希编码）
// 使用哈希函数将高基数类别（如标签）映射到固定数量的桶
type HashEncoder struct {
	NumBuckets int    // 哈希桶数量
	Prefix     string // 特征名前缀
}

// NewHashEncoder 创建 Hash 编码器
func NewHashEncoder(numBuckets int) *HashEncoder {
	return &HashEncoder{
		NumBuckets: numBuckets,
	}
}

// EncodeWithKey 编码单个值（指定特征名）
func (e *HashEncoder) EncodeWithKey(key string, value any) map[string]float64 {
	encoded := make(map[string]float64, 1)
	valStr := normalizeValue(value)
	if valStr == "" || e.NumBuckets <= 0 {
		return encoded
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(valStr))
	bucket := h.Sum32() % uint32(e.NumBuckets)

	featureName := fmt.Sprintf("%s%s_hash_%d", e.Prefix, key, bucket)
	encoded[featureName] = 1.0
	return encoded
}

func normalizeValue(value any) string {
	if value == nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(fmt.Sprintf("%v", value)))
}
