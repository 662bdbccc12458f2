package model

import (
	"math"
	"sort"
)

// Vector 是稀疏向量，Indices 严格升序。
type Vector struct {
	Indices []int     `json:"i"`
	Values  []float64 `json:"v"`
}

// Len 返回非零元素个数。
func (v Vector) Len() int { return len(v.Indices) }

// Dot 计算两个稀疏向量的点积。
func (v Vector) Dot(o Vector) float64 {
	sum := 0.0
	i, j := 0, 0
	for i < len(v.Indices) && j < len(o.Indices) {
		switch {
		case v.Indices[i] == o.Indices[j]:
			sum += v.Values[i] * o.Values[j]
			i++
			j++
		case v.Indices[i] < o.Indices[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// Norm 返回 L2 范数。
func (v Vector) Norm() float64 {
	sum := 0.0
	for _, x := range v.Values {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// fromMap 由 index -> value 构造稀疏向量并做 L2 归一化，零向量保持为空。
func fromMap(m map[int]float64) Vector {
	v := Vector{Indices: make([]int, 0, len(m)), Values: make([]float64, 0, len(m))}
	for idx := range m {
		v.Indices = append(v.Indices, idx)
	}
	sort.Ints(v.Indices)
	for _, idx := range v.Indices {
		v.Values = append(v.Values, m[idx])
	}
	if n := v.Norm(); n > 0 {
		for k := range v.Values {
			v.Values[k] /= n
		}
	}
	return v
}

// Centroid 返回若干向量的加权平均（不再归一化），
// 与单位向量的点积等于各余弦相似度的加权平均。
func Centroid(vs []Vector, weights []float64) Vector {
	acc := make(map[int]float64)
	total := 0.0
	for k, v := range vs {
		w := 1.0
		if k < len(weights) {
			w = weights[k]
		}
		if w <= 0 || v.Len() == 0 {
			continue
		}
		total += w
		for n, idx := range v.Indices {
			acc[idx] += w * v.Values[n]
		}
	}
	if total == 0 {
		return Vector{}
	}
	out := Vector{Indices: make([]int, 0, len(acc)), Values: make([]float64, 0, len(acc))}
	for idx := range acc {
		out.Indices = append(out.Indices, idx)
	}
	sort.Ints(out.Indices)
	for _, idx := range out.Indices {
		out.Values = append(out.Values, acc[idx]/total)
	}
	return out
}
