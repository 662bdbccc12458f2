package core

// UserProfile 是用户画像。
//
// 只保留对模型有意义的部分：
//   - PreferTags：用户声明的偏好标签，驱动冷启动的内容画像和属性因子
//   - Attributes：数值属性（年龄段、活跃度等），作为因子分解的边信息
//
// 用户的隐因子由因子分解模型持有，每次重训整体重建，从不逐条修改。
type UserProfile struct {
	ID         string             `json:"id" yaml:"id"`
	PreferTags []string           `json:"prefer_tags,omitempty" yaml:"prefer_tags"`
	Attributes map[string]float64 `json:"attributes,omitempty" yaml:"attributes"`
}

// NewUserProfile 创建一个新的用户画像。
func NewUserProfile(userID string) *UserProfile {
	return &UserProfile{
		ID:         userID,
		Attributes: make(map[string]float64),
	}
}

// HasSignal 判断画像是否带有可用于冷启动的信息。
func (p *UserProfile) HasSignal() bool {
	return p != nil && (len(p.PreferTags) > 0 || len(p.Attributes) > 0)
}
