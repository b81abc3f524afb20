package authset

import (
	"encoding/json"
	"math"

	"github.com/pkg/errors"
)

// Param 授权集合中的一个 (tag, value) 对
// 所有取值统一存储为 uint64，类型化的读取通过 Set 上的访问器完成
type Param struct {
	Tag   Tag    `json:"tag"`
	Value uint64 `json:"value"`
}

// Set 有序的授权参数集合
// 同一 tag 允许出现多次，查找返回第一个匹配值
type Set struct {
	params []Param
}

// New 创建授权集合
func New(params ...Param) *Set {
	s := &Set{params: make([]Param, 0, len(params))}
	s.params = append(s.params, params...)
	return s
}

// Clone 复制授权集合
func (s *Set) Clone() *Set {
	c := &Set{params: make([]Param, len(s.params))}
	copy(c.params, s.params)
	return c
}

// Len 返回参数个数
func (s *Set) Len() int {
	return len(s.params)
}

// Params 返回参数的副本，保持插入顺序
func (s *Set) Params() []Param {
	out := make([]Param, len(s.params))
	copy(out, s.params)
	return out
}

// Add 追加一个参数，不去重
func (s *Set) Add(tag Tag, value uint64) {
	s.params = append(s.params, Param{Tag: tag, Value: value})
}

// GetUint64 返回 tag 的第一个取值
func (s *Set) GetUint64(tag Tag) (uint64, bool) {
	for _, p := range s.params {
		if p.Tag == tag {
			return p.Value, true
		}
	}
	return 0, false
}

// Count 返回 tag 出现的次数
func (s *Set) Count(tag Tag) int {
	n := 0
	for _, p := range s.params {
		if p.Tag == tag {
			n++
		}
	}
	return n
}

// PublicExponent 返回 RSA 公钥指数
func (s *Set) PublicExponent() (uint64, bool) {
	return s.GetUint64(TagRSAPublicExponent)
}

// AddPublicExponent 追加 RSA 公钥指数
func (s *Set) AddPublicExponent(e uint64) {
	s.Add(TagRSAPublicExponent, e)
}

// KeySize 返回密钥长度（位）
// 存储值超出 uint32 表示范围时按不存在处理，不做截断
func (s *Set) KeySize() (uint32, bool) {
	v, ok := s.GetUint64(TagKeySize)
	if !ok || v > math.MaxUint32 {
		return 0, false
	}
	return uint32(v), true
}

// AddKeySize 追加密钥长度（位）
func (s *Set) AddKeySize(bits uint32) {
	s.Add(TagKeySize, uint64(bits))
}

// Algorithm 返回密钥算法
func (s *Set) Algorithm() (Algorithm, bool) {
	v, ok := s.GetUint64(TagAlgorithm)
	return Algorithm(v), ok
}

// AddAlgorithm 追加密钥算法
func (s *Set) AddAlgorithm(a Algorithm) {
	s.Add(TagAlgorithm, uint64(a))
}

// Padding 返回填充模式
func (s *Set) Padding() (Padding, bool) {
	v, ok := s.GetUint64(TagPadding)
	return Padding(v), ok
}

// AddPadding 追加填充模式
func (s *Set) AddPadding(p Padding) {
	s.Add(TagPadding, uint64(p))
}

// Digest 返回摘要算法
func (s *Set) Digest() (Digest, bool) {
	v, ok := s.GetUint64(TagDigest)
	return Digest(v), ok
}

// AddDigest 追加摘要算法
func (s *Set) AddDigest(d Digest) {
	s.Add(TagDigest, uint64(d))
}

// AddPurpose 追加密钥用途
func (s *Set) AddPurpose(p Purpose) {
	s.Add(TagPurpose, uint64(p))
}

// HasPurpose 报告集合是否包含指定用途
func (s *Set) HasPurpose(p Purpose) bool {
	for _, param := range s.params {
		if param.Tag == TagPurpose && param.Value == uint64(p) {
			return true
		}
	}

	return false
}

// MarshalJSON 序列化为参数数组，保持顺序
func (s *Set) MarshalJSON() ([]byte, error) {
	//nolint:wrapcheck // json.Marshal error is already descriptive
	return json.Marshal(s.params)
}

// UnmarshalJSON 从参数数组反序列化
func (s *Set) UnmarshalJSON(data []byte) error {
	var params []Param
	if err := json.Unmarshal(data, &params); err != nil {
		return errors.Wrap(err, "failed to unmarshal authorization set")
	}
	s.params = params
	return nil
}
