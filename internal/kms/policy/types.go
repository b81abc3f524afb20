package policy

// 策略可约束的操作名
const (
	ActionCreateKey = "create_key"
	ActionImportKey = "import_key"
	ActionDeleteKey = "delete_key"
	ActionSign      = "sign"
	ActionVerify    = "verify"
	ActionEncrypt   = "encrypt"
	ActionDecrypt   = "decrypt"
	ActionWildcard  = "*"
)

// PolicyStatement 策略声明
//
//nolint:revive // PolicyStatement is the standard naming for policy statements
type PolicyStatement struct {
	Effect    string   `json:"effect"`    // Allow 或 Deny
	Actions   []string `json:"actions"`   // 操作列表
	Resources []string `json:"resources"` // 资源列表（keys/*, keys/{key_id}）
}

// Policy 策略定义
type Policy struct {
	PolicyID    string
	Description string
	Statements  []*PolicyStatement
}

// policyDocument 策略文档的 JSON 结构
type policyDocument struct {
	Statements []*PolicyStatement `json:"statements"`
}
