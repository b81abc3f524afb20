package crypto

// SignRequest 签名请求
// Message 必须恰好等于密钥模数长度（无填充签名）
//
//nolint:revive // SignRequest is the standard naming for sign requests
type SignRequest struct {
	KeyID   string
	Message []byte
}

// SignResponse 签名响应
//
//nolint:revive // SignResponse is the standard naming for sign responses
type SignResponse struct {
	KeyID     string
	Signature []byte
}

// VerifyRequest 验证请求
type VerifyRequest struct {
	KeyID     string
	Message   []byte
	Signature []byte
}

// VerifyResponse 验证响应
type VerifyResponse struct {
	KeyID string
	Valid bool
}

// EncryptRequest 加密请求
type EncryptRequest struct {
	KeyID     string
	Plaintext []byte
}

// EncryptResponse 加密响应
type EncryptResponse struct {
	KeyID      string
	Ciphertext []byte
}

// DecryptRequest 解密请求
type DecryptRequest struct {
	KeyID      string
	Ciphertext []byte
}

// DecryptResponse 解密响应
type DecryptResponse struct {
	KeyID     string
	Plaintext []byte
}
