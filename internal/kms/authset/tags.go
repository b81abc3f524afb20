package authset

// Tag 标识授权集合中的参数
//
//nolint:recvcheck // Tag methods are value receivers by design
type Tag uint32

const (
	TagInvalid Tag = iota
	TagPurpose
	TagAlgorithm
	TagKeySize
	TagDigest
	TagPadding
	TagRSAPublicExponent
)

func (t Tag) String() string {
	switch t {
	case TagPurpose:
		return "purpose"
	case TagAlgorithm:
		return "algorithm"
	case TagKeySize:
		return "key_size"
	case TagDigest:
		return "digest"
	case TagPadding:
		return "padding"
	case TagRSAPublicExponent:
		return "rsa_public_exponent"
	case TagInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Algorithm 密钥算法
type Algorithm uint32

const (
	AlgorithmInvalid Algorithm = iota
	AlgorithmRSA
)

// Purpose 密钥用途（操作类型）
type Purpose uint32

const (
	PurposeInvalid Purpose = iota
	PurposeSign
	PurposeVerify
	PurposeEncrypt
	PurposeDecrypt
)

func (p Purpose) String() string {
	switch p {
	case PurposeSign:
		return "sign"
	case PurposeVerify:
		return "verify"
	case PurposeEncrypt:
		return "encrypt"
	case PurposeDecrypt:
		return "decrypt"
	default:
		return "invalid"
	}
}

// PurposeFromString 从字符串解析密钥用途
func PurposeFromString(s string) Purpose {
	switch s {
	case "SIGN", "sign":
		return PurposeSign
	case "VERIFY", "verify":
		return PurposeVerify
	case "ENCRYPT", "encrypt":
		return PurposeEncrypt
	case "DECRYPT", "decrypt":
		return PurposeDecrypt
	default:
		return PurposeInvalid
	}
}

// Padding 填充模式
// PaddingInvalid 是未指定填充时的哨兵值
type Padding uint32

const (
	PaddingInvalid Padding = iota
	PaddingNone
	PaddingRSAOAEP
	PaddingRSAPKCS1v15Encrypt
)

func (p Padding) String() string {
	switch p {
	case PaddingNone:
		return "NONE"
	case PaddingRSAOAEP:
		return "RSA_OAEP"
	case PaddingRSAPKCS1v15Encrypt:
		return "RSA_PKCS1_V1_5_ENCRYPT"
	default:
		return "INVALID"
	}
}

// PaddingFromString 从字符串解析填充模式
func PaddingFromString(s string) Padding {
	switch s {
	case "NONE":
		return PaddingNone
	case "RSA_OAEP":
		return PaddingRSAOAEP
	case "RSA_PKCS1_V1_5_ENCRYPT":
		return PaddingRSAPKCS1v15Encrypt
	default:
		return PaddingInvalid
	}
}

// Digest 摘要算法
// DigestInvalid 是未指定摘要时的哨兵值，区别于显式的 DigestNone
type Digest uint32

const (
	DigestInvalid Digest = iota
	DigestNone
	DigestSHA256
	DigestSHA512
)

func (d Digest) String() string {
	switch d {
	case DigestNone:
		return "NONE"
	case DigestSHA256:
		return "SHA256"
	case DigestSHA512:
		return "SHA512"
	default:
		return "INVALID"
	}
}

// DigestFromString 从字符串解析摘要算法
func DigestFromString(s string) Digest {
	switch s {
	case "NONE":
		return DigestNone
	case "SHA256":
		return DigestSHA256
	case "SHA512":
		return DigestSHA512
	default:
		return DigestInvalid
	}
}
