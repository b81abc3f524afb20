package config

import (
	"fmt"
	"strings"

	"github.com/keymint/rsa-kms/internal/util"
)

// EchoServer echo 服务器配置
type EchoServer struct {
	ListenAddress                  string
	HideInternalServerErrorDetails bool
	EnableRecoverMiddleware        bool
	EnableRequestIDMiddleware      bool
	EnableLoggerMiddleware         bool
	EnableCORSMiddleware           bool
}

// Database PostgreSQL 连接配置
type Database struct {
	Host             string
	Port             int
	Username         string
	Password         string
	Database         string
	AdditionalParams map[string]string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  int
}

// ConnectionString 生成 lib/pq 连接串
func (d Database) ConnectionString() string {
	var b strings.Builder
	fmt.Fprintf(&b, "host=%s port=%d user=%s password=%s dbname=%s", d.Host, d.Port, d.Username, d.Password, d.Database)

	for param, value := range d.AdditionalParams {
		fmt.Fprintf(&b, " %s=%s", param, value)
	}

	return b.String()
}

// KMS 密钥管理配置
type KMS struct {
	HSMType        string // software 或 pkcs11
	HSMLibrary     string
	HSMSlot        int
	HSMPIN         string
	StorageBackend string // postgresql
}

// Logger 日志配置
type Logger struct {
	Level              string
	RequestLevel       string
	LogRequestBody     bool
	LogResponseBody    bool
	PrettyPrintConsole bool
}

// Server 服务配置根结构
type Server struct {
	Echo     EchoServer
	Database Database
	KMS      KMS
	Logger   Logger
}

// DefaultServiceConfigFromEnv 从环境变量构造配置，未设置时使用默认值
func DefaultServiceConfigFromEnv() Server {
	return Server{
		Echo: EchoServer{
			ListenAddress:                  util.GetEnv("SERVER_ECHO_LISTEN_ADDRESS", ":8080"),
			HideInternalServerErrorDetails: util.GetEnvAsBool("SERVER_ECHO_HIDE_INTERNAL_SERVER_ERROR_DETAILS", true),
			EnableRecoverMiddleware:        util.GetEnvAsBool("SERVER_ECHO_ENABLE_RECOVER_MIDDLEWARE", true),
			EnableRequestIDMiddleware:      util.GetEnvAsBool("SERVER_ECHO_ENABLE_REQUEST_ID_MIDDLEWARE", true),
			EnableLoggerMiddleware:         util.GetEnvAsBool("SERVER_ECHO_ENABLE_LOGGER_MIDDLEWARE", true),
			EnableCORSMiddleware:           util.GetEnvAsBool("SERVER_ECHO_ENABLE_CORS_MIDDLEWARE", true),
		},
		Database: Database{
			Host:     util.GetEnv("PGHOST", "postgres"),
			Port:     util.GetEnvAsInt("PGPORT", 5432),
			Username: util.GetEnv("PGUSER", "dbuser"),
			Password: util.GetEnv("PGPASSWORD", ""),
			Database: util.GetEnv("PGDATABASE", "development"),
			AdditionalParams: map[string]string{
				"sslmode": util.GetEnv("PGSSLMODE", "disable"),
			},
			MaxOpenConns:    util.GetEnvAsInt("DB_MAX_OPEN_CONNS", 30),
			MaxIdleConns:    util.GetEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: util.GetEnvAsInt("DB_CONN_MAX_LIFETIME_SEC", 3600),
		},
		KMS: KMS{
			HSMType:        util.GetEnv("KMS_HSM_TYPE", "software"),
			HSMLibrary:     util.GetEnv("KMS_HSM_LIBRARY", "/usr/lib/softhsm/libsofthsm2.so"),
			HSMSlot:        util.GetEnvAsInt("KMS_HSM_SLOT", 0),
			HSMPIN:         util.GetEnv("KMS_HSM_PIN", ""),
			StorageBackend: util.GetEnv("KMS_STORAGE_BACKEND", "postgresql"),
		},
		Logger: Logger{
			Level:              util.GetEnv("SERVER_LOGGER_LEVEL", "debug"),
			RequestLevel:       util.GetEnv("SERVER_LOGGER_REQUEST_LEVEL", "debug"),
			LogRequestBody:     util.GetEnvAsBool("SERVER_LOGGER_LOG_REQUEST_BODY", false),
			LogResponseBody:    util.GetEnvAsBool("SERVER_LOGGER_LOG_RESPONSE_BODY", false),
			PrettyPrintConsole: util.GetEnvAsBool("SERVER_LOGGER_PRETTY_PRINT_CONSOLE", false),
		},
	}
}
