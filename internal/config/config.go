// internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for our application
type Config struct {
	App      AppConfig
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Security SecurityConfig
	Payment  PaymentConfig
	Kafka    KafkaConfig
	Invoice  InvoiceConfig
	Logging  LoggingConfig
}

// AppConfig contains application-level configuration
type AppConfig struct {
	Name        string
	Version     string
	Environment string
	Debug       bool
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

// DatabaseConfig contains database connection configuration
type DatabaseConfig struct {
	Host         string
	Port         string
	Name         string
	User         string
	Password     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
	TxMaxRetries int
}

// RedisConfig contains Redis configuration
type RedisConfig struct {
	Host         string
	Port         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
}

// JWTConfig holds the shared secret used to verify tokens minted by the identity service.
type JWTConfig struct {
	Secret string
	Issuer string
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	RateLimitPerMinute int
	CORSAllowedOrigins []string
	CORSAllowedMethods []string
	CORSAllowedHeaders []string
	TrustedProxies     []string

	// Response headers; an empty value omits the header.
	FrameOptions          string
	ReferrerPolicy        string
	ContentSecurityPolicy string
	ServerName            string
	HSTSMaxAge            time.Duration
}

// PaymentConfig groups the gateway credentials and payment lifecycle settings.
type PaymentConfig struct {
	PendingTTL      time.Duration
	GatewayTimeout  time.Duration
	CallbackLockTTL time.Duration
	LockWait        time.Duration
	VNPay           VNPayConfig
	ZaloPay         ZaloPayConfig
	MoMo            MoMoConfig
}

// VNPayConfig contains VNPay merchant settings
type VNPayConfig struct {
	Enabled    bool
	PayURL     string
	ReturnURL  string
	TmnCode    string
	HashSecret string
	Version    string
	Command    string
	OrderType  string
}

// ZaloPayConfig contains ZaloPay merchant settings
type ZaloPayConfig struct {
	Enabled        bool
	AppID          string
	Key1           string
	Key2           string
	CreateOrderURL string
	QueryURL       string
	RedirectURL    string
	CallbackURL    string
}

// MoMoConfig contains MoMo partner settings
type MoMoConfig struct {
	Enabled     bool
	PartnerCode string
	AccessKey   string
	SecretKey   string
	Endpoint    string
	RedirectURL string
	IPNURL      string
	RequestType string
	ExtraData   string
}

// KafkaConfig controls domain event publishing. Empty Brokers disables it.
type KafkaConfig struct {
	Brokers  []string
	ClientID string
	Topic    string
}

// InvoiceConfig configures PDF invoice rendering
type InvoiceConfig struct {
	StoreName       string
	StoreAddress    string
	WkhtmltopdfPath string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}

	config := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "Bookstore Backend"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
			Environment: getEnv("APP_ENV", "development"),
			Debug:       getEnvAsBool("APP_DEBUG", true),
		},
		Server: ServerConfig{
			Port:           getEnv("APP_PORT", "8080"),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			RequestTimeout: getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 20*time.Second),
			MaxBodyBytes:   getEnvAsInt64("SERVER_MAX_BODY_BYTES", 1<<20),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			Name:         getEnv("DB_NAME", "bookstore_db"),
			User:         getEnv("DB_USER", "bookstore_user"),
			Password:     getEnv("DB_PASSWORD", "bookstore_password"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getEnvAsDuration("DB_MAX_LIFETIME", 300*time.Second),
			TxMaxRetries: getEnvAsInt("DB_TX_MAX_RETRIES", 3),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnv("REDIS_PORT", "6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 5),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "your-super-secret-jwt-key-change-in-production"),
			Issuer: getEnv("JWT_ISSUER", ""),
		},
		Security: SecurityConfig{
			RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 100),
			CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			CORSAllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
			CORSAllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"}),
			TrustedProxies:     getEnvAsSlice("TRUSTED_PROXIES", []string{}),

			FrameOptions:          getEnv("SECURITY_FRAME_OPTIONS", "DENY"),
			ReferrerPolicy:        getEnv("SECURITY_REFERRER_POLICY", "strict-origin-when-cross-origin"),
			ContentSecurityPolicy: getEnv("SECURITY_CSP", "default-src 'none'; frame-ancestors 'none'"),
			ServerName:            getEnv("SECURITY_SERVER_NAME", ""),
			HSTSMaxAge:            getEnvAsDuration("SECURITY_HSTS_MAX_AGE", 0),
		},
		Payment: PaymentConfig{
			PendingTTL:      getEnvAsDuration("PAYMENT_PENDING_TTL", 15*time.Minute),
			GatewayTimeout:  getEnvAsDuration("PAYMENT_GATEWAY_TIMEOUT", 15*time.Second),
			CallbackLockTTL: getEnvAsDuration("PAYMENT_CALLBACK_LOCK_TTL", 30*time.Second),
			LockWait:        getEnvAsDuration("PAYMENT_LOCK_WAIT", 5*time.Second),
			VNPay: VNPayConfig{
				Enabled:    getEnvAsBool("VNPAY_ENABLED", false),
				PayURL:     getEnv("VNPAY_PAY_URL", "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"),
				ReturnURL:  getEnv("VNPAY_RETURN_URL", ""),
				TmnCode:    getEnv("VNPAY_TMN_CODE", ""),
				HashSecret: getEnv("VNPAY_HASH_SECRET", ""),
				Version:    getEnv("VNPAY_VERSION", "2.1.0"),
				Command:    getEnv("VNPAY_COMMAND", "pay"),
				OrderType:  getEnv("VNPAY_ORDER_TYPE", "other"),
			},
			ZaloPay: ZaloPayConfig{
				Enabled:        getEnvAsBool("ZALOPAY_ENABLED", false),
				AppID:          getEnv("ZALOPAY_APP_ID", ""),
				Key1:           getEnv("ZALOPAY_KEY1", ""),
				Key2:           getEnv("ZALOPAY_KEY2", ""),
				CreateOrderURL: getEnv("ZALOPAY_CREATE_ORDER_URL", "https://sandbox.zalopay.com.vn/v001/tpe/createorder"),
				QueryURL:       getEnv("ZALOPAY_QUERY_URL", "https://sandbox.zalopay.com.vn/v001/tpe/getstatusbyapptransid"),
				RedirectURL:    getEnv("ZALOPAY_REDIRECT_URL", ""),
				CallbackURL:    getEnv("ZALOPAY_CALLBACK_URL", ""),
			},
			MoMo: MoMoConfig{
				Enabled:     getEnvAsBool("MOMO_ENABLED", false),
				PartnerCode: getEnv("MOMO_PARTNER_CODE", ""),
				AccessKey:   getEnv("MOMO_ACCESS_KEY", ""),
				SecretKey:   getEnv("MOMO_SECRET_KEY", ""),
				Endpoint:    getEnv("MOMO_ENDPOINT", "https://test-payment.momo.vn/v2/gateway/api/create"),
				RedirectURL: getEnv("MOMO_REDIRECT_URL", ""),
				IPNURL:      getEnv("MOMO_IPN_URL", ""),
				RequestType: getEnv("MOMO_REQUEST_TYPE", "captureWallet"),
				ExtraData:   getEnv("MOMO_EXTRA_DATA", ""),
			},
		},
		Kafka: KafkaConfig{
			Brokers:  getEnvAsSlice("KAFKA_BROKERS", []string{}),
			ClientID: getEnv("KAFKA_CLIENT_ID", "bookstore-backend"),
			Topic:    getEnv("KAFKA_TOPIC", "bookstore.events"),
		},
		Invoice: InvoiceConfig{
			StoreName:       getEnv("INVOICE_STORE_NAME", "Bookstore"),
			StoreAddress:    getEnv("INVOICE_STORE_ADDRESS", ""),
			WkhtmltopdfPath: getEnv("WKHTMLTOPDF_PATH", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "debug"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate JWT secret
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters long")
	}

	// Validate database configuration
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}

	// Validate Redis configuration
	if c.Redis.Host == "" {
		return fmt.Errorf("REDIS_HOST is required")
	}

	// Validate server port
	if c.Server.Port == "" {
		return fmt.Errorf("APP_PORT is required")
	}

	if c.Payment.PendingTTL <= 0 {
		return fmt.Errorf("PAYMENT_PENDING_TTL must be positive")
	}

	return c.Payment.validateGateways()
}

// validateGateways refuses to start with an enabled gateway that is missing
// secrets or endpoints.
func (p PaymentConfig) validateGateways() error {
	if p.VNPay.Enabled {
		if err := requireAll(map[string]string{
			"VNPAY_TMN_CODE":    p.VNPay.TmnCode,
			"VNPAY_HASH_SECRET": p.VNPay.HashSecret,
		}); err != nil {
			return err
		}
		if err := requireURLs(map[string]string{
			"VNPAY_PAY_URL":    p.VNPay.PayURL,
			"VNPAY_RETURN_URL": p.VNPay.ReturnURL,
		}); err != nil {
			return err
		}
	}

	if p.ZaloPay.Enabled {
		if err := requireAll(map[string]string{
			"ZALOPAY_APP_ID": p.ZaloPay.AppID,
			"ZALOPAY_KEY1":   p.ZaloPay.Key1,
			"ZALOPAY_KEY2":   p.ZaloPay.Key2,
		}); err != nil {
			return err
		}
		if p.ZaloPay.Key1 == p.ZaloPay.Key2 {
			return fmt.Errorf("ZALOPAY_KEY1 and ZALOPAY_KEY2 must differ")
		}
		if err := requireURLs(map[string]string{
			"ZALOPAY_CREATE_ORDER_URL": p.ZaloPay.CreateOrderURL,
			"ZALOPAY_CALLBACK_URL":     p.ZaloPay.CallbackURL,
		}); err != nil {
			return err
		}
	}

	if p.MoMo.Enabled {
		if err := requireAll(map[string]string{
			"MOMO_PARTNER_CODE": p.MoMo.PartnerCode,
			"MOMO_ACCESS_KEY":   p.MoMo.AccessKey,
			"MOMO_SECRET_KEY":   p.MoMo.SecretKey,
			"MOMO_REQUEST_TYPE": p.MoMo.RequestType,
		}); err != nil {
			return err
		}
		if err := requireURLs(map[string]string{
			"MOMO_ENDPOINT":     p.MoMo.Endpoint,
			"MOMO_REDIRECT_URL": p.MoMo.RedirectURL,
			"MOMO_IPN_URL":      p.MoMo.IPNURL,
		}); err != nil {
			return err
		}
	}

	return nil
}

func requireAll(values map[string]string) error {
	for _, key := range sortedKeys(values) {
		if strings.TrimSpace(values[key]) == "" {
			return fmt.Errorf("%s is required", key)
		}
	}
	return nil
}

func requireURLs(values map[string]string) error {
	for _, key := range sortedKeys(values) {
		u, err := url.Parse(values[key])
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL", key)
		}
	}
	return nil
}

func sortedKeys(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}
