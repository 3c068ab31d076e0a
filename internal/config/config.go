package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	ProviderMidtrans = "midtrans"
	ProviderXendit   = "xendit"

	SinkLog      = "log"
	SinkFonnte   = "fonnte"
	SinkRabbitMQ = "rabbitmq"
)

// Configはアプリ全体の設定
// yaml(configs/config.yaml) → 環境変数 の順で上書きする。キーは環境変数名を小文字にしたもの。
type Config struct {
	Port     string `koanf:"port"`      // サーバーポート（8080）
	GoEnv    string `koanf:"go_env"`    // dev/prod
	BaseURL  string `koanf:"base_url"`  // 決済後に戻す公開URL
	LogLevel string `koanf:"log_level"` // debug/info/warn/error
	LogFile  string `koanf:"log_file"`  // 空ならstdoutのみ

	DatabaseURL      string `koanf:"database_url"`
	PostgresHost     string `koanf:"postgres_host"`
	PostgresPort     int    `koanf:"postgres_port"`
	PostgresUser     string `koanf:"postgres_user"`
	PostgresPassword string `koanf:"postgres_password"`
	PostgresDB       string `koanf:"postgres_db"`
	PostgresSSLMode  string `koanf:"postgres_sslmode"`

	PaymentProvider string        `koanf:"payment_provider"` // midtrans | xendit
	ProviderTimeout time.Duration `koanf:"provider_timeout"`

	MidtransServerKey    string `koanf:"midtrans_server_key"`
	MidtransClientKey    string `koanf:"midtrans_client_key"`
	MidtransIsProduction bool   `koanf:"midtrans_is_production"`
	MidtransSnapURL      string `koanf:"midtrans_snap_url"`
	MidtransAPIURL       string `koanf:"midtrans_api_url"`

	XenditSecretKey     string        `koanf:"xendit_secret_key"`
	XenditCallbackToken string        `koanf:"xendit_callback_token"`
	XenditAPIURL        string        `koanf:"xendit_api_url"`
	InvoiceDuration     time.Duration `koanf:"invoice_duration"`

	NotifySink         string        `koanf:"notify_sink"` // log | fonnte | rabbitmq
	FonnteToken        string        `koanf:"fonnte_token"`
	FonnteURL          string        `koanf:"fonnte_url"`
	AdminWhatsApp      string        `koanf:"admin_whatsapp"`
	NotifyWorkers      int           `koanf:"notify_workers"`
	NotifyQueueSize    int           `koanf:"notify_queue_size"`
	NotifyTimeout      time.Duration `koanf:"notify_timeout"`
	RabbitMQURL        string        `koanf:"rabbitmq_url"`
	RabbitMQExchange   string        `koanf:"rabbitmq_exchange"`
	RabbitMQRoutingKey string        `koanf:"rabbitmq_routing_key"`

	RedisAddr       string        `koanf:"redis_addr"` // 空ならプロセス内ロック
	RedisPassword   string        `koanf:"redis_password"`
	CheckoutLockTTL time.Duration `koanf:"checkout_lock_ttl"`

	JWTSecret         string        `koanf:"jwt_secret"` // JWT署名シークレット
	AdminEmail        string        `koanf:"admin_email"`
	AdminPasswordHash string        `koanf:"admin_password_hash"` // bcrypt
	AdminTokenTTL     time.Duration `koanf:"admin_token_ttl"`
}

func defaults() Config {
	return Config{
		Port:     "8080",
		GoEnv:    "dev",
		BaseURL:  "http://localhost:3000",
		LogLevel: "info",

		PostgresHost:    "localhost",
		PostgresPort:    5432,
		PostgresSSLMode: "disable",

		PaymentProvider: ProviderMidtrans,
		ProviderTimeout: 10 * time.Second,
		XenditAPIURL:    "https://api.xendit.co",
		InvoiceDuration: 24 * time.Hour,

		NotifySink:         SinkLog,
		FonnteURL:          "https://api.fonnte.com/send",
		NotifyWorkers:      2,
		NotifyQueueSize:    100,
		NotifyTimeout:      10 * time.Second,
		RabbitMQExchange:   "storefront.notifications",
		RabbitMQRoutingKey: "whatsapp.send",

		CheckoutLockTTL: 30 * time.Second,
		AdminTokenTTL:   12 * time.Hour,
	}
}

// Loadは.env → yaml → 環境変数の順に読み込む
func Load() (Config, error) {
	//.envは無くてもよい
	_ = godotenv.Load()

	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		path = "configs/config.yaml"
	}
	return LoadFile(path)
}

// LoadFileはyamlのパスを指定して読み込む（ファイルが無ければ環境変数だけ）
func LoadFile(path string) (Config, error) {
	k := koanf.New(".")

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("stat %s: %w", path, err)
	}

	// PORT → port
	if err := k.Load(env.Provider("", ".", strings.ToLower), nil); err != nil {
		return Config{}, fmt.Errorf("env overlay: %w", err)
	}

	cfg := defaults()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// 必須チェック
func (c Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.DatabaseURL == "" {
		if c.PostgresUser == "" {
			return fmt.Errorf("POSTGRES_USER is required")
		}
		if c.PostgresDB == "" {
			return fmt.Errorf("POSTGRES_DB is required")
		}
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.AdminEmail == "" {
		return fmt.Errorf("ADMIN_EMAIL is required")
	}
	if c.AdminPasswordHash == "" {
		return fmt.Errorf("ADMIN_PASSWORD_HASH is required")
	}
	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT must be positive")
	}
	if c.InvoiceDuration < time.Minute {
		return fmt.Errorf("INVOICE_DURATION must be at least 1m")
	}

	//選んだプロバイダの鍵だけ必須
	switch c.PaymentProvider {
	case ProviderMidtrans:
		if c.MidtransServerKey == "" {
			return fmt.Errorf("MIDTRANS_SERVER_KEY is required")
		}
	case ProviderXendit:
		if c.XenditSecretKey == "" {
			return fmt.Errorf("XENDIT_SECRET_KEY is required")
		}
		if c.XenditCallbackToken == "" {
			return fmt.Errorf("XENDIT_CALLBACK_TOKEN is required")
		}
	default:
		return fmt.Errorf("PAYMENT_PROVIDER must be %s or %s", ProviderMidtrans, ProviderXendit)
	}

	switch c.NotifySink {
	case SinkLog:
	case SinkFonnte:
		if c.FonnteToken == "" {
			return fmt.Errorf("FONNTE_TOKEN is required")
		}
	case SinkRabbitMQ:
		if c.RabbitMQURL == "" {
			return fmt.Errorf("RABBITMQ_URL is required")
		}
	default:
		return fmt.Errorf("NOTIFY_SINK must be log, fonnte or rabbitmq")
	}
	if c.NotifyWorkers <= 0 {
		return fmt.Errorf("NOTIFY_WORKERS must be positive")
	}
	if c.NotifyQueueSize <= 0 {
		return fmt.Errorf("NOTIFY_QUEUE_SIZE must be positive")
	}

	return nil
}

// DATABASE_URL があれば最優先で使う
func (c Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode,
	)
}

func (c Config) MidtransSnapBaseURL() string {
	if c.MidtransSnapURL != "" {
		return strings.TrimRight(c.MidtransSnapURL, "/")
	}
	if c.MidtransIsProduction {
		return "https://app.midtrans.com"
	}
	return "https://app.sandbox.midtrans.com"
}

func (c Config) MidtransAPIBaseURL() string {
	if c.MidtransAPIURL != "" {
		return strings.TrimRight(c.MidtransAPIURL, "/")
	}
	if c.MidtransIsProduction {
		return "https://api.midtrans.com"
	}
	return "https://api.sandbox.midtrans.com"
}

func (c Config) IsProduction() bool {
	return c.GoEnv == "prod" || c.GoEnv == "production"
}
