package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Config struct {
	App         App         `mapstructure:",squash"`
	Server      Server      `mapstructure:",squash"`
	Database    Database    `mapstructure:",squash"`
	Meta        Meta        `mapstructure:",squash"`
	Publisher   Publisher   `mapstructure:",squash"`
	InsightSync InsightSync `mapstructure:",squash"`
	Prediction  Prediction  `mapstructure:",squash"`
}

type Server struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

type Database struct {
	DSN      string `mapstructure:"-"`
	Driver   string `mapstructure:"database_driver"`
	Password string `mapstructure:"database_password"`
	URL      string `mapstructure:"database_url"`
	User     string `mapstructure:"database_user"`
}

type Meta struct {
	BaseURL            string  `mapstructure:"meta_base_url"`
	URL                string  `mapstructure:"-"`
	Version            string  `mapstructure:"meta_version"`
	AccessToken        string  `mapstructure:"meta_access_token"`
	AdAccountID        string  `mapstructure:"meta_ad_account_id"`
	PageID             string  `mapstructure:"meta_page_id"`
	DefaultLink        string  `mapstructure:"meta_default_link"`
	RateLimitPerSecond float64 `mapstructure:"meta_rate_limit_per_second"`
	RateBurst          int     `mapstructure:"meta_rate_burst"`
	DryRun             bool    `mapstructure:"meta_dry_run"`
}

type App struct {
	LogLevel string `mapstructure:"log_level"`
}

// Publisher configura o workflow engine de publicação de anúncios
type Publisher struct {
	MaxConcurrentJobs     int  `mapstructure:"publisher_max_concurrent_jobs"`
	PollIntervalSeconds   int  `mapstructure:"publisher_poll_interval_seconds"`
	ClaimLeaseSeconds     int  `mapstructure:"publisher_claim_lease_seconds"`
	StepTimeoutSeconds    int  `mapstructure:"publisher_step_timeout_seconds"`
	RetryBaseDelaySeconds int  `mapstructure:"publisher_retry_base_delay_seconds"`
	RetryMaxDelaySeconds  int  `mapstructure:"publisher_retry_max_delay_seconds"`
	MaxStepAttempts       int  `mapstructure:"publisher_max_step_attempts"`
	Enabled               bool `mapstructure:"publisher_enabled"`
}

// InsightSync configura o agendador de coleta de insights
type InsightSync struct {
	CronSchedule           string `mapstructure:"insight_sync_cron"`
	LookbackDays           int    `mapstructure:"insight_sync_lookback_days"`
	MaxConcurrentFetches   int    `mapstructure:"insight_sync_max_concurrent_fetches"`
	FetchTimeoutSeconds    int    `mapstructure:"insight_sync_fetch_timeout_seconds"`
	MaxConsecutiveFailures int    `mapstructure:"insight_sync_max_consecutive_failures"`
	Enabled                bool   `mapstructure:"insight_sync_enabled"`
}

// Prediction configura o webhook de vínculo com o serviço de predição
type Prediction struct {
	WebhookURL     string `mapstructure:"prediction_webhook_url"`
	TimeoutSeconds int    `mapstructure:"prediction_timeout_seconds"`
}

func SetDefaults() {
	viper.SetDefault("HOST", "localhost")
	viper.SetDefault("PORT", 8000)

	viper.SetDefault("DATABASE_DRIVER", "postgres")
	viper.SetDefault("DATABASE_URL", "localhost:5432/adpublisher")
	viper.SetDefault("DATABASE_USER", "postgres")
	viper.SetDefault("DATABASE_PASSWORD", "root")

	viper.SetDefault("META_BASE_URL", "https://graph.facebook.com")
	viper.SetDefault("META_VERSION", "v22.0")
	viper.SetDefault("META_ACCESS_TOKEN", "your_access_token") // ONLY LOCAL
	viper.SetDefault("META_AD_ACCOUNT_ID", "")
	viper.SetDefault("META_PAGE_ID", "")
	viper.SetDefault("META_DEFAULT_LINK", "")
	viper.SetDefault("META_RATE_LIMIT_PER_SECOND", 1.0)
	viper.SetDefault("META_RATE_BURST", 1)
	viper.SetDefault("META_DRY_RUN", true)

	// Defaults do workflow engine de publicação
	viper.SetDefault("PUBLISHER_MAX_CONCURRENT_JOBS", 4)       // 4 jobs concorrentes
	viper.SetDefault("PUBLISHER_POLL_INTERVAL_SECONDS", 5)     // Polling da fila a cada 5 segundos
	viper.SetDefault("PUBLISHER_CLAIM_LEASE_SECONDS", 300)     // Lease de 5 minutos por job
	viper.SetDefault("PUBLISHER_STEP_TIMEOUT_SECONDS", 30)     // Timeout por tentativa de passo
	viper.SetDefault("PUBLISHER_RETRY_BASE_DELAY_SECONDS", 2)  // Backoff inicial de 2 segundos
	viper.SetDefault("PUBLISHER_RETRY_MAX_DELAY_SECONDS", 60)  // Backoff limitado a 60 segundos
	viper.SetDefault("PUBLISHER_MAX_STEP_ATTEMPTS", 5)         // 5 tentativas por passo
	viper.SetDefault("PUBLISHER_ENABLED", true)

	// Defaults para sincronização de insights
	viper.SetDefault("INSIGHT_SYNC_CRON", "0 * * * *")          // A cada hora cheia
	viper.SetDefault("INSIGHT_SYNC_LOOKBACK_DAYS", 7)           // 7 dias para buscar dados
	viper.SetDefault("INSIGHT_SYNC_MAX_CONCURRENT_FETCHES", 5)  // 5 coletas concorrentes
	viper.SetDefault("INSIGHT_SYNC_FETCH_TIMEOUT_SECONDS", 30)  // Timeout por coleta
	viper.SetDefault("INSIGHT_SYNC_MAX_CONSECUTIVE_FAILURES", 3)
	viper.SetDefault("INSIGHT_SYNC_ENABLED", true)

	viper.SetDefault("PREDICTION_WEBHOOK_URL", "")
	viper.SetDefault("PREDICTION_TIMEOUT_SECONDS", 10)

	viper.SetDefault("LOG_LEVEL", "debug")
}

func NewConfig() (*Config, error) {
	// Primeiro carregar o arquivo .env usando godotenv
	loadEnvFile() // ONLY LOCAL

	config := &Config{}

	// Configurar valores padrão
	SetDefaults()

	// Configurar o Viper
	viper.SetConfigType("env")
	viper.SetConfigFile(".env")
	viper.AutomaticEnv() // Isso permite que o Viper leia variáveis de ambiente

	// Tentar ler o arquivo .env com o Viper (opcional, já que usamos godotenv)
	if err := viper.ReadInConfig(); err != nil {
		logrus.Info("Usando variáveis carregadas pelo godotenv (viper não conseguiu ler .env):", err)
	} else {
		logrus.Info("Arquivo .env lido pelo Viper com sucesso")
	}

	err := viper.Unmarshal(&config, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	))
	if err != nil {
		return nil, err
	}

	config.Meta.URL = fmt.Sprintf("%s/%s", config.Meta.BaseURL, config.Meta.Version)

	config.Database.DSN = fmt.Sprintf(
		"%s://%s:%s@%s",
		config.Database.Driver,
		config.Database.User,
		config.Database.Password,
		config.Database.URL,
	)

	return config, nil
}

// Função auxiliar para carregar o arquivo .env usando godotenv
func loadEnvFile() {
	// Obter diretório atual
	cwd, err := os.Getwd()
	if err != nil {
		logrus.Warn("Não foi possível obter o diretório atual:", err)
		return
	}

	// Tentar várias localizações possíveis para o arquivo .env
	locations := []string{
		filepath.Join(cwd, ".env"),               // Diretório atual
		filepath.Join(filepath.Dir(cwd), ".env"), // Diretório pai
		filepath.Join(cwd, "../.env"),            // Diretório acima
		filepath.Join(cwd, "../../.env"),         // Dois diretórios acima
	}

	for _, location := range locations {
		logrus.Info("Tentando carregar .env de:", location)
		err := godotenv.Load(location)
		if err == nil {
			logrus.Info("Arquivo .env carregado com sucesso de:", location)
			return
		}
	}

	logrus.Warn("Não foi possível carregar o arquivo .env de nenhuma localização conhecida")
}
