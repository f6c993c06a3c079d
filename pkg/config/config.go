package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix scopes every environment variable the platform reads.
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "GARAGEBID_DB_DSN"
	EnvDBHost = "GARAGEBID_DB_HOST"
	EnvDBUser = "GARAGEBID_DB_USER"
	EnvDBName = "GARAGEBID_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App         AppConfig
	Service     ServiceConfig
	DB          DBConfig
	Redis       RedisConfig
	GCP         GCPConfig
	PubSub      PubSubConfig
	Marketplace MarketplaceConfig
	Cron        CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"GARAGEBID_APP_ENV" required:"true"`
	Port         string `envconfig:"GARAGEBID_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"GARAGEBID_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"GARAGEBID_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"GARAGEBID_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"GARAGEBID_DB_DSN"`
	Driver string `envconfig:"GARAGEBID_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"GARAGEBID_DB_HOST"`
	LegacyPort     int    `envconfig:"GARAGEBID_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"GARAGEBID_DB_USER"`
	LegacyPassword string `envconfig:"GARAGEBID_DB_PASSWORD"`
	LegacyName     string `envconfig:"GARAGEBID_DB_NAME"`
	LegacySSLMode  string `envconfig:"GARAGEBID_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"GARAGEBID_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"GARAGEBID_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"GARAGEBID_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"GARAGEBID_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	AutoMigrate bool `envconfig:"GARAGEBID_AUTO_MIGRATE" default:"false"`
}

type RedisConfig struct {
	URL          string        `envconfig:"GARAGEBID_REDIS_URL"`
	Address      string        `envconfig:"GARAGEBID_REDIS_ADDR"`
	Password     string        `envconfig:"GARAGEBID_REDIS_PASSWORD"`
	DB           int           `envconfig:"GARAGEBID_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GARAGEBID_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"GARAGEBID_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"GARAGEBID_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GARAGEBID_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"GARAGEBID_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"GARAGEBID_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	NotificationTopic string `envconfig:"GARAGEBID_PUBSUB_NOTIFICATION_TOPIC" default:"gb-notification-events"`
}

// MarketplaceConfig carries the money and negotiation tunables of the core.
type MarketplaceConfig struct {
	DefaultCommissionRate  float64       `envconfig:"GARAGEBID_DEFAULT_COMMISSION_RATE" default:"0.15"`
	FlatDeliveryFee        float64       `envconfig:"GARAGEBID_FLAT_DELIVERY_FEE" default:"15.00"`
	MaxNegotiationRounds   int           `envconfig:"GARAGEBID_MAX_NEGOTIATION_ROUNDS" default:"3"`
	DisputeWindowHours     int           `envconfig:"GARAGEBID_DISPUTE_WINDOW_HOURS" default:"48"`
	MaxDisputePhotos       int           `envconfig:"GARAGEBID_MAX_DISPUTE_PHOTOS" default:"5"`
	PayoutDelayDays        int           `envconfig:"GARAGEBID_PAYOUT_DELAY_DAYS" default:"7"`
	DriverEarningFloor     float64       `envconfig:"GARAGEBID_DRIVER_EARNING_FLOOR" default:"5.00"`
	DriverEarningRate      float64       `envconfig:"GARAGEBID_DRIVER_EARNING_RATE" default:"0.10"`
	DisputeAutoResolveWait time.Duration `envconfig:"GARAGEBID_DISPUTE_AUTO_RESOLVE_WAIT" default:"72h"`
}

// DisputeWindow returns the dispute eligibility window as a duration.
func (m MarketplaceConfig) DisputeWindow() time.Duration {
	return time.Duration(m.DisputeWindowHours) * time.Hour
}

// PayoutDelay returns how long a payout stays scheduled before release.
func (m MarketplaceConfig) PayoutDelay() time.Duration {
	return time.Duration(m.PayoutDelayDays) * 24 * time.Hour
}

type CronConfig struct {
	Interval time.Duration `envconfig:"GARAGEBID_CRON_INTERVAL" default:"1h"`
	LockKey  string        `envconfig:"GARAGEBID_CRON_LOCK_KEY" default:"gb:cron:lock"`
	LockTTL  time.Duration `envconfig:"GARAGEBID_CRON_LOCK_TTL" default:"2h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
