package config

import (
	"errors"
	"flag"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

var (
	RunAddress     string
	DatabaseURI    string
	DatabaseDriver string
	LogLevel       string

	SMTPHost       string
	SMTPPort       int
	SMTPUsername   string
	SMTPPassword   string
	MailFrom       string
	OperationsMail string
	MailTimeout    time.Duration

	ReportsDir string
	ReportTZ   string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LocationTTL   time.Duration

	DailySchedule     string
	WeeklySchedule    string
	ApprovalsSchedule string
	TickTimeout       time.Duration
)

var ErrDatabaseURIRequired = errors.New("DATABASE_URL is required")

func ParseFlags() {
	// .env is optional, real environment wins over it
	_ = godotenv.Load()

	flag.StringVar(&RunAddress, "a", ":8080", "address to run server")
	flag.StringVar(&DatabaseURI, "d", "", "database uri")
	flag.StringVar(&DatabaseDriver, "driver", "pgx", "database/sql driver: pgx or postgres")
	flag.StringVar(&LogLevel, "l", "info", "log level")

	flag.StringVar(&SMTPHost, "smtp-host", "smtp-pulse.com", "smtp relay host")
	flag.IntVar(&SMTPPort, "smtp-port", 587, "smtp relay port")
	flag.StringVar(&SMTPUsername, "smtp-user", "", "smtp username")
	flag.StringVar(&SMTPPassword, "smtp-password", "", "smtp password")
	flag.StringVar(&MailFrom, "mail-from", "topgo-noreply@yandex.ru", "sender address")
	flag.StringVar(&OperationsMail, "ops-mail", "topgo-noreply@yandex.ru", "operations address for aggregate reports")
	flag.DurationVar(&MailTimeout, "mail-timeout", 30*time.Second, "timeout of a single mail send")

	flag.StringVar(&ReportsDir, "reports-dir", "summary", "directory for generated spreadsheets")
	flag.StringVar(&ReportTZ, "tz", "Europe/Moscow", "time zone used for report dates")

	flag.StringVar(&RedisAddr, "redis", "localhost:6379", "redis address")
	flag.StringVar(&RedisPassword, "redis-password", "", "redis password")
	flag.IntVar(&RedisDB, "redis-db", 0, "redis database")
	flag.DurationVar(&LocationTTL, "location-ttl", 15*time.Minute, "courier location lifetime")

	flag.StringVar(&DailySchedule, "daily", "0 3 * * *", "daily reports schedule")
	flag.StringVar(&WeeklySchedule, "weekly", "0 4 * * 1", "weekly settlement schedule")
	flag.StringVar(&ApprovalsSchedule, "approvals", "@every 1m", "approvals processing schedule")
	flag.DurationVar(&TickTimeout, "tick-timeout", 30*time.Minute, "upper bound of one trigger run")
	flag.Parse()

	if envRunAddr := os.Getenv("RUN_ADDRESS"); envRunAddr != "" {
		RunAddress = envRunAddr
	}
	if databaseURI := os.Getenv("DATABASE_URL"); databaseURI != "" {
		DatabaseURI = databaseURI
	}
	if driver := os.Getenv("DATABASE_DRIVER"); driver != "" {
		DatabaseDriver = driver
	}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		LogLevel = lvl
	}

	stringEnv("SMTP_HOST", &SMTPHost)
	intEnv("SMTP_PORT", &SMTPPort)
	stringEnv("SMTP_USERNAME", &SMTPUsername)
	stringEnv("SMTP_PASSWORD", &SMTPPassword)
	stringEnv("MAIL_FROM", &MailFrom)
	stringEnv("OPERATIONS_MAIL", &OperationsMail)
	durationEnv("MAIL_TIMEOUT", &MailTimeout)

	stringEnv("REPORTS_DIR", &ReportsDir)
	stringEnv("REPORT_TZ", &ReportTZ)

	stringEnv("REDIS_ADDR", &RedisAddr)
	stringEnv("REDIS_PASSWORD", &RedisPassword)
	intEnv("REDIS_DB", &RedisDB)
	durationEnv("LOCATION_TTL", &LocationTTL)

	stringEnv("DAILY_SCHEDULE", &DailySchedule)
	stringEnv("WEEKLY_SCHEDULE", &WeeklySchedule)
	stringEnv("APPROVALS_SCHEDULE", &ApprovalsSchedule)
	durationEnv("TICK_TIMEOUT", &TickTimeout)
}

func Validate() error {
	if DatabaseURI == "" {
		return ErrDatabaseURIRequired
	}
	return nil
}

func Location() (*time.Location, error) {
	return time.LoadLocation(ReportTZ)
}

func stringEnv(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// malformed numbers keep the flag value
func intEnv(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func durationEnv(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
