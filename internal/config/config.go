package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Server configures the onboarding backend.
type Server struct {
	ListenAddr       string `validate:"required"`
	DBPath           string `validate:"required"`
	DefaultStudentID string `validate:"required"`
	ProgramFile      string
	RequestTimeout   time.Duration `validate:"gt=0"`
}

// Bot configures the Telegram presentation of the journey.
type Bot struct {
	Token          string        `validate:"required"`
	AdminID        int64         `validate:"gte=0"`
	APIURL         string        `validate:"required,url"`
	StudentID      string
	RequestTimeout time.Duration `validate:"gt=0"`
	IdleTTL        time.Duration `validate:"gt=0"`
}

func LoadServer() (Server, error) {
	timeout, err := getDuration("REQUEST_TIMEOUT", 30*time.Second)
	if err != nil {
		return Server{}, err
	}
	cfg := Server{
		ListenAddr:       get("LISTEN_ADDR", ":8000"),
		DBPath:           get("DB_PATH", "onboarding.db"),
		DefaultStudentID: get("DEFAULT_STUDENT_ID", "demo_student"),
		ProgramFile:      get("PROGRAM_FILE", ""),
		RequestTimeout:   timeout,
	}
	if err := validate.Struct(cfg); err != nil {
		return Server{}, fmt.Errorf("invalid server config: %w", err)
	}
	return cfg, nil
}

// LoadBot reads the bot settings. STUDENT_ID pins every chat to one student;
// when empty each chat is its own student.
func LoadBot() (Bot, error) {
	var adminID int64
	if raw := get("ADMIN_ID", ""); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Bot{}, fmt.Errorf("invalid ADMIN_ID: %w", err)
		}
		adminID = id
	}
	timeout, err := getDuration("REQUEST_TIMEOUT", 15*time.Second)
	if err != nil {
		return Bot{}, err
	}
	ttl, err := getDuration("IDLE_TTL", 30*time.Minute)
	if err != nil {
		return Bot{}, err
	}

	cfg := Bot{
		Token:          get("BOT_TOKEN", ""),
		AdminID:        adminID,
		APIURL:         get("API_URL", "http://localhost:8000/api"),
		StudentID:      get("STUDENT_ID", ""),
		RequestTimeout: timeout,
		IdleTTL:        ttl,
	}
	if err := validate.Struct(cfg); err != nil {
		return Bot{}, fmt.Errorf("invalid bot config: %w", err)
	}
	return cfg, nil
}

func get(name, fallback string) string {
	if value, ok := os.LookupEnv(name); ok && value != "" {
		return value
	}
	return fallback
}

func getDuration(name string, fallback time.Duration) (time.Duration, error) {
	raw := get(name, "")
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return d, nil
}
