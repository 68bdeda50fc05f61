package config

import (
	"fmt"
	"os"
	"strconv"
)

func GetDSN() string {
	DATABASE_HOST := os.Getenv("DATABASE_HOST")
	DATABASE_PORT := os.Getenv("DATABASE_PORT")
	DATABASE_SSLMODE := os.Getenv("DATABASE_SSLMODE")
	DATABASE_TIMEZONE := os.Getenv("DATABASE_TIMEZONE")
	DATABASE_USER := os.Getenv("DATABASE_USER")
	DATABASE_PASSWORD := os.Getenv("DATABASE_PASSWORD")
	DATABASE_NAME := os.Getenv("DATABASE_NAME")
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s", DATABASE_HOST, DATABASE_USER, DATABASE_PASSWORD, DATABASE_NAME, DATABASE_PORT, DATABASE_SSLMODE, DATABASE_TIMEZONE)
	return dsn
}

const TIME_PARSE_FORMAT = "2006-01-02T15:04:05Z07:00"

// Platform fee retained from every settled booking. Versioned so stored
// settlements stay reproducible if the rate ever changes: bump the version
// together with the rate and keep both on the settlement row.
const (
	PLATFORM_FEE_RATE         float64 = 0.15
	PLATFORM_FEE_RATE_VERSION string  = "2024-09"
)

const CURRENCY = "usd"

func APIEnv() string {
	return os.Getenv("API_ENV")
}

func IsProduction() bool {
	return APIEnv() == "production"
}

// RequireVerifiedIdentity gates charge creation on the requester having an
// approved identity verification. Policy flag, off unless set.
func RequireVerifiedIdentity() bool {
	v, err := strconv.ParseBool(os.Getenv("REQUIRE_VERIFIED_IDENTITY_FOR_PAYMENT"))
	if err != nil {
		return false
	}
	return v
}
