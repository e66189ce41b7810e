// Package testutil connects tests to live stores. Every helper skips the
// calling test when the store's environment variable is unset, so the
// default `go test ./...` run needs no database.
package testutil

import (
	"os"
	"time"
)

const (
	EnvPostgresDSN   = "TEST_POSTGRES_DSN"
	EnvMongoURI      = "TEST_MONGO_URI"
	EnvMongoDatabase = "TEST_MONGO_DB"

	DefaultMongoDatabase = "huddle_test"
	ConnectionTimeout    = 10 * time.Second
)

type TestEnv struct {
	PostgresDSN   string
	MongoURI      string
	MongoDatabase string
}

func NewTestEnv() *TestEnv {
	return &TestEnv{
		PostgresDSN:   os.Getenv(EnvPostgresDSN),
		MongoURI:      os.Getenv(EnvMongoURI),
		MongoDatabase: getEnv(EnvMongoDatabase, DefaultMongoDatabase),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
