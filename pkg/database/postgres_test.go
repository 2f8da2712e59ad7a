package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/tutoring-ledger-api/pkg/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{
		Host:     "db",
		Port:     5433,
		User:     "ledger",
		Password: "secret",
		Name:     "tutoring",
		SSLMode:  "disable",
	})

	assert.Equal(t, "host=db port=5433 user=ledger password=secret dbname=tutoring sslmode=disable", dsn)
}
