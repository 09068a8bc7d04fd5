package datastore

import (
	"testing"

	"github.com/foodlens/foodlens-go/internal/conf"
	"github.com/stretchr/testify/assert"
)

func TestMySQLBuildDSN(t *testing.T) {
	settings := &conf.Settings{}
	settings.Output.MySQL.Username = "foodlens"
	settings.Output.MySQL.Password = "secret"
	settings.Output.MySQL.Host = "db.example.com"
	settings.Output.MySQL.Port = "3306"
	settings.Output.MySQL.Database = "foodlens"

	store := &MySQLStore{Settings: settings}
	assert.Equal(t,
		"foodlens:secret@tcp(db.example.com:3306)/foodlens?charset=utf8mb4&parseTime=True&loc=Local",
		store.buildDSN())
}

func TestMySQLOpenRequiresConfiguration(t *testing.T) {
	store := &MySQLStore{Settings: &conf.Settings{}}
	assert.Error(t, store.Open())
}
