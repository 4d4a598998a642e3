package config

type StoreConfig interface {
	// GetRedisURL is empty when the replay cache should stay in process memory.
	GetRedisURL() string
	// GetDatabaseURL is empty when secrets should stay in process memory.
	GetDatabaseURL() string
}

type Stores struct {
	settings Settings
}

var _ StoreConfig = Stores{}

func (s Stores) GetRedisURL() string {
	return s.settings.RedisURL
}

func (s Stores) GetDatabaseURL() string {
	return s.settings.DatabaseURL
}
