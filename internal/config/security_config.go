package config

type SecurityConfig interface {
	GetSealingKey() []byte
	GetDeviceTokenSecret() []byte
	GetDeviceTokenIssuer() string
}

type Security struct {
	settings Settings
}

var _ SecurityConfig = Security{}

// GetSealingKey returns the master key used to seal secrets at rest.
func (s Security) GetSealingKey() []byte {
	return []byte(s.settings.SealingKey)
}

func (s Security) GetDeviceTokenSecret() []byte {
	return []byte(s.settings.DeviceTokenSecret)
}

func (s Security) GetDeviceTokenIssuer() string {
	return s.settings.DeviceTokenIssuer
}
