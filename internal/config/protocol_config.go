package config

import "time"

// ProtocolConfig holds the admission protocol constants. WindowSeconds and ToleranceSteps are part
// of the wire contract and must be identical on the pass holder's device and at the gate.
type ProtocolConfig interface {
	GetWindowSeconds() int64
	GetToleranceSteps() int64
	GetLookupTimeout() time.Duration
	GetRotationGrace() time.Duration
	GetEvictInterval() time.Duration
}

type Protocol struct {
	settings Settings
}

var _ ProtocolConfig = Protocol{}

func (p Protocol) GetWindowSeconds() int64 {
	return p.settings.WindowSeconds
}

func (p Protocol) GetToleranceSteps() int64 {
	return p.settings.ToleranceSteps
}

func (p Protocol) GetLookupTimeout() time.Duration {
	return p.settings.LookupTimeout
}

func (p Protocol) GetRotationGrace() time.Duration {
	return p.settings.RotationGrace
}

func (p Protocol) GetEvictInterval() time.Duration {
	return p.settings.EvictInterval
}
