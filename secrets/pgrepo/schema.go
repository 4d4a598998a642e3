package pgrepo

const tableIdentitySecrets = "identity_secrets"

const (
	colUserID       = "user_id"
	colVersion      = "version"
	colSealedSecret = "sealed_secret"
	colActiveFrom   = "active_from"
	colRetiredAt    = "retired_at"
)
