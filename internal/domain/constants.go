package domain

const (
	RoleUser      = "USER"
	RoleModerator = "MODERATOR"
	RoleAdmin     = "ADMIN"
)

// Audit severities, ordered from least to most serious.
const (
	SeverityDebug    = "DEBUG"
	SeverityInfo     = "INFO"
	SeverityWarn     = "WARN"
	SeverityError    = "ERROR"
	SeverityCritical = "CRITICAL"
)

const (
	CategorySecurity = "SECURITY"
	CategoryAdmin    = "ADMIN"
	CategoryUser     = "USER"
	CategoryMessage  = "MESSAGE"
	CategorySystem   = "SYSTEM"
	CategoryGeneral  = "GENERAL"
)

const (
	MessageTypeText   = "TEXT"
	MessageTypeImage  = "IMAGE"
	MessageTypeFile   = "FILE"
	MessageTypeSystem = "SYSTEM"
)

const (
	PriorityLow    = "LOW"
	PriorityNormal = "NORMAL"
	PriorityHigh   = "HIGH"
	PriorityUrgent = "URGENT"
)

const (
	BlockTypeManual    = "MANUAL"
	BlockTypeAutomatic = "AUTOMATIC"
	BlockTypeAdmin     = "ADMIN"
)

const (
	BlockSeverityLow      = "LOW"
	BlockSeverityNormal   = "NORMAL"
	BlockSeverityHigh     = "HIGH"
	BlockSeverityCritical = "CRITICAL"
)

// Session logout reasons.
const (
	LogoutManual   = "MANUAL"
	LogoutTimeout  = "TIMEOUT"
	LogoutForce    = "FORCE"
	LogoutSecurity = "SECURITY"
)

const (
	LoginMethodPassword = "PASSWORD"
	LoginMethodRefresh  = "REFRESH_TOKEN"
)

// Refresh token revocation reasons.
const (
	RevokeLogout         = "LOGOUT"
	RevokeRotated        = "ROTATED"
	RevokePasswordChange = "PASSWORD_CHANGE"
	RevokeSecurity       = "SECURITY"
	RevokeExpired        = "EXPIRED"
	RevokeReuse          = "REUSE_DETECTED"
)

// Audited actions.
const (
	ActionLogin          = "LOGIN"
	ActionLoginFailed    = "LOGIN_FAILED"
	ActionLogout         = "LOGOUT"
	ActionRegister       = "REGISTER_USER"
	ActionRefreshToken   = "REFRESH_TOKEN"
	ActionPasswordChange = "PASSWORD_CHANGE"
	ActionTokenReuse     = "TOKEN_REUSE"
	ActionSendMessage    = "SEND_MESSAGE"
	ActionEditMessage    = "UPDATE_MESSAGE"
	ActionDeleteMessage  = "DELETE_MESSAGE"
	ActionBlockUser      = "BLOCK_USER"
	ActionUnblockUser    = "UNBLOCK_USER"
)

const (
	EntityUser     = "USER"
	EntityMessage  = "MESSAGE"
	EntityBlock    = "BLOCKED_USER"
	EntitySession  = "USER_SESSION"
	EntityToken    = "REFRESH_TOKEN"
	EntityAuditLog = "AUDIT_LOG"
)
