package constants

import "time"

const Version = "0.3.0"

// Network defaults
const (
	DefaultAPIURL         = "http://localhost:3000/api"
	APIPathSuffix         = "/api"
	DialTimeout           = 10 * time.Second
	WSHandshakeTimeout    = 10 * time.Second
	WSBufferSize          = 16384
	MaxWSMessageSize      = 1 << 20
	PollingRequestTimeout = 60 * time.Second
)

// Auth API endpoints, relative to the API base URL
const (
	EndpointCheck         = "/auth/check"
	EndpointSignup        = "/auth/signup"
	EndpointLogin         = "/auth/login"
	EndpointLogout        = "/auth/logout"
	EndpointUpdateProfile = "/auth/update-profile"
)

// Realtime channel settings
const (
	SocketPath               = "/socket.io/"
	SocketProtocolVersion    = "4"
	SocketUserIDParam        = "userId"
	EventOnlineUsers         = "getOnlineUsers"
	DefaultReconnectAttempts = 5
	DefaultReconnectDelay    = time.Second
	LoginConnectDelay        = time.Second
)

// Headers
const (
	HeaderRequestID   = "X-Request-ID"
	HeaderContentType = "Content-Type"
	HeaderAccept      = "Accept"
	ContentTypeJSON   = "application/json"
)

// Preferences
const (
	ThemeKey          = "chat-theme"
	SessionCookiesKey = "chat-session"
	DefaultTheme      = "luxury"
	PrefsFileName     = "prefs.json"
	RedisKeyPrefix    = "chatline:prefs:"
	AppDirName        = "chatline"
)

// ANSI color codes
const (
	ColorReset  = "\033[0m"
	ColorBold   = "\033[1m"
	ColorDim    = "\033[2m"
	ColorCyan   = "\033[36m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorRed    = "\033[31m"
	ColorPurple = "\033[35m"
)

// Notification messages
const (
	MsgCheckAuthFailed = "Failed to check authentication status"
	MsgSignupSuccess   = "Account created successfully"
	MsgSignupFailed    = "Failed to create account"
	MsgLoginSuccess    = "Logged in successfully"
	MsgLoginFailed     = "Failed to log in"
	MsgLogoutSuccess   = "Logged out successfully"
	MsgLogoutFailed    = "Failed to log out"
	MsgProfileUpdated  = "Profile updated successfully"
	MsgProfileFailed   = "Failed to update profile"
	MsgUsage           = "Usage: chatline <command> [args]"
	MsgExample         = "Example: chatline login"
)

// Time formats
const (
	TimeFormatShort = "15:04:05"
)
