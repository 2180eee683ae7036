package config

import "time"

// RateLimitConfig drives the Redis token bucket placed in front of /api.
// The defaults allow 100 requests per client per hour, which keeps login
// and forgot-password endpoints from being brute forced.
type RateLimitConfig struct {
    Enabled        bool
    Capacity       int
    RefillTokens   int
    RefillInterval time.Duration
    TTL            time.Duration
    KeyStrategy    string // ip | user | ip_user | ip_route | user_route | ip_user_route
    Prefix         string
    Message        string
    Debug          bool
}

func LoadRateLimitConfig() RateLimitConfig {
    def := RateLimitConfig{
        Enabled:        envBool("RATE_LIMIT_ENABLED", true),
        Capacity:       envInt("RATE_LIMIT_CAPACITY", 100),
        RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 100),
        RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", time.Hour),
        TTL:            envDur("RATE_LIMIT_TTL", 2*time.Hour),
        KeyStrategy:    envStr("RATE_LIMIT_KEY_STRATEGY", "ip"),
        Prefix:         envStr("RATE_LIMIT_PREFIX", "rl:auth"),
        Message:        envStr("RATE_LIMIT_MESSAGE", "Too many requests from this IP, please try again in an hour!"),
        Debug:          envBool("RATE_LIMIT_DEBUG", false),
    }
    if def.Capacity < 1 { def.Capacity = 1 }
    if def.RefillTokens < 1 { def.RefillTokens = 1 }
    if def.RefillInterval <= 0 { def.RefillInterval = time.Hour }
    if def.TTL < def.RefillInterval { def.TTL = def.RefillInterval }
    return def
}
