package constant

// Pagination limits
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Redis key patterns (without prefix, use RedisKey*() to get full key)
const (
	redisKeyOnline = "online:%s:%s" // online:{user_type}:{user_id}
)

// redisKeyPrefix is the global prefix for all Redis keys
var redisKeyPrefix = "portal:"

// InitRedisKeyPrefix initializes the Redis key prefix from config
func InitRedisKeyPrefix(prefix string) {
	if prefix != "" {
		redisKeyPrefix = prefix
	}
}

// GetRedisKeyPrefix returns the current Redis key prefix
func GetRedisKeyPrefix() string {
	return redisKeyPrefix
}

// RedisKeyOnline returns the presence key pattern with prefix
func RedisKeyOnline() string { return redisKeyPrefix + redisKeyOnline }
