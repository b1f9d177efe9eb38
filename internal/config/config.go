package config

import (
	"time"

	pkgconfig "github.com/weiawesome/wes-io-live/live-room-service/pkg/config"
	"github.com/weiawesome/wes-io-live/live-room-service/pkg/database"
	"github.com/weiawesome/wes-io-live/live-room-service/pkg/storage"
)

type Config struct {
	Server    ServerConfig
	WebSocket WebSocketConfig
	Room      RoomConfig
	Chat      ChatConfig
	Gifts     GiftsConfig
	Follow    FollowConfig
	Snapshot  SnapshotConfig
	Kafka     KafkaConfig
	ICE       ICEConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	SendBuffer     int           `mapstructure:"send_buffer"`
}

type RoomConfig struct {
	GuestCapacity int           `mapstructure:"guest_capacity"`
	GracePeriod   time.Duration `mapstructure:"grace_period"`
	RestoreGrace  time.Duration `mapstructure:"restore_grace"`
}

type ChatConfig struct {
	MinInterval      time.Duration `mapstructure:"min_interval"`
	ReactionInterval time.Duration `mapstructure:"reaction_interval"`
}

type GiftsConfig struct {
	Enabled         bool       `mapstructure:"enabled"`
	InitialBalance  int64      `mapstructure:"initial_balance"`
	LeaderboardSize int        `mapstructure:"leaderboard_size"`
	Catalog         []GiftItem `mapstructure:"catalog"`
}

// GiftItem overrides one catalog entry.
type GiftItem struct {
	Type     string `mapstructure:"type"`
	UnitCost int64  `mapstructure:"unit_cost"`
	Symbol   string `mapstructure:"symbol"`
}

type FollowConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type SnapshotConfig struct {
	Driver    string          `mapstructure:"driver"` // none, redis, storage, database
	KeyPrefix string          `mapstructure:"key_prefix"`
	Timeout   time.Duration   `mapstructure:"timeout"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Storage   storage.Config  `mapstructure:"storage"`
	Database  database.Config `mapstructure:"database"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Enabled    bool
	Brokers    string
	Topic      string
	Partitions int
}

type ICEConfig struct {
	Provider         string            `mapstructure:"provider"` // static, cloudflare, twilio
	Servers          []ICEServerConfig `mapstructure:"servers"`
	TurnKeyID        string            `mapstructure:"turn_key_id"`
	TurnKey          string            `mapstructure:"turn_key"`
	TwilioAccountSID string            `mapstructure:"twilio_account_sid"`
	TwilioAuthToken  string            `mapstructure:"twilio_auth_token"`
	CacheTTL         time.Duration     `mapstructure:"cache_ttl"`
	Timeout          time.Duration     `mapstructure:"timeout"`
}

type ICEServerConfig struct {
	URLs       []string `mapstructure:"urls"`
	Username   string   `mapstructure:"username"`
	Credential string   `mapstructure:"credential"`
}

type LogConfig struct {
	Level  string
	Pretty bool
}

func Load() (*Config, error) {
	return LoadFrom("./config", "config")
}

func LoadFrom(path, name string) (*Config, error) {
	v, err := pkgconfig.Load(path, name)
	if err != nil {
		return nil, err
	}

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8090)
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 65536)
	v.SetDefault("websocket.send_buffer", 256)
	v.SetDefault("room.guest_capacity", 4)
	v.SetDefault("room.grace_period", "15s")
	v.SetDefault("room.restore_grace", "60s")
	v.SetDefault("chat.min_interval", "1200ms")
	v.SetDefault("chat.reaction_interval", "200ms")
	v.SetDefault("gifts.enabled", true)
	v.SetDefault("gifts.initial_balance", 1000)
	v.SetDefault("gifts.leaderboard_size", 5)
	v.SetDefault("follow.enabled", true)
	v.SetDefault("snapshot.driver", "none")
	v.SetDefault("snapshot.key_prefix", "live-room:snapshot:")
	v.SetDefault("snapshot.timeout", "5s")
	v.SetDefault("snapshot.redis.address", "localhost:6379")
	v.SetDefault("snapshot.redis.password", "")
	v.SetDefault("snapshot.redis.db", 0)
	v.SetDefault("snapshot.storage.driver", "local")
	v.SetDefault("snapshot.storage.local.base_path", "./data/snapshots")
	v.SetDefault("snapshot.database.driver", "sqlite")
	v.SetDefault("snapshot.database.file_path", "./data/live-room.db")
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.topic", "live-events")
	v.SetDefault("kafka.partitions", 4)
	v.SetDefault("ice.provider", "static")
	v.SetDefault("ice.cache_ttl", "10m")
	v.SetDefault("ice.timeout", "10s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// Override from environment
	v.BindEnv("server.port", "PORT")
	v.BindEnv("room.grace_period", "HOST_GRACE_PERIOD")
	v.BindEnv("room.guest_capacity", "GUEST_CAPACITY")
	v.BindEnv("snapshot.driver", "SNAPSHOT_DRIVER")
	v.BindEnv("snapshot.redis.address", "REDIS_ADDRESS")
	v.BindEnv("snapshot.redis.password", "REDIS_PASSWORD")
	v.BindEnv("snapshot.storage.s3.endpoint", "S3_ENDPOINT")
	v.BindEnv("snapshot.storage.s3.bucket", "S3_BUCKET")
	v.BindEnv("snapshot.storage.s3.access_key_id", "S3_ACCESS_KEY_ID")
	v.BindEnv("snapshot.storage.s3.secret_access_key", "S3_SECRET_ACCESS_KEY")
	v.BindEnv("snapshot.database.host", "DB_HOST")
	v.BindEnv("snapshot.database.password", "DB_PASSWORD")
	v.BindEnv("kafka.enabled", "KAFKA_ENABLED")
	v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("kafka.topic", "KAFKA_LIVE_TOPIC")
	v.BindEnv("ice.provider", "ICE_PROVIDER")
	v.BindEnv("ice.turn_key_id", "CF_TURN_ID")
	v.BindEnv("ice.turn_key", "CF_TURN_KEY")
	v.BindEnv("ice.twilio_account_sid", "TWILIO_ACCOUNT_SID")
	v.BindEnv("ice.twilio_auth_token", "TWILIO_AUTH_TOKEN")
	v.BindEnv("log.level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Parse durations
	cfg.WebSocket.PingInterval = pkgconfig.Duration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = pkgconfig.Duration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = pkgconfig.Duration(v, "websocket.write_wait", 10*time.Second)
	cfg.Room.GracePeriod = pkgconfig.Duration(v, "room.grace_period", 15*time.Second)
	cfg.Room.RestoreGrace = pkgconfig.Duration(v, "room.restore_grace", 60*time.Second)
	cfg.Chat.MinInterval = pkgconfig.Duration(v, "chat.min_interval", 1200*time.Millisecond)
	cfg.Chat.ReactionInterval = pkgconfig.Duration(v, "chat.reaction_interval", 200*time.Millisecond)
	cfg.Snapshot.Timeout = pkgconfig.Duration(v, "snapshot.timeout", 5*time.Second)
	cfg.ICE.CacheTTL = pkgconfig.Duration(v, "ice.cache_ttl", 10*time.Minute)
	cfg.ICE.Timeout = pkgconfig.Duration(v, "ice.timeout", 10*time.Second)

	if cfg.Room.GuestCapacity < 1 {
		cfg.Room.GuestCapacity = 1
	}
	if cfg.Gifts.LeaderboardSize < 1 {
		cfg.Gifts.LeaderboardSize = 5
	}
	if cfg.Gifts.InitialBalance < 0 {
		cfg.Gifts.InitialBalance = 0
	}

	return &cfg, nil
}
