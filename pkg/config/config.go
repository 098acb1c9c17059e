package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Server          ServerConfig          `mapstructure:"server"`
	GRPCServer      GRPCServerConfig      `mapstructure:"grpc_server"`
	Redis           RedisConfig           `mapstructure:"redis"`
	Kafka           KafkaConfig           `mapstructure:"kafka"`
	JWT             JWTConfig             `mapstructure:"jwt"`
	Log             LogConfig             `mapstructure:"log"`
	Minio           MinioConfig           `mapstructure:"minio"`
	Storage         StorageConfig         `mapstructure:"storage"`
	Transcode       TranscodeConfig       `mapstructure:"transcode"`
	Publish         PublishConfig         `mapstructure:"publish"`
	Worker          WorkerConfig          `mapstructure:"worker"`
	Notification    NotificationConfig    `mapstructure:"notification"`
	ServiceRegistry ServiceRegistryConfig `mapstructure:"service_registry"`
	Public          PublicConfig          `mapstructure:"public"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	MaxUploadMB  int64         `mapstructure:"max_upload_mb"`
}

// GRPCServerConfig gRPC server configuration. Only the standard health service is exposed.
type GRPCServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	EnableTLS    bool          `mapstructure:"enable_tls"`
}

// KafkaConfig Kafka配置
type KafkaConfig struct {
	BootstrapServers     []string          `mapstructure:"bootstrap_servers"`
	ClientID             string            `mapstructure:"client_id"`
	GroupID              string            `mapstructure:"group_id"`
	Enabled              bool              `mapstructure:"enabled"`
	Topics               KafkaTopicsConfig `mapstructure:"topics"`
	CommitOnDecodeError  bool              `mapstructure:"commit_on_decode_error"`
	CommitOnProcessError bool              `mapstructure:"commit_on_process_error"`
}

type KafkaTopicsConfig struct {
	PackageJobs string `mapstructure:"package_jobs"`
	JobOutcomes string `mapstructure:"job_outcomes"`
}

// JWTConfig guards key delivery when Secret is set.
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	Filename string `mapstructure:"filename"`
}

// MinioConfig MinIO配置
type MinioConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKey       string `mapstructure:"access_key"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	SecretKey       string `mapstructure:"secret_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	Region          string `mapstructure:"region"`
}

// StorageConfig selects the object storage backend and the buckets in use.
type StorageConfig struct {
	// Backend is "minio" or "local".
	Backend      string `mapstructure:"backend"`
	LocalRoot    string `mapstructure:"local_root"`
	RawBucket    string `mapstructure:"raw_bucket"`
	OutputBucket string `mapstructure:"output_bucket"`
	UploadPrefix string `mapstructure:"upload_prefix"`
}

// PublicConfig 对外访问配置
type PublicConfig struct {
	StorageBase string `mapstructure:"storage_base"`
}

// TranscodeConfig 转码配置
type TranscodeConfig struct {
	FFmpeg             FFmpegConfig      `mapstructure:"ffmpeg"`
	SegmentDuration    int               `mapstructure:"segment_duration"`
	MasterManifestName string            `mapstructure:"master_manifest_name"`
	VideoFolderName    string            `mapstructure:"video_folder_name"`
	KeyFileName        string            `mapstructure:"key_file_name"`
	KeyURLBase         string            `mapstructure:"key_url_base"`
	Renditions         []RenditionPreset `mapstructure:"renditions"`
	Deadlines          StageDeadlines    `mapstructure:"deadlines"`
}

// RenditionPreset is one row of the fallback rendition table.
type RenditionPreset struct {
	VideoBitrate int `mapstructure:"video_bitrate"`
	AudioBitrate int `mapstructure:"audio_bitrate"`
	Width        int `mapstructure:"width"`
	Height       int `mapstructure:"height"`
}

// StageDeadlines bounds the blocking stages of a job. Zero means no deadline.
type StageDeadlines struct {
	Fetch   time.Duration `mapstructure:"fetch"`
	Encode  time.Duration `mapstructure:"encode"`
	Publish time.Duration `mapstructure:"publish"`
}

// FFmpegConfig FFmpeg相关配置
type FFmpegConfig struct {
	BinaryPath  string `mapstructure:"binary_path"`
	ProbePath   string `mapstructure:"probe_path"`
	TempDir     string `mapstructure:"temp_dir"`
	VideoCodec  string `mapstructure:"video_codec"`
	AudioCodec  string `mapstructure:"audio_codec"`
	VideoPreset string `mapstructure:"video_preset"`
	Threads     int    `mapstructure:"threads"`
}

// PublishConfig controls the upload of a finished package.
type PublishConfig struct {
	Concurrency        int   `mapstructure:"concurrency"`
	MultipartThreshold int64 `mapstructure:"multipart_threshold"`
	PartSize           int64 `mapstructure:"part_size"`
	PartThreads        int   `mapstructure:"part_threads"`
	MaxDepth           int   `mapstructure:"max_depth"`
}

// WorkerConfig Worker相关配置
type WorkerConfig struct {
	Enabled             bool          `mapstructure:"enabled"`
	WorkerID            string        `mapstructure:"worker_id"`
	MaxConcurrentJobs   int           `mapstructure:"max_concurrent_jobs"`
	QueueBackend        string        `mapstructure:"queue_backend"`
	QueueCapacity       int           `mapstructure:"queue_capacity"`
	QueueKey            string        `mapstructure:"queue_key"`
	ShutdownGracePeriod time.Duration `mapstructure:"shutdown_grace_period"`
}

// NotificationConfig describes where job outcomes are delivered.
type NotificationConfig struct {
	CallbackURL string        `mapstructure:"callback_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	KafkaEnable bool          `mapstructure:"kafka_enable"`
}

// ServiceRegistryConfig registration configuration.
type ServiceRegistryConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Endpoints       []string      `mapstructure:"endpoints"`
	ServiceName     string        `mapstructure:"service_name"`
	ServiceID       string        `mapstructure:"service_id"`
	RegisterHost    string        `mapstructure:"register_host"`
	TTL             time.Duration `mapstructure:"ttl"`
	DialTimeout     time.Duration `mapstructure:"dial_timeout"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

var (
	globalMu     sync.RWMutex
	globalConfig *Config
)

// SetGlobalConfig 设置全局配置
func SetGlobalConfig(cfg *Config) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalConfig = cfg
}

// GetGlobalConfig 获取全局配置
func GetGlobalConfig() *Config {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalConfig
}

// Load 加载配置
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.SetDefault("server.port", 8085)
	v.SetDefault("server.mode", "release")
	v.SetDefault("grpc_server.enabled", true)
	v.SetDefault("storage.backend", "minio")
	v.SetDefault("storage.upload_prefix", "streams")
	v.SetDefault("worker.enabled", true)
	v.SetDefault("worker.queue_backend", "memory")
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.client_id", "streaming-engine")
	v.SetDefault("kafka.group_id", "streaming-engine-group")
	v.SetDefault("kafka.bootstrap_servers", []string{"localhost:29092"})
	v.SetDefault("kafka.topics.package_jobs", "package.jobs")
	v.SetDefault("kafka.topics.job_outcomes", "package.outcomes")
	v.SetDefault("kafka.commit_on_decode_error", true)
	v.SetDefault("kafka.commit_on_process_error", false)

	// 设置环境变量前缀
	v.SetEnvPrefix("STREAMING_ENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.normalize()

	return &config, nil
}

// Default returns a normalized configuration without reading any file.
func Default() *Config {
	c := &Config{}
	c.Storage.Backend = "local"
	c.Worker.QueueBackend = "memory"
	c.normalize()
	return c
}

// DefaultRenditions is the documented fallback table used when a job
// carries no rendition list of its own.
func DefaultRenditions() []RenditionPreset {
	return []RenditionPreset{
		{VideoBitrate: 250000, AudioBitrate: 250000, Width: 320, Height: -1},
		{VideoBitrate: 500000, AudioBitrate: 500000, Width: 640, Height: -1},
		{VideoBitrate: 1000000, AudioBitrate: 1000000, Width: 854, Height: -1},
		{VideoBitrate: 2000000, AudioBitrate: 2000000, Width: 1280, Height: -1},
	}
}

// normalize 补全配置的默认值
func (c *Config) normalize() {
	// 兼容不同的密钥字段
	if c.Minio.AccessKeyID == "" {
		c.Minio.AccessKeyID = c.Minio.AccessKey
	}
	if c.Minio.SecretAccessKey == "" {
		c.Minio.SecretAccessKey = c.Minio.SecretKey
	}

	if c.Server.Port == 0 {
		c.Server.Port = 8085
	}
	if c.Server.MaxUploadMB <= 0 {
		c.Server.MaxUploadMB = 2048
	}
	if c.GRPCServer.Host == "" {
		c.GRPCServer.Host = "0.0.0.0"
	}
	if c.GRPCServer.Port == 0 {
		c.GRPCServer.Port = 9095
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = "minio"
	}
	if c.Storage.LocalRoot == "" {
		c.Storage.LocalRoot = "storage/objects"
	}
	if c.Storage.RawBucket == "" {
		c.Storage.RawBucket = "raw-video"
	}
	if c.Storage.OutputBucket == "" {
		c.Storage.OutputBucket = c.Storage.RawBucket
	}
	c.Storage.UploadPrefix = strings.Trim(c.Storage.UploadPrefix, "/")
	if c.Storage.UploadPrefix == "" {
		c.Storage.UploadPrefix = "streams"
	}

	// FFmpeg默认值
	if c.Transcode.FFmpeg.TempDir == "" {
		c.Transcode.FFmpeg.TempDir = "/tmp/streaming-engine"
	}
	if c.Transcode.FFmpeg.BinaryPath == "" {
		c.Transcode.FFmpeg.BinaryPath = "ffmpeg"
	}
	if c.Transcode.FFmpeg.ProbePath == "" {
		c.Transcode.FFmpeg.ProbePath = "ffprobe"
	}
	if c.Transcode.FFmpeg.VideoCodec == "" {
		c.Transcode.FFmpeg.VideoCodec = "libx264"
	}
	if c.Transcode.FFmpeg.AudioCodec == "" {
		c.Transcode.FFmpeg.AudioCodec = "aac"
	}
	if c.Transcode.FFmpeg.VideoPreset == "" {
		c.Transcode.FFmpeg.VideoPreset = "medium"
	}
	if c.Transcode.FFmpeg.Threads < 0 {
		c.Transcode.FFmpeg.Threads = 0
	}
	if c.Transcode.SegmentDuration <= 0 {
		c.Transcode.SegmentDuration = 10
	}
	if c.Transcode.MasterManifestName == "" {
		c.Transcode.MasterManifestName = "master.m3u8"
	}
	if c.Transcode.VideoFolderName == "" {
		c.Transcode.VideoFolderName = "videos"
	}
	if c.Transcode.KeyFileName == "" {
		c.Transcode.KeyFileName = "keys"
	}
	if c.Transcode.KeyURLBase == "" {
		c.Transcode.KeyURLBase = "/keys/"
	}
	if len(c.Transcode.Renditions) == 0 {
		c.Transcode.Renditions = DefaultRenditions()
	}

	if c.Publish.Concurrency <= 0 {
		c.Publish.Concurrency = 10
	}
	if c.Publish.MultipartThreshold <= 0 {
		c.Publish.MultipartThreshold = 16 << 20
	}
	if c.Publish.PartSize < 5<<20 {
		c.Publish.PartSize = 5 << 20
	}
	if c.Publish.PartThreads <= 0 {
		c.Publish.PartThreads = 4
	}
	if c.Publish.MaxDepth <= 0 {
		c.Publish.MaxDepth = 16
	}

	// Worker相关默认值
	if c.Worker.MaxConcurrentJobs <= 0 {
		c.Worker.MaxConcurrentJobs = 2
	}
	if c.Worker.QueueBackend == "" {
		c.Worker.QueueBackend = "memory"
	}
	if c.Worker.QueueCapacity <= 0 {
		c.Worker.QueueCapacity = c.Worker.MaxConcurrentJobs * 10
	}
	if c.Worker.QueueKey == "" {
		c.Worker.QueueKey = "streaming-engine:jobs"
	}
	if c.Worker.WorkerID == "" {
		c.Worker.WorkerID = "package-worker"
	}
	if c.Worker.ShutdownGracePeriod == 0 {
		c.Worker.ShutdownGracePeriod = 10 * time.Second
	}

	if c.Notification.Timeout <= 0 {
		c.Notification.Timeout = 10 * time.Second
	}

	if c.ServiceRegistry.ServiceName == "" {
		c.ServiceRegistry.ServiceName = "streaming-engine"
	}
	if c.ServiceRegistry.TTL == 0 {
		c.ServiceRegistry.TTL = 30 * time.Second
	}
	if c.ServiceRegistry.DialTimeout == 0 {
		c.ServiceRegistry.DialTimeout = 5 * time.Second
	}
	if c.ServiceRegistry.RefreshInterval == 0 {
		c.ServiceRegistry.RefreshInterval = 10 * time.Second
	}

	if len(c.Kafka.BootstrapServers) == 0 {
		c.Kafka.BootstrapServers = []string{"localhost:29092"}
	}
	if c.Kafka.ClientID == "" {
		c.Kafka.ClientID = "streaming-engine"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "streaming-engine-group"
	}
	if c.Kafka.Topics.PackageJobs == "" {
		c.Kafka.Topics.PackageJobs = "package.jobs"
	}
	if c.Kafka.Topics.JobOutcomes == "" {
		c.Kafka.Topics.JobOutcomes = "package.outcomes"
	}
}

// GetRedisAddr 获取Redis地址
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetMinioEndpoint 获取MinIO端点
func (c *MinioConfig) GetMinioEndpoint() string {
	return c.Endpoint
}
