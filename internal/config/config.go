package config

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port               string `envconfig:"PORT" default:"8080"`
	Environment        string `envconfig:"ENV" default:"development"`
	DBConnectionString string `envconfig:"DATABASE_URL" required:"true"`
	JWTSecret          string `envconfig:"JWT_SECRET"`

	// GCP settings. When GCP_PROJECT_ID is set, secrets with empty env values
	// are resolved from Secret Manager at boot.
	GCPProjectID                  string `envconfig:"GCP_PROJECT_ID"`
	JWTSecretName                 string `envconfig:"JWT_SECRET_NAME" default:"speechix-jwt-secret"`
	PubSubEmulatorHost            string `envconfig:"PUBSUB_EMULATOR_HOST"`
	PubSubPushServiceAccountEmail string `envconfig:"PUBSUB_PUSH_SERVICE_ACCOUNT_EMAIL"`
	ProcessEndpointURL            string `envconfig:"PROCESS_ENDPOINT_URL"`

	// Content store (S3-compatible)
	S3URL       string `envconfig:"S3_URL" required:"true"`
	S3Bucket    string `envconfig:"S3_BUCKET" required:"true"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY" required:"true"`
	S3SecretKey string `envconfig:"S3_SECRET_KEY" required:"true"`

	// Synthesis engine service
	EngineBaseURL    string `envconfig:"ENGINE_BASE_URL" required:"true"`
	EngineTimeoutSec int    `envconfig:"ENGINE_TIMEOUT_SEC" default:"120"`

	// Job dispatch. "pgmq" polls a Postgres-backed queue (local/dev); "pubsub"
	// publishes to a Pub/Sub topic with a push subscription to /v1/jobs/process.
	DispatchMode       string `envconfig:"DISPATCH_MODE" default:"pgmq"`
	SynthesisQueueName string `envconfig:"SYNTHESIS_QUEUE_NAME" default:"synthesis_queue"`
	SynthesisTopic     string `envconfig:"SYNTHESIS_TOPIC" default:"synthesis-jobs"`

	// Worker settings
	WorkerPollTimeoutSec    int    `envconfig:"WORKER_POLL_TIMEOUT_SEC" default:"30"`
	WorkerPollMaxMsg        int    `envconfig:"WORKER_POLL_MAX_MSG" default:"1"`
	WorkerMaxRetries        int    `envconfig:"WORKER_MAX_RETRIES" default:"3"`
	WorkerBackoffInitialSec int    `envconfig:"WORKER_BACKOFF_INITIAL_SEC" default:"1"`
	WorkerBackoffMaxSec     int    `envconfig:"WORKER_BACKOFF_MAX_SEC" default:"60"`
	DeadLetterQueueName     string `envconfig:"SYNTHESIS_DEAD_LETTER_QUEUE_NAME" default:"synthesis_queue_dlq"`

	// TTS limits
	MaxTextLength      int `envconfig:"MAX_TEXT_LENGTH" default:"5000"`
	SignedURLExpirySec int `envconfig:"SIGNED_URL_EXPIRY_SEC" default:"3600"`
	MaxUploadSizeBytes int `envconfig:"MAX_UPLOAD_SIZE_BYTES" default:"10485760"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
