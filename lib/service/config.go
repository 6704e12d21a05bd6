package service

type Config struct {
	DatabaseUri              string  `envconfig:"DATABASE_URI" required:"true"`
	DatabaseMaxConns         int     `envconfig:"DATABASE_MAX_CONNS" default:"10"`
	DatabaseMaxIdleConns     int     `envconfig:"DATABASE_MAX_IDLE_CONNS" default:"5"`
	DatabaseConnMaxLifetime  int     `envconfig:"DATABASE_CONN_MAX_LIFETIME" default:"1800"` // 30 minutes
	SentryDSN                string  `envconfig:"SENTRY_DSN"`
	SentryTracesSampleRate   float64 `envconfig:"SENTRY_TRACES_SAMPLE_RATE"`
	LogFilePath              string  `envconfig:"LOG_FILE_PATH"`
	JWTSecret                []byte  `envconfig:"JWT_SECRET" required:"true"`
	VerificationTokenExpiry  int     `envconfig:"VERIFICATION_TOKEN_EXPIRY" default:"86400"` // in seconds, default 1 day
	SecureModeReturnUrl      string  `envconfig:"SECURE_MODE_RETURN_URL"`
	CardValidityMarginDays   int     `envconfig:"CARD_VALIDITY_MARGIN_DAYS" default:"30"`
	WebhookUrl               string  `envconfig:"WEBHOOK_URL"`
	RabbitMQUri              string  `envconfig:"RABBITMQ_URI"`
	RabbitMQEventExchange    string  `envconfig:"RABBITMQ_EVENT_EXCHANGE" default:"renthub_booking_event"`
	RabbitMQCommandExchange  string  `envconfig:"RABBITMQ_COMMAND_EXCHANGE" default:"renthub_booking_command"`
	RabbitMQCommandQueueName string  `envconfig:"RABBITMQ_COMMAND_QUEUE_NAME" default:"renthub_command_consumer"`
}
