package smpp

import (
	"context"
	"time"
)

// Configuration types. internal/config decodes TOML
// (github.com/BurntSushi/toml) into its own toml-tagged file shapes and
// copies the Server, Client and Logging values into these; MetricsConfig
// is decoded directly, its keys matched to the Go field names without
// regard to case. These types carry no struct tags.
type Config struct {
	Server  ServerConfig
	Client  ClientConfig
	Logging LoggingConfig
	Metrics MetricsConfig
}

type LoggingConfig struct {
	Level  string
	Format string
	Output string
	File   string
}

type MetricsConfig struct {
	Enabled   bool
	Port      int
	Path      string
	Namespace string
	Subsystem string
}

type ConfigManager interface {
	LoadConfig() (*Config, error)
	SaveConfig() error
	GetServerConfig() *ServerConfig
	GetClientConfig() *ClientConfig
	UpdateConfig(config interface{}) error
	Reload() error
	Validate() error
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host               string
	Port               int
	MaxConnections     int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	EnquireLinkTimeout time.Duration
	BindTimeout        time.Duration
	LogLevel           string
	LogFile            string
	MetricsEnabled     bool
	MetricsPort        int
}

// ClientConfig represents client configuration
type ClientConfig struct {
	Host                 string
	Port                 int
	SystemID             string
	Password             string
	SystemType           string
	BindType             string
	ConnectTimeout       time.Duration
	ReadTimeout          time.Duration
	WriteTimeout         time.Duration
	EnquireLinkInterval  time.Duration
	ReconnectInterval    time.Duration
	MaxReconnectAttempts int
	LogLevel             string
}

// DeliveryReport represents a parsed deliver_sm delivery receipt
// (spec.md §4.1's deliver_sm "delivery receipt" text-body convention).
type DeliveryReport struct {
	MessageID      string
	SubmitDate     string
	DoneDate       string
	Status         string
	Error          string
	Text           string
	SubmittedParts int
	DeliveredParts int
	Timestamp      time.Time
	SubmitTime     time.Time
	DoneTime       time.Time
}

// UserAuth is a credential store with user management, implemented by
// internal/auth.DefaultUserAuth. Server does not call it directly:
// auth.ServerHooksAuth wraps that store as the ServerHooks whose
// Authenticate the Server calls on bind.
type UserAuth interface {
	// Authenticate validates bind credentials, returning the matched
	// User on success.
	Authenticate(ctx context.Context, systemID, password, systemType string) (*User, error)

	CreateUser(ctx context.Context, user *User) error
	UpdateUser(ctx context.Context, user *User) error
	DeleteUser(ctx context.Context, systemID string) error
	GetUser(ctx context.Context, systemID string) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)

	// IsAuthorized checks if a user is authorized for a specific operation
	IsAuthorized(ctx context.Context, systemID string, operation Operation) (bool, error)
}

// EventPublisher interface defines event publishing operations
type EventPublisher interface {
	// PublishSMSEvent publishes an SMS-related event
	PublishSMSEvent(ctx context.Context, event *SMSEvent) error

	// PublishConnectionEvent publishes a connection-related event
	PublishConnectionEvent(ctx context.Context, event *ConnectionEvent) error

	// PublishDeliveryEvent publishes a delivery report event
	PublishDeliveryEvent(ctx context.Context, event *DeliveryEvent) error

	// Subscribe subscribes to events of a specific type
	Subscribe(ctx context.Context, eventType EventType, handler EventHandler) error

	// Unsubscribe unsubscribes from events
	Unsubscribe(ctx context.Context, eventType EventType, handler EventHandler) error
}

// EventHandler interface defines event handling operations
type EventHandler interface {
	// HandleEvent handles an event
	HandleEvent(ctx context.Context, event Event) error

	// GetHandlerID returns a unique identifier for this handler
	GetHandlerID() string
}

// Logger interface defines logging operations
type Logger interface {
	// Debug logs a debug message
	Debug(msg string, fields ...interface{})

	// Info logs an info message
	Info(msg string, fields ...interface{})

	// Warn logs a warning message
	Warn(msg string, fields ...interface{})

	// Error logs an error message
	Error(msg string, fields ...interface{})

	// Fatal logs a fatal message and exits
	Fatal(msg string, fields ...interface{})

	// WithFields returns a logger with additional fields
	WithFields(fields map[string]interface{}) Logger
}

// MetricsCollector interface defines metrics collection operations
type MetricsCollector interface {
	// IncCounter increments a counter metric
	IncCounter(name string, labels map[string]string)

	// SetGauge sets a gauge metric
	SetGauge(name string, value float64, labels map[string]string)

	// ObserveHistogram observes a value for a histogram metric
	ObserveHistogram(name string, value float64, labels map[string]string)

	// RecordDuration records a duration metric
	RecordDuration(name string, duration time.Duration, labels map[string]string)
}

// Supporting data structures

// User represents a system user
type User struct {
	ID             string
	SystemID       string
	Password       string
	PasswordHash   string
	Salt           string
	Name           string
	Email          string
	SystemType     string
	Permissions    map[Operation]bool
	MaxConnections int
	RateLimit      int // Messages per minute
	Active         bool
	Enabled        bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastLogin      time.Time
	LoginCount     int64
}

// Permission represents a user permission
type Permission struct {
	Operation Operation
	Resource  string
}

// Operation represents an operation type
type Operation string

const (
	OperationBind    Operation = "bind"
	OperationSubmit  Operation = "submit"
	OperationDeliver Operation = "deliver"
	OperationQuery   Operation = "query"
	OperationCancel  Operation = "cancel"
	OperationReplace Operation = "replace"
	OperationUnbind  Operation = "unbind"
)

// Event represents a system event
type Event interface {
	GetEventType() EventType
	GetTimestamp() time.Time
	GetData() map[string]interface{}
}

// EventType represents the type of event
type EventType string

const (
	EventTypeSMSSubmitted   EventType = "sms.submitted"
	EventTypeSMSDelivered   EventType = "sms.delivered"
	EventTypeSMSFailed      EventType = "sms.failed"
	EventTypeConnected      EventType = "connection.connected"
	EventTypeDisconnected   EventType = "connection.disconnected"
	EventTypeBound          EventType = "connection.bound"
	EventTypeUnbound        EventType = "connection.unbound"
	EventTypeDeliveryReport EventType = "delivery.report"
)

// SMSEvent represents an SMS-related event
type SMSEvent struct {
	Type      EventType
	Timestamp time.Time
	MessageID string
	Session   *Session
	SourceAddr string
	DestAddr   string
	Error     error
	Data      map[string]interface{}
}

func (e *SMSEvent) GetEventType() EventType {
	return e.Type
}

func (e *SMSEvent) GetTimestamp() time.Time {
	return e.Timestamp
}

func (e *SMSEvent) GetData() map[string]interface{} {
	return e.Data
}

// ConnectionEvent represents a connection-related event
type ConnectionEvent struct {
	Type       EventType
	Timestamp  time.Time
	SessionID  string
	Session    *Session
	RemoteAddr string
	Error      error
	Data       map[string]interface{}
}

func (e *ConnectionEvent) GetEventType() EventType {
	return e.Type
}

func (e *ConnectionEvent) GetTimestamp() time.Time {
	return e.Timestamp
}

func (e *ConnectionEvent) GetData() map[string]interface{} {
	return e.Data
}

// DeliveryEvent represents a delivery report event
type DeliveryEvent struct {
	Type      EventType
	Timestamp time.Time
	MessageID string
	Report    *DeliveryReport
	Session   *Session
	Data      map[string]interface{}
}

func (e *DeliveryEvent) GetEventType() EventType {
	return e.Type
}

func (e *DeliveryEvent) GetTimestamp() time.Time {
	return e.Timestamp
}

func (e *DeliveryEvent) GetData() map[string]interface{} {
	return e.Data
}
