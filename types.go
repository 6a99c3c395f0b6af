package entityassist

import "time"

// =====================================
// Core Types and Constants
// =====================================

// Config represents database connection configuration
type Config struct {
	// Connection details
	Driver        string `json:"driver" yaml:"driver" mapstructure:"driver"`
	ConnectionURL string `json:"connection_url" yaml:"connection_url" mapstructure:"connection_url"`
	Host          string `json:"host" yaml:"host" mapstructure:"host"`
	Port          int    `json:"port" yaml:"port" mapstructure:"port"`
	Database      string `json:"database" yaml:"database" mapstructure:"database"`
	Username      string `json:"username" yaml:"username" mapstructure:"username"`
	Password      string `json:"password" yaml:"password" mapstructure:"password"`

	// Connection pool settings
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time" yaml:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`

	// LogLevel is one of silent, error, warn or info.
	LogLevel string `json:"log_level" yaml:"log_level" mapstructure:"log_level"`
	// SingularTable disables table name pluralisation.
	SingularTable bool `json:"singular_table" yaml:"singular_table" mapstructure:"singular_table"`

	// Detached makes builders run on the raw connection by default.
	Detached bool `json:"detached" yaml:"detached" mapstructure:"detached"`
	// SeparateRawPool opens a second pool for detached statements instead
	// of sharing gorm's.
	SeparateRawPool bool `json:"separate_raw_pool" yaml:"separate_raw_pool" mapstructure:"separate_raw_pool"`
	// QueryDebug logs every raw statement through bundebug.
	QueryDebug bool `json:"query_debug" yaml:"query_debug" mapstructure:"query_debug"`

	// SSL/TLS configuration
	SSL SSLConfig `json:"ssl" yaml:"ssl" mapstructure:"ssl"`
}

// SSLConfig represents SSL/TLS configuration
type SSLConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Mode     string `json:"mode" yaml:"mode" mapstructure:"mode"`
	CertFile string `json:"cert_file" yaml:"cert_file" mapstructure:"cert_file"`
	KeyFile  string `json:"key_file" yaml:"key_file" mapstructure:"key_file"`
	CAFile   string `json:"ca_file" yaml:"ca_file" mapstructure:"ca_file"`
}

// Operator represents query operators
type Operator string

const (
	OpEqual              Operator = "="
	OpNotEqual           Operator = "!="
	OpGreaterThan        Operator = ">"
	OpGreaterThanOrEqual Operator = ">="
	OpLessThan           Operator = "<"
	OpLessThanOrEqual    Operator = "<="
	OpLike               Operator = "LIKE"
	OpNotLike            Operator = "NOT LIKE"
	OpIn                 Operator = "IN"
	OpNotIn              Operator = "NOT IN"
	OpIsNull             Operator = "IS NULL"
	OpIsNotNull          Operator = "IS NOT NULL"
)

// LogicOperator represents logic operators for combining conditions
type LogicOperator string

const (
	LogicAnd LogicOperator = "AND"
	LogicOr  LogicOperator = "OR"
)

// Order represents sorting order
type Order struct {
	Field     string
	Direction OrderDirection
}

// OrderDirection represents sort direction
type OrderDirection string

const (
	OrderAsc  OrderDirection = "ASC"
	OrderDesc OrderDirection = "DESC"
)

// JoinType represents types of table joins
type JoinType string

const (
	JoinInner JoinType = "INNER"
	JoinLeft  JoinType = "LEFT"
	JoinRight JoinType = "RIGHT"
	JoinFull  JoinType = "FULL"
)

// AggregateKind selects the aggregate a builder computes instead of rows.
type AggregateKind string

const (
	AggregateCount       AggregateKind = "COUNT"
	AggregateColumn      AggregateKind = "COLUMN"
	AggregateMax         AggregateKind = "MAX"
	AggregateMin         AggregateKind = "MIN"
	AggregateSum         AggregateKind = "SUM"
	AggregateSumAsLong   AggregateKind = "SUM_LONG"
	AggregateSumAsDouble AggregateKind = "SUM_DOUBLE"
	AggregateAverage     AggregateKind = "AVG"
)
