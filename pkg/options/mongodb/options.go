// Package mongodb provides MongoDB connection options.
package mongodb

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/ragpipe/pkg/options"
	"github.com/kart-io/ragpipe/pkg/utils/json"
)

var _ options.IOptions = (*Options)(nil)

const redactedPassword = "[REDACTED]"

// Options defines configuration options for MongoDB.
type Options struct {
	// URI overrides the host, port and credential fields when set.
	URI                    string        `json:"-" mapstructure:"uri"`
	Host                   string        `json:"host" mapstructure:"host"`
	Port                   int           `json:"port" mapstructure:"port"`
	Username               string        `json:"username" mapstructure:"username"`
	Password               string        `json:"-" mapstructure:"password"`
	Database               string        `json:"database" mapstructure:"database"`
	AuthSource             string        `json:"auth-source" mapstructure:"auth-source"`
	ReplicaSet             string        `json:"replica-set" mapstructure:"replica-set"`
	Direct                 bool          `json:"direct" mapstructure:"direct"`
	MaxPoolSize            uint64        `json:"max-pool-size" mapstructure:"max-pool-size"`
	ConnectTimeout         time.Duration `json:"connect-timeout" mapstructure:"connect-timeout"`
	ServerSelectionTimeout time.Duration `json:"server-selection-timeout" mapstructure:"server-selection-timeout"`
}

// NewOptions creates a new Options object with default values.
func NewOptions() *Options {
	return &Options{
		Host:                   "127.0.0.1",
		Port:                   27017,
		Database:               "ragpipe",
		AuthSource:             "admin",
		MaxPoolSize:            20,
		ConnectTimeout:         10 * time.Second,
		ServerSelectionTimeout: 10 * time.Second,
	}
}

// MarshalJSON redacts the password.
func (o *Options) MarshalJSON() ([]byte, error) {
	type plain Options
	out := struct {
		*plain
		Password string `json:"password,omitempty"`
	}{plain: (*plain)(o)}
	if o.Password != "" {
		out.Password = redactedPassword
	}
	return json.Marshal(out)
}

// String returns a string representation with password redacted.
func (o *Options) String() string {
	password := ""
	if o.Password != "" {
		password = redactedPassword
	}
	return fmt.Sprintf("MongoDB{host=%s, port=%d, user=%s, password=%s, database=%s}",
		o.Host, o.Port, o.Username, password, o.Database)
}

// AddFlags adds flags for MongoDB options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	fs.StringVar(&o.URI, p+"mongodb.uri", o.URI, "MongoDB URI (mongodb://...), overrides host and credentials.")
	fs.StringVar(&o.Host, p+"mongodb.host", o.Host, "MongoDB host")
	fs.IntVar(&o.Port, p+"mongodb.port", o.Port, "MongoDB port")
	fs.StringVar(&o.Username, p+"mongodb.username", o.Username, "MongoDB username")
	fs.StringVar(&o.Database, p+"mongodb.database", o.Database, "MongoDB database")
	fs.StringVar(&o.AuthSource, p+"mongodb.auth-source", o.AuthSource, "MongoDB authentication source")
	fs.StringVar(&o.ReplicaSet, p+"mongodb.replica-set", o.ReplicaSet, "MongoDB replica set name")
	fs.BoolVar(&o.Direct, p+"mongodb.direct", o.Direct, "Connect directly to a single MongoDB host")
	fs.Uint64Var(&o.MaxPoolSize, p+"mongodb.max-pool-size", o.MaxPoolSize, "Maximum number of pooled connections")
	fs.DurationVar(&o.ConnectTimeout, p+"mongodb.connect-timeout", o.ConnectTimeout, "MongoDB connect timeout")
	fs.DurationVar(&o.ServerSelectionTimeout, p+"mongodb.server-selection-timeout", o.ServerSelectionTimeout, "MongoDB server selection timeout")
}

// Complete reads the password from MONGODB_PASSWORD when not configured.
func (o *Options) Complete() error {
	if o.Password == "" {
		o.Password = os.Getenv("MONGODB_PASSWORD")
	}
	return nil
}

// Validate checks if the options are valid.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.URI == "" {
		if o.Host == "" {
			errs = append(errs, fmt.Errorf("mongodb host is required"))
		}
		if o.Port <= 0 || o.Port > 65535 {
			errs = append(errs, fmt.Errorf("mongodb port %d is out of range", o.Port))
		}
	} else if !strings.HasPrefix(o.URI, "mongodb://") && !strings.HasPrefix(o.URI, "mongodb+srv://") {
		errs = append(errs, fmt.Errorf("mongodb uri must start with mongodb:// or mongodb+srv://"))
	}
	if o.Database == "" {
		errs = append(errs, fmt.Errorf("mongodb database is required"))
	}
	return errs
}

// BuildURI returns URI when set, otherwise assembles one from the fields.
func (o *Options) BuildURI() string {
	if o.URI != "" {
		return o.URI
	}

	var b strings.Builder
	b.WriteString("mongodb://")
	if o.Username != "" {
		b.WriteString(url.QueryEscape(o.Username))
		if o.Password != "" {
			b.WriteString(":")
			b.WriteString(url.QueryEscape(o.Password))
		}
		b.WriteString("@")
	}
	fmt.Fprintf(&b, "%s:%d/", o.Host, o.Port)

	params := url.Values{}
	if o.AuthSource != "" && o.AuthSource != "admin" {
		params.Add("authSource", o.AuthSource)
	}
	if o.ReplicaSet != "" {
		params.Add("replicaSet", o.ReplicaSet)
	}
	if o.Direct {
		params.Add("directConnection", "true")
	}
	if len(params) > 0 {
		b.WriteString("?")
		b.WriteString(params.Encode())
	}
	return b.String()
}
