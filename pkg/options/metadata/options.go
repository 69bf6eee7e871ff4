// Package metadata provides document metadata store options.
package metadata

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/kart-io/ragpipe/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Backends.
const (
	BackendGorm  = "gorm"
	BackendRedis = "redis"
	BackendMongo = "mongo"
)

// SQL drivers for the gorm backend.
const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// Options configures where document metadata is persisted.
type Options struct {
	// Backend is gorm, redis or mongo.
	Backend string `json:"backend" mapstructure:"backend"`

	// Driver is the gorm dialect (sqlite|mysql|postgres).
	Driver string `json:"driver" mapstructure:"driver"`

	// DSN is the gorm data source name; a file path for sqlite.
	DSN string `json:"-" mapstructure:"dsn"`

	// KeyPrefix namespaces redis keys.
	KeyPrefix string `json:"key-prefix" mapstructure:"key-prefix"`

	// Collection is the mongo collection holding documents.
	Collection string `json:"collection" mapstructure:"collection"`
}

// NewOptions creates Options with defaults.
func NewOptions() *Options {
	return &Options{
		Backend:    BackendGorm,
		Driver:     DriverSQLite,
		DSN:        "_output/ragpipe.db",
		KeyPrefix:  "ragpipe:document:",
		Collection: "documents",
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	fs.StringVar(&o.Backend, p+"metadata.backend", o.Backend, "Document metadata backend (gorm|redis|mongo).")
	fs.StringVar(&o.Driver, p+"metadata.driver", o.Driver, "SQL driver for the gorm backend (sqlite|mysql|postgres).")
	fs.StringVar(&o.DSN, p+"metadata.dsn", o.DSN, "Data source name for the gorm backend.")
	fs.StringVar(&o.KeyPrefix, p+"metadata.key-prefix", o.KeyPrefix, "Key prefix for the redis backend.")
	fs.StringVar(&o.Collection, p+"metadata.collection", o.Collection, "Collection name for the mongo backend.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	switch o.Backend {
	case BackendGorm:
		switch o.Driver {
		case DriverSQLite, DriverMySQL, DriverPostgres:
		default:
			errs = append(errs, fmt.Errorf("metadata.driver %q is not supported", o.Driver))
		}
		if o.DSN == "" {
			errs = append(errs, fmt.Errorf("metadata.dsn is required for the gorm backend"))
		}
	case BackendRedis:
		if o.KeyPrefix == "" {
			errs = append(errs, fmt.Errorf("metadata.key-prefix is required for the redis backend"))
		}
	case BackendMongo:
		if o.Collection == "" {
			errs = append(errs, fmt.Errorf("metadata.collection is required for the mongo backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("metadata.backend %q is not supported", o.Backend))
	}
	return errs
}
