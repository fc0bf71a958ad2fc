package store

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/keithlinneman/tours-api/internal/apperr"
)

// ConnConfig describes one database connection. URI carries no credentials;
// they are passed separately and never logged.
type ConnConfig struct {
	URI        string
	Username   string
	Password   string
	Database   string
	AuthSource string
	Timeout    time.Duration
}

// Redacted returns the URI host list without userinfo, safe to log.
func (c ConnConfig) Redacted() string {
	u, err := url.Parse(c.URI)
	if err != nil {
		return "<invalid uri>"
	}
	u.User = nil
	u.RawQuery = ""
	return u.String()
}

func (c ConnConfig) validate() error {
	var errs []error
	if c.URI == "" {
		errs = append(errs, errors.New("database uri is required"))
	} else if !strings.HasPrefix(c.URI, "mongodb://") && !strings.HasPrefix(c.URI, "mongodb+srv://") {
		errs = append(errs, errors.New("database uri must use mongodb:// or mongodb+srv://"))
	} else if u, err := url.Parse(c.URI); err == nil && u.User != nil {
		errs = append(errs, errors.New("database uri must not embed credentials"))
	}
	if c.Database == "" {
		errs = append(errs, errors.New("database name is required"))
	}
	if c.Password != "" && c.Username == "" {
		errs = append(errs, errors.New("database password set without a username"))
	}
	return errors.Join(errs...)
}

// DB is a client bound to one database. The driver dials in the background;
// operations issued before the server is reachable wait for server selection
// up to the configured timeout.
type DB struct {
	client  *mongo.Client
	db      *mongo.Database
	cfg     ConnConfig
	timeout time.Duration
}

// Open validates cfg and builds a client without waiting for the server.
// Repositories can be bound immediately; call (*DB).Connect to verify the
// server once.
func Open(cfg ConnConfig) (*DB, error) {
	if err := cfg.validate(); err != nil {
		return nil, apperr.Wrap(err, "invalid database config")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetAppName("tours-api").
		SetConnectTimeout(cfg.Timeout).
		SetServerSelectionTimeout(cfg.Timeout)
	if cfg.Username != "" {
		opts.SetAuth(options.Credential{
			Username:   cfg.Username,
			Password:   cfg.Password,
			AuthSource: cfg.AuthSource,
		})
	}

	// mongo.Connect starts topology monitoring and returns without I/O.
	client, err := mongo.Connect(context.Background(), opts)
	if err != nil {
		return nil, apperr.Wrapf(err, "open %s", cfg.Redacted())
	}
	return &DB{
		client:  client,
		db:      client.Database(cfg.Database),
		cfg:     cfg,
		timeout: cfg.Timeout,
	}, nil
}

// Connect makes a single attempt to reach the primary within the configured
// timeout. There is no retry; the caller decides what a failure means.
func (d *DB) Connect(ctx context.Context) error {
	ctx, span := otel.Tracer("tours-api/store").Start(ctx, "store.connect")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "mongodb"),
		attribute.String("db.name", d.cfg.Database),
	)

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := d.client.Ping(ctx, readpref.Primary()); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ping")
		return apperr.Wrapf(err, "connect to %s", d.cfg.Redacted())
	}
	return nil
}

// Connect opens cfg and verifies the server in one call.
func Connect(ctx context.Context, cfg ConnConfig) (*DB, error) {
	d, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := d.Connect(ctx); err != nil {
		_ = d.Close(context.Background())
		return nil, err
	}
	return d, nil
}

// Ping checks the primary is reachable. Readiness probes call it.
func (d *DB) Ping(ctx context.Context) error {
	if err := d.client.Ping(ctx, readpref.Primary()); err != nil {
		return apperr.Wrap(err, "ping database")
	}
	return nil
}

// Close disconnects the client.
func (d *DB) Close(ctx context.Context) error {
	return d.client.Disconnect(ctx)
}

// EnsureIndexes creates the unique indexes the models rely on.
func (d *DB) EnsureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	specs := []struct {
		coll string
		idx  mongo.IndexModel
	}{
		{toursCollection, mongo.IndexModel{Keys: bsonKeys("name"), Options: unique}},
		{toursCollection, mongo.IndexModel{Keys: bsonKeys("slug")}},
		{usersCollection, mongo.IndexModel{Keys: bsonKeys("email"), Options: unique}},
		{reviewsCollection, mongo.IndexModel{Keys: bsonKeys("tour", "user"), Options: unique}},
	}
	for _, s := range specs {
		if _, err := d.db.Collection(s.coll).Indexes().CreateOne(ctx, s.idx); err != nil {
			return apperr.Wrapf(err, "create index on %s", s.coll)
		}
	}
	return nil
}

// Tours returns the tours repository.
func (d *DB) Tours() *Tours { return &Tours{coll: d.db.Collection(toursCollection)} }

// Reviews returns the reviews repository.
func (d *DB) Reviews() *Reviews { return &Reviews{coll: d.db.Collection(reviewsCollection)} }

// Users returns the users repository.
func (d *DB) Users() *Users { return &Users{coll: d.db.Collection(usersCollection)} }
