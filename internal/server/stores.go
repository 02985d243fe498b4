package server

import (
	"context"
	"strings"

	"github.com/quickauth/auth-service/internal/autherr"
	"github.com/quickauth/auth-service/internal/config"
	"github.com/quickauth/auth-service/internal/database"
	"github.com/quickauth/auth-service/internal/identities"
	"github.com/quickauth/auth-service/internal/sessions"
	"go.mongodb.org/mongo-driver/mongo"
)

// stores are the credential store repositories selected by DATABASE_URL.
// Connections open on first use and are retried until one succeeds.
type stores struct {
	kind       string
	identities identities.Repository
	sessions   sessions.Repository
	ping       func(context.Context) error
	closers    []func() error
}

func openStores(cfg *config.Config) (*stores, error) {
	raw := cfg.Database.URL
	switch {
	case strings.HasPrefix(raw, "mongodb://"), strings.HasPrefix(raw, "mongodb+srv://"):
		db := database.NewLazy(func(ctx context.Context) (*mongo.Database, error) {
			return database.OpenMongo(ctx, raw, cfg.Database.MongoDatabase, cfg.Database.Timeout)
		})
		return &stores{
			kind:       "mongo",
			identities: identities.NewMongoRepository(db),
			sessions:   sessions.NewMongoRepository(db),
			ping: func(ctx context.Context) error {
				d, err := db.Get(ctx)
				if err != nil {
					return err
				}
				return d.Client().Ping(ctx, nil)
			},
			closers: []func() error{func() error {
				return db.Close(func(d *mongo.Database) error { return d.Client().Disconnect(context.Background()) })
			}},
		}, nil

	case config.SupportedDatabaseURL(raw):
		db := database.NewLazy(func(ctx context.Context) (*database.SQL, error) {
			return database.OpenSQL(ctx, raw)
		})
		return &stores{
			kind:       "sql",
			identities: identities.NewSQLRepository(db),
			sessions:   sessions.NewSQLRepository(db),
			ping: func(ctx context.Context) error {
				d, err := db.Get(ctx)
				if err != nil {
					return err
				}
				return d.DB.PingContext(ctx)
			},
			closers: []func() error{func() error { return db.Close((*database.SQL).Close) }},
		}, nil
	}
	return nil, autherr.Errorf(autherr.ConfigMissing, "server.stores", "unsupported DATABASE_URL scheme")
}

func identitiesService(st *stores, cfg *config.Config) *identities.Service {
	return identities.NewService(st.identities, cfg.Auth.StoreTimeout)
}
