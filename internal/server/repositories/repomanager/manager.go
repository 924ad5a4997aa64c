package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/wayne/internal/dbx"
	"github.com/dmitrijs2005/wayne/internal/server/repositories/buckets"
	"github.com/dmitrijs2005/wayne/internal/server/repositories/keyenvelopes"
	"github.com/dmitrijs2005/wayne/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/wayne/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to either the pool or a
// transaction, so services can compose several writes atomically.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	KeyEnvelopes(db dbx.DBTX) keyenvelopes.Repository
	Buckets(db dbx.DBTX) buckets.Repository
}
