package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/snapboard/internal/dbx"
	"github.com/dmitrijs2005/snapboard/internal/server/repositories/galleryposts"
	"github.com/dmitrijs2005/snapboard/internal/server/repositories/magiclinks"
	"github.com/dmitrijs2005/snapboard/internal/server/repositories/posts"
	"github.com/dmitrijs2005/snapboard/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/snapboard/internal/server/repositories/users"
)

// RepositoryManager hands out repositories bound to a DBTX so services can
// run the same code inside or outside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	MagicLinks(db dbx.DBTX) magiclinks.Repository
	Posts(db dbx.DBTX) posts.Repository
	GalleryPosts(db dbx.DBTX) galleryposts.Repository
}
