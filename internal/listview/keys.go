package listview

import (
	"github.com/ivankomartin/deposit-console/internal/domain"
	"github.com/ivankomartin/deposit-console/internal/querycache"
)

// RootProducts is the cache root of every product list page. Invalidating it
// makes active list views refetch.
const RootProducts = "products"

// ListKeyPrefix prefixes the cache keys of server-paginated list pages.
const ListKeyPrefix = RootProducts + "/list/"

// ListKey is the cache key of the server page q shows.
func ListKey(q Query) querycache.Key[domain.ProductPage] {
	return querycache.NewKey[domain.ProductPage](RootProducts, "list", q.serverKey())
}
