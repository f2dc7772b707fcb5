// Package media defines the contract between the content catalog and the
// media servers that feed it, and builds concrete clients from stored
// server records.
package media

import (
	"context"

	"chanplan/internal/models"
)

// ContentServer is one media server seen as a catalog source. GetLibraryItems
// returns playable items only: movies for movie sections, episodes for show
// sections. GetItemDetails resolves the richer per-item metadata the listing
// endpoints omit.
type ContentServer interface {
	Name() string
	Type() models.ServerType
	TestConnection(ctx context.Context) error
	GetLibraries(ctx context.Context) ([]models.Library, error)
	GetLibraryItems(ctx context.Context, libraryID string) ([]models.Content, error)
	GetItemDetails(ctx context.Context, itemID string) (*models.PoolItem, error)
}
