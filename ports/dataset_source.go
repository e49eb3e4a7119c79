package ports

import (
	"context"

	"tbdash/domain/dataset"
)

// DatasetSource loads the aggregated table once at startup
type DatasetSource interface {
	Load(ctx context.Context) (*dataset.Table, error)
	Describe() string
}
