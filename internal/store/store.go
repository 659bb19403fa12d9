package store

import (
	"context"
	"errors"

	"github.com/kiranshivaraju/objcounter/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")
var ErrNoObjectTypes = errors.New("no object types configured")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	ListObjectTypes(ctx context.Context) ([]*models.ObjectType, error)
	GetObjectTypeByName(ctx context.Context, name string) (*models.ObjectType, error)
	CountObjectTypes(ctx context.Context) (int, error)

	SaveResult(ctx context.Context, in models.NewResult) (*models.Result, error)
	GetResult(ctx context.Context, id int64) (*models.Result, error)
	UpdateCorrection(ctx context.Context, id int64, corrected int, opts ...CorrectionOption) (*models.Result, error)
	ListResults(ctx context.Context, filter ResultFilter) ([]*models.Result, int, error)
	DeleteResult(ctx context.Context, id int64) (*models.Result, error)
	BulkDelete(ctx context.Context, ids []int64) (*BulkDeleteResult, error)
}

// ResultFilter selects a page of results, newest first.
// An empty ObjectType (or "all") matches every type.
type ResultFilter struct {
	ObjectType string
	Page       int
	PerPage    int
}

// BulkDeleteResult reports which ids were removed and which were not.
// ImagePaths lists the stored image names of the deleted rows so the caller
// can remove the files.
type BulkDeleteResult struct {
	Deleted    []int64
	ImagePaths []string
	Failures   []DeleteFailure
}

type DeleteFailure struct {
	ID     int64  `json:"id"`
	Reason string `json:"reason"`
}

// CorrectionParams holds optional changes applied alongside a correction.
type CorrectionParams struct {
	ObjectType *string
}

type CorrectionOption func(*CorrectionParams)

// WithObjectType reassigns the result to the named type. Unknown names are ignored.
func WithObjectType(name string) CorrectionOption {
	return func(p *CorrectionParams) {
		p.ObjectType = &name
	}
}

// ApplyCorrectionOptions folds opts into a CorrectionParams.
func ApplyCorrectionOptions(opts ...CorrectionOption) CorrectionParams {
	var p CorrectionParams
	for _, opt := range opts {
		opt(&p)
	}
	return p
}
