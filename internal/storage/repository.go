// Package storage groups the durable repositories behind one aggregate so
// commands and services are wired from a single handle.
package storage

import (
	"github.com/praktika-foundation/server/internal/domain/applications"
	"github.com/praktika-foundation/server/internal/domain/evidence"
	"github.com/praktika-foundation/server/internal/domain/ledger"
	"github.com/praktika-foundation/server/internal/domain/opportunities"
)

// Repository groups data access by domain.
type Repository interface {
	Ledger() ledger.Repository
	Opportunities() opportunities.Repository
	Applications() applications.Repository
	Evidence() evidence.Repository
}
