package storage

import (
	"context"
	"fmt"

	"property-monitor/models"
	"property-monitor/utils"
)

// Persister writes a finalized batch to the store and then exports it.
type Persister struct {
	store  Store
	writer *CSVWriter
}

func NewPersister(store Store, writer *CSVWriter) *Persister {
	return &Persister{store: store, writer: writer}
}

type PersistResult struct {
	Rows       int
	ExportPath string
	ExportErr  error
}

// Persist appends the batch to the store and exports it. A store failure
// is returned as an error and nothing is exported; an export failure is
// logged and reported in the result only.
func (p *Persister) Persist(ctx context.Context, b *models.ScrapeBatch) (PersistResult, error) {
	var res PersistResult

	n, err := p.store.AppendBatch(ctx, b)
	if err != nil {
		return res, fmt.Errorf("persist run %s: %w", b.RunID, err)
	}
	res.Rows = n
	utils.Success("Appended %d rows to store (run %s)", n, b.RunID)

	if p.writer == nil {
		return res, nil
	}
	res.ExportPath, res.ExportErr = p.writer.Export(b)
	if res.ExportErr != nil {
		utils.Warn("Export failed: %v", res.ExportErr)
	}
	return res, nil
}
