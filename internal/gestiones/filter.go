package gestiones

import "github.com/andescap/factoring-console/internal/domain/entity"

// Filter selects a partition of the non-completed working set.
type Filter string

const (
	// FilterInProcess: verification-track operations, not flagged express.
	FilterInProcess Filter = "En Proceso"
	// FilterExpress: operations flagged for the expedited-advance track.
	FilterExpress Filter = "Adelanto Express"
	// FilterAll: every non-completed operation.
	FilterAll Filter = "Todas"
)

// applyFilter derives a view over the cache. Completed operations are always
// hidden; filtering never mutates the cache.
func applyFilter(ops []entity.Operation, filter Filter) []entity.Operation {
	out := make([]entity.Operation, 0, len(ops))
	for i := range ops {
		op := &ops[i]
		if op.Estado.IsTerminal() {
			continue
		}
		switch filter {
		case FilterInProcess:
			if !op.AdelantoExpress {
				out = append(out, *op)
			}
		case FilterExpress:
			if op.AdelantoExpress {
				out = append(out, *op)
			}
		default:
			out = append(out, *op)
		}
	}
	return out
}
