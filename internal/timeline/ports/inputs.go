package ports

import "context"

// TimelineUseCase is the driving port for producing the timeline chart.
type TimelineUseCase interface {
	Execute(ctx context.Context) error
}
