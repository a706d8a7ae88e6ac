package allocation

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/ams-registry/models"
	"github.com/amirphl/ams-registry/repository"
)

// RetirementRecorder moves a client's serial from the active set to the
// retired set. It expects the exclusive lock and a transaction in ctx.
type RetirementRecorder struct {
	clients repository.ClientRepository
	retired repository.RetiredSerialRepository
}

func NewRetirementRecorder(clients repository.ClientRepository, retired repository.RetiredSerialRepository) *RetirementRecorder {
	return &RetirementRecorder{clients: clients, retired: retired}
}

func (r *RetirementRecorder) retire(ctx context.Context, clientID uint, reason *string, now time.Time) (*models.RetiredSerial, error) {
	client, err := r.clients.ByID(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, &NotFoundError{ClientID: clientID}
	}

	record := &models.RetiredSerial{
		SerialNumber:     client.SerialNumber,
		RetiredAt:        now,
		OriginalClientID: client.ID,
		Reason:           reason,
	}
	if err := r.retired.Save(ctx, record); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, &ConflictError{Serial: client.SerialNumber, State: StateRetired}
		}
		return nil, fmt.Errorf("failed to record retired serial %d: %w", client.SerialNumber, err)
	}

	if err := r.clients.Delete(ctx, client.ID); err != nil {
		return nil, err
	}
	return record, nil
}
