package businessflow

import (
	"context"
	"fmt"
	"log"

	"github.com/amirphl/ams-registry/app/dto"
	"github.com/amirphl/ams-registry/models"
	"github.com/amirphl/ams-registry/repository"
	"github.com/amirphl/ams-registry/utils"
)

// SerialState names accepted by ListSerials
const (
	SerialStateActive   = "active"
	SerialStateRetired  = "retired"
	SerialStateReserved = "reserved"
)

// SerialFlow exposes reservations and read-only views of the serial space
type SerialFlow interface {
	Reserve(ctx context.Context, operatorID uint) (*dto.ReservationDTO, error)
	Release(ctx context.Context, serial int64, req *dto.ReleaseReservationRequest) error
	PreviewNext(ctx context.Context) (*dto.NextSerialDTO, error)
	ListSerials(ctx context.Context, state string) (*dto.SerialListDTO, error)
	Usage(ctx context.Context) (*dto.SerialUsageDTO, error)
	Sweep(ctx context.Context) (*dto.SweepResultDTO, error)
}

type SerialFlowImpl struct {
	engine SerialEngine
	audit  auditRecorder
}

func NewSerialFlow(engine SerialEngine, auditRepo repository.AuditLogRepository) SerialFlow {
	return &SerialFlowImpl{engine: engine, audit: auditRecorder{repo: auditRepo}}
}

func (sf *SerialFlowImpl) Reserve(ctx context.Context, operatorID uint) (*dto.ReservationDTO, error) {
	res, err := sf.engine.ReserveSerial(ctx, operatorID)
	if err != nil {
		return nil, wrapAllocationError(err)
	}
	log.Printf("serials: reservation serial=%s reused=%t operator_id=%d", sf.engine.Policy().Format(res.Serial), res.Reused, operatorID)
	entry := auditEntry{userID: &operatorID, action: models.AuditActionSerialReserved, serial: &res.Serial}
	if res.Reused {
		entry.description = "Existing hold returned to its owner"
	}
	sf.audit.record(ctx, entry)
	out := ToReservationDTO(res, sf.engine.Policy())
	return &out, nil
}

func (sf *SerialFlowImpl) Release(ctx context.Context, serial int64, req *dto.ReleaseReservationRequest) error {
	if err := sf.engine.ReleaseReservation(ctx, serial, req.ReservationToken); err != nil {
		return wrapAllocationError(err)
	}
	sf.audit.record(ctx, auditEntry{action: models.AuditActionReservationReleased, serial: &serial})
	return nil
}

func (sf *SerialFlowImpl) PreviewNext(ctx context.Context) (*dto.NextSerialDTO, error) {
	serial, err := sf.engine.PreviewNext(ctx)
	if err != nil {
		return nil, wrapAllocationError(err)
	}
	return &dto.NextSerialDTO{SerialNumber: serial, Serial: sf.engine.Policy().Format(serial)}, nil
}

func (sf *SerialFlowImpl) ListSerials(ctx context.Context, state string) (*dto.SerialListDTO, error) {
	var (
		serials []int64
		err     error
	)
	switch state {
	case SerialStateActive:
		serials, err = sf.engine.ListActive(ctx)
	case SerialStateRetired:
		serials, err = sf.engine.ListRetired(ctx)
	case SerialStateReserved:
		serials, err = sf.engine.ListReserved(ctx)
	default:
		return nil, NewBusinessErrorf("UNKNOWN_SERIAL_STATE", "Unknown serial state %q", ErrUnknownSerialState, state)
	}
	if err != nil {
		return nil, NewBusinessError("LIST_SERIALS_FAILED", "Failed to list serials", err)
	}
	if serials == nil {
		serials = []int64{}
	}
	return &dto.SerialListDTO{State: state, Count: len(serials), Serials: serials}, nil
}

func (sf *SerialFlowImpl) Usage(ctx context.Context) (*dto.SerialUsageDTO, error) {
	u, err := sf.engine.Usage(ctx)
	if err != nil {
		return nil, NewBusinessError("SERIAL_USAGE_FAILED", "Failed to count serials", err)
	}
	policy := sf.engine.Policy()
	return &dto.SerialUsageDTO{
		Min:      policy.Min,
		Max:      policy.Max,
		Active:   u.Active,
		Retired:  u.Retired,
		Reserved: u.Reserved,
		Free:     u.Free,
	}, nil
}

// Sweep runs the reservation expiry immediately
func (sf *SerialFlowImpl) Sweep(ctx context.Context) (*dto.SweepResultDTO, error) {
	removed, err := sf.engine.ExpireStale(ctx, utils.UTCNow())
	if err != nil {
		return nil, wrapAllocationError(err)
	}
	sf.audit.record(ctx, auditEntry{action: models.AuditActionReservationsSwept, description: fmt.Sprintf("%d expired reservations removed", removed)})
	return &dto.SweepResultDTO{Removed: removed}, nil
}
