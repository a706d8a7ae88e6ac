package businessflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/ams-registry/allocation"
	"github.com/amirphl/ams-registry/app/dto"
	"github.com/amirphl/ams-registry/models"
	"github.com/amirphl/ams-registry/repository"
	"github.com/amirphl/ams-registry/utils"
	"github.com/xuri/excelize/v2"
)

// SerialEngine is the part of allocation.Engine the flows drive
type SerialEngine interface {
	Policy() allocation.RangePolicy
	AllocateSerial(ctx context.Context, reg allocation.Registration) (*models.Client, error)
	ReserveSerial(ctx context.Context, reservedBy uint) (allocation.Reservation, error)
	RedeemSerial(ctx context.Context, serial int64, token string, reg allocation.Registration) (*models.Client, error)
	ReleaseReservation(ctx context.Context, serial int64, token string) error
	RetireSerial(ctx context.Context, clientID uint, reason *string) (*models.RetiredSerial, error)
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
	PreviewNext(ctx context.Context) (int64, error)
	ListActive(ctx context.Context) ([]int64, error)
	ListRetired(ctx context.Context) ([]int64, error)
	ListReserved(ctx context.Context) ([]int64, error)
	Usage(ctx context.Context) (allocation.Usage, error)
}

// ClientFlow registers, edits and retires clients
type ClientFlow interface {
	RegisterClient(ctx context.Context, req *dto.RegisterClientRequest, operatorID uint, metadata *ClientMetadata) (*dto.ClientDTO, error)
	GetClient(ctx context.Context, id uint) (*dto.ClientDTO, error)
	GetClientBySerial(ctx context.Context, serial int64) (*dto.ClientDTO, error)
	ListClients(ctx context.Context, req *dto.ListClientsRequest) (*dto.ListClientsResponse, error)
	UpdateClient(ctx context.Context, id uint, req *dto.UpdateClientRequest) (*dto.ClientDTO, error)
	DeleteClient(ctx context.Context, id uint, req *dto.DeleteClientRequest, metadata *ClientMetadata) (*dto.RetiredSerialDTO, error)
	ExportClients(ctx context.Context, req *dto.ListClientsRequest) (string, []byte, error)
}

type ClientFlowImpl struct {
	engine       SerialEngine
	clientRepo   repository.ClientRepository
	categoryRepo repository.CategoryRepository
	userRepo     repository.UserRepository
	audit        auditRecorder
}

func NewClientFlow(
	engine SerialEngine,
	clientRepo repository.ClientRepository,
	categoryRepo repository.CategoryRepository,
	userRepo repository.UserRepository,
	auditRepo repository.AuditLogRepository,
) ClientFlow {
	return &ClientFlowImpl{
		engine:       engine,
		clientRepo:   clientRepo,
		categoryRepo: categoryRepo,
		userRepo:     userRepo,
		audit:        auditRecorder{repo: auditRepo},
	}
}

// RegisterClient assigns a serial to a new client. With a serial and token
// the reservation is redeemed, otherwise the next free serial is taken.
func (cf *ClientFlowImpl) RegisterClient(ctx context.Context, req *dto.RegisterClientRequest, operatorID uint, metadata *ClientMetadata) (*dto.ClientDTO, error) {
	token := utils.TrimPtr(req.ReservationToken)
	if (req.SerialNumber == nil) != (token == nil) {
		return nil, NewBusinessError("REDEEM_VALIDATION_FAILED", "serial_number and reservation_token must be given together", ErrRedeemFieldsRequired)
	}

	category, err := resolveCategory(ctx, cf.categoryRepo, req.CategoryID, req.NewCategoryName)
	if err != nil {
		return nil, err
	}

	reg := allocation.Registration{
		FirstName:      strings.TrimSpace(req.FirstName),
		LastName:       strings.TrimSpace(req.LastName),
		RegisteredByID: operatorID,
		CategoryID:     category.ID,
	}

	var client *models.Client
	if req.SerialNumber != nil {
		client, err = cf.engine.RedeemSerial(ctx, *req.SerialNumber, *token, reg)
	} else {
		client, err = cf.engine.AllocateSerial(ctx, reg)
	}
	if err != nil {
		cf.audit.record(ctx, auditEntry{userID: &operatorID, action: models.AuditActionClientRegisterFailed, serial: req.SerialNumber, err: err})
		return nil, wrapAllocationError(err)
	}

	log.Printf("clients: registered client_id=%d serial=%s operator_id=%d ip=%s",
		client.ID, cf.engine.Policy().Format(client.SerialNumber), operatorID, ipOf(metadata))
	cf.audit.record(ctx, auditEntry{
		userID:      &operatorID,
		action:      models.AuditActionClientRegistered,
		serial:      &client.SerialNumber,
		description: fmt.Sprintf("Client %d registered", client.ID),
	})
	return cf.GetClient(ctx, client.ID)
}

func (cf *ClientFlowImpl) GetClient(ctx context.Context, id uint) (*dto.ClientDTO, error) {
	return cf.findOne(ctx, models.ClientFilter{ID: &id}, fmt.Sprintf("Client %d not found", id))
}

func (cf *ClientFlowImpl) GetClientBySerial(ctx context.Context, serial int64) (*dto.ClientDTO, error) {
	policy := cf.engine.Policy()
	if !policy.Contains(serial) {
		return nil, NewBusinessErrorf("SERIAL_OUT_OF_RANGE", "Serial %d is outside the issuable range", &allocation.OutOfRangeError{Serial: serial, Min: policy.Min, Max: policy.Max}, serial)
	}
	return cf.findOne(ctx, models.ClientFilter{SerialNumber: &serial}, fmt.Sprintf("No client holds serial %s", policy.Format(serial)))
}

func (cf *ClientFlowImpl) findOne(ctx context.Context, filter models.ClientFilter, notFound string) (*dto.ClientDTO, error) {
	clients, err := cf.clientRepo.ByFilter(ctx, filter, "", 1, 0)
	if err != nil {
		return nil, NewBusinessError("CLIENT_LOOKUP_FAILED", "Failed to lookup client", err)
	}
	if len(clients) == 0 {
		return nil, NewBusinessError("CLIENT_NOT_FOUND", notFound, ErrClientNotFound)
	}
	out := ToClientDTO(*clients[0], cf.engine.Policy())
	return &out, nil
}

func (cf *ClientFlowImpl) ListClients(ctx context.Context, req *dto.ListClientsRequest) (*dto.ListClientsResponse, error) {
	page, pageSize, err := normalizePage(req.PaginationRequest)
	if err != nil {
		return nil, NewBusinessError("LIST_CLIENTS_VALIDATION_FAILED", err.Error(), err)
	}

	filter, empty, err := cf.buildFilter(ctx, req)
	if err != nil {
		return nil, err
	}
	if empty {
		return &dto.ListClientsResponse{Items: []dto.ClientDTO{}, Pagination: toPaginationInfo(page, pageSize, 0)}, nil
	}

	total, err := cf.clientRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("LIST_CLIENTS_FAILED", "Failed to count clients", err)
	}
	clients, err := cf.clientRepo.ByFilter(ctx, filter, "serial_number ASC", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("LIST_CLIENTS_FAILED", "Failed to list clients", err)
	}

	policy := cf.engine.Policy()
	items := make([]dto.ClientDTO, 0, len(clients))
	for _, c := range clients {
		items = append(items, ToClientDTO(*c, policy))
	}
	return &dto.ListClientsResponse{Items: items, Pagination: toPaginationInfo(page, pageSize, total)}, nil
}

// buildFilter translates list parameters; empty is set when no client can match
func (cf *ClientFlowImpl) buildFilter(ctx context.Context, req *dto.ListClientsRequest) (models.ClientFilter, bool, error) {
	filter := models.ClientFilter{CategoryID: req.CategoryID}
	if username := utils.TrimPtr(req.RegisteredBy); username != nil {
		user, err := cf.userRepo.ByUsername(ctx, strings.ToLower(*username))
		if err != nil {
			return filter, false, NewBusinessError("USER_LOOKUP_FAILED", "Failed to lookup user", err)
		}
		if user == nil {
			return filter, true, nil
		}
		filter.RegisteredByID = &user.ID
	}
	return filter, false, nil
}

// UpdateClient edits descriptive fields. The serial number is immutable.
func (cf *ClientFlowImpl) UpdateClient(ctx context.Context, id uint, req *dto.UpdateClientRequest) (*dto.ClientDTO, error) {
	firstName, lastName := utils.TrimPtr(req.FirstName), utils.TrimPtr(req.LastName)
	if firstName == nil && lastName == nil && req.CategoryID == nil {
		return nil, NewBusinessError("CLIENT_UPDATE_VALIDATION_FAILED", "Nothing to update", ErrClientUpdateRequired)
	}

	if req.CategoryID != nil {
		if _, err := resolveCategory(ctx, cf.categoryRepo, req.CategoryID, nil); err != nil {
			return nil, err
		}
	}

	if err := cf.clientRepo.UpdateDetails(ctx, id, firstName, lastName, req.CategoryID); err != nil {
		if repository.IsNotFound(err) {
			return nil, NewBusinessErrorf("CLIENT_NOT_FOUND", "Client %d not found", ErrClientNotFound, id)
		}
		return nil, NewBusinessError("CLIENT_UPDATE_FAILED", "Failed to update client", err)
	}

	out, err := cf.GetClient(ctx, id)
	if err != nil {
		return nil, err
	}
	cf.audit.record(ctx, auditEntry{action: models.AuditActionClientUpdated, serial: &out.SerialNumber, description: fmt.Sprintf("Client %d updated", id)})
	return out, nil
}

// DeleteClient removes the client and retires its serial for good
func (cf *ClientFlowImpl) DeleteClient(ctx context.Context, id uint, req *dto.DeleteClientRequest, metadata *ClientMetadata) (*dto.RetiredSerialDTO, error) {
	var reason *string
	if req != nil {
		reason = utils.TrimPtr(req.Reason)
	}

	retired, err := cf.engine.RetireSerial(ctx, id, reason)
	if err != nil {
		return nil, wrapAllocationError(err)
	}

	log.Printf("clients: deleted client_id=%d retired serial=%s ip=%s", id, cf.engine.Policy().Format(retired.SerialNumber), ipOf(metadata))
	description := fmt.Sprintf("Client %d deleted", id)
	if reason != nil {
		description += ": " + *reason
	}
	cf.audit.record(ctx, auditEntry{action: models.AuditActionClientRetired, serial: &retired.SerialNumber, description: description})
	out := ToRetiredSerialDTO(*retired)
	return &out, nil
}

// ExportClients writes every client matching the filter to an xlsx workbook
func (cf *ClientFlowImpl) ExportClients(ctx context.Context, req *dto.ListClientsRequest) (string, []byte, error) {
	filter, empty, err := cf.buildFilter(ctx, req)
	if err != nil {
		return "", nil, err
	}

	var clients []*models.Client
	if !empty {
		clients, err = cf.clientRepo.ByFilter(ctx, filter, "serial_number ASC", 0, 0)
		if err != nil {
			return "", nil, NewBusinessError("LIST_CLIENTS_FAILED", "Failed to list clients", err)
		}
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	sheet := utils.ExportSheetName
	if err := xl.SetSheetName(xl.GetSheetName(0), sheet); err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to prepare Excel sheet", err)
	}

	header := []string{"serial", "first_name", "last_name", "category", "registered_by", "assigned_at", "client_id"}
	_ = xl.SetSheetRow(sheet, "A1", &header)

	policy := cf.engine.Policy()
	for i, c := range clients {
		category := ""
		if c.Category != nil {
			category = c.Category.Name
		}
		registeredBy := ""
		if c.RegisteredBy != nil {
			registeredBy = c.RegisteredBy.Username
		}
		record := []string{
			policy.Format(c.SerialNumber),
			c.FirstName,
			c.LastName,
			category,
			registeredBy,
			c.AssignedAt.UTC().Format(time.RFC3339),
			strconv.FormatUint(uint64(c.ID), 10),
		}
		cellRef, _ := excelize.CoordinatesToCellName(1, i+2)
		_ = xl.SetSheetRow(sheet, cellRef, &record)
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	filename := fmt.Sprintf("clients_%s.xlsx", utils.UTCNow().Format("20060102_150405"))
	return filename, buf.Bytes(), nil
}

// wrapAllocationError attaches a stable code to allocation failures. The
// allocation error stays reachable through errors.Is and errors.As.
func wrapAllocationError(err error) error {
	switch {
	case allocation.IsExhausted(err):
		return NewBusinessError("SERIAL_RANGE_EXHAUSTED", err.Error(), err)
	case allocation.IsConflict(err):
		return NewBusinessError("SERIAL_CONFLICT", err.Error(), err)
	case allocation.IsNotFound(err):
		return NewBusinessError("CLIENT_NOT_FOUND", err.Error(), err)
	case allocation.IsLockTimeout(err):
		return NewBusinessError("SERIAL_LOCK_TIMEOUT", "Serial allocation is busy, retry shortly", err)
	case allocation.IsOutOfRange(err):
		return NewBusinessError("SERIAL_OUT_OF_RANGE", err.Error(), err)
	case errors.Is(err, allocation.ErrReservationNotFound):
		return NewBusinessError("RESERVATION_NOT_FOUND", err.Error(), err)
	case errors.Is(err, allocation.ErrReservationTokenMismatch):
		return NewBusinessError("RESERVATION_TOKEN_MISMATCH", "Reservation token does not match", err)
	case errors.Is(err, allocation.ErrReservationExpired):
		return NewBusinessError("RESERVATION_EXPIRED", err.Error(), err)
	case errors.Is(err, allocation.ErrReservationOwnerRequired):
		return NewBusinessError("RESERVATION_OWNER_REQUIRED", "Reservations must be placed by an operator", err)
	default:
		return NewBusinessError("SERIAL_OPERATION_FAILED", "Serial operation failed", err)
	}
}
