package businessflow

import (
	"context"
	"log"

	"github.com/amirphl/ams-registry/allocation"
	"github.com/amirphl/ams-registry/app/dto"
	"github.com/amirphl/ams-registry/models"
	"github.com/amirphl/ams-registry/repository"
	"github.com/amirphl/ams-registry/utils"
)

// AuditFlow reads the registry audit trail
type AuditFlow interface {
	ListAuditLogs(ctx context.Context, req *dto.ListAuditLogsRequest) (*dto.ListAuditLogsResponse, error)
	SerialHistory(ctx context.Context, serial int64) (*dto.SerialHistoryResponse, error)
}

type AuditFlowImpl struct {
	auditRepo repository.AuditLogRepository
	policy    allocation.RangePolicy
}

func NewAuditFlow(auditRepo repository.AuditLogRepository, policy allocation.RangePolicy) AuditFlow {
	return &AuditFlowImpl{auditRepo: auditRepo, policy: policy}
}

func (af *AuditFlowImpl) ListAuditLogs(ctx context.Context, req *dto.ListAuditLogsRequest) (*dto.ListAuditLogsResponse, error) {
	page, pageSize, err := normalizePage(req.PaginationRequest)
	if err != nil {
		return nil, NewBusinessError("LIST_AUDIT_LOGS_VALIDATION_FAILED", err.Error(), err)
	}

	filter := models.AuditLogFilter{
		UserID:       req.UserID,
		Action:       utils.TrimPtr(req.Action),
		SerialNumber: req.SerialNumber,
		Success:      req.Success,
	}
	total, err := af.auditRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("LIST_AUDIT_LOGS_FAILED", "Failed to count audit logs", err)
	}
	logs, err := af.auditRepo.ByFilter(ctx, filter, "", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("LIST_AUDIT_LOGS_FAILED", "Failed to list audit logs", err)
	}

	items := make([]dto.AuditLogDTO, 0, len(logs))
	for _, l := range logs {
		items = append(items, ToAuditLogDTO(*l, af.policy))
	}
	return &dto.ListAuditLogsResponse{Items: items, Pagination: toPaginationInfo(page, pageSize, total)}, nil
}

func (af *AuditFlowImpl) SerialHistory(ctx context.Context, serial int64) (*dto.SerialHistoryResponse, error) {
	if !af.policy.Contains(serial) {
		return nil, NewBusinessErrorf("SERIAL_OUT_OF_RANGE", "Serial %d is outside the issuable range",
			&allocation.OutOfRangeError{Serial: serial, Min: af.policy.Min, Max: af.policy.Max}, serial)
	}

	logs, err := af.auditRepo.ListBySerial(ctx, serial)
	if err != nil {
		return nil, NewBusinessError("SERIAL_HISTORY_FAILED", "Failed to load serial history", err)
	}
	events := make([]dto.AuditLogDTO, 0, len(logs))
	for _, l := range logs {
		events = append(events, ToAuditLogDTO(*l, af.policy))
	}
	return &dto.SerialHistoryResponse{SerialNumber: serial, Serial: af.policy.Format(serial), Events: events}, nil
}

// auditEntry describes one event; the request fields come from ctx
type auditEntry struct {
	userID      *uint
	action      string
	serial      *int64
	description string
	err         error
}

// auditRecorder writes audit entries outside the caller's transaction.
// Failures are logged and never surface to the caller.
type auditRecorder struct {
	repo repository.AuditLogRepository
}

func (a auditRecorder) record(ctx context.Context, e auditEntry) {
	if a.repo == nil {
		return
	}

	entry := &models.AuditLog{
		UserID:       e.userID,
		Action:       e.action,
		SerialNumber: e.serial,
		Success:      utils.ToPtr(e.err == nil),
		CreatedAt:    utils.UTCNow(),
	}
	if entry.UserID == nil {
		if id, ok := ctx.Value(utils.UserIDKey).(uint); ok && id != 0 {
			entry.UserID = &id
		}
	}
	if e.description != "" {
		entry.Description = utils.ToPtr(e.description)
	}
	if e.err != nil {
		entry.ErrorMessage = utils.ToPtr(e.err.Error())
	}
	entry.IPAddress = ctxString(ctx, utils.IPAddressKey)
	entry.UserAgent = ctxString(ctx, utils.UserAgentKey)
	entry.RequestID = ctxString(ctx, utils.RequestIDKey)

	// the request context may already be cancelled by the time a failure is recorded
	if err := a.repo.Save(context.WithoutCancel(ctx), entry); err != nil {
		log.Printf("audit: failed to record %s: %v", e.action, err)
	}
}

func ctxString(ctx context.Context, key any) *string {
	if v, ok := ctx.Value(key).(string); ok && v != "" {
		return &v
	}
	return nil
}
