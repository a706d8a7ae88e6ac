package businessflow

import (
	"time"

	"github.com/amirphl/ams-registry/allocation"
	"github.com/amirphl/ams-registry/app/dto"
	"github.com/amirphl/ams-registry/models"
	"github.com/amirphl/ams-registry/utils"
)

// ClientMetadata holds request information used for audit logging
type ClientMetadata struct {
	IPAddress  string            `json:"ip_address"`
	UserAgent  string            `json:"user_agent"`
	RequestID  string            `json:"request_id,omitempty"`
	Additional map[string]string `json:"additional,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Additional: make(map[string]string),
	}
}

// AddAdditional adds additional custom information to the metadata
func (cm *ClientMetadata) AddAdditional(key, value string) {
	if cm.Additional == nil {
		cm.Additional = make(map[string]string)
	}
	cm.Additional[key] = value
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

func ToUserDTO(user models.User) dto.UserDTO {
	out := dto.UserDTO{
		ID:        user.ID,
		UUID:      user.UUID.String(),
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Username:  user.Username,
		IsActive:  utils.IsTrue(user.IsActive),
		CreatedAt: user.CreatedAt.UTC().Format(time.RFC3339),
	}
	if user.LastLoginAt != nil {
		out.LastLoginAt = utils.ToPtr(user.LastLoginAt.UTC().Format(time.RFC3339))
	}
	return out
}

func ToCategoryDTO(category models.Category) dto.CategoryDTO {
	return dto.CategoryDTO{
		ID:        category.ID,
		Name:      category.Name,
		CreatedAt: category.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func ToClientDTO(client models.Client, policy allocation.RangePolicy) dto.ClientDTO {
	out := dto.ClientDTO{
		ID:           client.ID,
		FirstName:    client.FirstName,
		LastName:     client.LastName,
		SerialNumber: client.SerialNumber,
		Serial:       policy.Format(client.SerialNumber),
		AssignedAt:   client.AssignedAt.UTC().Format(time.RFC3339),
		CreatedAt:    client.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:    client.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if client.RegisteredBy != nil {
		out.RegisteredBy = utils.ToPtr(ToUserDTO(*client.RegisteredBy))
	}
	if client.Category != nil {
		out.Category = utils.ToPtr(ToCategoryDTO(*client.Category))
	}
	return out
}

func ToRetiredSerialDTO(retired models.RetiredSerial) dto.RetiredSerialDTO {
	return dto.RetiredSerialDTO{
		SerialNumber:     retired.SerialNumber,
		OriginalClientID: retired.OriginalClientID,
		RetiredAt:        retired.RetiredAt.UTC().Format(time.RFC3339),
		Reason:           retired.Reason,
	}
}

func ToReservationDTO(res allocation.Reservation, policy allocation.RangePolicy) dto.ReservationDTO {
	return dto.ReservationDTO{
		SerialNumber:     res.Serial,
		Serial:           policy.Format(res.Serial),
		ReservationToken: res.Token,
		ReservedAt:       res.ReservedAt.UTC().Format(time.RFC3339),
		ExpiresAt:        res.ExpiresAt.UTC().Format(time.RFC3339),
		Reused:           res.Reused,
	}
}

func ToAuditLogDTO(entry models.AuditLog, policy allocation.RangePolicy) dto.AuditLogDTO {
	out := dto.AuditLogDTO{
		ID:           entry.ID,
		UserID:       entry.UserID,
		Action:       entry.Action,
		SerialNumber: entry.SerialNumber,
		Description:  entry.Description,
		IPAddress:    entry.IPAddress,
		UserAgent:    entry.UserAgent,
		RequestID:    entry.RequestID,
		Success:      !entry.IsFailed(),
		ErrorMessage: entry.ErrorMessage,
		CreatedAt:    entry.CreatedAt.UTC().Format(time.RFC3339),
	}
	if entry.User != nil {
		out.Username = utils.ToPtr(entry.User.Username)
	}
	if entry.SerialNumber != nil {
		out.Serial = utils.ToPtr(policy.Format(*entry.SerialNumber))
	}
	return out
}

// normalizePage applies defaults and bounds to page parameters
func normalizePage(p dto.PaginationRequest) (page, pageSize int, err error) {
	page, pageSize = p.Page, p.PageSize
	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = utils.DefaultPageSize
	}
	if page < 1 {
		return 0, 0, ErrInvalidPage
	}
	if pageSize < 1 || pageSize > utils.MaxPageSize {
		return 0, 0, ErrInvalidPageSize
	}
	return page, pageSize, nil
}

func toPaginationInfo(page, pageSize int, total int64) dto.PaginationInfo {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return dto.PaginationInfo{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
	}
}
