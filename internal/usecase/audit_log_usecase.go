package usecase

import (
	"context"
	"net/http"
	"strings"

	"marketim/internal/domain/model"
	repo "marketim/internal/repository"
)

type AuditLogUsecase struct {
	tx repo.TransactionManager
}

func NewAuditLogUsecase(tx repo.TransactionManager) *AuditLogUsecase {
	return &AuditLogUsecase{tx: tx}
}

type ListAuditLogsInput struct {
	Action       string
	ResourceType string
	ResourceID   int64
	Limit        int
}

// 新しい順。limitは0なら既定値、上限超えは400。
func (u *AuditLogUsecase) List(ctx context.Context, in ListAuditLogsInput) ([]model.AuditLog, error) {
	if in.Limit < 0 || in.Limit > repo.MaxAuditLimit {
		return []model.AuditLog{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}

	var f repo.AuditLogFilter
	f.Limit = in.Limit
	if a := strings.ToUpper(strings.TrimSpace(in.Action)); a != "" {
		action := model.AuditAction(a)
		switch action {
		case model.AuditActionUpdateStock, model.AuditActionUpdateOrderStatus, model.AuditActionCreateProduct:
		default:
			return []model.AuditLog{}, NewHTTPError(http.StatusBadRequest, "invalid action")
		}
		f.Action = &action
	}
	if rt := strings.ToLower(strings.TrimSpace(in.ResourceType)); rt != "" {
		resourceType := model.AuditResourceType(rt)
		if resourceType != model.AuditResourceProduct && resourceType != model.AuditResourceOrder {
			return []model.AuditLog{}, NewHTTPError(http.StatusBadRequest, "invalid resource_type")
		}
		f.ResourceType = &resourceType
	}
	if in.ResourceID < 0 {
		return []model.AuditLog{}, NewHTTPError(http.StatusBadRequest, "invalid resource_id")
	}
	if in.ResourceID > 0 {
		id := in.ResourceID
		f.ResourceID = &id
	}

	var out []model.AuditLog
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		out, err = r.AuditLogs().List(ctx, f)
		if err != nil {
			return persistenceErr("list audit logs", err)
		}
		return nil
	})
	if err != nil {
		return []model.AuditLog{}, classifyTxError("list audit logs", err)
	}
	return out, nil
}
