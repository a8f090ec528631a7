package auth

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type SubmitVendorApplicationMessage struct {
	UserID     uuid.UUID
	Input      VendorApplicationInput
	Logos      []string
	OnResponse func(app *VendorApplication)
}

func (m SubmitVendorApplicationMessage) Type() string { return "vendor.application.submit" }

type SubmitVendorApplicationHandler struct {
	repo RepositoryManager
}

func (h *SubmitVendorApplicationHandler) Execute(ctx context.Context, event SubmitVendorApplicationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during vendor application")
	default:
		return h.execute(ctx, event)
	}
}

func (h *SubmitVendorApplicationHandler) execute(ctx context.Context, event SubmitVendorApplicationMessage) error {
	if strings.TrimSpace(event.Input.StoreName) == "" {
		return goerrors.New("store name is required", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var app *VendorApplication
	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		submitted, err := h.repo.VendorApplications().SubmitTx(ctx, tx, &VendorApplication{
			UserID:          event.UserID,
			StoreName:       strings.TrimSpace(event.Input.StoreName),
			Description:     event.Input.Description,
			Contact:         event.Input.Contact,
			TaxID:           event.Input.TaxID,
			BusinessLicense: event.Input.BusinessLicense,
			Documents:       event.Input.Documents,
			Logos:           event.Logos,
		})
		if err != nil {
			return err
		}
		app = submitted
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to submit vendor application")
	}

	if event.OnResponse != nil {
		event.OnResponse(app)
	}

	return nil
}
