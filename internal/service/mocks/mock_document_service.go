package mocks

import (
	"context"

	"taxdocs/internal/model"
	"taxdocs/internal/repository"
	"taxdocs/internal/service"

	"github.com/stretchr/testify/mock"
)

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) Upload(ctx context.Context, caller model.Identity, in service.UploadInput) (*model.Document, error) {
	args := m.Called(ctx, caller, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentService) ListOwn(ctx context.Context, caller model.Identity) ([]model.Document, error) {
	args := m.Called(ctx, caller)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Document), args.Error(1)
}

func (m *MockDocumentService) Download(ctx context.Context, caller model.Identity, id int64) (*service.Download, error) {
	args := m.Called(ctx, caller, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Download), args.Error(1)
}

func (m *MockDocumentService) Delete(ctx context.Context, caller model.Identity, id int64) error {
	args := m.Called(ctx, caller, id)
	return args.Error(0)
}

func (m *MockDocumentService) ListAll(ctx context.Context, caller model.Identity, f repository.AdminFilter) ([]model.DocumentWithOwner, error) {
	args := m.Called(ctx, caller, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.DocumentWithOwner), args.Error(1)
}
